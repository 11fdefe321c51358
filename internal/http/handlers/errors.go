package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rogerio-castellano/mall-billing/internal/billing"
	"github.com/rogerio-castellano/mall-billing/internal/catalog"
	"github.com/rogerio-castellano/mall-billing/internal/errx"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
)

func classify(err error) *errx.AppError {
	return errx.Classify(err, requestErrors, domainErrors, remoteErrors)
}

func requestErrors(err error) *errx.AppError {
	switch {
	case errors.Is(err, errBadParam):
		return errx.New(err, http.StatusBadRequest, "invalid query parameter")
	case errors.Is(err, context.DeadlineExceeded):
		return errx.NewRetryable(err, http.StatusGatewayTimeout, "request timed out")
	}
	return nil
}

func domainErrors(err error) *errx.AppError {
	switch {
	case errors.Is(err, catalog.ErrDuplicateCode):
		return errx.New(err, http.StatusConflict, "product code already exists")
	case errors.Is(err, catalog.ErrNotFound):
		return errx.New(err, http.StatusNotFound, "product not found")
	case errors.Is(err, catalog.ErrInvalidQuantity):
		return errx.New(err, http.StatusBadRequest, "invalid quantity")
	case errors.Is(err, catalog.ErrInvalidProduct):
		return errx.New(err, http.StatusBadRequest, "invalid product")
	case errors.Is(err, billing.ErrOutOfStock):
		return errx.New(err, http.StatusConflict, "product is out of stock")
	case errors.Is(err, billing.ErrInsufficientStock):
		return errx.New(err, http.StatusConflict, "not enough stock")
	case errors.Is(err, billing.ErrEmptyCart):
		return errx.New(err, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, billing.ErrNotInCart):
		return errx.New(err, http.StatusNotFound, "product not in cart")
	}
	return nil
}

func remoteErrors(err error) *errx.AppError {
	switch {
	case errors.Is(err, sheets.ErrNotConfigured):
		return errx.New(err, http.StatusServiceUnavailable, "remote store not configured")
	case sheets.IsRemoteFailure(err):
		return errx.NewRetryable(err, http.StatusBadGateway, "remote store request failed")
	}
	return nil
}
