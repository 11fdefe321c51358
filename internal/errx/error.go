// Package errx carries a status code and a user-safe message alongside an error.
package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// SystemErrorMessage is the fallback shown when an error has no classification.
const SystemErrorMessage = "internal server error"

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err       error
	Status    int
	Message   string
	Retryable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{Err: err, Status: status, Message: message}
}

// NewRetryable is New for failures the user may simply try again.
func NewRetryable(err error, status int, message string) *AppError {
	return &AppError{Err: err, Status: status, Message: message, Retryable: true}
}

// Classifier maps an error to an AppError, or returns nil if it does not recognise it.
type Classifier func(error) *AppError

// Classify runs the classifiers in order and falls back to a 500.
func Classify(err error, classifiers ...Classifier) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, c := range classifiers {
		if ae := c(err); ae != nil {
			return ae
		}
	}
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}
