package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/billing"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// GetBillsHandler godoc
// @Summary List bills, newest first
// @Tags bills
// @Produce json
// @Param refresh query bool false "Fetch from the remote store first"
// @Success 200 {array} models.Bill
// @Failure 502 {object} ErrorResponse
// @Router /bills [get]
func (s *Server) GetBillsHandler(w http.ResponseWriter, r *http.Request) {
	bills, err := s.catalog.GetBills(r.Context(), boolParam(r, "refresh"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, bills)
}

// CreateBillHandler godoc
// @Summary Record a bill
// @Description Decrements the stock of every line
// @Tags bills
// @Accept json
// @Produce json
// @Param bill body BillRequest true "Bill lines and customer"
// @Success 201 {object} models.Bill
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /bills [post]
func (s *Server) CreateBillHandler(w http.ResponseWriter, r *http.Request) {
	var req BillRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, "invalid input")
		return
	}

	bill, err := s.catalog.CreateBill(r.Context(), models.Bill{ID: req.ID, Items: req.Items, Customer: req.Customer})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, bill)
}

func (s *Server) cartResponse() CartResponse {
	return CartResponse{Items: s.cart.Lines(), Total: s.cart.Total()}
}

// GetCartHandler godoc
// @Summary Current cart
// @Tags cart
// @Produce json
// @Success 200 {object} CartResponse
// @Router /cart [get]
func (s *Server) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.cartResponse())
}

// AddCartItemHandler godoc
// @Summary Add one unit of a product to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Param item body CartItemRequest true "Product code"
// @Success 200 {object} CartResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Out of stock"
// @Router /cart/items [post]
func (s *Server) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := readJSON(w, r, &req); err != nil || req.Code == "" {
		s.badRequest(w, "invalid input")
		return
	}

	product, err := s.catalog.GetProductByCode(r.Context(), req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.cart.Add(product); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, s.cartResponse())
}

// ChangeCartItemHandler godoc
// @Summary Change the quantity of a cart line
// @Description A line reaching zero is removed
// @Tags cart
// @Accept json
// @Produce json
// @Param code path string true "Product code"
// @Param change body CartChangeRequest true "Quantity change"
// @Success 200 {object} CartResponse
// @Failure 404 {object} ErrorResponse "Not in cart"
// @Failure 409 {object} ErrorResponse "Not enough stock"
// @Router /cart/items/{code} [patch]
func (s *Server) ChangeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req CartChangeRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, "invalid input")
		return
	}

	code := chi.URLParam(r, "code")
	product, err := s.catalog.GetProductByCode(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.cart.Change(code, req.Change, product.Stock); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, s.cartResponse())
}

// RemoveCartItemHandler godoc
// @Summary Remove a line from the cart
// @Tags cart
// @Param code path string true "Product code"
// @Success 200 {object} CartResponse
// @Failure 404 {object} ErrorResponse "Not in cart"
// @Router /cart/items/{code} [delete]
func (s *Server) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cart.Remove(chi.URLParam(r, "code")) {
		s.fail(w, r, billing.ErrNotInCart)
		return
	}
	s.respond(w, http.StatusOK, s.cartResponse())
}

// CheckoutHandler godoc
// @Summary Turn the cart into a bill
// @Description The billed lines leave the cart once the bill is recorded
// @Tags cart
// @Accept json
// @Produce json
// @Param checkout body CheckoutRequest false "Customer"
// @Success 201 {object} models.Bill
// @Failure 400 {object} ErrorResponse "Empty cart"
// @Failure 502 {object} ErrorResponse
// @Router /cart/checkout [post]
func (s *Server) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, "invalid input")
			return
		}
	}

	bill, err := s.cart.Checkout(req.Customer, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.catalog.CreateBill(r.Context(), bill)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cart.Settle(bill.Items)
	s.log.Info("checkout complete", zap.String("bill", created.ID), zap.Int("lines", len(created.Items)))
	s.respond(w, http.StatusCreated, created)
}
