package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
)

// AdjustStockHandler godoc
// @Summary Adjust the stock of a product
// @Description Stock never goes below zero
// @Tags inventory
// @Accept json
// @Produce json
// @Param code path string true "Product code"
// @Param adjustment body QuantityAdjustmentRequest true "Stock change"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse "Invalid adjustment"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 502 {object} ErrorResponse
// @Router /products/{code}/adjust [post]
func (s *Server) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	var req QuantityAdjustmentRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, "invalid input")
		return
	}

	product, err := s.catalog.AdjustStock(r.Context(), chi.URLParam(r, "code"), req.Delta, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, toProductResponse(product))
}

// StockMovementHandler godoc
// @Summary Receive or remove stock
// @Tags inventory
// @Accept json
// @Produce json
// @Param code path string true "Product code"
// @Param movement body StockMovementRequest true "Stock in or out"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 502 {object} ErrorResponse
// @Router /products/{code}/stock [post]
func (s *Server) StockMovementHandler(w http.ResponseWriter, r *http.Request) {
	var req StockMovementRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, "invalid input")
		return
	}

	code := chi.URLParam(r, "code")
	var (
		product models.Product
		err     error
	)
	switch req.Type {
	case string(models.MovementIn):
		product, err = s.catalog.StockIn(r.Context(), code, req.Quantity, req.Reason)
	case string(models.MovementOut):
		product, err = s.catalog.StockOut(r.Context(), code, req.Quantity, req.Reason)
	default:
		s.badRequest(w, "type must be 'in' or 'out'")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, toProductResponse(product))
}

// SetStockHandler godoc
// @Summary Overwrite the stock count of a product
// @Tags inventory
// @Accept json
// @Produce json
// @Param code path string true "Product code"
// @Param stock body SetStockRequest true "New stock count"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 502 {object} ErrorResponse
// @Router /products/{code}/stock [put]
func (s *Server) SetStockHandler(w http.ResponseWriter, r *http.Request) {
	var req SetStockRequest
	if err := readJSON(w, r, &req); err != nil || req.Stock == nil {
		s.badRequest(w, "invalid input")
		return
	}

	product, err := s.catalog.SetStock(r.Context(), chi.URLParam(r, "code"), *req.Stock, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) movementFilter(r *http.Request) (repo.MovementFilter, error) {
	since, err := timeParam(r, "since")
	if err != nil {
		return repo.MovementFilter{}, err
	}
	until, err := timeParam(r, "until")
	if err != nil {
		return repo.MovementFilter{}, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return repo.MovementFilter{}, err
	}
	return repo.MovementFilter{Since: since, Until: until, Offset: offset, Limit: limit}, nil
}

// GetMovementsHandler godoc
// @Summary Get the stock movements of a product
// @Tags movements
// @Produce json
// @Param code path string true "Product code"
// @Param since query string false "Filter movements from this timestamp (RFC3339)"
// @Param until query string false "Filter movements until this timestamp (RFC3339)"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {object} MovementsSearchResult
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 404 {object} ErrorResponse "Product not found"
// @Router /products/{code}/movements [get]
func (s *Server) GetMovementsHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := s.catalog.GetProductByCode(r.Context(), code); err != nil {
		s.fail(w, r, err)
		return
	}

	mf, err := s.movementFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	movements, total, err := s.movements.GetByCode(r.Context(), code, mf)
	if err != nil {
		s.log.Error("could not retrieve movements", zap.String("code", code), zap.Error(err))
		s.fail(w, r, err)
		return
	}

	response := MovementsSearchResult{
		Data: make([]MovementResponse, len(movements)),
		Meta: Meta{TotalCount: total},
	}
	for i, m := range movements {
		response.Data[i] = toMovementResponse(m)
	}
	s.respond(w, http.StatusOK, response)
}

func toMovementResponse(m models.Movement) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		Code:      m.Code,
		Delta:     m.Delta,
		Kind:      m.Kind,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// ExportMovementsHandler godoc
// @Summary Export the stock movements of a product
// @Tags movements
// @Produce text/csv, application/json
// @Param code path string true "Product code"
// @Param format query string true "Export format (csv or json)"
// @Param since query string false "Filter from timestamp (RFC3339)"
// @Param until query string false "Filter until timestamp (RFC3339)"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Router /products/{code}/movements/export [get]
func (s *Server) ExportMovementsHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	format := r.URL.Query().Get("format")
	if format != "csv" && format != "json" {
		s.badRequest(w, "format must be 'csv' or 'json'")
		return
	}

	mf, err := s.movementFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	mf.Offset, mf.Limit = nil, nil

	movements, _, err := s.movements.GetByCode(r.Context(), code, mf)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="movements.json"`)
		out := make([]MovementResponse, len(movements))
		for i, m := range movements {
			out[i] = toMovementResponse(m)
		}
		if err := json.NewEncoder(w).Encode(out); err != nil {
			s.log.Error("failed to write movements export", zap.Error(err))
		}

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="movements.csv"`)

		csvWriter := csv.NewWriter(w)
		_ = csvWriter.Write([]string{"id", "code", "delta", "kind", "reason", "created_at"})
		for _, m := range movements {
			_ = csvWriter.Write([]string{
				strconv.Itoa(m.ID),
				m.Code,
				strconv.Itoa(m.Delta),
				string(m.Kind),
				m.Reason,
				m.CreatedAt.Format(time.RFC3339),
			})
		}
		csvWriter.Flush()
	}
}
