package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// CreateProductHandler godoc
// @Summary Create a new product
// @Description Adds a product to the catalog, remote store first
// @Tags products
// @Accept json
// @Produce json
// @Param product body ProductRequest true "Product to add"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Duplicate code"
// @Failure 502 {object} ErrorResponse "Remote store failure"
// @Router /products [post]
func (s *Server) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, "invalid input")
		return
	}
	req.Code = strings.TrimSpace(req.Code)

	if validationErrors := validateProduct(req); len(validationErrors) > 0 {
		s.invalid(w, validationErrors)
		return
	}

	created, err := s.catalog.AddProduct(r.Context(), req.toModel())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, toProductResponse(created))
}

// GetProductsHandler godoc
// @Summary List products
// @Tags products
// @Produce json
// @Param category query string false "Category (case insensitive)"
// @Param lowStock query bool false "Only products at or under their minimum stock"
// @Param q query string false "Search code, name or category"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Param refresh query bool false "Fetch from the remote store first"
// @Success 200 {object} ProductsSearchResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /products [get]
func (s *Server) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	filter := mirror.ProductFilter{
		Category: r.URL.Query().Get("category"),
		LowStock: boolParam(r, "lowStock"),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Offset:   offset,
		Limit:    limit,
	}

	products, total, err := s.catalog.GetProducts(r.Context(), filter, boolParam(r, "refresh"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	response := ProductsSearchResult{
		Data: make([]ProductResponse, len(products)),
		Meta: Meta{TotalCount: total},
	}
	for i, p := range products {
		response.Data[i] = toProductResponse(p)
	}
	s.respond(w, http.StatusOK, response)
}

// GetProductHandler godoc
// @Summary Get product by code
// @Tags products
// @Produce json
// @Param code path string true "Product code"
// @Success 200 {object} ProductResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 502 {object} ErrorResponse
// @Router /products/{code} [get]
func (s *Server) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProductByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, toProductResponse(product))
}

// UpdateProductHandler godoc
// @Summary Update some fields of a product
// @Tags products
// @Accept json
// @Produce json
// @Param code path string true "Product code"
// @Param patch body models.ProductPatch true "Fields to change"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 502 {object} ErrorResponse
// @Router /products/{code} [patch]
func (s *Server) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.ProductPatch
	if err := readJSON(w, r, &patch); err != nil {
		s.badRequest(w, "invalid input")
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		s.invalid(w, []ProductValidationError{{Field: "Name", Description: "Name is required"}})
		return
	}

	updated, err := s.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "code"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, toProductResponse(updated))
}
