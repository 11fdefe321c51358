package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/notify"
)

type ProductRequest struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	MinStock int             `json:"minStock"`
}

func (p ProductRequest) toModel() models.Product {
	return models.Product{
		Code:     p.Code,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		MinStock: p.MinStock,
	}
}

type ProductResponse struct {
	models.Product
	LowStock bool `json:"lowStock,omitempty"`
}

func toProductResponse(p models.Product) ProductResponse {
	return ProductResponse{Product: p, LowStock: p.Stock > 0 && p.LowStock()}
}

type Meta struct {
	TotalCount int `json:"total_count"`
}

type ProductsSearchResult struct {
	Data []ProductResponse `json:"data"`
	Meta Meta              `json:"meta,omitempty"`
}

type QuantityAdjustmentRequest struct {
	Delta  int    `json:"delta"` // can be positive or negative
	Reason string `json:"reason"`
}

type StockMovementRequest struct {
	Type     string `json:"type"` // in or out
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type SetStockRequest struct {
	Stock  *int   `json:"stock"`
	Reason string `json:"reason"`
}

type MovementResponse struct {
	ID        int                 `json:"id"`
	Code      string              `json:"code"`
	Delta     int                 `json:"delta"`
	Kind      models.MovementKind `json:"kind"`
	Reason    string              `json:"reason,omitempty"`
	CreatedAt string              `json:"created_at"`
}

type MovementsSearchResult struct {
	Data []MovementResponse `json:"data"`
	Meta Meta               `json:"meta,omitempty"`
}

type BillRequest struct {
	ID       string            `json:"id,omitempty"`
	Items    []models.CartLine `json:"items"`
	Customer models.Customer   `json:"customer"`
}

type CartItemRequest struct {
	Code string `json:"code"`
}

type CartChangeRequest struct {
	Change int `json:"change"`
}

type CheckoutRequest struct {
	Customer models.Customer `json:"customer"`
}

type CartResponse struct {
	Items []models.CartLine `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type NotificationsResult struct {
	Data []notify.Notification `json:"data"`
}

type SyncResult struct {
	SyncedAt time.Time `json:"synced_at"`
}

type ImportProductsResult struct {
	ImportedProductsCount int                      `json:"imported"`
	Errors                []ProductValidationError `json:"errors"`
}
