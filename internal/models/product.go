package models

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers to and from the sheet.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a catalog entry. Code is its only identity.
type Product struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	MinStock int             `json:"minStock"`
}

// LowStock reports whether the product is at or under its minimum.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

// Equal compares all fields, prices by value.
func (p Product) Equal(o Product) bool {
	return p.Code == o.Code &&
		p.Name == o.Name &&
		p.Category == o.Category &&
		p.Price.Equal(o.Price) &&
		p.Stock == o.Stock &&
		p.MinStock == o.MinStock
}

// ProductPatch carries the fields of a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Name     *string          `json:"name,omitempty"`
	Category *string          `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
	MinStock *int             `json:"minStock,omitempty"`
}

// Apply returns p with the patch merged in. Stock is clamped at zero.
func (pp ProductPatch) Apply(p Product) Product {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Stock != nil {
		p.Stock = max(0, *pp.Stock)
	}
	if pp.MinStock != nil {
		p.MinStock = *pp.MinStock
	}
	return p
}

// ClampStock applies delta to stock without going below zero.
func ClampStock(stock, delta int) int {
	return max(0, stock+delta)
}
