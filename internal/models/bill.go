package models

import "github.com/shopspring/decimal"

// CartLine is a product snapshot with the quantity being sold.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Bill is an immutable sale record.
type Bill struct {
	ID       string          `json:"id"`
	Date     Timestamp       `json:"date"`
	Items    []CartLine      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Customer Customer        `json:"customer"`
}

// LinesTotal sums the subtotals of lines.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
