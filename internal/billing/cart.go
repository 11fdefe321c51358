// Package billing holds the cart a sale is built in before it becomes a bill.
package billing

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotInCart         = errors.New("product not in cart")
)

// Cart is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []models.CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

// Add puts one unit of p in the cart, merging with an existing line of the same code.
func (c *Cart) Add(p models.Product) (models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.Stock <= 0 {
		return models.CartLine{}, fmt.Errorf("%s: %w", p.Name, ErrOutOfStock)
	}

	if i := c.index(p.Code); i >= 0 {
		if c.lines[i].Quantity >= p.Stock {
			return models.CartLine{}, fmt.Errorf("only %d of %s available: %w", p.Stock, p.Name, ErrInsufficientStock)
		}
		c.lines[i].Product = p
		c.lines[i].Quantity++
		return c.lines[i], nil
	}

	line := models.CartLine{Product: p, Quantity: 1}
	c.lines = append(c.lines, line)
	return line, nil
}

// Change moves the quantity of a line by delta. A line reaching zero is removed,
// in which case the returned line has Quantity 0.
func (c *Cart) Change(code string, delta, stock int) (models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(code)
	if i < 0 {
		return models.CartLine{}, fmt.Errorf("%s: %w", code, ErrNotInCart)
	}

	qty := c.lines[i].Quantity + delta
	if qty <= 0 {
		line := c.lines[i]
		line.Quantity = 0
		c.lines = slices.Delete(c.lines, i, i+1)
		return line, nil
	}
	if qty > stock {
		return models.CartLine{}, fmt.Errorf("only %d of %s available: %w", stock, c.lines[i].Name, ErrInsufficientStock)
	}
	c.lines[i].Quantity = qty
	return c.lines[i], nil
}

func (c *Cart) Remove(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(code)
	if i < 0 {
		return false
	}
	c.lines = slices.Delete(c.lines, i, i+1)
	return true
}

func (c *Cart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.LinesTotal(c.lines)
}

// Settle takes billed lines out of the cart. Quantities added after the bill was built
// stay in the cart.
func (c *Cart) Settle(billed []models.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range billed {
		i := c.index(b.Code)
		if i < 0 {
			continue
		}
		c.lines[i].Quantity -= b.Quantity
		if c.lines[i].Quantity <= 0 {
			c.lines = slices.Delete(c.lines, i, i+1)
		}
	}
}

// Checkout builds the bill for the current lines. The cart is left as is; settle it once
// the bill has been recorded.
func (c *Cart) Checkout(customer models.Customer, now time.Time) (models.Bill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return models.Bill{}, ErrEmptyCart
	}
	items := slices.Clone(c.lines)
	return models.Bill{
		ID:       NewBillID(now),
		Date:     models.NewTimestamp(now),
		Items:    items,
		Total:    models.LinesTotal(items),
		Customer: customer,
	}, nil
}

func (c *Cart) index(code string) int {
	return slices.IndexFunc(c.lines, func(l models.CartLine) bool { return l.Code == code })
}

// NewBillID returns BILL<epoch-ms>-<8 hex>. The suffix keeps ids from two tills apart.
func NewBillID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("BILL%d-%s", now.UnixMilli(), suffix)
}
