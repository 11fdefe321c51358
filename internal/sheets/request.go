package sheets

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// Action is the logical operation name understood by the remote store.
type Action string

const (
	ActionProducts      Action = "products"
	ActionProduct       Action = "product"
	ActionProductUpdate Action = "productUpdate"
	ActionAdjustStock   Action = "adjustStock"
	ActionBill          Action = "bill"
	ActionBills         Action = "bills"
)

// Shape is the URL layout of a remote store deployment.
type Shape int

const (
	// ShapeREST addresses every action by path, e.g. /product/P001.
	ShapeREST Shape = iota
	// ShapeAppsScript addresses actions with ?action=...&code=... on a single endpoint.
	ShapeAppsScript
)

func (s Shape) String() string {
	if s == ShapeAppsScript {
		return "apps_script"
	}
	return "rest"
}

// ParseShape resolves a configured shape. "auto" (or empty) detects Apps Script by host.
func ParseShape(s, baseURL string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		if strings.Contains(baseURL, "script.google.com") {
			return ShapeAppsScript, nil
		}
		return ShapeREST, nil
	case "apps_script", "appsscript":
		return ShapeAppsScript, nil
	case "rest":
		return ShapeREST, nil
	}
	return ShapeREST, fmt.Errorf("unknown sheets shape %q", s)
}

// Encoding is how write payloads are put on the wire.
type Encoding int

const (
	// EncodingJSON sends the payload as a raw application/json body.
	EncodingJSON Encoding = iota
	// EncodingForm wraps the JSON payload in a "payload" form field.
	EncodingForm
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return EncodingJSON, nil
	case "form":
		return EncodingForm, nil
	}
	return EncodingJSON, fmt.Errorf("unknown sheets payload encoding %q", s)
}

// FormField is the form field carrying the JSON payload under EncodingForm.
const FormField = "payload"

// route is everything needed to address one action under either shape.
type route struct {
	action Action
	method string
	path   string
	code   string
	body   any
}

// Request is one of the requests defined in this package.
type Request interface {
	route() route
}

type ListProducts struct{}

type GetProduct struct {
	Code string
}

type CreateProduct struct {
	Product models.Product
}

type UpdateProduct struct {
	Code  string
	Patch models.ProductPatch
}

// SetStock overwrites the stock of a product with an absolute value.
type SetStock struct {
	Code  string
	Stock int
}

// AdjustStock applies a signed change to the stock of a product.
type AdjustStock struct {
	Code   string
	Change int
}

type CreateBill struct {
	Bill models.Bill
}

type ListBills struct{}

func (ListProducts) route() route {
	return route{action: ActionProducts, method: http.MethodGet, path: "/products"}
}

func (r GetProduct) route() route {
	return route{action: ActionProduct, method: http.MethodGet, path: "/product/" + url.PathEscape(r.Code), code: r.Code}
}

func (r CreateProduct) route() route {
	return route{action: ActionProduct, method: http.MethodPost, path: "/product", body: r.Product}
}

func (r UpdateProduct) route() route {
	return route{action: ActionProductUpdate, method: http.MethodPatch, path: "/product/" + url.PathEscape(r.Code), code: r.Code, body: r.Patch}
}

func (r SetStock) route() route {
	return route{action: ActionProductUpdate, method: http.MethodPatch, path: "/stock/" + url.PathEscape(r.Code), code: r.Code, body: map[string]int{"stock": r.Stock}}
}

func (r AdjustStock) route() route {
	return route{action: ActionAdjustStock, method: http.MethodPost, path: "/stock/adjust/" + url.PathEscape(r.Code), code: r.Code, body: map[string]int{"change": r.Change}}
}

func (r CreateBill) route() route {
	return route{action: ActionBill, method: http.MethodPost, path: "/bill", body: r.Bill}
}

func (ListBills) route() route {
	return route{action: ActionBills, method: http.MethodGet, path: "/bills"}
}
