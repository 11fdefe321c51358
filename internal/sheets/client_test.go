package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

type recorded struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        string
}

func newServer(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.Query(),
			contentType: r.Header.Get("Content-Type"),
			body:        string(b),
		})
		respond(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestClientNotConfigured(t *testing.T) {
	c := New(Options{})
	if c.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := c.Products(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClientRESTRoutes(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	c := New(Options{BaseURL: srv.URL + "/", Shape: ShapeREST})
	ctx := context.Background()

	requests := []struct {
		req    Request
		method string
		path   string
	}{
		{ListProducts{}, http.MethodGet, "/products"},
		{GetProduct{Code: "P 1"}, http.MethodGet, "/product/P 1"},
		{CreateProduct{Product: models.Product{Code: "P1"}}, http.MethodPost, "/product"},
		{UpdateProduct{Code: "P1"}, http.MethodPatch, "/product/P1"},
		{SetStock{Code: "P1", Stock: 4}, http.MethodPatch, "/stock/P1"},
		{AdjustStock{Code: "P1", Change: -2}, http.MethodPost, "/stock/adjust/P1"},
		{CreateBill{}, http.MethodPost, "/bill"},
		{ListBills{}, http.MethodGet, "/bills"},
	}

	for _, tt := range requests {
		if err := c.Do(ctx, tt.req, nil); err != nil {
			t.Fatalf("%T: %v", tt.req, err)
		}
	}

	if len(*calls) != len(requests) {
		t.Fatalf("expected %d calls, got %d", len(requests), len(*calls))
	}
	for i, tt := range requests {
		got := (*calls)[i]
		if got.method != tt.method || got.path != tt.path {
			t.Errorf("%T: expected %s %s, got %s %s", tt.req, tt.method, tt.path, got.method, got.path)
		}
	}

	adjust := (*calls)[5]
	if adjust.contentType != "application/json" || adjust.body != `{"change":-2}` {
		t.Errorf("unexpected adjust payload %q (%s)", adjust.body, adjust.contentType)
	}
}

func TestClientAppsScriptRoutes(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	c := New(Options{BaseURL: srv.URL + "/exec", Shape: ShapeAppsScript})
	ctx := context.Background()

	requests := []struct {
		req    Request
		method string
		action string
		code   string
	}{
		{ListProducts{}, http.MethodGet, "products", ""},
		{GetProduct{Code: "P&1"}, http.MethodGet, "product", "P&1"},
		{CreateProduct{Product: models.Product{Code: "P1"}}, http.MethodPost, "product", ""},
		{UpdateProduct{Code: "P1"}, http.MethodPost, "productUpdate", "P1"},
		{AdjustStock{Code: "P1", Change: 3}, http.MethodPost, "adjustStock", "P1"},
		{CreateBill{}, http.MethodPost, "bill", ""},
		{ListBills{}, http.MethodGet, "bills", ""},
	}
	for _, tt := range requests {
		if err := c.Do(ctx, tt.req, nil); err != nil {
			t.Fatalf("%T: %v", tt.req, err)
		}
	}
	for i, tt := range requests {
		got := (*calls)[i]
		if got.path != "/exec" {
			t.Errorf("%T: expected single endpoint, got path %s", tt.req, got.path)
		}
		if got.method != tt.method {
			t.Errorf("%T: expected %s, got %s", tt.req, tt.method, got.method)
		}
		if got.query.Get("action") != tt.action {
			t.Errorf("%T: expected action %q, got %q", tt.req, tt.action, got.query.Get("action"))
		}
		if got.query.Get("code") != tt.code {
			t.Errorf("%T: expected code %q, got %q", tt.req, tt.code, got.query.Get("code"))
		}
	}
}

func TestClientFormPayload(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	c := New(Options{BaseURL: srv.URL, Shape: ShapeAppsScript, Encoding: EncodingForm})

	if _, err := c.AdjustStock(context.Background(), "P1", -1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	got := (*calls)[0]
	if got.contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("expected form content type, got %q", got.contentType)
	}
	form, err := url.ParseQuery(got.body)
	if err != nil {
		t.Fatal(err)
	}
	if form.Get(FormField) != `{"change":-1}` {
		t.Errorf("unexpected payload field %q", form.Get(FormField))
	}
}

func TestClientDecodesProducts(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"P001","name":"Rice 1kg","category":"Grocery","price":50,"stock":10,"minStock":2}]`))
	})
	c := New(Options{BaseURL: srv.URL})

	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	p := products[0]
	if p.Code != "P001" || p.Stock != 10 || p.MinStock != 2 || !p.Price.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantApp   bool
		wantTrans bool
		wantErr   error
	}{
		{name: "http 500", status: 500, body: "boom", wantTrans: true},
		{name: "embedded string error", status: 200, body: `{"error":"sheet locked"}`, wantApp: true},
		{name: "embedded object error", status: 200, body: `{"error":{"message":"quota"}}`, wantApp: true},
		{name: "null error is fine", status: 200, body: `{"error":null,"code":"P1"}`},
		{name: "malformed json", status: 200, body: `{"code":`, wantTrans: true},
		{name: "null lookup", status: 200, body: `null`, wantErr: ErrRemoteNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			c := New(Options{BaseURL: srv.URL})

			_, err := c.Product(context.Background(), "P1")

			var appErr *RemoteApplicationError
			var transErr *TransportError
			switch {
			case tt.wantApp:
				if !errors.As(err, &appErr) {
					t.Fatalf("expected RemoteApplicationError, got %v", err)
				}
			case tt.wantTrans:
				if !errors.As(err, &transErr) {
					t.Fatalf("expected TransportError, got %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
			}
			if (tt.wantApp || tt.wantTrans) && !IsRemoteFailure(err) {
				t.Errorf("expected IsRemoteFailure to be true")
			}
		})
	}
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base})
	_, err := c.Bills(context.Background())
	var transErr *TransportError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transErr.Action != ActionBills {
		t.Errorf("expected action bills, got %s", transErr.Action)
	}
}

func TestClientWriteEcho(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/product" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"code":"P1","name":"Tea","price":"180","stock":7,"minStock":1}`))
	})
	c := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	echo, err := c.AddProduct(ctx, models.Product{Code: "P1"})
	if err != nil || echo != nil {
		t.Fatalf("expected no echo without product body, got %v %v", echo, err)
	}

	echo, err = c.AdjustStock(ctx, "P1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if echo == nil || echo.Stock != 7 {
		t.Fatalf("expected echoed product with stock 7, got %+v", echo)
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		in, base string
		want     Shape
		wantErr  bool
	}{
		{"auto", "https://script.google.com/macros/s/x/exec", ShapeAppsScript, false},
		{"", "https://sheets.example.com/api", ShapeREST, false},
		{"rest", "https://script.google.com/x", ShapeREST, false},
		{"apps_script", "http://localhost", ShapeAppsScript, false},
		{"soap", "", ShapeREST, true},
	}
	for _, tt := range tests {
		got, err := ParseShape(tt.in, tt.base)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseShape(%q): unexpected err %v", tt.in, err)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseShape(%q, %q) = %v, want %v", tt.in, tt.base, got, tt.want)
		}
	}
}
