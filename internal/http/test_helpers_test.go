package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/rogerio-castellano/mall-billing/internal/http"
	"github.com/rogerio-castellano/mall-billing/internal/catalog"
	"github.com/rogerio-castellano/mall-billing/internal/http/handlers"
	rl "github.com/rogerio-castellano/mall-billing/internal/http/rate_limiter"
	"github.com/rogerio-castellano/mall-billing/internal/logger"
	"github.com/rogerio-castellano/mall-billing/internal/mirror"
	"github.com/rogerio-castellano/mall-billing/internal/models"
	"github.com/rogerio-castellano/mall-billing/internal/repo"
	"github.com/rogerio-castellano/mall-billing/internal/sheets"
	"github.com/rogerio-castellano/mall-billing/internal/syncer"
)

// sheetServer emulates a REST deployment of the spreadsheet store.
type sheetServer struct {
	mu       sync.Mutex
	products []models.Product
	bills    []models.Bill
	fail     bool
}

func (s *sheetServer) find(code string) int {
	for i, p := range s.products {
		if p.Code == code {
			return i
		}
	}
	return -1
}

func (s *sheetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		http.Error(w, "sheet unavailable", http.StatusServiceUnavailable)
		return
	}

	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && path == "/products":
		reply(s.products)
	case r.Method == http.MethodGet && path == "/bills":
		reply(s.bills)
	case r.Method == http.MethodPost && path == "/product":
		var p models.Product
		json.NewDecoder(r.Body).Decode(&p)
		s.products = append(s.products, p)
		reply(map[string]bool{"success": true})
	case r.Method == http.MethodPost && path == "/bill":
		var b models.Bill
		json.NewDecoder(r.Body).Decode(&b)
		for _, item := range b.Items {
			if i := s.find(item.Code); i >= 0 {
				s.products[i].Stock = models.ClampStock(s.products[i].Stock, -item.Quantity)
			}
		}
		s.bills = append([]models.Bill{b}, s.bills...)
		reply(map[string]bool{"success": true})
	case strings.HasPrefix(path, "/stock/adjust/"):
		i := s.find(strings.TrimPrefix(path, "/stock/adjust/"))
		if i < 0 {
			reply(map[string]string{"error": "product not found"})
			return
		}
		var body struct{ Change int }
		json.NewDecoder(r.Body).Decode(&body)
		s.products[i].Stock = models.ClampStock(s.products[i].Stock, body.Change)
		reply(s.products[i])
	case strings.HasPrefix(path, "/stock/"):
		i := s.find(strings.TrimPrefix(path, "/stock/"))
		var body struct{ Stock int }
		json.NewDecoder(r.Body).Decode(&body)
		s.products[i].Stock = body.Stock
		reply(s.products[i])
	case strings.HasPrefix(path, "/product/"):
		i := s.find(strings.TrimPrefix(path, "/product/"))
		if r.Method == http.MethodGet {
			if i < 0 {
				reply(nil)
				return
			}
			reply(s.products[i])
			return
		}
		var patch models.ProductPatch
		json.NewDecoder(r.Body).Decode(&patch)
		s.products[i] = patch.Apply(s.products[i])
		reply(s.products[i])
	default:
		http.NotFound(w, r)
	}
}

func (s *sheetServer) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

type testEnv struct {
	router http.Handler
	sheet  *sheetServer
	mirror *mirror.Mirror
}

type envOptions struct {
	unconfigured bool
	visitors     *rl.Visitors
}

func newTestEnv(t *testing.T, opts envOptions, products ...models.Product) *testEnv {
	t.Helper()

	sheet := &sheetServer{products: products}
	m := mirror.NewMemory()
	moves := repo.NewInMemoryMovementRepository()

	catOpts := catalog.Options{Mode: catalog.Unconfigured, Mirror: m, Movements: moves}
	if !opts.unconfigured {
		srv := httptest.NewServer(sheet)
		t.Cleanup(srv.Close)

		client := sheets.New(sheets.Options{BaseURL: srv.URL, Shape: sheets.ShapeREST, Encoding: sheets.EncodingJSON})
		s := syncer.New(m, client, syncer.Options{Interval: time.Hour})
		t.Cleanup(s.Stop)

		catOpts.Mode = catalog.RemoteBacked
		catOpts.Remote = client
		catOpts.Syncer = s
	} else {
		for _, p := range products {
			m.Products.Put(t.Context(), p)
		}
	}

	facade, err := catalog.New(catOpts)
	if err != nil {
		t.Fatal(err)
	}
	server := handlers.NewServer(facade, moves, logger.Nop())
	router := api.NewRouter(server, api.RouterOptions{Visitors: opts.visitors})
	return &testEnv{router: router, sheet: sheet, mirror: m}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	return v
}
