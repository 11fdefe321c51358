// Package sheets talks to the spreadsheet-backed store that holds the authoritative catalog
// and bills.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

const maxResponseBytes = 32 << 20

type Log interface {
	Debug(string, ...zap.Field)
}

type Options struct {
	BaseURL    string
	Shape      Shape
	Encoding   Encoding
	HTTPClient *http.Client
	// Limiter throttles outgoing requests; nil means unlimited.
	Limiter *rate.Limiter
	Log     Log
}

type Client struct {
	base     string
	shape    Shape
	encoding Encoding
	http     *http.Client
	limiter  *rate.Limiter
	log      Log
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		shape:    opts.Shape,
		encoding: opts.Encoding,
		http:     hc,
		limiter:  opts.Limiter,
		log:      opts.Log,
	}
}

// Configured reports whether the client has an endpoint to talk to.
func (c *Client) Configured() bool {
	return c.base != ""
}

func (c *Client) Shape() Shape {
	return c.shape
}

// Do sends req and decodes the JSON result into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	rt := req.route()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Action: rt.action, Err: err}
		}
	}

	httpReq, err := c.build(ctx, rt)
	if err != nil {
		return &TransportError{Action: rt.action, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &TransportError{Action: rt.action, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if c.log != nil {
		c.log.Debug("sheets request",
			zap.String("action", string(rt.action)),
			zap.String("method", httpReq.Method),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))
	}
	if err != nil {
		return &TransportError{Action: rt.action, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Action: rt.action, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response %q", snippet(body))}
	}

	return decode(rt.action, body, out)
}

func (c *Client) build(ctx context.Context, rt route) (*http.Request, error) {
	var target string
	method := rt.method

	switch c.shape {
	case ShapeAppsScript:
		u, err := url.Parse(c.base)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("action", string(rt.action))
		if rt.code != "" {
			q.Set("code", rt.code)
		}
		u.RawQuery = q.Encode()
		target = u.String()
		// Apps Script web apps only serve GET and POST.
		if rt.body != nil {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	default:
		target = c.base + rt.path
	}

	var (
		body        io.Reader
		contentType string
	)
	if rt.body != nil {
		payload, err := json.Marshal(rt.body)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		if c.encoding == EncodingForm {
			form := url.Values{FormField: {string(payload)}}
			body = strings.NewReader(form.Encode())
			contentType = "application/x-www-form-urlencoded"
		} else {
			body = bytes.NewReader(payload)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decode checks for an embedded error field before decoding into out.
func decode(action Action, body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Error json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if msg, ok := errorMessage(envelope.Error); ok {
				return &RemoteApplicationError{Action: action, Message: msg}
			}
		}
	}

	if out == nil {
		return nil
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyResult
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &TransportError{Action: action, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts a message from an "error" field. Absent, null, false and "" mean no error.
func errorMessage(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch string(raw) {
	case "null", "false", `""`:
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}
	return string(raw), true
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Products fetches the whole catalog.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.Do(ctx, ListProducts{}, &products); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return []models.Product{}, nil
		}
		return nil, err
	}
	return products, nil
}

// Product fetches one product by code.
func (c *Client) Product(ctx context.Context, code string) (models.Product, error) {
	var p models.Product
	if err := c.Do(ctx, GetProduct{Code: code}, &p); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return models.Product{}, ErrRemoteNotFound
		}
		return models.Product{}, err
	}
	if p.Code == "" {
		return models.Product{}, ErrRemoteNotFound
	}
	return p, nil
}

// AddProduct creates a product. The returned product is nil unless the store echoed one back.
func (c *Client) AddProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	return c.write(ctx, CreateProduct{Product: p})
}

func (c *Client) UpdateProduct(ctx context.Context, code string, patch models.ProductPatch) (*models.Product, error) {
	return c.write(ctx, UpdateProduct{Code: code, Patch: patch})
}

func (c *Client) SetStock(ctx context.Context, code string, stock int) (*models.Product, error) {
	return c.write(ctx, SetStock{Code: code, Stock: stock})
}

func (c *Client) AdjustStock(ctx context.Context, code string, change int) (*models.Product, error) {
	return c.write(ctx, AdjustStock{Code: code, Change: change})
}

func (c *Client) CreateBill(ctx context.Context, b models.Bill) error {
	return c.Do(ctx, CreateBill{Bill: b}, nil)
}

// Bills fetches every bill, in the order the store returns them.
func (c *Client) Bills(ctx context.Context) ([]models.Bill, error) {
	var bills []models.Bill
	if err := c.Do(ctx, ListBills{}, &bills); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return []models.Bill{}, nil
		}
		return nil, err
	}
	return bills, nil
}

func (c *Client) write(ctx context.Context, req Request) (*models.Product, error) {
	var raw json.RawMessage
	err := c.Do(ctx, req, &raw)
	if errors.Is(err, ErrEmptyResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p models.Product
	if json.Unmarshal(raw, &p) != nil || p.Code == "" {
		return nil, nil
	}
	return &p, nil
}
