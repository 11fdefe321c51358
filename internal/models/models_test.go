package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProductJSONUsesNumericPrice(t *testing.T) {
	p := Product{Code: "P001", Name: "Rice 1kg", Category: "Grocery", Price: decimal.NewFromInt(50), Stock: 10, MinStock: 2}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"price":50`) {
		t.Errorf("expected numeric price, got %s", out)
	}

	var back Product
	if err := json.Unmarshal([]byte(`{"code":"P001","price":"50.50","stock":3,"minStock":1}`), &back); err != nil {
		t.Fatalf("quoted price should decode: %v", err)
	}
	if !back.Price.Equal(decimal.RequireFromString("50.5")) {
		t.Errorf("expected 50.5, got %s", back.Price)
	}
}

func TestProductPatchApply(t *testing.T) {
	p := Product{Code: "P001", Name: "Rice", Stock: 5}
	name := "Rice 5kg"
	neg := -4

	got := ProductPatch{Name: &name, Stock: &neg}.Apply(p)
	if got.Name != name {
		t.Errorf("expected name %q, got %q", name, got.Name)
	}
	if got.Stock != 0 {
		t.Errorf("expected stock clamped to 0, got %d", got.Stock)
	}
	if got.Code != "P001" {
		t.Errorf("code must not change")
	}
}

func TestClampStock(t *testing.T) {
	tests := []struct {
		stock, delta, want int
	}{
		{10, -3, 7},
		{10, -10, 0},
		{10, -1000, 0},
		{0, 5, 5},
	}
	for _, tt := range tests {
		if got := ClampStock(tt.stock, tt.delta); got != tt.want {
			t.Errorf("ClampStock(%d, %d) = %d, want %d", tt.stock, tt.delta, got, tt.want)
		}
	}
}

func TestLinesTotal(t *testing.T) {
	lines := []CartLine{
		{Product: Product{Code: "A", Price: decimal.RequireFromString("12.50")}, Quantity: 2},
		{Product: Product{Code: "B", Price: decimal.NewFromInt(3)}, Quantity: 3},
	}
	if got := LinesTotal(lines); !got.Equal(decimal.NewFromInt(34)) {
		t.Errorf("expected 34, got %s", got)
	}
}

func TestTimestampFormats(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2026-10-19T10:00:00Z"`, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)},
		{`1760868000000`, time.UnixMilli(1760868000000)},
		{`"2026-10-19 10:00:00"`, time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local)},
		{`"10/19/2026, 3:04:05 PM"`, time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local)},
		{`"19/10/2026, 3:04:05 pm"`, time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local)},
		{`"19/10/2026, 9:04:05 a.m."`, time.Date(2026, 10, 19, 9, 4, 5, 0, time.Local)},
		{`"19/10/2026, 15:04:05"`, time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local)},
		{`"10/19/2026, 15:04:05"`, time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local)},
		{`"yesterday"`, time.Time{}},
	}
	for _, tt := range tests {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !ts.Equal(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.in, tt.want, ts.Time)
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`true`), &ts); err == nil {
		t.Errorf("expected error for a non-date value")
	}
}

func TestBillWithLocaleDateDecodes(t *testing.T) {
	var bills []Bill
	raw := `[{"id":"BILL1","date":"19/10/2026, 3:04:05 pm","items":[],"total":0},
		{"id":"BILL2","date":"not a date","items":[],"total":0}]`
	if err := json.Unmarshal([]byte(raw), &bills); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bills[0].Date.Hour() != 15 || bills[0].Date.Day() != 19 {
		t.Errorf("unexpected date %v", bills[0].Date.Time)
	}
	if !bills[1].Date.IsZero() {
		t.Errorf("expected zero date for an unknown format, got %v", bills[1].Date.Time)
	}
}
