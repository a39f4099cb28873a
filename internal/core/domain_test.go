package core

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		in    string
		y     int
		m     time.Month
		d     int
		valid bool
	}{
		{"19/10/2026", 2026, time.October, 19, true},
		{"05/03/2025 13:45", 2025, time.March, 5, true},
		{"5/3/2025", 2025, time.March, 5, true},
		{"2025-03-05", 0, 0, 0, false},
		{"13/13/2025", 0, 0, 0, false},
		{"", 0, 0, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in, loc)
		if !tc.valid {
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q unexpected error %v", tc.in, err)
		}
		if got.Year() != tc.y || got.Month() != tc.m || got.Day() != tc.d {
			t.Fatalf("%q parsed as %v", tc.in, got)
		}
	}
}

func TestExpenseValidateAndRow(t *testing.T) {
	good := Expense{
		Date:          time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		Description:   "super",
		Category:      "🍖 Comida",
		Amount:        decimal.NewFromInt(2000),
		PaymentMethod: "💳 Débito",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	row := good.Row()
	if len(row) != 6 || row[0] != "03/10/2026" || row[3] != "" || row[4] != 2000.0 {
		t.Fatalf("unexpected row %#v", row)
	}

	bads := []Expense{
		{Description: "a", Category: "c", Amount: decimal.NewFromInt(1), PaymentMethod: "p"},
		{Date: good.Date, Category: "c", Amount: decimal.NewFromInt(1), PaymentMethod: "p"},
		{Date: good.Date, Description: "a", Amount: decimal.NewFromInt(1), PaymentMethod: "p"},
		{Date: good.Date, Description: "a", Category: "c", PaymentMethod: "p"},
		{Date: good.Date, Description: "a", Category: "c", Amount: decimal.NewFromInt(1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSavingForeignCurrency(t *testing.T) {
	rate, err := ImpliedRate(decimal.NewFromInt(10000), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if got := FormatFixed(rate); got != "1000.00" {
		t.Fatalf("expected 1000.00, got %s", got)
	}

	s := Saving{
		Date:          time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(10000),
		Destination:   "📈 Compré Dólares",
		ForeignAmount: decimal.NewFromInt(10),
		Rate:          rate,
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if row := s.Row(); row[3] != 10.0 || row[4] != 1000.0 {
		t.Fatalf("unexpected row %#v", row)
	}

	s.Rate = decimal.Zero
	if err := s.Validate(); !errors.Is(err, ErrInvalidForeignSplit) {
		t.Fatalf("expected ErrInvalidForeignSplit, got %v", err)
	}

	if _, err := ImpliedRate(decimal.NewFromInt(1), decimal.Zero); err == nil {
		t.Fatalf("expected error for zero foreign amount")
	}
}

func TestRowAmountsStayParseable(t *testing.T) {
	e := Expense{
		Date:          time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		Description:   "peaje",
		Category:      "🚗 Transporte",
		Amount:        decimal.RequireFromString("100.125"),
		PaymentMethod: "💵 Efectivo",
	}
	cell := e.Row()[4]
	if cell != 100.13 {
		t.Fatalf("amount cell = %v, want 100.13", cell)
	}
	got, err := ParseAmount(strconv.FormatFloat(cell.(float64), 'f', -1, 64))
	if err != nil || !got.Equal(decimal.RequireFromString("100.13")) {
		t.Fatalf("cell parsed back as %s, %v", got, err)
	}
}
