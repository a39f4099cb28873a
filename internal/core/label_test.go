package core

import (
	"testing"
	"time"
)

func TestLabelKey(t *testing.T) {
	cases := map[string]string{
		"🍖 Comida":           "comida",
		"comida":             "comida",
		"  COMIDA  ":         "comida",
		"💳 Débito":           "debito",
		"🏦 Invertí (PF, FCI)": "inverti pf fci",
		"Café-Bar":           "cafe bar",
		"🚗":                  "",
	}
	for in, want := range cases {
		if got := LabelKey(in); got != want {
			t.Errorf("LabelKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMonthName(t *testing.T) {
	if got := MonthName(time.October); got != "Octubre" {
		t.Fatalf("got %q", got)
	}
	if got := MonthName(time.Month(13)); got != "" {
		t.Fatalf("expected empty for invalid month, got %q", got)
	}
}
