package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sample = `
categories:
  "🍖 Comida": ["🛒 Supermercado", "☕ Cafetería"]
  "🚗 Transporte": []
payment_methods:
  - ["💵 Efectivo", "💳 Débito"]
quick_expenses:
  "☕ Café":
    category: "Comida"
    subcategory: "cafeteria"
    amount: 2500
  "☕ Café con leche":
    description: Café con leche
    category: "🍖 Comida"
    amount: "3.100,50"
quick_incomes:
  "💼 Sueldo":
    category: Sueldo
personality_modes:
  comprensivo:
    name: "🤗 Comprensivo"
    messages:
      budget_warning: "ojo"
  estricto:
    name: "😤 Estricto"
`

func TestParseSample(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(c.Categories) != 2 || c.Categories[0].Label != "🍖 Comida" || c.Categories[1].Label != "🚗 Transporte" {
		t.Fatalf("unexpected categories order: %+v", c.Categories)
	}
	food, ok := c.Category("comida")
	if !ok || !food.HasSubcategories() {
		t.Fatalf("expected Comida with subcategories, got %+v", food)
	}
	if sub, ok := food.Subcategory("Supermercado"); !ok || sub.Label != "🛒 Supermercado" {
		t.Fatalf("unexpected subcategory lookup: %+v %v", sub, ok)
	}
	if transport, _ := c.Category("🚗 Transporte"); transport.HasSubcategories() {
		t.Fatalf("Transporte should have no subcategories")
	}

	if m, ok := c.PaymentMethod("💳 debito"); !ok || m != "💳 Débito" {
		t.Fatalf("unexpected payment lookup: %q %v", m, ok)
	}
	if _, ok := c.PaymentMethod("Crédito"); ok {
		t.Fatalf("unexpected payment method match")
	}

	q, ok := c.QuickExpense("☕ Café $2.500")
	if !ok || q.Category != "🍖 Comida" || q.Subcategory != "☕ Cafetería" || q.Description != "☕ Café" || q.Amount.IntPart() != 2500 {
		t.Fatalf("unexpected quick expense: %+v", q)
	}
	q, ok = c.QuickExpense("☕ Café con leche $3.100,50")
	if !ok || q.Description != "Café con leche" || q.Amount.String() != "3100.5" {
		t.Fatalf("longest preset should win: %+v", q)
	}

	if c.DefaultMode != DefaultMode || c.Default().Name != "🤗 Comprensivo" {
		t.Fatalf("unexpected default mode %q", c.DefaultMode)
	}
	if m, ok := c.ModeByName("✅ 😤 Estricto"); !ok || m.ID != "estricto" {
		t.Fatalf("unexpected mode lookup %+v", m)
	}
	if got := c.Default().Message("budget_warning"); got != "ojo" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := c.Default().Message("missing"); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
	if len(c.SavingsDestinations) != len(defaultDestinations) {
		t.Fatalf("expected default savings destinations")
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{
  "categories": {"Comida": ["Super"]},
  "payment_methods": [["Efectivo"]],
  "personality_modes": {"comprensivo": {"name": "Comprensivo", "messages": {}}}
}`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if _, ok := c.Category("comida"); !ok {
		t.Fatalf("expected Comida")
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "category collision",
			doc: `
categories: {"🍖 Comida": [], "Comida": []}
payment_methods: [["Efectivo"]]
personality_modes: {comprensivo: {name: C}}`,
			want: ErrLabelCollision,
		},
		{
			name: "subcategory collides with category",
			doc: `
categories: {"Comida": ["Salud"], "Salud": []}
payment_methods: [["Efectivo"]]
personality_modes: {comprensivo: {name: C}}`,
			want: ErrLabelCollision,
		},
		{
			name: "missing default mode",
			doc: `
categories: {"Comida": []}
payment_methods: [["Efectivo"]]
personality_modes: {estricto: {name: E}}`,
			want: ErrMissingDefaultMode,
		},
		{
			name: "preset with unknown category",
			doc: `
categories: {"Comida": []}
payment_methods: [["Efectivo"]]
quick_expenses: {"Nafta": {category: "Auto", amount: 10}}
personality_modes: {comprensivo: {name: C}}`,
			want: ErrUnknownCategory,
		},
		{
			name: "preset with bad amount",
			doc: `
categories: {"Comida": []}
payment_methods: [["Efectivo"]]
quick_expenses: {"Pan": {category: "Comida", amount: "mucho"}}
personality_modes: {comprensivo: {name: C}}`,
			want: ErrInvalidPreset,
		},
		{
			name: "no payment methods",
			doc: `
categories: {"Comida": []}
personality_modes: {comprensivo: {name: C}}`,
			want: ErrEmptySection,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bot.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestShippedConfigIsValid(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "bot.yaml"))
	if err != nil {
		t.Fatalf("shipped config: %v", err)
	}
	if len(c.Modes) != 3 {
		t.Fatalf("expected 3 modes, got %d", len(c.Modes))
	}
	if d, ok := c.SavingsDestination("📈 Compré Dólares"); !ok || !d.ForeignCurrency {
		t.Fatalf("expected foreign currency destination")
	}
}
