// Package catalog holds the static bot configuration: the category taxonomy,
// payment methods, quick-entry presets, savings destinations and personality
// modes. It is loaded once at startup and never mutated afterwards.
//
// Every display label is indexed by core.LabelKey, so lookups survive emoji or
// accent edits and two labels reducing to the same key are rejected at load.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gastos/internal/core"
)

// DefaultMode is used when the configuration does not name one.
const DefaultMode = "comprensivo"

// Message keys looked up in a personality mode.
const (
	MsgStartExpense   = "start_gasto"
	MsgExpenseSaved   = "success_gasto"
	MsgBudgetWarning  = "budget_warning"
	MsgBudgetExceeded = "budget_exceeded"
	MsgModeChanged    = "mode_changed"
)

var (
	ErrLabelCollision     = errors.New("label collision")
	ErrMissingDefaultMode = errors.New("default personality mode not configured")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrEmptySection       = errors.New("empty configuration section")
	ErrInvalidPreset      = errors.New("invalid quick entry preset")
)

type (
	Subcategory struct {
		Key   string
		Label string
	}

	Category struct {
		Key           string
		Label         string
		Subcategories []Subcategory
	}

	QuickExpense struct {
		Key         string
		Label       string
		Description string
		Category    string
		Subcategory string
		Amount      decimal.Decimal
	}

	QuickIncome struct {
		Key      string
		Label    string
		Category string
	}

	SavingsDestination struct {
		Key             string
		Label           string
		ForeignCurrency bool
	}

	// Mode is a personality: a display name plus message templates keyed by
	// message id.
	Mode struct {
		ID       string
		Name     string
		Messages map[string]string
	}

	Catalog struct {
		Categories          []Category
		PaymentMethods      [][]string
		QuickExpenses       []QuickExpense
		QuickIncomes        []QuickIncome
		SavingsDestinations []SavingsDestination
		Modes               []Mode
		DefaultMode         string

		categoryIdx map[string]int
		paymentIdx  map[string]string
		modeIdx     map[string]int
	}
)

// HasSubcategories reports whether the expense flow must ask for one.
func (c Category) HasSubcategories() bool {
	return len(c.Subcategories) > 0
}

// Subcategory looks up a subcategory of c by label.
func (c Category) Subcategory(label string) (Subcategory, bool) {
	key := core.LabelKey(label)
	for _, s := range c.Subcategories {
		if s.Key == key {
			return s, true
		}
	}
	return Subcategory{}, false
}

// Message returns the template for key, or "" when the mode lacks it.
func (m Mode) Message(key string) string {
	return m.Messages[key]
}

// Load reads and validates the configuration file at path. YAML and JSON are
// both accepted.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot config: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("bot config %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc.build()
}

// Category looks up a category by label.
func (c *Catalog) Category(label string) (Category, bool) {
	i, ok := c.categoryIdx[core.LabelKey(label)]
	if !ok {
		return Category{}, false
	}
	return c.Categories[i], true
}

// PaymentMethod returns the configured label matching the input.
func (c *Catalog) PaymentMethod(label string) (string, bool) {
	m, ok := c.paymentIdx[core.LabelKey(label)]
	return m, ok
}

// QuickExpense matches a keyboard selection such as "☕ Café $2.500" against
// the preset labels.
func (c *Catalog) QuickExpense(selection string) (QuickExpense, bool) {
	key := core.LabelKey(selection)
	var (
		best  QuickExpense
		found bool
	)
	// Longest key wins so "Café" does not shadow "Café con leche".
	for _, q := range c.QuickExpenses {
		if key != q.Key && !strings.HasPrefix(key, q.Key+" ") {
			continue
		}
		if !found || len(q.Key) > len(best.Key) {
			best, found = q, true
		}
	}
	return best, found
}

func (c *Catalog) QuickIncome(label string) (QuickIncome, bool) {
	key := core.LabelKey(label)
	for _, q := range c.QuickIncomes {
		if q.Key == key {
			return q, true
		}
	}
	return QuickIncome{}, false
}

func (c *Catalog) SavingsDestination(label string) (SavingsDestination, bool) {
	key := core.LabelKey(label)
	for _, d := range c.SavingsDestinations {
		if d.Key == key {
			return d, true
		}
	}
	return SavingsDestination{}, false
}

// Mode looks up a personality by id.
func (c *Catalog) Mode(id string) (Mode, bool) {
	i, ok := c.modeIdx[id]
	if !ok {
		return Mode{}, false
	}
	return c.Modes[i], true
}

// ModeByName finds the mode whose display name is contained in text, which
// tolerates the "✅ " marker on the current mode's button.
func (c *Catalog) ModeByName(text string) (Mode, bool) {
	key := core.LabelKey(text)
	for _, m := range c.Modes {
		nameKey := core.LabelKey(m.Name)
		if nameKey != "" && (key == nameKey || strings.Contains(key, nameKey)) {
			return m, true
		}
	}
	return Mode{}, false
}

// Default returns the default personality mode.
func (c *Catalog) Default() Mode {
	m, _ := c.Mode(c.DefaultMode)
	return m
}
