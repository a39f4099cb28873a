package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"gastos/internal/core"
)

// entry and ordered keep mapping order, which drives keyboard layout.
type entry[T any] struct {
	Key   string
	Value T
}

type ordered[T any] []entry[T]

func (o *ordered[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v T
		if err := n.Content[i+1].Decode(&v); err != nil {
			return err
		}
		*o = append(*o, entry[T]{Key: n.Content[i].Value, Value: v})
	}
	return nil
}

type (
	quickExpenseDoc struct {
		Description string    `yaml:"description"`
		Category    string    `yaml:"category"`
		Subcategory string    `yaml:"subcategory"`
		Amount      yaml.Node `yaml:"amount"`
	}

	quickIncomeDoc struct {
		Category string `yaml:"category"`
	}

	destinationDoc struct {
		Label           string `yaml:"label"`
		ForeignCurrency bool   `yaml:"foreign_currency"`
	}

	modeDoc struct {
		Name     string            `yaml:"name"`
		Messages map[string]string `yaml:"messages"`
	}

	document struct {
		Categories          ordered[[]string]        `yaml:"categories"`
		PaymentMethods      [][]string               `yaml:"payment_methods"`
		QuickExpenses       ordered[quickExpenseDoc] `yaml:"quick_expenses"`
		QuickIncomes        ordered[quickIncomeDoc]  `yaml:"quick_incomes"`
		SavingsDestinations []destinationDoc         `yaml:"savings_destinations"`
		DefaultMode         string                   `yaml:"default_mode"`
		PersonalityModes    ordered[modeDoc]         `yaml:"personality_modes"`
	}
)

var defaultDestinations = []destinationDoc{
	{Label: "💵 Guardé Pesos"},
	{Label: "📈 Compré Dólares", ForeignCurrency: true},
	{Label: "🏦 Invertí (PF, FCI, etc.)"},
	{Label: "Otro"},
}

// keySet records which label produced each key so collisions name both sides.
type keySet map[string]string

func (k keySet) claim(section, label string) (string, error) {
	key := core.LabelKey(label)
	if key == "" {
		return "", fmt.Errorf("%s: label %q has no letters or digits", section, label)
	}
	if prev, ok := k[key]; ok {
		return "", fmt.Errorf("%s: %q and %q: %w", section, prev, label, ErrLabelCollision)
	}
	k[key] = label
	return key, nil
}

func (d document) build() (*Catalog, error) {
	var errs []error
	c := &Catalog{
		categoryIdx: map[string]int{},
		paymentIdx:  map[string]string{},
		modeIdx:     map[string]int{},
	}

	// Categories and subcategories share one key space: caps are looked up in
	// a single flat table.
	taxonomy := keySet{}
	if len(d.Categories) == 0 {
		errs = append(errs, fmt.Errorf("categories: %w", ErrEmptySection))
	}
	for _, e := range d.Categories {
		key, err := taxonomy.claim("categories", e.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cat := Category{Key: key, Label: strings.TrimSpace(e.Key)}
		for _, sub := range e.Value {
			skey, err := taxonomy.claim("categories", sub)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			cat.Subcategories = append(cat.Subcategories, Subcategory{Key: skey, Label: strings.TrimSpace(sub)})
		}
		c.categoryIdx[key] = len(c.Categories)
		c.Categories = append(c.Categories, cat)
	}

	payments := keySet{}
	for _, row := range d.PaymentMethods {
		var kept []string
		for _, label := range row {
			key, err := payments.claim("payment_methods", label)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			label = strings.TrimSpace(label)
			c.paymentIdx[key] = label
			kept = append(kept, label)
		}
		if len(kept) > 0 {
			c.PaymentMethods = append(c.PaymentMethods, kept)
		}
	}
	if len(c.PaymentMethods) == 0 {
		errs = append(errs, fmt.Errorf("payment_methods: %w", ErrEmptySection))
	}

	quick := keySet{}
	for _, e := range d.QuickExpenses {
		key, err := quick.claim("quick_expenses", e.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		q, err := c.quickExpense(key, e.Key, e.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.QuickExpenses = append(c.QuickExpenses, q)
	}

	incomes := keySet{}
	for _, e := range d.QuickIncomes {
		key, err := incomes.claim("quick_incomes", e.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		category := strings.TrimSpace(e.Value.Category)
		if category == "" {
			errs = append(errs, fmt.Errorf("quick_incomes: %q has no category: %w", e.Key, ErrInvalidPreset))
			continue
		}
		c.QuickIncomes = append(c.QuickIncomes, QuickIncome{Key: key, Label: strings.TrimSpace(e.Key), Category: category})
	}

	dests := d.SavingsDestinations
	if len(dests) == 0 {
		dests = defaultDestinations
	}
	destKeys := keySet{}
	for _, dd := range dests {
		key, err := destKeys.claim("savings_destinations", dd.Label)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.SavingsDestinations = append(c.SavingsDestinations, SavingsDestination{
			Key:             key,
			Label:           strings.TrimSpace(dd.Label),
			ForeignCurrency: dd.ForeignCurrency,
		})
	}

	names := keySet{}
	for _, e := range d.PersonalityModes {
		id := strings.TrimSpace(e.Key)
		if _, dup := c.modeIdx[id]; dup {
			errs = append(errs, fmt.Errorf("personality_modes: %q: %w", id, ErrLabelCollision))
			continue
		}
		name := strings.TrimSpace(e.Value.Name)
		if name == "" {
			name = id
		}
		if _, err := names.claim("personality_modes", name); err != nil {
			errs = append(errs, err)
			continue
		}
		c.modeIdx[id] = len(c.Modes)
		c.Modes = append(c.Modes, Mode{ID: id, Name: name, Messages: e.Value.Messages})
	}

	c.DefaultMode = strings.TrimSpace(d.DefaultMode)
	if c.DefaultMode == "" {
		c.DefaultMode = DefaultMode
	}
	if _, ok := c.modeIdx[c.DefaultMode]; !ok {
		errs = append(errs, fmt.Errorf("personality_modes: %q: %w", c.DefaultMode, ErrMissingDefaultMode))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func (c *Catalog) quickExpense(key, label string, doc quickExpenseDoc) (QuickExpense, error) {
	cat, ok := c.Category(doc.Category)
	if !ok {
		return QuickExpense{}, fmt.Errorf("quick_expenses: %q references %q: %w", label, doc.Category, ErrUnknownCategory)
	}
	q := QuickExpense{
		Key:         key,
		Label:       strings.TrimSpace(label),
		Description: strings.TrimSpace(doc.Description),
		Category:    cat.Label,
	}
	if q.Description == "" {
		q.Description = q.Label
	}
	if doc.Subcategory != "" {
		sub, ok := cat.Subcategory(doc.Subcategory)
		if !ok {
			return QuickExpense{}, fmt.Errorf("quick_expenses: %q references subcategory %q: %w", label, doc.Subcategory, ErrUnknownCategory)
		}
		q.Subcategory = sub.Label
	}
	amount, err := core.ParsePositiveAmount(doc.Amount.Value)
	if err != nil {
		return QuickExpense{}, fmt.Errorf("quick_expenses: %q amount %q: %w", label, doc.Amount.Value, ErrInvalidPreset)
	}
	q.Amount = amount
	return q, nil
}
