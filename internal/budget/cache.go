// Package budget aggregates monthly spend per category and evaluates it
// against the configured caps.
package budget

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	ports "gastos/internal/sheets"
)

// Column positions in the expenses table.
const (
	colDate = iota
	colDescription
	colCategory
	colSubcategory
	colAmount
)

// Header names of the caps table, compared by label key.
const (
	capLabelHeader  = "categoria"
	capAmountHeader = "presupuesto"
)

// Reader is the part of the store the cache reads from.
type Reader interface {
	ports.RowReader
	ports.RecordReader
}

type CacheConfig struct {
	ExpensesTable string
	CapsTable     string
	Location      *time.Location
	// Now overrides the clock used for "this month"; nil means time.Now.
	Now func() time.Time
}

type expenseEntry struct {
	date           time.Time
	category       string
	categoryKey    string
	subcategoryKey string
	amount         decimal.Decimal
}

type capEntry struct {
	label  string
	key    string
	amount decimal.Decimal
}

// CapStatus is this month's spend against one configured cap.
type CapStatus struct {
	Label   string
	Cap     decimal.Decimal
	Spent   decimal.Decimal
	Percent decimal.Decimal
	Level   Level
}

// Cache is a snapshot of the expense and cap tables. Loads and queries are
// serialized by one mutex, so a query never observes a half-built snapshot.
type Cache struct {
	store    Reader
	expenses string
	caps     string
	loc      *time.Location
	now      func() time.Time

	mu      sync.Mutex
	loaded  bool
	entries []expenseEntry
	capRows []capEntry
	skipped int
}

func NewCache(store Reader, cfg CacheConfig) *Cache {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		store:    store,
		expenses: cfg.ExpensesTable,
		caps:     cfg.CapsTable,
		loc:      loc,
		now:      now,
	}
}

// Load fetches both tables when the cache is empty or stale, or always when
// force is set. A failed load leaves the cache stale so the next query
// retries.
func (c *Cache) Load(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && !force {
		return nil
	}
	return c.loadLocked(ctx)
}

// Invalidate marks the snapshot stale.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// Skipped returns how many expense rows the last load excluded.
func (c *Cache) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// CapFor returns the first cap configured for label, or zero when none is.
func (c *Cache) CapFor(ctx context.Context, label string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return decimal.Zero, err
	}
	key := core.LabelKey(label)
	if key == "" {
		return decimal.Zero, nil
	}
	for _, cp := range c.capRows {
		if cp.key == key {
			return cp.amount, nil
		}
	}
	return decimal.Zero, nil
}

// SpentFor sums this month's expenses. With a subcategory the subcategory
// column is matched, otherwise the category column.
func (c *Cache) SpentFor(ctx context.Context, category, subcategory string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return decimal.Zero, err
	}

	now := c.now().In(c.loc)
	subKey := core.LabelKey(subcategory)
	catKey := core.LabelKey(category)
	total := decimal.Zero
	for _, e := range c.entries {
		if !core.SameMonth(e.date, now) {
			continue
		}
		var match bool
		if subKey != "" {
			match = e.subcategoryKey == subKey
		} else {
			match = catKey != "" && e.categoryKey == catKey
		}
		if match {
			total = total.Add(e.amount)
		}
	}
	return total, nil
}

// MonthSummary totals the given month by category, largest first.
func (c *Cache) MonthSummary(ctx context.Context, year int, month time.Month) (core.MonthSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return core.MonthSummary{}, err
	}

	summary := core.MonthSummary{Year: year, Month: int(month), Total: decimal.Zero}
	idx := map[string]int{}
	for _, e := range c.entries {
		if e.date.Year() != year || e.date.Month() != month {
			continue
		}
		i, ok := idx[e.categoryKey]
		if !ok {
			i = len(summary.ByCategory)
			idx[e.categoryKey] = i
			summary.ByCategory = append(summary.ByCategory, core.CategoryAmount{Name: e.category, Amount: decimal.Zero})
		}
		summary.ByCategory[i].Amount = summary.ByCategory[i].Amount.Add(e.amount)
		summary.Total = summary.Total.Add(e.amount)
	}
	slices.SortStableFunc(summary.ByCategory, func(a, b core.CategoryAmount) int {
		if d := b.Amount.Cmp(a.Amount); d != 0 {
			return d
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return summary, nil
}

// Status reports every cap in table order. A cap label matches either the
// category or the subcategory column, since labels are unique across both.
func (c *Cache) Status(ctx context.Context) ([]CapStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	now := c.now().In(c.loc)
	seen := map[string]bool{}
	var out []CapStatus
	for _, cp := range c.capRows {
		if seen[cp.key] {
			continue
		}
		seen[cp.key] = true
		spent := decimal.Zero
		for _, e := range c.entries {
			if !core.SameMonth(e.date, now) {
				continue
			}
			if e.categoryKey == cp.key || e.subcategoryKey == cp.key {
				spent = spent.Add(e.amount)
			}
		}
		out = append(out, CapStatus{
			Label:   cp.label,
			Cap:     cp.amount,
			Spent:   spent,
			Percent: Percent(spent, cp.amount),
			Level:   Classify(spent, cp.amount),
		})
	}
	return out, nil
}

func (c *Cache) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) error {
	c.loaded = false

	rows, err := c.store.ReadAllRows(ctx, c.expenses)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	records, err := c.store.ReadAllRecords(ctx, c.caps)
	if err != nil {
		return fmt.Errorf("load caps: %w", err)
	}

	entries, skipped := parseExpenses(rows, c.loc)
	c.entries = entries
	c.skipped = skipped
	c.capRows = parseCaps(records)
	c.loaded = true

	slog.DebugContext(ctx, "Budget cache loaded",
		"expenses", len(entries),
		"skipped", skipped,
		"caps", len(c.capRows))
	return nil
}

// parseExpenses skips the header row. Rows with an unreadable date or amount
// are counted and left out.
func parseExpenses(rows [][]string, loc *time.Location) ([]expenseEntry, int) {
	if len(rows) < 2 {
		return nil, 0
	}
	out := make([]expenseEntry, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		if len(row) <= colAmount {
			skipped++
			continue
		}
		date, err := core.ParseDate(row[colDate], loc)
		if err != nil {
			skipped++
			continue
		}
		amount, err := core.ParseAmount(row[colAmount])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, expenseEntry{
			date:           date,
			category:       row[colCategory],
			categoryKey:    core.LabelKey(row[colCategory]),
			subcategoryKey: core.LabelKey(row[colSubcategory]),
			amount:         amount,
		})
	}
	return out, skipped
}

func parseCaps(records []map[string]string) []capEntry {
	out := make([]capEntry, 0, len(records))
	for _, rec := range records {
		var label, raw string
		for h, v := range rec {
			switch core.LabelKey(h) {
			case capLabelHeader:
				label = v
			case capAmountHeader:
				raw = v
			}
		}
		key := core.LabelKey(label)
		if key == "" {
			continue
		}
		amount, err := core.ParseAmount(raw)
		if err != nil {
			continue
		}
		out = append(out, capEntry{label: strings.TrimSpace(label), key: key, amount: amount})
	}
	return out
}
