package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/catalog"
)

// Level classifies spend against a cap.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelExceeded
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelExceeded:
		return "exceeded"
	default:
		return "ok"
	}
}

var (
	warningRatio  = decimal.NewFromFloat(0.8)
	exceededRatio = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
)

// Classify compares spent against a cap. A cap that is zero or negative never
// alerts.
func Classify(spent, limit decimal.Decimal) Level {
	if !limit.IsPositive() {
		return LevelOK
	}
	ratio := spent.Div(limit)
	switch {
	case ratio.GreaterThanOrEqual(exceededRatio):
		return LevelExceeded
	case ratio.GreaterThanOrEqual(warningRatio):
		return LevelWarning
	default:
		return LevelOK
	}
}

// Percent returns spent as a percentage of the cap, zero when it is not positive.
func Percent(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return spent.Mul(hundred).Div(limit)
}

type (
	// Source answers the two queries the evaluator needs. *Cache implements it.
	Source interface {
		CapFor(ctx context.Context, label string) (decimal.Decimal, error)
		SpentFor(ctx context.Context, category, subcategory string) (decimal.Decimal, error)
	}

	// Messages resolves a personality-styled template for a user.
	Messages interface {
		Message(ctx context.Context, userID int64, key string) string
	}
)

// Alert is a crossed threshold, ready to show to the user.
type Alert struct {
	Level   Level
	Label   string
	Spent   decimal.Decimal
	Cap     decimal.Decimal
	Percent decimal.Decimal
	Text    string
}

type Evaluator struct {
	source   Source
	messages Messages
}

func NewEvaluator(source Source, messages Messages) *Evaluator {
	return &Evaluator{source: source, messages: messages}
}

// Evaluate resolves the cap for subcategory first and falls back to the
// category cap. It returns nil when no cap applies or no threshold is
// crossed. Store failures are returned; callers treat alerts as advisory.
func (e *Evaluator) Evaluate(ctx context.Context, category, subcategory string, userID int64) (*Alert, error) {
	label := strings.TrimSpace(subcategory)
	var limit decimal.Decimal
	if label != "" {
		c, err := e.source.CapFor(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("subcategory cap: %w", err)
		}
		limit = c
	}

	var spent decimal.Decimal
	if limit.IsPositive() {
		s, err := e.source.SpentFor(ctx, category, label)
		if err != nil {
			return nil, fmt.Errorf("subcategory spend: %w", err)
		}
		spent = s
	} else {
		label = strings.TrimSpace(category)
		if label == "" {
			return nil, nil
		}
		c, err := e.source.CapFor(ctx, label)
		if err != nil {
			return nil, fmt.Errorf("category cap: %w", err)
		}
		if !c.IsPositive() {
			return nil, nil
		}
		limit = c
		s, err := e.source.SpentFor(ctx, label, "")
		if err != nil {
			return nil, fmt.Errorf("category spend: %w", err)
		}
		spent = s
	}

	level := Classify(spent, limit)
	if level == LevelOK {
		return nil, nil
	}

	key := catalog.MsgBudgetWarning
	if level == LevelExceeded {
		key = catalog.MsgBudgetExceeded
	}
	pct := Percent(spent, limit)
	msg := e.messages.Message(ctx, userID, key)
	return &Alert{
		Level:   level,
		Label:   label,
		Spent:   spent,
		Cap:     limit,
		Percent: pct,
		Text:    Render(label, msg, pct),
	}, nil
}

// Render formats an alert as "*<label>:* <message>", filling the
// {categoria} and {porcentaje} placeholders. The percentage is truncated so
// a warning never reads as 100.
func Render(label, message string, pct decimal.Decimal) string {
	r := strings.NewReplacer(
		"{categoria}", label,
		"{porcentaje}", pct.Floor().String(),
	)
	return fmt.Sprintf("*%s:* %s", label, r.Replace(message))
}
