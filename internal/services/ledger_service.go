package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/budget"
	"gastos/internal/core"
	"gastos/internal/metrics"
	"gastos/internal/sheets"
)

type (
	// BudgetCache is the part of *budget.Cache the ledger drives.
	BudgetCache interface {
		Load(ctx context.Context, force bool) error
		Invalidate()
		Skipped() int
		MonthSummary(ctx context.Context, year int, month time.Month) (core.MonthSummary, error)
		Status(ctx context.Context) ([]budget.CapStatus, error)
	}

	AlertEvaluator interface {
		Evaluate(ctx context.Context, category, subcategory string, userID int64) (*budget.Alert, error)
	}

	Publisher interface {
		Publish(ctx context.Context, event *amqp.Event) error
	}
)

type LedgerConfig struct {
	ExpensesTable string
	IncomesTable  string
	SavingsTable  string
	Location      *time.Location
	// Now overrides the clock used for the current month; nil means time.Now.
	Now func() time.Time
}

// LedgerService writes records to the spreadsheet and keeps the budget
// cache in step with what was written.
type LedgerService struct {
	store     sheets.RowAppender
	cache     BudgetCache
	evaluator AlertEvaluator
	publisher Publisher
	metrics   *metrics.Registry
	cfg       LedgerConfig
}

// NewLedgerService builds the service. publisher and m may be nil.
func NewLedgerService(store sheets.RowAppender, cache BudgetCache, evaluator AlertEvaluator, publisher Publisher, m *metrics.Registry, cfg LedgerConfig) *LedgerService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LedgerService{
		store:     store,
		cache:     cache,
		evaluator: evaluator,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
	}
}

// RecordExpense appends the expense, reloads the cache and checks the
// budget. Only the append can fail the call; the returned alert is nil when
// no threshold was crossed or the check itself failed.
func (s *LedgerService) RecordExpense(ctx context.Context, userID int64, e core.Expense, quick bool) (*budget.Alert, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}

	started := time.Now()
	err := s.store.AppendRow(ctx, s.cfg.ExpensesTable, e.Row())
	s.metrics.ObserveSave("expense", started, err)
	if err != nil {
		return nil, fmt.Errorf("append expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense recorded",
		"user_id", userID,
		"category", e.Category,
		"subcategory", e.Subcategory,
		"amount", e.Amount.String(),
		"quick", quick)

	s.cache.Invalidate()
	reloadErr := s.cache.Load(ctx, true)
	s.metrics.ObserveReload(s.cache.Skipped(), reloadErr)
	if reloadErr != nil {
		slog.WarnContext(ctx, "Budget cache reload failed", "error", reloadErr)
	}

	alert, err := s.evaluator.Evaluate(ctx, e.Category, e.Subcategory, userID)
	if err != nil {
		slog.WarnContext(ctx, "Budget evaluation failed",
			"error", err,
			"category", e.Category)
		alert = nil
	}

	s.publish(ctx, amqp.NewExpenseEvent(userID, e, quick))
	if alert != nil {
		s.metrics.ObserveAlert(alert.Level.String())
		slog.InfoContext(ctx, "Budget threshold crossed",
			"user_id", userID,
			"label", alert.Label,
			"level", alert.Level.String(),
			"percent", alert.Percent.StringFixed(1))
		s.publish(ctx, amqp.NewAlertEvent(userID, *alert, s.cfg.Now()))
	}
	return alert, nil
}

func (s *LedgerService) RecordIncome(ctx context.Context, userID int64, i core.Income) error {
	if err := i.Validate(); err != nil {
		return fmt.Errorf("invalid income: %w", err)
	}
	started := time.Now()
	err := s.store.AppendRow(ctx, s.cfg.IncomesTable, i.Row())
	s.metrics.ObserveSave("income", started, err)
	if err != nil {
		return fmt.Errorf("append income: %w", err)
	}
	slog.InfoContext(ctx, "Income recorded",
		"user_id", userID,
		"category", i.Category,
		"amount", i.Amount.String())
	s.publish(ctx, amqp.NewIncomeEvent(userID, i))
	return nil
}

func (s *LedgerService) RecordSaving(ctx context.Context, userID int64, sv core.Saving) error {
	if err := sv.Validate(); err != nil {
		return fmt.Errorf("invalid saving: %w", err)
	}
	started := time.Now()
	err := s.store.AppendRow(ctx, s.cfg.SavingsTable, sv.Row())
	s.metrics.ObserveSave("saving", started, err)
	if err != nil {
		return fmt.Errorf("append saving: %w", err)
	}
	slog.InfoContext(ctx, "Saving recorded",
		"user_id", userID,
		"destination", sv.Destination,
		"amount", sv.Amount.String(),
		"foreign", sv.HasForeign())
	s.publish(ctx, amqp.NewSavingEvent(userID, sv))
	return nil
}

// MonthSummary totals the current month in the configured location.
func (s *LedgerService) MonthSummary(ctx context.Context) (core.MonthSummary, error) {
	now := s.cfg.Now().In(s.cfg.Location)
	summary, err := s.cache.MonthSummary(ctx, now.Year(), now.Month())
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("month summary: %w", err)
	}
	return summary, nil
}

// BudgetStatus reports this month's spend against every configured cap.
func (s *LedgerService) BudgetStatus(ctx context.Context) ([]budget.CapStatus, error) {
	status, err := s.cache.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	return status, nil
}

// publish is best effort: the record is already in the spreadsheet.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.Event) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, ev)
	s.metrics.ObservePublish(ev.Type, err)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"id", ev.ID,
			"routing_key", ev.Type,
			"error", err)
	}
}
