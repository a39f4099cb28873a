package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/budget"
	"gastos/internal/core"
)

// Routing keys on the ledger exchange.
const (
	RoutingExpense     = "ledger.expense"
	RoutingIncome      = "ledger.income"
	RoutingSaving      = "ledger.saving"
	RoutingBudgetAlert = "budget.alert"
)

// Event is the JSON body of every message on the ledger exchange. Fields
// that do not apply to Type are omitted.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     int64     `json:"user_id"`

	Date          string              `json:"date,omitempty"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category,omitempty"`
	Subcategory   string              `json:"subcategory,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Destination   string              `json:"destination,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	ForeignAmount *decimal.Decimal    `json:"foreign_amount,omitempty"`
	Rate          *decimal.Decimal    `json:"rate,omitempty"`
	Quick         bool                `json:"quick,omitempty"`
	Alert         *AlertPayload       `json:"alert,omitempty"`
}

type AlertPayload struct {
	Level   string          `json:"level"`
	Label   string          `json:"label"`
	Spent   decimal.Decimal `json:"spent"`
	Cap     decimal.Decimal `json:"cap"`
	Percent decimal.Decimal `json:"percent"`
}

func newEvent(kind string, userID int64, at time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       kind,
		OccurredAt: at,
		UserID:     userID,
	}
}

func NewExpenseEvent(userID int64, e core.Expense, quick bool) *Event {
	ev := newEvent(RoutingExpense, userID, e.Date)
	ev.Date = core.FormatDate(e.Date)
	ev.Description = e.Description
	ev.Category = e.Category
	ev.Subcategory = e.Subcategory
	ev.PaymentMethod = e.PaymentMethod
	ev.Amount = decimal.NewNullDecimal(e.Amount)
	ev.Quick = quick
	return ev
}

func NewIncomeEvent(userID int64, i core.Income) *Event {
	ev := newEvent(RoutingIncome, userID, i.Date)
	ev.Date = core.FormatDate(i.Date)
	ev.Description = i.Description
	ev.Category = i.Category
	ev.Amount = decimal.NewNullDecimal(i.Amount)
	return ev
}

func NewSavingEvent(userID int64, s core.Saving) *Event {
	ev := newEvent(RoutingSaving, userID, s.Date)
	ev.Date = core.FormatDate(s.Date)
	ev.Destination = s.Destination
	ev.Amount = decimal.NewNullDecimal(s.Amount)
	if s.HasForeign() {
		foreign, rate := s.ForeignAmount, s.Rate
		ev.ForeignAmount = &foreign
		ev.Rate = &rate
	}
	return ev
}

func NewAlertEvent(userID int64, a budget.Alert, at time.Time) *Event {
	ev := newEvent(RoutingBudgetAlert, userID, at)
	ev.Category = a.Label
	ev.Alert = &AlertPayload{
		Level:   a.Level.String(),
		Label:   a.Label,
		Spent:   a.Spent,
		Cap:     a.Cap,
		Percent: a.Percent,
	}
	return ev
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
