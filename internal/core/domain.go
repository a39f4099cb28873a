package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the day-first format used for every date cell written to the
// spreadsheet.
const DateLayout = "02/01/2006"

// dateLayouts are tried in order when reading dates back. Sheets may render
// unpadded days and months, and older rows carry a time of day.
var dateLayouts = []string{
	DateLayout,
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
}

type (
	Expense struct {
		Date          time.Time
		Description   string
		Category      string
		Subcategory   string // optional
		Amount        decimal.Decimal
		PaymentMethod string
	}

	Income struct {
		Date        time.Time
		Description string
		Category    string
		Amount      decimal.Decimal
	}

	// Saving records money put aside. ForeignAmount and Rate are only set
	// when the pesos were used to buy foreign currency.
	Saving struct {
		Date          time.Time
		Amount        decimal.Decimal
		Destination   string
		ForeignAmount decimal.Decimal
		Rate          decimal.Decimal
	}

	// Cap is the monthly spending ceiling configured for a category or
	// subcategory label.
	Cap struct {
		Label  string
		Amount decimal.Decimal
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyPaymentMethod  = errors.New("empty payment method")
	ErrEmptyDestination    = errors.New("empty destination")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidForeignSplit = errors.New("foreign amount and rate must be set together")
)

const maxDescriptionLen = 200

// ParseDate reads a day/month/year cell in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// ValidateDescription checks a free-text description entered by the user.
func ValidateDescription(desc string) error {
	if strings.TrimSpace(desc) == "" {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := ValidateDescription(e.Description); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	return nil
}

// Row returns the spreadsheet columns: date, description, category,
// subcategory, amount, payment method.
func (e Expense) Row() []any {
	return []any{
		FormatDate(e.Date),
		e.Description,
		e.Category,
		e.Subcategory,
		e.Amount.Round(2).InexactFloat64(),
		e.PaymentMethod,
	}
}

func (i Income) Validate() error {
	if i.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := ValidateDescription(i.Description); err != nil {
		return err
	}
	if strings.TrimSpace(i.Category) == "" {
		return ErrEmptyCategory
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Row returns the spreadsheet columns: date, description, category, amount.
func (i Income) Row() []any {
	return []any{FormatDate(i.Date), i.Description, i.Category, i.Amount.Round(2).InexactFloat64()}
}

// HasForeign reports whether the saving bought foreign currency.
func (s Saving) HasForeign() bool {
	return s.ForeignAmount.IsPositive()
}

func (s Saving) Validate() error {
	if s.Date.IsZero() {
		return ErrInvalidDate
	}
	if !s.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(s.Destination) == "" {
		return ErrEmptyDestination
	}
	if s.ForeignAmount.IsNegative() || s.HasForeign() != s.Rate.IsPositive() {
		return ErrInvalidForeignSplit
	}
	return nil
}

// Row returns the spreadsheet columns: date, pesos, destination, foreign
// amount, rate. The last two are blank for plain savings.
func (s Saving) Row() []any {
	row := []any{FormatDate(s.Date), s.Amount.Round(2).InexactFloat64(), s.Destination, "", ""}
	if s.HasForeign() {
		row[3] = s.ForeignAmount.Round(2).InexactFloat64()
		row[4] = s.Rate.Round(2).InexactFloat64()
	}
	return row
}

// ImpliedRate is the pesos paid per unit of foreign currency.
func ImpliedRate(pesos, foreign decimal.Decimal) (decimal.Decimal, error) {
	if !foreign.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return pesos.Div(foreign), nil
}
