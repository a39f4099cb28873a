// Package dialog models the guided chat flows as a finite-state machine.
// A Conversation is a plain value; Machine.Step maps it and one user input to
// the next Conversation, the reply to send and, on the last step, the entry
// to save. Nothing here talks to the chat transport or the store.
package dialog

import (
	"github.com/shopspring/decimal"

	"gastos/internal/catalog"
	"gastos/internal/core"
)

// CancelLabel is the cancel button shown on every keyboard.
const CancelLabel = "❌ Cancelar"

type Kind int

const (
	KindExpense Kind = iota + 1
	KindQuickExpense
	KindIncome
	KindSavings
	KindMode
)

func (k Kind) String() string {
	switch k {
	case KindExpense:
		return "expense"
	case KindQuickExpense:
		return "quick_expense"
	case KindIncome:
		return "income"
	case KindSavings:
		return "savings"
	case KindMode:
		return "mode"
	default:
		return "unknown"
	}
}

// Step is the prompt a conversation is waiting an answer for.
type Step int

const (
	StepDescription Step = iota + 1
	StepCategory
	StepSubcategory
	StepAmount
	StepPaymentMethod
	StepQuickPreset
	StepIncomePreset
	StepIncomeAmount
	StepSavingsAmount
	StepSavingsDestination
	StepForeignAmount
	StepModeChoice
)

// Partial is the entry being collected. Fields fill in as the flow advances.
type Partial struct {
	Description     string
	Category        string
	Subcategory     string
	Amount          decimal.NullDecimal
	PaymentMethod   string
	Destination     string
	ForeignCurrency bool
	Quick           bool
}

type Conversation struct {
	Kind  Kind
	Step  Step
	Entry Partial
}

// Markup says what to attach to a reply.
type Markup int

const (
	MarkupNone Markup = iota
	MarkupKeyboard
	MarkupRemove
	MarkupMenu
)

type Reply struct {
	Text     string
	Markdown bool
	Markup   Markup
	Keyboard [][]string
}

type (
	// Commit is a finished entry that the caller must persist.
	Commit interface {
		commit()
	}

	ExpenseCommit struct {
		Expense core.Expense
		Quick   bool
	}

	IncomeCommit struct {
		Income core.Income
	}

	SavingCommit struct {
		Saving core.Saving
	}

	ModeCommit struct {
		Mode catalog.Mode
	}
)

func (ExpenseCommit) commit() {}
func (IncomeCommit) commit()  {}
func (SavingCommit) commit()  {}
func (ModeCommit) commit()    {}

// Outcome of one step. Next is nil when the conversation is over, either
// cancelled or committed.
type Outcome struct {
	Next   *Conversation
	Reply  Reply
	Commit Commit
}

// StartOptions carries per-user context for the first prompt.
type StartOptions struct {
	// Greeting is the personality-styled opener of the expense flow.
	Greeting string
	// CurrentMode is marked on the mode keyboard.
	CurrentMode catalog.Mode
}
