package dialog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/catalog"
	"gastos/internal/core"
)

const (
	msgInvalidNumber      = "❌ Por favor ingresá un número válido. Ejemplo: 1500 o 1500.50"
	msgInvalidMethod      = "❌ Método no válido. Seleccioná uno correcto:"
	msgInvalidCategory    = "❌ Categoría no válida. Seleccioná una de la lista:"
	msgInvalidSubcategory = "❌ Subcategoría no válida. Seleccioná una de la lista:"
	msgInvalidSelection   = "❌ Selección no válida. Intentá de nuevo:"
	msgInvalidDestination = "❌ Destino no válido. Elegí una opción:"
	msgEmptyDescription   = "❌ La descripción no puede estar vacía. Ingresá una descripción:"
	msgLongDescription    = "❌ La descripción es muy larga (máximo 200 caracteres). Probá con algo más corto:"
	msgCancelled          = "❌ Operación cancelada."
	msgNoQuickExpenses    = "🤔 No hay gastos rápidos configurados."
	msgNoQuickIncomes     = "🤔 No hay ingresos rápidos configurados."
)

const buttonsPerRow = 2

// Machine drives the flows over a static catalog.
type Machine struct {
	catalog *catalog.Catalog
	now     func() time.Time
	loc     *time.Location
}

func NewMachine(cat *catalog.Catalog, loc *time.Location, now func() time.Time) *Machine {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Machine{catalog: cat, now: now, loc: loc}
}

// IsCancel reports whether text aborts the current flow.
func IsCancel(text string) bool {
	t := strings.TrimSpace(text)
	return t == CancelLabel || strings.EqualFold(t, "/cancelar") || core.LabelKey(t) == "cancelar"
}

// Start opens a flow and returns its first prompt. A nil conversation means
// the flow has nothing to ask, for example when no presets are configured.
func (m *Machine) Start(kind Kind, opts StartOptions) (*Conversation, Reply) {
	switch kind {
	case KindExpense:
		text := "Ingresá una descripción para tu gasto:"
		if opts.Greeting != "" {
			text = opts.Greeting + "\n\n" + text
		}
		return &Conversation{Kind: kind, Step: StepDescription},
			Reply{Text: text, Markup: MarkupRemove}

	case KindQuickExpense:
		if len(m.catalog.QuickExpenses) == 0 {
			return nil, Reply{Text: msgNoQuickExpenses, Markup: MarkupMenu}
		}
		return &Conversation{Kind: kind, Step: StepQuickPreset, Entry: Partial{Quick: true}},
			Reply{
				Text:     "⚡ *Gastos rápidos*\n\nSeleccioná un gasto frecuente para registrarlo:",
				Markdown: true,
				Markup:   MarkupKeyboard,
				Keyboard: m.quickExpenseKeyboard(),
			}

	case KindIncome:
		if len(m.catalog.QuickIncomes) == 0 {
			return nil, Reply{Text: msgNoQuickIncomes, Markup: MarkupMenu}
		}
		return &Conversation{Kind: kind, Step: StepIncomePreset},
			Reply{
				Text:     "💰 *Ingresos rápidos*\n\nSeleccioná el tipo de ingreso:",
				Markdown: true,
				Markup:   MarkupKeyboard,
				Keyboard: m.quickIncomeKeyboard(),
			}

	case KindSavings:
		return &Conversation{Kind: kind, Step: StepSavingsAmount},
			Reply{Text: "💰 ¡A registrar un ahorro!\n\n¿Cuánta plata (en pesos) ahorramos?", Markup: MarkupRemove}

	case KindMode:
		name := opts.CurrentMode.Name
		if name == "" {
			name = m.catalog.Default().Name
		}
		return &Conversation{Kind: kind, Step: StepModeChoice},
			Reply{
				Text:     fmt.Sprintf("🎭 *Cambio de personalidad*\n\nModo actual: %s\n\nSeleccioná tu nuevo modo:", name),
				Markdown: true,
				Markup:   MarkupKeyboard,
				Keyboard: m.modeKeyboard(opts.CurrentMode.ID),
			}
	}
	return nil, Reply{Text: msgCancelled, Markup: MarkupRemove}
}

// Step feeds one user input to the conversation.
func (m *Machine) Step(conv Conversation, text string) Outcome {
	text = strings.TrimSpace(text)
	if IsCancel(text) {
		return Outcome{Reply: Reply{Text: msgCancelled, Markup: MarkupRemove}}
	}

	switch conv.Step {
	case StepDescription:
		return m.description(conv, text)
	case StepCategory:
		return m.category(conv, text)
	case StepSubcategory:
		return m.subcategory(conv, text)
	case StepAmount:
		return m.amount(conv, text)
	case StepPaymentMethod:
		return m.paymentMethod(conv, text)
	case StepQuickPreset:
		return m.quickPreset(conv, text)
	case StepIncomePreset:
		return m.incomePreset(conv, text)
	case StepIncomeAmount:
		return m.incomeAmount(conv, text)
	case StepSavingsAmount:
		return m.savingsAmount(conv, text)
	case StepSavingsDestination:
		return m.savingsDestination(conv, text)
	case StepForeignAmount:
		return m.foreignAmount(conv, text)
	case StepModeChoice:
		return m.modeChoice(conv, text)
	}
	return Outcome{Reply: Reply{Text: msgCancelled, Markup: MarkupRemove}}
}

func stay(conv Conversation, r Reply) Outcome {
	return Outcome{Next: &conv, Reply: r}
}

func advance(conv Conversation, step Step, r Reply) Outcome {
	conv.Step = step
	return Outcome{Next: &conv, Reply: r}
}

func (m *Machine) description(conv Conversation, text string) Outcome {
	switch err := core.ValidateDescription(text); {
	case errors.Is(err, core.ErrEmptyDescription):
		return stay(conv, Reply{Text: msgEmptyDescription})
	case errors.Is(err, core.ErrDescriptionTooLong):
		return stay(conv, Reply{Text: msgLongDescription})
	}
	conv.Entry.Description = text
	return advance(conv, StepCategory, Reply{
		Text:     fmt.Sprintf("📝 Descripción: %s\n\nMarcá la categoría:", text),
		Markup:   MarkupKeyboard,
		Keyboard: m.categoryKeyboard(),
	})
}

func (m *Machine) category(conv Conversation, text string) Outcome {
	cat, ok := m.catalog.Category(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidCategory, Markup: MarkupKeyboard, Keyboard: m.categoryKeyboard()})
	}
	conv.Entry.Category = cat.Label
	conv.Entry.Subcategory = ""
	if cat.HasSubcategories() {
		return advance(conv, StepSubcategory, Reply{
			Text:     fmt.Sprintf("📂 Categoría: %s\n\nElegí la subcategoría:", cat.Label),
			Markup:   MarkupKeyboard,
			Keyboard: subcategoryKeyboard(cat),
		})
	}
	return advance(conv, StepAmount, amountPrompt(conv.Entry))
}

func (m *Machine) subcategory(conv Conversation, text string) Outcome {
	cat, ok := m.catalog.Category(conv.Entry.Category)
	if !ok {
		return Outcome{Reply: Reply{Text: msgCancelled, Markup: MarkupRemove}}
	}
	sub, ok := cat.Subcategory(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidSubcategory, Markup: MarkupKeyboard, Keyboard: subcategoryKeyboard(cat)})
	}
	conv.Entry.Subcategory = sub.Label
	return advance(conv, StepAmount, amountPrompt(conv.Entry))
}

func amountPrompt(p Partial) Reply {
	return Reply{
		Text: fmt.Sprintf("📝 Descripción: %s\n📂 Categoría: %s\n\n💰 ¿Cuánto gastaste? (solo números):",
			p.Description, categoryLine(p)),
		Markup: MarkupRemove,
	}
}

func (m *Machine) amount(conv Conversation, text string) Outcome {
	amount, err := core.ParsePositiveAmount(text)
	if err != nil {
		return stay(conv, Reply{Text: msgInvalidNumber})
	}
	conv.Entry.Amount = decimal.NewNullDecimal(amount)
	return advance(conv, StepPaymentMethod, Reply{
		Text: fmt.Sprintf("📝 %s\n📂 %s\n💰 Monto: %s\n\n💳 ¿Cómo pagaste?",
			conv.Entry.Description, categoryLine(conv.Entry), core.FormatPesos(amount)),
		Markup:   MarkupKeyboard,
		Keyboard: m.paymentKeyboard(),
	})
}

func (m *Machine) paymentMethod(conv Conversation, text string) Outcome {
	method, ok := m.catalog.PaymentMethod(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidMethod, Markup: MarkupKeyboard, Keyboard: m.paymentKeyboard()})
	}
	p := conv.Entry
	return Outcome{Commit: ExpenseCommit{
		Expense: core.Expense{
			Date:          m.now().In(m.loc),
			Description:   p.Description,
			Category:      p.Category,
			Subcategory:   p.Subcategory,
			Amount:        p.Amount.Decimal,
			PaymentMethod: method,
		},
		Quick: p.Quick,
	}}
}

func (m *Machine) quickPreset(conv Conversation, text string) Outcome {
	q, ok := m.catalog.QuickExpense(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidSelection, Markup: MarkupKeyboard, Keyboard: m.quickExpenseKeyboard()})
	}
	conv.Entry = Partial{
		Description: q.Description,
		Category:    q.Category,
		Subcategory: q.Subcategory,
		Amount:      decimal.NewNullDecimal(q.Amount),
		Quick:       true,
	}
	return advance(conv, StepPaymentMethod, Reply{
		Text:     fmt.Sprintf("⚡ %s %s\n\n💳 ¿Cómo pagaste?", q.Label, core.FormatPesos(q.Amount)),
		Markup:   MarkupKeyboard,
		Keyboard: m.paymentKeyboard(),
	})
}

func (m *Machine) incomePreset(conv Conversation, text string) Outcome {
	q, ok := m.catalog.QuickIncome(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidSelection, Markup: MarkupKeyboard, Keyboard: m.quickIncomeKeyboard()})
	}
	conv.Entry.Description = q.Label
	conv.Entry.Category = q.Category
	return advance(conv, StepIncomeAmount, Reply{
		Text:   fmt.Sprintf("💰 %s\n\n¿Cuánto recibiste? (solo números):", q.Label),
		Markup: MarkupRemove,
	})
}

func (m *Machine) incomeAmount(conv Conversation, text string) Outcome {
	amount, err := core.ParsePositiveAmount(text)
	if err != nil {
		return stay(conv, Reply{Text: msgInvalidNumber})
	}
	return Outcome{Commit: IncomeCommit{Income: core.Income{
		Date:        m.now().In(m.loc),
		Description: conv.Entry.Description,
		Category:    conv.Entry.Category,
		Amount:      amount,
	}}}
}

func (m *Machine) savingsAmount(conv Conversation, text string) Outcome {
	amount, err := core.ParsePositiveAmount(text)
	if err != nil {
		return stay(conv, Reply{Text: msgInvalidNumber})
	}
	conv.Entry.Amount = decimal.NewNullDecimal(amount)
	return advance(conv, StepSavingsDestination, Reply{
		Text:     fmt.Sprintf("Perfecto. Ahorraste %s.\n\n✅ ¿Dónde pusimos ese ahorro?", core.FormatPesos(amount)),
		Markup:   MarkupKeyboard,
		Keyboard: m.destinationKeyboard(),
	})
}

func (m *Machine) savingsDestination(conv Conversation, text string) Outcome {
	d, ok := m.catalog.SavingsDestination(text)
	if !ok {
		return stay(conv, Reply{Text: msgInvalidDestination, Markup: MarkupKeyboard, Keyboard: m.destinationKeyboard()})
	}
	conv.Entry.Destination = d.Label
	conv.Entry.ForeignCurrency = d.ForeignCurrency
	if d.ForeignCurrency {
		return advance(conv, StepForeignAmount, Reply{
			Text:   "💵 ¡Genial! ¿Cuántos dólares compramos? (solo el número)",
			Markup: MarkupRemove,
		})
	}
	return Outcome{Commit: SavingCommit{Saving: core.Saving{
		Date:        m.now().In(m.loc),
		Amount:      conv.Entry.Amount.Decimal,
		Destination: d.Label,
	}}}
}

func (m *Machine) foreignAmount(conv Conversation, text string) Outcome {
	foreign, err := core.ParsePositiveAmount(text)
	if err != nil {
		return stay(conv, Reply{Text: msgInvalidNumber})
	}
	rate, err := core.ImpliedRate(conv.Entry.Amount.Decimal, foreign)
	if err != nil {
		return stay(conv, Reply{Text: msgInvalidNumber})
	}
	return Outcome{Commit: SavingCommit{Saving: core.Saving{
		Date:          m.now().In(m.loc),
		Amount:        conv.Entry.Amount.Decimal,
		Destination:   conv.Entry.Destination,
		ForeignAmount: foreign,
		Rate:          rate,
	}}}
}

func (m *Machine) modeChoice(conv Conversation, text string) Outcome {
	mode, ok := m.catalog.ModeByName(text)
	if !ok {
		if mode, ok = m.catalog.Mode(text); !ok {
			return stay(conv, Reply{Text: msgInvalidSelection, Markup: MarkupKeyboard, Keyboard: m.modeKeyboard("")})
		}
	}
	return Outcome{Commit: ModeCommit{Mode: mode}}
}

func categoryLine(p Partial) string {
	if p.Subcategory == "" {
		return p.Category
	}
	return p.Category + " -> " + p.Subcategory
}
