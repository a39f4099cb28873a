package dialog

import (
	"fmt"
	"strings"

	"gastos/internal/catalog"
	"gastos/internal/core"
)

const dateTimeLayout = "02/01/2006 15:04"

// rows lays labels out n per row and appends the cancel row.
func rows(labels []string, n int) [][]string {
	var out [][]string
	for i := 0; i < len(labels); i += n {
		end := min(i+n, len(labels))
		out = append(out, append([]string(nil), labels[i:end]...))
	}
	return append(out, []string{CancelLabel})
}

func (m *Machine) categoryKeyboard() [][]string {
	labels := make([]string, len(m.catalog.Categories))
	for i, c := range m.catalog.Categories {
		labels[i] = c.Label
	}
	return rows(labels, buttonsPerRow)
}

func subcategoryKeyboard(c catalog.Category) [][]string {
	labels := make([]string, len(c.Subcategories))
	for i, s := range c.Subcategories {
		labels[i] = s.Label
	}
	return rows(labels, buttonsPerRow)
}

// paymentKeyboard keeps the configured row layout.
func (m *Machine) paymentKeyboard() [][]string {
	out := make([][]string, 0, len(m.catalog.PaymentMethods)+1)
	for _, row := range m.catalog.PaymentMethods {
		out = append(out, append([]string(nil), row...))
	}
	return append(out, []string{CancelLabel})
}

func (m *Machine) quickExpenseKeyboard() [][]string {
	labels := make([]string, len(m.catalog.QuickExpenses))
	for i, q := range m.catalog.QuickExpenses {
		labels[i] = q.Label + " " + core.FormatPesos(q.Amount)
	}
	return rows(labels, buttonsPerRow)
}

func (m *Machine) quickIncomeKeyboard() [][]string {
	labels := make([]string, len(m.catalog.QuickIncomes))
	for i, q := range m.catalog.QuickIncomes {
		labels[i] = q.Label
	}
	return rows(labels, buttonsPerRow)
}

func (m *Machine) destinationKeyboard() [][]string {
	labels := make([]string, len(m.catalog.SavingsDestinations))
	for i, d := range m.catalog.SavingsDestinations {
		labels[i] = d.Label
	}
	return rows(labels, buttonsPerRow)
}

// modeKeyboard puts one mode per row and marks the current one.
func (m *Machine) modeKeyboard(current string) [][]string {
	labels := make([]string, len(m.catalog.Modes))
	for i, mode := range m.catalog.Modes {
		if mode.ID == current {
			labels[i] = "✅ " + mode.Name
		} else {
			labels[i] = mode.Name
		}
	}
	return rows(labels, 1)
}

// EscapeMarkdown escapes user text for Telegram's legacy Markdown mode.
func EscapeMarkdown(s string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return r.Replace(s)
}

// ExpenseSaved renders the confirmation of a saved expense. success is the
// personality message and alert an optional budget alert.
func ExpenseSaved(c ExpenseCommit, success, alert string) Reply {
	e := c.Expense
	title := "✅ ¡Gasto registrado!"
	if c.Quick {
		title = "⚡ ¡Gasto rápido registrado!"
	}
	category := e.Category
	if e.Subcategory != "" {
		category += " -> " + e.Subcategory
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n📅 %s\n📝 %s\n📂 %s\n💰 %s\n💳 %s",
		title,
		e.Date.Format(dateTimeLayout),
		EscapeMarkdown(e.Description),
		EscapeMarkdown(category),
		core.FormatPesos(e.Amount),
		EscapeMarkdown(e.PaymentMethod))
	if success != "" {
		b.WriteString("\n\n" + success)
	}
	if alert != "" {
		b.WriteString("\n\n⚠️ " + alert)
	}
	b.WriteString("\n\n*¿Qué vas a hacer ahora?*")
	return Reply{Text: b.String(), Markdown: true, Markup: MarkupMenu}
}

func IncomeSaved(c IncomeCommit) Reply {
	i := c.Income
	return Reply{
		Text: fmt.Sprintf("✅ ¡Ingreso registrado!\n\n📅 %s\n💰 %s\n📂 %s\n💵 %s\n\nPara continuar, usá /menu o elegí una opción.",
			core.FormatDate(i.Date), i.Description, i.Category, core.FormatPesos(i.Amount)),
		Markup: MarkupMenu,
	}
}

func SavingSaved(c SavingCommit) Reply {
	s := c.Saving
	if s.HasForeign() {
		return Reply{
			Text: fmt.Sprintf("✅ ¡Ahorro en dólares registrado!\n\n💰 %s\n💵 US$ %s\n📊 Cotización: $%s",
				core.FormatPesos(s.Amount), core.FormatFixed(s.ForeignAmount), core.FormatFixed(s.Rate)),
			Markup: MarkupMenu,
		}
	}
	return Reply{
		Text:   fmt.Sprintf("✅ ¡Ahorro registrado!\n\n💰 %s\n🎯 Destino: %s", core.FormatPesos(s.Amount), s.Destination),
		Markup: MarkupMenu,
	}
}

// ModeChanged confirms a new personality mode with its own message.
func ModeChanged(mode catalog.Mode, message string) Reply {
	text := fmt.Sprintf("✅ *Modo cambiado*\n\nNuevo modo: %s", mode.Name)
	if message != "" {
		text += "\n\n" + message
	}
	return Reply{Text: text, Markdown: true, Markup: MarkupRemove}
}

// SaveFailed is sent when the store rejects a finished entry.
func SaveFailed() Reply {
	return Reply{Text: "❌ No pude guardar el registro. Probá de nuevo en un rato.", Markup: MarkupMenu}
}
