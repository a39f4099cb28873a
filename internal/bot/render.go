package bot

import (
	"fmt"
	"strings"
	"time"

	"gastos/internal/budget"
	"gastos/internal/core"
	"gastos/internal/dialog"
)

const (
	msgStart           = "🤖 Bot iniciado.\n\n¿Qué querés hacer?"
	msgHelp            = "Comandos disponibles: /gasto /rapido /ingreso /ahorro /resumen /presupuesto /modo /recordatorios /cancelar"
	msgMenu            = "*¿Qué querés hacer?*"
	msgIdle            = "🤔 No hay ninguna operación en curso. Elegí una opción o usá /help."
	msgUnknownCommand  = "🤔 No conozco ese comando. Usá /help para ver las opciones."
	msgCancelled       = "❌ Operación cancelada."
	msgNothingToCancel = "No hay ninguna operación en curso."
	msgAnalyzing       = "📊 Analizando tus gastos... Un momento."
	msgReadFailed      = "❌ No pude leer la planilla. Probá de nuevo en un rato."
	msgEmptyMonth      = "👍 ¡No tienes gastos registrados en lo que va del mes!"
	msgModeFailed      = "❌ No pude cambiar el modo. Probá de nuevo."
	msgRemindersOff    = "🔕 Recordatorios desactivados.\n\nPara reactivarlos, usa /recordatorios"
	msgRemindersFailed = "❌ No pude actualizar los recordatorios. Probá de nuevo."
	msgNoCaps          = "💰 *Configuración de Presupuestos*\n\n" +
		"Para configurar alertas de presupuesto agregá en la hoja de presupuestos:\n" +
		"   • Categoría (ej: 🍖 Comida)\n" +
		"   • Presupuesto (ej: 50000)\n\n" +
		"Te aviso cuando llegues al 80% y al 100% de cada uno."
)

func remindersOn(times []string) string {
	at := strings.Join(times, " y ")
	if n := len(times); n > 2 {
		at = strings.Join(times[:n-1], ", ") + " y " + times[n-1]
	}
	return "🔔 ¡Recordatorios activados!\n\n" +
		"Te recordaré registrar tus gastos a las " + at + ".\n\n" +
		"Para desactivarlos, usa /recordatorios nuevamente"
}

// RenderSummary formats the month totals, largest category first.
func RenderSummary(s core.MonthSummary) dialog.Reply {
	if s.IsEmpty() {
		return dialog.Reply{Text: msgEmptyMonth, Markup: dialog.MarkupMenu}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Resumen de Gastos de %s*\n\n", core.MonthName(time.Month(s.Month)))
	for _, c := range s.ByCategory {
		fmt.Fprintf(&b, "_%s_: `%s`\n", dialog.EscapeMarkdown(c.Name), core.FormatPesos(c.Amount))
	}
	b.WriteString("\n---------------------\n")
	fmt.Fprintf(&b, "*Total Gastado:* `%s`", core.FormatPesos(s.Total))
	b.WriteString("\n\n*¿Qué más quieres hacer?*")
	return dialog.Reply{Text: b.String(), Markdown: true, Markup: dialog.MarkupMenu}
}

// RenderBudget lists every cap with this month's spend.
func RenderBudget(status []budget.CapStatus) dialog.Reply {
	if len(status) == 0 {
		return dialog.Reply{Text: msgNoCaps, Markdown: true}
	}
	var b strings.Builder
	b.WriteString("💰 *Presupuesto del mes*\n")
	for _, s := range status {
		fmt.Fprintf(&b, "\n%s *%s:* `%s` de `%s` (%s%%)",
			levelIcon(s.Level),
			dialog.EscapeMarkdown(s.Label),
			core.FormatPesos(s.Spent),
			core.FormatPesos(s.Cap),
			s.Percent.Floor().String())
	}
	return dialog.Reply{Text: b.String(), Markdown: true, Markup: dialog.MarkupMenu}
}

func levelIcon(l budget.Level) string {
	switch l {
	case budget.LevelExceeded:
		return "🚨"
	case budget.LevelWarning:
		return "⚠️"
	default:
		return "✅"
	}
}
