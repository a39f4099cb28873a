// Package bot routes chat updates to commands and conversational flows.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gastos/internal/budget"
	"gastos/internal/cache"
	"gastos/internal/catalog"
	"gastos/internal/core"
	"gastos/internal/dialog"
	applog "gastos/internal/log"
	"gastos/internal/metrics"
	"gastos/internal/session"
)

// Update is one inbound chat event, already stripped of transport details.
type Update struct {
	ChatID   int64
	UserID   int64
	Text     string
	Callback bool
}

type (
	// Sender delivers a reply to a chat.
	Sender interface {
		Send(ctx context.Context, chatID int64, reply dialog.Reply) error
	}

	Ledger interface {
		RecordExpense(ctx context.Context, userID int64, e core.Expense, quick bool) (*budget.Alert, error)
		RecordIncome(ctx context.Context, userID int64, i core.Income) error
		RecordSaving(ctx context.Context, userID int64, s core.Saving) error
		MonthSummary(ctx context.Context) (core.MonthSummary, error)
		BudgetStatus(ctx context.Context) ([]budget.CapStatus, error)
	}

	Persona interface {
		Mode(ctx context.Context, userID int64) catalog.Mode
		Message(ctx context.Context, userID int64, key string) string
		SetMode(ctx context.Context, userID int64, id string) (catalog.Mode, error)
	}
)

type Config struct {
	// ConversationTimeout drops a flow after this much inactivity.
	ConversationTimeout time.Duration
	// MaxConversations bounds the number of chats with a flow in progress.
	MaxConversations int
	// ReminderTimes are shown when a chat subscribes.
	ReminderTimes []string
}

// Router handles updates one at a time. Flow state lives in a TTL cache
// keyed by chat.
type Router struct {
	machine *dialog.Machine
	ledger  Ledger
	persona Persona
	subs    session.SubscriptionStore
	sender  Sender
	metrics *metrics.Registry
	logger  *applog.Logger
	cfg     Config

	conversations *cache.LRUCache[int64, dialog.Conversation]
}

func NewRouter(machine *dialog.Machine, ledger Ledger, persona Persona, subs session.SubscriptionStore, sender Sender, m *metrics.Registry, cfg Config) *Router {
	if cfg.ConversationTimeout <= 0 {
		cfg.ConversationTimeout = 30 * time.Minute
	}
	if cfg.MaxConversations <= 0 {
		cfg.MaxConversations = 1000
	}
	if len(cfg.ReminderTimes) == 0 {
		cfg.ReminderTimes = []string{"13:00", "22:00"}
	}
	return &Router{
		machine:       machine,
		ledger:        ledger,
		persona:       persona,
		subs:          subs,
		sender:        sender,
		metrics:       m,
		logger:        applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentBot),
		cfg:           cfg,
		conversations: cache.NewLRUCache[int64, dialog.Conversation](cfg.MaxConversations, cfg.ConversationTimeout),
	}
}

// WithLogger replaces the router's logger.
func (r *Router) WithLogger(l *applog.Logger) *Router {
	r.logger = l.WithComponent(applog.ComponentBot)
	return r
}

// Conversations exposes the flow cache so it can be swept periodically.
func (r *Router) Conversations() *cache.LRUCache[int64, dialog.Conversation] {
	return r.conversations
}

// Handle processes one update. The returned error is a delivery failure;
// store failures are reported to the user instead.
func (r *Router) Handle(ctx context.Context, u Update) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return nil
	}
	logger := r.logger.WithFields(applog.NewFields().WithChat(u.ChatID, u.UserID))
	ctx = applog.WithContext(ctx, logger)
	defer func() { r.metrics.SetActiveConversations(r.conversations.Size()) }()

	if cmd, ok := command(text); ok {
		r.metrics.ObserveUpdate("command")
		logger.DebugContext(ctx, "Command received", applog.FieldCommand, cmd)
		return r.handleCommand(ctx, u, cmd)
	}

	kind := "text"
	if u.Callback {
		kind = "callback"
	}
	r.metrics.ObserveUpdate(kind)

	conv, ok := r.conversations.Get(u.ChatID)
	if !ok {
		if dialog.IsCancel(text) {
			return r.send(ctx, u.ChatID, dialog.Reply{Text: msgNothingToCancel, Markup: dialog.MarkupRemove})
		}
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgIdle, Markup: dialog.MarkupMenu})
	}

	out := r.machine.Step(conv, text)
	if out.Next != nil {
		r.conversations.Set(u.ChatID, *out.Next)
	} else {
		r.conversations.Delete(u.ChatID)
	}
	if out.Commit != nil {
		return r.commit(ctx, u, out.Commit)
	}
	return r.send(ctx, u.ChatID, out.Reply)
}

// command extracts "/name" from text, dropping arguments and a "@bot" suffix.
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), true
}

func (r *Router) handleCommand(ctx context.Context, u Update, cmd string) error {
	switch cmd {
	case "/start":
		r.conversations.Delete(u.ChatID)
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgStart, Markup: dialog.MarkupMenu})
	case "/help", "/ayuda":
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgHelp})
	case "/menu":
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgMenu, Markdown: true, Markup: dialog.MarkupMenu})
	case "/cancelar", "/cancel":
		if _, ok := r.conversations.Get(u.ChatID); !ok {
			return r.send(ctx, u.ChatID, dialog.Reply{Text: msgNothingToCancel, Markup: dialog.MarkupRemove})
		}
		r.conversations.Delete(u.ChatID)
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgCancelled, Markup: dialog.MarkupRemove})
	case "/gasto":
		return r.start(ctx, u, dialog.KindExpense)
	case "/rapido":
		return r.start(ctx, u, dialog.KindQuickExpense)
	case "/ingreso":
		return r.start(ctx, u, dialog.KindIncome)
	case "/ahorro":
		return r.start(ctx, u, dialog.KindSavings)
	case "/modo":
		return r.start(ctx, u, dialog.KindMode)
	case "/resumen":
		r.conversations.Delete(u.ChatID)
		return r.summary(ctx, u)
	case "/presupuesto":
		r.conversations.Delete(u.ChatID)
		return r.budget(ctx, u)
	case "/recordatorios":
		return r.toggleReminders(ctx, u)
	default:
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgUnknownCommand})
	}
}

// start replaces any flow in progress with a new one.
func (r *Router) start(ctx context.Context, u Update, kind dialog.Kind) error {
	var opts dialog.StartOptions
	switch kind {
	case dialog.KindExpense:
		opts.Greeting = r.persona.Message(ctx, u.UserID, catalog.MsgStartExpense)
	case dialog.KindMode:
		opts.CurrentMode = r.persona.Mode(ctx, u.UserID)
	}

	conv, reply := r.machine.Start(kind, opts)
	if conv != nil {
		r.conversations.Set(u.ChatID, *conv)
		applog.FromContext(ctx).DebugContext(ctx, "Flow started", applog.FieldFlow, kind.String())
	} else {
		r.conversations.Delete(u.ChatID)
	}
	return r.send(ctx, u.ChatID, reply)
}

func (r *Router) commit(ctx context.Context, u Update, c dialog.Commit) error {
	logger := applog.FromContext(ctx)
	switch c := c.(type) {
	case dialog.ExpenseCommit:
		alert, err := r.ledger.RecordExpense(ctx, u.UserID, c.Expense, c.Quick)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to save expense", applog.FieldError, err)
			return r.send(ctx, u.ChatID, dialog.SaveFailed())
		}
		success := r.persona.Message(ctx, u.UserID, catalog.MsgExpenseSaved)
		var alertText string
		if alert != nil {
			alertText = alert.Text
		}
		return r.send(ctx, u.ChatID, dialog.ExpenseSaved(c, success, alertText))

	case dialog.IncomeCommit:
		if err := r.ledger.RecordIncome(ctx, u.UserID, c.Income); err != nil {
			logger.ErrorContext(ctx, "Failed to save income", applog.FieldError, err)
			return r.send(ctx, u.ChatID, dialog.SaveFailed())
		}
		return r.send(ctx, u.ChatID, dialog.IncomeSaved(c))

	case dialog.SavingCommit:
		if err := r.ledger.RecordSaving(ctx, u.UserID, c.Saving); err != nil {
			logger.ErrorContext(ctx, "Failed to save saving", applog.FieldError, err)
			return r.send(ctx, u.ChatID, dialog.SaveFailed())
		}
		return r.send(ctx, u.ChatID, dialog.SavingSaved(c))

	case dialog.ModeCommit:
		mode, err := r.persona.SetMode(ctx, u.UserID, c.Mode.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to change mode", applog.FieldError, err)
			return r.send(ctx, u.ChatID, dialog.Reply{Text: msgModeFailed, Markup: dialog.MarkupRemove})
		}
		return r.send(ctx, u.ChatID, dialog.ModeChanged(mode, r.persona.Message(ctx, u.UserID, catalog.MsgModeChanged)))
	}
	return fmt.Errorf("unknown commit %T", c)
}

func (r *Router) summary(ctx context.Context, u Update) error {
	if err := r.send(ctx, u.ChatID, dialog.Reply{Text: msgAnalyzing}); err != nil {
		return err
	}
	s, err := r.ledger.MonthSummary(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to build summary", applog.FieldError, err)
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgReadFailed})
	}
	return r.send(ctx, u.ChatID, RenderSummary(s))
}

func (r *Router) budget(ctx context.Context, u Update) error {
	status, err := r.ledger.BudgetStatus(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to read budget", applog.FieldError, err)
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgReadFailed})
	}
	return r.send(ctx, u.ChatID, RenderBudget(status))
}

func (r *Router) toggleReminders(ctx context.Context, u Update) error {
	subscribed, err := r.subs.IsSubscribed(ctx, u.ChatID)
	if err == nil {
		if subscribed {
			err = r.subs.Unsubscribe(ctx, u.ChatID)
		} else {
			err = r.subs.Subscribe(ctx, u.ChatID)
		}
	}
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to toggle reminders", applog.FieldError, err)
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgRemindersFailed})
	}
	if subscribed {
		return r.send(ctx, u.ChatID, dialog.Reply{Text: msgRemindersOff})
	}
	return r.send(ctx, u.ChatID, dialog.Reply{Text: remindersOn(r.cfg.ReminderTimes)})
}

func (r *Router) send(ctx context.Context, chatID int64, reply dialog.Reply) error {
	if err := r.sender.Send(ctx, chatID, reply); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
