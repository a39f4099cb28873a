// Package reminder broadcasts the daily nudges to subscribed chats.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"gastos/internal/metrics"
	"gastos/internal/session"
)

const (
	lunchText = "🍽️ *Recordatorio del mediodía*\n\n¿Ya almorzaste? No olvides registrar tus gastos de la mañana.\n\nUsa: /gasto, /rapido, /ingreso"
	nightText = "🌙 *Recordatorio nocturno*\n\nAntes de dormir, ¿registraste todos los gastos del día?\n\nUsa: /gasto, /rapido, /resumen"

	dayLayout = "2006-01-02"
)

// Slot is one time of day at which a reminder goes out.
type Slot struct {
	Hour   int
	Minute int
	Text   string
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// DefaultSlots are the lunch and night reminders.
func DefaultSlots() []Slot {
	return []Slot{
		{Hour: 13, Minute: 0, Text: lunchText},
		{Hour: 22, Minute: 0, Text: nightText},
	}
}

// ParseTimes overrides the times of the default slots from a comma separated
// "HH:MM,HH:MM" list, keeping their texts.
func ParseTimes(s string) ([]Slot, error) {
	slots := DefaultSlots()
	parts := strings.Split(s, ",")
	if len(parts) != len(slots) {
		return nil, fmt.Errorf("want %d times, got %d", len(slots), len(parts))
	}
	for i, p := range parts {
		hh, mm, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			return nil, fmt.Errorf("time %q: want HH:MM", p)
		}
		h, err := strconv.Atoi(hh)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("time %q: invalid hour", p)
		}
		m, err := strconv.Atoi(mm)
		if err != nil || m < 0 || m > 59 {
			return nil, fmt.Errorf("time %q: invalid minute", p)
		}
		for _, prev := range slots[:i] {
			if prev.Hour == h && prev.Minute == m {
				return nil, fmt.Errorf("time %q: listed twice", p)
			}
		}
		slots[i].Hour, slots[i].Minute = h, m
	}
	return slots, nil
}

// Notifier delivers one Markdown message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type Config struct {
	Slots    []Slot
	Location *time.Location
	// Interval between checks; defaults to 30s.
	Interval time.Duration
	// CatchUp is how late after its time a slot may still fire; defaults to 1h.
	CatchUp time.Duration
	Now     func() time.Time
}

// Scheduler fires every slot at most once per local day, on the first tick
// inside [slot, slot+CatchUp).
type Scheduler struct {
	subs     session.SubscriptionStore
	notifier Notifier
	metrics  *metrics.Registry
	cfg      Config

	mu    sync.Mutex
	fired map[int]string // slot index → local day of the occurrence last fired
}

func NewScheduler(subs session.SubscriptionStore, notifier Notifier, m *metrics.Registry, cfg Config) *Scheduler {
	if len(cfg.Slots) == 0 {
		cfg.Slots = DefaultSlots()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.CatchUp <= 0 {
		cfg.CatchUp = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		subs:     subs,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		fired:    make(map[int]string),
	}
}

// Run checks the slots every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Reminder scheduler started",
		"interval", s.cfg.Interval,
		"location", s.cfg.Location.String(),
		"slots", len(s.cfg.Slots))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires the slots that are due now and returns how many fired.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.cfg.Now().In(s.cfg.Location)
	fired := 0
	for i, slot := range s.cfg.Slots {
		if !s.claim(i, slot, now) {
			continue
		}
		if err := s.broadcast(ctx, slot); err != nil {
			s.release(i)
			slog.ErrorContext(ctx, "Reminder broadcast failed", "slot", slot.String(), "error", err)
			continue
		}
		fired++
	}
	return fired
}

// claim marks the slot's current occurrence as fired when it is due.
func (s *Scheduler) claim(i int, slot Slot, now time.Time) bool {
	day, ok := s.dueOccurrence(slot, now)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired[i] == day {
		return false
	}
	s.fired[i] = day
	return true
}

// dueOccurrence returns the local day of the occurrence whose catch-up
// window contains now. Yesterday's occurrence is checked too, so a window
// that crosses midnight still fires after 00:00.
func (s *Scheduler) dueOccurrence(slot Slot, now time.Time) (string, bool) {
	for _, back := range []int{0, -1} {
		d := now.AddDate(0, 0, back)
		start := time.Date(d.Year(), d.Month(), d.Day(), slot.Hour, slot.Minute, 0, 0, s.cfg.Location)
		if !now.Before(start) && now.Before(start.Add(s.cfg.CatchUp)) {
			return start.Format(dayLayout), true
		}
	}
	return "", false
}

func (s *Scheduler) release(i int) {
	s.mu.Lock()
	delete(s.fired, i)
	s.mu.Unlock()
}

// broadcast only fails when the subscriber list cannot be read; per-chat
// delivery errors are logged and skipped.
func (s *Scheduler) broadcast(ctx context.Context, slot Slot) error {
	chats, err := s.subs.Subscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	sent := 0
	for _, chatID := range chats {
		err := s.notifier.Notify(ctx, chatID, slot.Text)
		s.metrics.ObserveReminder(slot.String(), err)
		if err != nil {
			slog.WarnContext(ctx, "Reminder delivery failed",
				"chat_id", chatID,
				"slot", slot.String(),
				"error", err)
			continue
		}
		sent++
	}
	slog.InfoContext(ctx, "Reminders sent",
		"slot", slot.String(),
		"sent", sent,
		"subscribers", len(chats))
	return nil
}
