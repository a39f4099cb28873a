package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"gastos/internal/session"
)

type recordingNotifier struct {
	mu     sync.Mutex
	sent   map[int64][]string
	failOn map[int64]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: map[int64][]string{}, failOn: map[int64]bool{}}
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[chatID] {
		return errors.New("bot was blocked by the user")
	}
	n.sent[chatID] = append(n.sent[chatID], text)
	return nil
}

type brokenSubs struct{ session.SubscriptionStore }

func (brokenSubs) Subscribers(context.Context) ([]int64, error) {
	return nil, errors.New("db locked")
}

func mustLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestScheduler(t *testing.T, subs session.SubscriptionStore, n Notifier) (*Scheduler, *clock, *time.Location) {
	t.Helper()
	loc := mustLocation(t)
	c := &clock{}
	s := NewScheduler(subs, n, nil, Config{Location: loc, Now: c.Now})
	return s, c, loc
}

func TestTickFiresOncePerDay(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	_ = subs.Subscribe(ctx, 10)
	_ = subs.Subscribe(ctx, 20)
	n := newRecordingNotifier()
	s, c, loc := newTestScheduler(t, subs, n)

	steps := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2026, 10, 15, 12, 59, 59, 0, loc), 0},
		{time.Date(2026, 10, 15, 13, 0, 0, 0, loc), 1},
		{time.Date(2026, 10, 15, 13, 0, 30, 0, loc), 0},
		{time.Date(2026, 10, 15, 13, 45, 0, 0, loc), 0},
		{time.Date(2026, 10, 15, 22, 0, 20, 0, loc), 1},
		{time.Date(2026, 10, 16, 13, 10, 0, 0, loc), 1},
	}
	for _, st := range steps {
		c.now = st.at
		if got := s.Tick(ctx); got != st.want {
			t.Fatalf("Tick at %s fired %d, want %d", st.at.Format(time.Kitchen), got, st.want)
		}
	}

	for _, chat := range []int64{10, 20} {
		msgs := n.sent[chat]
		if len(msgs) != 3 {
			t.Fatalf("chat %d got %d messages, want 3", chat, len(msgs))
		}
		if !strings.Contains(msgs[0], "mediodía") || !strings.Contains(msgs[1], "nocturno") {
			t.Errorf("chat %d messages = %q", chat, msgs)
		}
	}
}

func TestTickMissedSlotOutsideCatchUp(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	_ = subs.Subscribe(ctx, 1)
	n := newRecordingNotifier()
	s, c, loc := newTestScheduler(t, subs, n)

	c.now = time.Date(2026, 10, 15, 14, 0, 0, 0, loc)
	if got := s.Tick(ctx); got != 0 {
		t.Fatalf("fired %d after the catch-up window", got)
	}
}

func TestTickUsesConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	_ = subs.Subscribe(ctx, 1)
	n := newRecordingNotifier()
	s, c, _ := newTestScheduler(t, subs, n)

	// 16:00 UTC is 13:00 in Buenos Aires.
	c.now = time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC)
	if got := s.Tick(ctx); got != 1 {
		t.Fatalf("fired %d, want 1", got)
	}
}

func TestDeliveryFailureDoesNotStopBroadcast(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	for _, id := range []int64{1, 2, 3} {
		_ = subs.Subscribe(ctx, id)
	}
	n := newRecordingNotifier()
	n.failOn[2] = true
	s, c, loc := newTestScheduler(t, subs, n)

	c.now = time.Date(2026, 10, 15, 22, 0, 0, 0, loc)
	if got := s.Tick(ctx); got != 1 {
		t.Fatalf("fired %d, want 1", got)
	}
	if len(n.sent[1]) != 1 || len(n.sent[3]) != 1 {
		t.Errorf("sent = %v", n.sent)
	}
}

func TestSubscriberListFailureRetries(t *testing.T) {
	ctx := context.Background()
	n := newRecordingNotifier()
	s, c, loc := newTestScheduler(t, brokenSubs{session.NewMemory()}, n)

	c.now = time.Date(2026, 10, 15, 13, 0, 0, 0, loc)
	if got := s.Tick(ctx); got != 0 {
		t.Fatalf("fired %d with a broken store", got)
	}

	s.subs = session.NewMemory()
	c.now = c.now.Add(30 * time.Second)
	if got := s.Tick(ctx); got != 1 {
		t.Fatalf("fired %d on retry, want 1", got)
	}
}

func TestParseTimes(t *testing.T) {
	slots, err := ParseTimes("12:30, 21:05")
	if err != nil {
		t.Fatalf("ParseTimes() error = %v", err)
	}
	if slots[0].String() != "12:30" || slots[1].String() != "21:05" {
		t.Errorf("slots = %v", slots)
	}
	if slots[0].Text != lunchText {
		t.Error("texts should follow slot order")
	}

	for _, bad := range []string{"", "13:00", "13:00,25:00", "13,22", "13:00,22:60", "a:b,c:d", "13:00,13:00", "09:05, 9:05"} {
		if _, err := ParseTimes(bad); err == nil {
			t.Errorf("ParseTimes(%q) should fail", bad)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(session.NewMemory(), newRecordingNotifier(), nil, Config{Interval: time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestTickCatchUpAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	_ = subs.Subscribe(ctx, 1)
	n := newRecordingNotifier()
	loc := mustLocation(t)
	c := &clock{}
	s := NewScheduler(subs, n, nil, Config{
		Slots:    []Slot{{Hour: 23, Minute: 30, Text: "noche"}, {Hour: 13, Minute: 0, Text: "mediodía"}},
		Location: loc,
		CatchUp:  time.Hour,
		Now:      c.Now,
	})

	// The bot was down at 23:30 and comes back after midnight.
	c.now = time.Date(2026, 10, 16, 0, 10, 0, 0, loc)
	if got := s.Tick(ctx); got != 1 {
		t.Fatalf("fired %d, want the late 23:30 slot", got)
	}
	c.now = time.Date(2026, 10, 16, 0, 20, 0, 0, loc)
	if got := s.Tick(ctx); got != 0 {
		t.Fatalf("fired %d, the occurrence was already sent", got)
	}
	c.now = time.Date(2026, 10, 16, 0, 40, 0, 0, loc)
	if got := s.Tick(ctx); got != 0 {
		t.Fatalf("fired %d after the catch-up window", got)
	}

	// That night's occurrence still fires.
	c.now = time.Date(2026, 10, 16, 23, 31, 0, 0, loc)
	if got := s.Tick(ctx); got != 1 {
		t.Fatalf("fired %d, want the next 23:30 occurrence", got)
	}
	if len(n.sent[1]) != 2 {
		t.Errorf("sent %v", n.sent[1])
	}
}

func TestTickSlotsAtSameTimeFireIndependently(t *testing.T) {
	ctx := context.Background()
	subs := session.NewMemory()
	_ = subs.Subscribe(ctx, 1)
	n := newRecordingNotifier()
	loc := mustLocation(t)
	c := &clock{now: time.Date(2026, 10, 15, 13, 0, 0, 0, loc)}
	s := NewScheduler(subs, n, nil, Config{
		Slots:    []Slot{{Hour: 13, Minute: 0, Text: "uno"}, {Hour: 13, Minute: 0, Text: "dos"}},
		Location: loc,
		Now:      c.Now,
	})

	if got := s.Tick(ctx); got != 2 {
		t.Fatalf("fired %d, want 2", got)
	}
	if strings.Join(n.sent[1], ",") != "uno,dos" {
		t.Errorf("sent %v", n.sent[1])
	}
}
