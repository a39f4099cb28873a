// Package session keeps per-user and per-chat state that outlives a single
// conversation: the personality mode and the reminder subscription.
package session

import (
	"context"
	"slices"
	"sync"
)

type (
	ModeStore interface {
		// Mode returns the stored mode id and whether one was set.
		Mode(ctx context.Context, userID int64) (string, bool, error)
		SetMode(ctx context.Context, userID int64, mode string) error
	}

	SubscriptionStore interface {
		Subscribe(ctx context.Context, chatID int64) error
		Unsubscribe(ctx context.Context, chatID int64) error
		IsSubscribed(ctx context.Context, chatID int64) (bool, error)
		// Subscribers returns the subscribed chat ids in ascending order.
		Subscribers(ctx context.Context) ([]int64, error)
	}

	Store interface {
		ModeStore
		SubscriptionStore
	}
)

// Ensure interface conformance
var _ Store = (*Memory)(nil)

// Memory is a process-local Store. Everything is lost on restart.
type Memory struct {
	mu    sync.RWMutex
	modes map[int64]string
	subs  map[int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		modes: make(map[int64]string),
		subs:  make(map[int64]struct{}),
	}
}

func (m *Memory) Mode(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mode, ok := m.modes[userID]
	return mode, ok, nil
}

func (m *Memory) SetMode(_ context.Context, userID int64, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[userID] = mode
	return nil
}

func (m *Memory) Subscribe(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[chatID] = struct{}{}
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, chatID)
	return nil
}

func (m *Memory) IsSubscribed(_ context.Context, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subs[chatID]
	return ok, nil
}

func (m *Memory) Subscribers(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	out := make([]int64, 0, len(m.subs))
	for id := range m.subs {
		out = append(out, id)
	}
	m.mu.RUnlock()
	slices.Sort(out)
	return out, nil
}
