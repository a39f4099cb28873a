// Package cache provides an in-memory TTL cache and a janitor that sweeps
// expired entries. The bot keeps one in-progress conversation per chat in it.
package cache

import (
	"context"
	"log/slog"
	"time"
)

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, data V)
	Delete(key K)
	Size() int
}

// Ensure interface conformance
var _ Cache[int64, struct{}] = (*LRUCache[int64, struct{}])(nil)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval.
type Manager struct {
	caches []Cleaner
}

func NewManager(caches ...Cleaner) *Manager {
	return &Manager{caches: caches}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed", "count", n)
			}
		}
	}
}
