package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"gastos/internal/bot"
	"gastos/internal/cache"
	"gastos/internal/metrics"
)

// Handler processes one chat update.
type Handler func(ctx context.Context, u bot.Update) error

// Limiter keeps one token bucket per chat. Idle buckets expire and are
// recreated full.
type Limiter struct {
	buckets *cache.LRUCache[int64, *rate.Limiter]
	limit   rate.Limit
	burst   int
	metrics *metrics.Registry
	now     func() time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	// IdleTTL drops a chat's bucket after this long without updates.
	IdleTTL  time.Duration
	MaxChats int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 30,
		Burst:             10,
		IdleTTL:           10 * time.Minute,
		MaxChats:          1000,
	}
}

// NewLimiter creates a new rate limiter. m may be nil.
func NewLimiter(config Config, m *metrics.Registry) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	if config.MaxChats <= 0 {
		config.MaxChats = def.MaxChats
	}
	return &Limiter{
		buckets: cache.NewLRUCache[int64, *rate.Limiter](config.MaxChats, config.IdleTTL),
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for both the buckets and their expiry.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	l.buckets.WithClock(now)
	return l
}

// Buckets exposes the bucket cache so it can be swept.
func (l *Limiter) Buckets() *cache.LRUCache[int64, *rate.Limiter] {
	return l.buckets
}

// Allow checks if an update from the given chat should be processed.
func (l *Limiter) Allow(chatID int64) bool {
	b, ok := l.buckets.Get(chatID)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
	}
	l.buckets.Set(chatID, b)
	return b.AllowN(l.now(), 1)
}

// Middleware drops updates from chats over their budget. Dropped updates
// are not answered so a flood gets no replies to amplify it.
func (l *Limiter) Middleware(next Handler) Handler {
	return func(ctx context.Context, u bot.Update) error {
		if !l.Allow(u.ChatID) {
			l.metrics.ObserveUpdate("throttled")
			slog.WarnContext(ctx, "Rate limit exceeded", "chat_id", u.ChatID)
			return nil
		}
		return next(ctx, u)
	}
}
