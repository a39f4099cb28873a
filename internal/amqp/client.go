package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

const (
	publishTimeout  = 5 * time.Second
	maxDialAttempts = 5
)

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type connection interface {
	Close() error
}

// dialFunc opens a connection and a channel on it.
type dialFunc func(url string) (connection, channel, error)

func dialAMQP(url string) (connection, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// Client publishes ledger events to a durable topic exchange. The connection
// is re-opened lazily after a connection error.
type Client struct {
	url          string
	exchangeName string
	dial         dialFunc
	sleep        func(context.Context, time.Duration) error

	mu      sync.Mutex
	conn    connection
	channel channel

	breaker *gobreaker.CircuitBreaker
}

func NewClient(url, exchangeName string) *Client {
	return newClient(url, exchangeName, dialAMQP)
}

func newClient(url, exchangeName string, dial dialFunc) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		dial:         dial,
		sleep:        sleepContext,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "amqp-publisher",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Connect dials the broker, retrying with exponential backoff until it
// succeeds, the attempts run out or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxDialAttempts; attempt++ {
		c.mu.Lock()
		lastErr = c.ensureChannelLocked()
		c.mu.Unlock()
		if lastErr == nil {
			slog.InfoContext(ctx, "Connected to AMQP broker", "exchange", c.exchangeName)
			return nil
		}

		if attempt == maxDialAttempts-1 {
			break
		}
		delay := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection failed, retrying",
			"error", lastErr,
			"attempt", attempt+1,
			"delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("connect after %d attempts: %w", maxDialAttempts, lastErr)
}

func (c *Client) ensureChannelLocked() error {
	if c.channel != nil {
		return nil
	}
	conn, ch, err := c.dial(c.url)
	if err != nil {
		return err
	}
	err = ch.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	c.conn, c.channel = conn, ch
	return nil
}

func (c *Client) resetLocked() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
}

// Publish sends one event. It fails fast while the circuit is open.
func (c *Client) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.publish(ctx, event, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker is open: %w", err)
	}
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Published ledger event",
		"id", event.ID,
		"routing_key", event.Type,
		"exchange", c.exchangeName)
	return nil
}

func (c *Client) publish(ctx context.Context, event *Event, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureChannelLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		event.Type,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.resetLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	return err
}

// exponentialBackoff doubles from one second and caps at thirty.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
