package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/session"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var _ session.Store = (*SQLiteRepository)(nil)

const (
	selectModeSQL = `SELECT mode FROM user_modes WHERE user_id = ?`
	upsertModeSQL = `INSERT INTO user_modes (user_id, mode, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(user_id) DO UPDATE SET mode = excluded.mode, updated_at = CURRENT_TIMESTAMP`
	subscribeSQL    = `INSERT OR IGNORE INTO reminder_subscriptions (chat_id) VALUES (?)`
	unsubscribeSQL  = `DELETE FROM reminder_subscriptions WHERE chat_id = ?`
	isSubscribedSQL = `SELECT 1 FROM reminder_subscriptions WHERE chat_id = ?`
	subscribersSQL  = `SELECT chat_id FROM reminder_subscriptions ORDER BY chat_id`
)

// SQLiteRepository persists personality modes and reminder subscriptions so
// they survive restarts.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the bot handles one update at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Mode(ctx context.Context, userID int64) (string, bool, error) {
	var mode string
	err := r.db.QueryRowContext(ctx, selectModeSQL, userID).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get mode: %w", err)
	}
	return mode, true, nil
}

func (r *SQLiteRepository) SetMode(ctx context.Context, userID int64, mode string) error {
	if _, err := r.db.ExecContext(ctx, upsertModeSQL, userID, mode); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	slog.InfoContext(ctx, "Personality mode saved", "user_id", userID, "mode", mode)
	return nil
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, subscribeSQL, chatID); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Unsubscribe(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, unsubscribeSQL, chatID); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, isSubscribedSQL, chatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) Subscribers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, subscribersSQL)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return out, nil
}
