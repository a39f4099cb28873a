package storage

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
)

func newTestRepo(t *testing.T, path string) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteModes(t *testing.T) {
	repo := newTestRepo(t, filepath.Join(t.TempDir(), "data", "gastos.db"))
	ctx := context.Background()

	if _, ok, err := repo.Mode(ctx, 1); err != nil || ok {
		t.Fatalf("expected no mode, got ok=%v err=%v", ok, err)
	}
	if err := repo.SetMode(ctx, 1, "estricto"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.SetMode(ctx, 1, "motivador"); err != nil {
		t.Fatalf("update: %v", err)
	}
	mode, ok, err := repo.Mode(ctx, 1)
	if err != nil || !ok || mode != "motivador" {
		t.Fatalf("got %q %v %v", mode, ok, err)
	}
}

func TestSQLiteSubscriptions(t *testing.T) {
	repo := newTestRepo(t, filepath.Join(t.TempDir(), "gastos.db"))
	ctx := context.Background()

	for _, id := range []int64{-100200, 55, 55, 7} {
		if err := repo.Subscribe(ctx, id); err != nil {
			t.Fatalf("subscribe %d: %v", id, err)
		}
	}
	if err := repo.Unsubscribe(ctx, 7); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	got, err := repo.Subscribers(ctx)
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if !slices.Equal(got, []int64{-100200, 55}) {
		t.Fatalf("subscribers = %v", got)
	}
	if ok, _ := repo.IsSubscribed(ctx, 55); !ok {
		t.Fatalf("55 should be subscribed")
	}
	if ok, _ := repo.IsSubscribed(ctx, 7); ok {
		t.Fatalf("7 should not be subscribed")
	}
}

func TestSQLiteStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = repo.SetMode(ctx, 9, "estricto")
	_ = repo.Subscribe(ctx, 9)
	repo.Close()

	// Migrations are idempotent on reopen.
	repo = newTestRepo(t, path)
	if mode, ok, _ := repo.Mode(ctx, 9); !ok || mode != "estricto" {
		t.Fatalf("mode lost on reopen: %q %v", mode, ok)
	}
	if ok, _ := repo.IsSubscribed(ctx, 9); !ok {
		t.Fatalf("subscription lost on reopen")
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.db")
	for i := 0; i < 2; i++ {
		v, err := RunMigrations(path)
		if err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
		if v != 1 {
			t.Fatalf("run %d: version = %d, want 1", i+1, v)
		}
	}
}
