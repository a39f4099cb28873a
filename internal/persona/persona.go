// Package persona resolves the personality mode of a user and the message
// templates that go with it.
package persona

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/catalog"
	"gastos/internal/session"
)

// fallback messages cover keys a configured mode leaves out.
var fallback = map[string]string{
	catalog.MsgStartExpense:   "Vamos a registrar un gasto.",
	catalog.MsgExpenseSaved:   "Gasto registrado.",
	catalog.MsgBudgetWarning:  "Ya usaste el {porcentaje}% del presupuesto.",
	catalog.MsgBudgetExceeded: "Superaste el presupuesto ({porcentaje}%).",
	catalog.MsgModeChanged:    "Modo actualizado.",
}

type Resolver struct {
	catalog *catalog.Catalog
	store   session.ModeStore
}

func NewResolver(cat *catalog.Catalog, store session.ModeStore) *Resolver {
	return &Resolver{catalog: cat, store: store}
}

// Mode returns the user's mode, or the default one when none is stored, the
// stored id is no longer configured, or the store fails.
func (r *Resolver) Mode(ctx context.Context, userID int64) catalog.Mode {
	id, ok, err := r.store.Mode(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read personality mode, using default", "user_id", userID, "error", err)
		return r.catalog.Default()
	}
	if !ok {
		return r.catalog.Default()
	}
	m, ok := r.catalog.Mode(id)
	if !ok {
		return r.catalog.Default()
	}
	return m
}

// Message returns the template for key in the user's mode, falling back to
// the default mode and then to a neutral text.
func (r *Resolver) Message(ctx context.Context, userID int64, key string) string {
	if msg := r.Mode(ctx, userID).Message(key); msg != "" {
		return msg
	}
	if msg := r.catalog.Default().Message(key); msg != "" {
		return msg
	}
	return fallback[key]
}

// SetMode stores the mode for the user. Unknown ids are rejected.
func (r *Resolver) SetMode(ctx context.Context, userID int64, id string) (catalog.Mode, error) {
	m, ok := r.catalog.Mode(id)
	if !ok {
		return catalog.Mode{}, fmt.Errorf("unknown personality mode %q", id)
	}
	if err := r.store.SetMode(ctx, userID, m.ID); err != nil {
		return catalog.Mode{}, err
	}
	return m, nil
}
