package backend

import (
	"context"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/session"
	"gastos/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the ledger store, the session store and the optional
// event publisher. Cleanup releases whatever the factory opened.
type BackendResult struct {
	Store     sheets.Store
	Sessions  session.Store
	Publisher *amqp.Client // nil when AMQP is disabled
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Tables names the worksheets the bot reads and appends to.
type Tables struct {
	Expenses string
	Incomes  string
	Savings  string
	Budget   string
}

// Headers returns the header row of every table, used to create the
// in-memory tables.
func (t Tables) Headers() map[string][]string {
	return map[string][]string{
		t.Expenses: {"Fecha", "Descripcion", "Categoría", "Subcategoría", "Monto", "Metodo_Pago"},
		t.Incomes:  {"Fecha", "Descripcion", "Categoría", "Monto"},
		t.Savings:  {"Fecha", "Monto", "Destino", "Divisa", "Cotizacion"},
		t.Budget:   {"Categoria", "Presupuesto"},
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type        BackendType
	SessionType SessionType
	Tables      Tables

	// Google Sheets specific
	GoogleSpreadsheetID     string
	GoogleCredentialsJSON   string
	GoogleCredentialsFile   string
	GoogleCredentialsBase64 string
	SheetsTimeout           time.Duration
	SheetsRatePerMinute     int

	// Memory backend specific
	DataDirectory string

	// SQLite sessions specific
	SQLiteDBPath string

	// AMQP is optional
	AMQPURL      string
	AMQPExchange string
}

// BackendType selects where ledger rows live.
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SessionType selects where modes and reminder subscriptions live.
type SessionType string

const (
	MemorySessions SessionType = "memory"
	SQLiteSessions SessionType = "sqlite"
)

func (st SessionType) String() string {
	return string(st)
}

func (st SessionType) IsValid() bool {
	switch st {
	case MemorySessions, SQLiteSessions:
		return true
	default:
		return false
	}
}
