package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "gastos/internal/sheets"
)

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// Credentials holds the service account sources in priority order: inline
// JSON, a file path, then base64-encoded JSON.
type Credentials struct {
	JSON   string
	File   string
	Base64 string
}

type Options struct {
	SpreadsheetID     string
	Credentials       Credentials
	Timeout           time.Duration
	RequestsPerMinute int
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	timeout       time.Duration
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := opts.Credentials.Resolve()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return newClient(svc, opts), nil
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		timeout:       timeout,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 5),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "google-sheets",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Resolve returns the service account JSON from the first configured source.
func (c Credentials) Resolve() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(strings.TrimSpace(c.JSON)), nil
	case strings.TrimSpace(c.File) != "":
		data, err := os.ReadFile(strings.TrimSpace(c.File))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	case strings.TrimSpace(c.Base64) != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Base64))
		if err != nil {
			return nil, fmt.Errorf("decode base64 credentials: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS)")
	}
}

// newHTTPClient creates an HTTP client with connection pooling and timeouts
// suited to the Sheets API.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// AppendRow appends one row after the last non-empty row of the worksheet.
// Values are entered as if typed by a user so dates and numbers get parsed by
// the spreadsheet's locale.
func (c *Client) AppendRow(ctx context.Context, table string, fields []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	vr := &gsheet.ValueRange{Values: [][]any{fields}}
	_, err := call(ctx, c, func(ctx context.Context) (*gsheet.AppendValuesResponse, error) {
		return c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheetRange(table, "A1"), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	return nil
}

// ReadAllRows reads the whole worksheet. Numbers come back unformatted so the
// locale of the spreadsheet does not change how amounts are parsed; dates come
// back formatted.
func (c *Client) ReadAllRows(ctx context.Context, table string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := call(ctx, c, func(ctx context.Context) (*gsheet.ValueRange, error) {
		return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheetRange(table, "")).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return toRows(resp.Values), nil
}

func (c *Client) ReadAllRecords(ctx context.Context, table string) ([]map[string]string, error) {
	rows, err := c.ReadAllRows(ctx, table)
	if err != nil {
		return nil, err
	}
	return ports.RecordsFromRows(rows), nil
}

// call applies rate limiting, the per-call timeout and the circuit breaker.
func call[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("rate limit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

// sheetRange quotes a worksheet name for A1 notation.
func sheetRange(table, cells string) string {
	name := "'" + strings.ReplaceAll(table, "'", "''") + "'"
	if cells == "" {
		return name
	}
	return name + "!" + cells
}

func toRows(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cols := make([]string, len(row))
		for j, v := range row {
			cols[j] = ports.CellString(v)
		}
		out[i] = cols
	}
	return out
}
