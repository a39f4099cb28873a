package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestCredentialsResolve(t *testing.T) {
	raw := `{"type":"service_account"}`

	file := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(file, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cases := []struct {
		name    string
		creds   Credentials
		want    string
		wantErr bool
	}{
		{name: "inline json", creds: Credentials{JSON: raw, File: "/nope"}, want: raw},
		{name: "file", creds: Credentials{File: file}, want: raw},
		{name: "base64", creds: Credentials{Base64: base64.StdEncoding.EncodeToString([]byte(raw))}, want: raw},
		{name: "bad base64", creds: Credentials{Base64: "%%%"}, wantErr: true},
		{name: "missing file", creds: Credentials{File: filepath.Join(t.TempDir(), "none.json")}, wantErr: true},
		{name: "nothing", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.creds.Resolve()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSheetRange(t *testing.T) {
	if got := sheetRange("Gastos", "A1"); got != "'Gastos'!A1" {
		t.Fatalf("got %q", got)
	}
	if got := sheetRange("Lucas' Sheet", ""); got != "'Lucas'' Sheet'" {
		t.Fatalf("got %q", got)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing spreadsheet id")
	}
}

// fakeSheets serves the two Values endpoints the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	paths    []string
	values   [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path+"?"+r.URL.RawQuery)

	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, ":append") {
		body, _ := io.ReadAll(r.Body)
		var vr gsheet.ValueRange
		_ = json.Unmarshal(body, &vr)
		f.appended = append(f.appended, vr.Values...)
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"range": "Gastos!A1:F3", "values": f.values})
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return newClient(svc, Options{SpreadsheetID: "sheet-1", Timeout: 5 * time.Second, RequestsPerMinute: 6000})
}

func TestClientAppendRow(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	row := []any{"03/10/2026", "super", "🍖 Comida", "", 2000.5, "💵 Efectivo"}
	if err := c.AppendRow(context.Background(), "Gastos", row); err != nil {
		t.Fatalf("append: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.appended) != 1 || fake.appended[0][1] != "super" {
		t.Fatalf("unexpected appended rows %v", fake.appended)
	}
	if !strings.Contains(fake.paths[0], "valueInputOption=USER_ENTERED") {
		t.Fatalf("expected USER_ENTERED input, got %s", fake.paths[0])
	}
}

func TestClientReadAllRecords(t *testing.T) {
	fake := &fakeSheets{values: [][]any{
		{"Categoria", "Presupuesto"},
		{"🍖 Comida", 50000},
		{"🚗 Transporte", 12500.75},
		{},
	}}
	c := newTestClient(t, fake)

	recs, err := c.ReadAllRecords(context.Background(), "PresupuestoBot")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %v", recs)
	}
	if recs[0]["Presupuesto"] != "50000" || recs[1]["Presupuesto"] != "12500.75" {
		t.Fatalf("numbers must be rendered plainly: %v", recs)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !strings.Contains(fake.paths[0], "valueRenderOption=UNFORMATTED_VALUE") {
		t.Fatalf("expected unformatted values, got %s", fake.paths[0])
	}
}

func TestClientReadErrorIsWrapped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"boom"}}`, http.StatusBadRequest)
	}))
	_, err := c.ReadAllRows(context.Background(), "Gastos")
	if err == nil || !strings.Contains(err.Error(), "read Gastos") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{}
	if err := c.AppendRow(context.Background(), "Gastos", nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := c.ReadAllRows(context.Background(), "Gastos"); err == nil {
		t.Fatalf("expected error")
	}
}
