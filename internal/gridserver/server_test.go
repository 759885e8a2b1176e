package gridserver

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hugr-lab/datatable-go/payload"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

func openCities(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		"CREATE TABLE cities (id INTEGER, name VARCHAR, country VARCHAR)",
		"INSERT INTO cities VALUES (1, 'Paris', 'FR'), (2, 'Berlin', 'DE'), (3, 'Lyon', 'FR')",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	return db
}

func newHandler(t *testing.T, compress bool) *Handler {
	t.Helper()

	h, err := New(Config{
		DB:            openCities(t),
		Dialect:       sqlexpr.DuckDB,
		Table:         "cities",
		Columns:       []string{"id", "name", "country"},
		SearchColumns: []string{"name", "country"},
		Compress:      compress,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing db", Config{Dialect: sqlexpr.DuckDB, Table: "t", Columns: []string{"a"}}},
		{"missing dialect", Config{DB: &sql.DB{}, Table: "t", Columns: []string{"a"}}},
		{"missing table", Config{DB: &sql.DB{}, Dialect: sqlexpr.DuckDB, Columns: []string{"a"}}},
		{"missing columns", Config{DB: &sql.DB{}, Dialect: sqlexpr.DuckDB, Table: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestServeJSON(t *testing.T) {
	h := newHandler(t, false)
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("json", statusOK))

	req := httptest.NewRequest(http.MethodGet, "/grid?sEcho=5&iDisplayStart=0&iDisplayLength=10&sSearch=FR&iSortCol_0=1&sSortDir_0=asc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != payload.ContentTypeJSON {
		t.Errorf("unexpected content type %q", ct)
	}
	expected := `{"aaData":[[3,"Lyon","FR"],[1,"Paris","FR"]],"sEcho":5,"iTotalRecords":3,"iTotalDisplayRecords":2,"aaAdditional":null}`
	if rec.Body.String() != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, rec.Body.String())
	}

	if after := testutil.ToFloat64(requestsTotal.WithLabelValues("json", statusOK)); after != before+1 {
		t.Errorf("expected ok counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestServeModernMsgpack(t *testing.T) {
	h := newHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/grid?draw=2&start=1&length=1&order[0][column]=0&order[0][dir]=desc", nil)
	req.Header.Set("Accept", payload.ContentTypeMsgPack)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != payload.ContentTypeMsgPack {
		t.Errorf("unexpected content type %q", ct)
	}

	var decoded map[string]any
	if err := payload.Decode(rec.Body.Bytes(), payload.MsgPack, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	data, ok := decoded["aaData"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("expected one row, got %v", decoded["aaData"])
	}
	row, ok := data[0].([]any)
	if !ok || len(row) != 3 || row[1] != "Berlin" {
		t.Errorf("expected Berlin row, got %v", data[0])
	}
}

func TestServeCompressed(t *testing.T) {
	h := newHandler(t, true)

	req := httptest.NewRequest(http.MethodGet, "/grid?sEcho=1", nil)
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != payload.ContentEncodingZstd {
		t.Fatalf("expected zstd encoding, got %q", rec.Header().Get("Content-Encoding"))
	}

	d, err := payload.NewDecompressor()
	if err != nil {
		t.Fatalf("NewDecompressor failed: %v", err)
	}
	defer d.Close()

	body, err := d.Decompress(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !strings.Contains(string(body), `"iTotalRecords":3`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestServeErrors(t *testing.T) {
	h := newHandler(t, false)

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"not a grid request", http.MethodGet, "/grid", http.StatusBadRequest},
		{"non-numeric echo", http.MethodGet, "/grid?sEcho=abc", http.StatusBadRequest},
		{"unsupported method", http.MethodDelete, "/grid?sEcho=1", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestUnsafeSearchColumn(t *testing.T) {
	h, err := New(Config{
		DB:            openCities(t),
		Dialect:       sqlexpr.DuckDB,
		Table:         "cities",
		Columns:       []string{"id", "name"},
		SearchColumns: []string{"name:VARCHAR; DROP TABLE cities"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid?sEcho=1&sSearch=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsafe field spec, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMuxServesMetrics(t *testing.T) {
	h := newHandler(t, false)
	mux := h.Mux("/grid")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid?sEcho=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "datatable_requests_total") {
		t.Error("expected datatable_requests_total in metrics output")
	}
}
