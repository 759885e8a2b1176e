// Package gridserver exposes one SQL table as a grid endpoint over HTTP.
package gridserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hugr-lab/datatable-go"
	"github.com/hugr-lab/datatable-go/payload"
	"github.com/hugr-lab/datatable-go/sqlbuilder"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Config describes the served table.
type Config struct {
	// DB is the database connection.
	// REQUIRED: Must not be nil.
	DB *sql.DB

	// Dialect renders identifiers and placeholders for DB.
	// REQUIRED: Must match the driver DB was opened with.
	Dialect sqlexpr.Dialect

	// Table is the served table name.
	// REQUIRED: Must be non-empty.
	Table string

	// Columns are the displayed columns in grid order.
	// REQUIRED: At least one column.
	Columns []string

	// SearchColumns are the searchable field specs.
	// OPTIONAL: Defaults to Columns.
	SearchColumns []string

	// OrderColumns are the sortable field specs.
	// OPTIONAL: If empty, every column is sortable.
	OrderColumns []string

	// EmptyAtEnd sorts NULL values last in both directions.
	// OPTIONAL: Default false.
	EmptyAtEnd bool

	// Grid holds the engine defaults.
	// OPTIONAL: Zero value is valid.
	Grid datatable.Config

	// Compress enables zstd responses for clients that accept them.
	// OPTIONAL: Default false.
	Compress bool

	// Logger for request logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("invalid grid server config")

// Handler serves grid pages. Safe for concurrent use.
type Handler struct {
	config     Config
	base       *sqlbuilder.Builder
	compressor *payload.Compressor
	logger     *slog.Logger
}

func validateConfig(config Config) error {
	if config.DB == nil {
		return errors.New("database is required")
	}
	if config.Dialect == nil {
		return errors.New("dialect is required")
	}
	if config.Table == "" {
		return errors.New("table is required")
	}
	if len(config.Columns) == 0 {
		return errors.New("at least one column is required")
	}
	return nil
}

// New creates a Handler. Call Close when done.
func New(config Config) (*Handler, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Grid.Logger == nil && config.Grid.LogLevel == nil {
		config.Grid.Logger = logger
	}

	h := &Handler{
		config: config,
		base:   sqlbuilder.New(config.DB, config.Dialect).WithLogger(logger).From(config.Table),
		logger: logger,
	}

	if config.Compress {
		c, err := payload.NewCompressor()
		if err != nil {
			return nil, err
		}
		h.compressor = c
	}
	return h, nil
}

// Close releases the compressor.
func (h *Handler) Close() error {
	if h.compressor != nil {
		return h.compressor.Close()
	}
	return nil
}

// Mux routes the grid endpoint at path and Prometheus metrics at /metrics.
func (h *Handler) Mux(path string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format := payload.Negotiate(r.Header.Get("Accept"))
	defer func() {
		requestDuration.WithLabelValues(format.String()).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		h.fail(w, format, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	params := datatable.ParamsFromRequest(r)
	if !datatable.ShouldHandle(params) {
		h.fail(w, format, http.StatusBadRequest, errors.New("missing or invalid draw counter"))
		return
	}

	resp, err := h.page(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, datatable.ErrUnsafeExpression) || errors.Is(err, datatable.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		h.logger.Error("Grid request failed", "table", h.config.Table, "error", err)
		h.fail(w, format, status, err)
		return
	}

	body, err := payload.Encode(resp, format)
	if err != nil {
		h.logger.Error("Failed to encode grid page", "error", err)
		h.fail(w, payload.JSON, http.StatusInternalServerError, err)
		return
	}

	rowsReturned.Observe(float64(len(resp.Data)))
	requestsTotal.WithLabelValues(format.String(), statusOK).Inc()
	h.write(w, r, format, http.StatusOK, body)
}

func (h *Handler) page(ctx context.Context, params datatable.Params) (*datatable.Response, error) {
	q, err := datatable.NewQuery(h.base, params, h.config.Grid)
	if err != nil {
		return nil, err
	}

	q.ShowColumns(h.config.Columns...)
	if len(h.config.SearchColumns) > 0 {
		q.SearchColumns(h.config.SearchColumns...)
	}
	if len(h.config.OrderColumns) > 0 {
		q.OrderColumns(h.config.OrderColumns...)
	}
	q.SetEmptyAtEnd(h.config.EmptyAtEnd)

	return q.Output(ctx)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, format payload.Format, status int, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Add("Vary", "Accept, Accept-Encoding")
	if h.compressor != nil && payload.AcceptsZstd(r.Header.Get("Accept-Encoding")) {
		body = h.compressor.Compress(body)
		w.Header().Set("Content-Encoding", payload.ContentEncodingZstd)
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write grid response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, format payload.Format, status int, err error) {
	label := statusError
	if status < http.StatusInternalServerError {
		label = statusBadRequest
	}
	requestsTotal.WithLabelValues(format.String(), label).Inc()

	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", payload.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
