package datatable

import (
	"fmt"
	"net/http"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/datatable-go/collection"
	"github.com/hugr-lab/datatable-go/engine"
	"github.com/hugr-lab/datatable-go/query"
	"github.com/hugr-lab/datatable-go/sqlbuilder"
)

// DefaultDisplayLength is the page size used when a request has none.
const DefaultDisplayLength = engine.DefaultDisplayLength

// Params is the flat request parameter map.
type Params = engine.Params

// Response is an assembled page.
type Response = engine.Response

// ShouldHandle reports whether params describe a grid paging request
// (sEcho or draw present and numeric).
func ShouldHandle(params Params) bool {
	return engine.ShouldHandle(params)
}

// ParamsFromRequest reads query and form parameters of r.
func ParamsFromRequest(r *http.Request) Params {
	if err := r.ParseForm(); err != nil {
		return engine.ParamsFromValues(r.URL.Query())
	}
	return engine.ParamsFromValues(r.Form)
}

// NewQuery creates a query engine over builder. builder is cloned and
// never modified.
//
// Example:
//
//	q, err := datatable.NewQuery(sqlbuilder.New(db, sqlexpr.Postgres).From("orders"), params, cfg)
//	q.ShowColumns("id", "customer", "total")
//	q.SetEmptyAtEnd(true)
//	resp, err := q.Output(ctx)
func NewQuery(builder *sqlbuilder.Builder, params Params, config Config) (*query.Engine, error) {
	if builder == nil {
		return nil, fmt.Errorf("%w: builder is required", ErrInvalidConfig)
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	q := query.New(builder, params, config.engineOptions())
	if err := applyFormat(q.Engine, config); err != nil {
		return nil, err
	}
	return q, nil
}

// NewCollection creates an engine over in-memory rows (maps, structs or
// column.Getter values).
func NewCollection(rows []any, params Params, config Config) (*collection.Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := collection.New(rows, params, config.engineOptions())
	if err := applyFormat(c.Engine, config); err != nil {
		return nil, err
	}
	return c, nil
}

// NewArrowCollection drains reader and creates an engine over its rows.
// The reader is released.
func NewArrowCollection(reader array.RecordReader, params Params, config Config) (*collection.Engine, error) {
	if err := validateConfig(config); err != nil {
		reader.Release()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c, err := collection.FromRecordReader(reader, params, config.engineOptions())
	if err != nil {
		return nil, err
	}
	if err := applyFormat(c.Engine, config); err != nil {
		return nil, err
	}
	return c, nil
}

func applyFormat(e *engine.Engine, config Config) error {
	if config.OutputFormat == "" {
		return nil
	}
	return e.SetOutputFormat(config.OutputFormat)
}
