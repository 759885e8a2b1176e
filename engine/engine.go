package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugr-lab/datatable-go/column"
)

// DefaultDisplayLength is the page size used when a request carries an
// unusable iDisplayLength.
const DefaultDisplayLength = 10

// Adapter applies engine state to a data source.
//
// Output calls Make first, then TotalCount, then Count, so Count may return a
// value cached by Make.
type Adapter interface {
	// Make returns the filtered, sorted and paged source rows.
	Make(ctx context.Context, s *State) ([]any, error)

	// TotalCount returns the number of rows before search and paging.
	TotalCount(ctx context.Context) (int64, error)

	// Count returns the number of rows after search, before paging.
	Count(ctx context.Context) (int64, error)
}

// Options configures a new Engine.
type Options struct {
	// DefaultDisplayLength is the fallback page size.
	// OPTIONAL: If <= 0, uses DefaultDisplayLength.
	DefaultDisplayLength int

	// ExactWordSearch makes the global search match whole values.
	// OPTIONAL: Default false (substring search).
	ExactWordSearch bool

	// EnableDisplayAll lets iDisplayLength=-1 disable paging.
	// OPTIONAL: Default false.
	EnableDisplayAll bool

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Engine is the request-scoped DataTables state machine.
// Not thread-safe.
type Engine struct {
	adapter Adapter
	params  Params
	opts    Options
	logger  *slog.Logger

	state      State
	additional any
	meta       MetadataFuncs
	provider   RowMetadataProvider

	prepared  bool
	finalized bool
}

// New creates an engine reading params and delegating data access to adapter.
func New(adapter Adapter, params Params, opts Options) *Engine {
	if opts.DefaultDisplayLength <= 0 {
		opts.DefaultDisplayLength = DefaultDisplayLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if params == nil {
		params = Params{}
	}

	return &Engine{
		adapter: adapter,
		params:  params,
		opts:    opts,
		logger:  logger,
		state: State{
			Columns:         column.NewSet(),
			ExactMatch:      make(map[string]bool),
			Directions:      make(map[int]Direction),
			Format:          Legacy,
			ExactWordSearch: opts.ExactWordSearch,
			DisplayAll:      opts.EnableDisplayAll,
		},
	}
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Params returns the request parameters.
func (e *Engine) Params() Params { return e.params }

// State returns the current state. Callers must not modify it.
func (e *Engine) State() *State { return &e.state }

// Finalized reports whether Output has been called.
func (e *Engine) Finalized() bool { return e.finalized }

// mutable reports whether configuration is still accepted, logging the
// rejected call otherwise.
func (e *Engine) mutable(op string) bool {
	if e.finalized {
		e.logger.Warn("Ignoring configuration call on finalized engine", "call", op)
		return false
	}
	return true
}

// AddColumn adds a column, mirroring the classic variadic form:
//
//	AddColumn(col)                  // a column.Column
//	AddColumn("name", fn)           // fn is column.Func, func(any) (any, error) or func(any) any
//	AddColumn("name", "text")       // any other value renders as fixed text
//
// Any other argument count or shape returns ErrUsage.
func (e *Engine) AddColumn(args ...any) error {
	if !e.mutable("AddColumn") {
		return nil
	}

	switch len(args) {
	case 1:
		c, ok := args[0].(column.Column)
		if !ok {
			return fmt.Errorf("%w: AddColumn with one argument expects a column.Column, got %T", ErrUsage, args[0])
		}
		e.state.Columns.Put(c)
		return nil
	case 2:
		name, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("%w: AddColumn expects a string name, got %T", ErrUsage, args[0])
		}
		switch v := args[1].(type) {
		case column.Func:
			e.state.Columns.Put(column.NewFunction(name, v))
		case func(any) (any, error):
			e.state.Columns.Put(column.NewFunction(name, v))
		case func(any) any:
			e.state.Columns.Put(column.NewFunction(name, func(row any) (any, error) { return v(row), nil }))
		case string:
			e.state.Columns.Put(column.NewText(name, v))
		default:
			e.state.Columns.Put(column.NewText(name, fmt.Sprint(v)))
		}
		return nil
	default:
		return fmt.Errorf("%w: AddColumn takes 1 or 2 arguments, got %d", ErrUsage, len(args))
	}
}

// Column adds or replaces a column.
func (e *Engine) Column(c column.Column) *Engine {
	if e.mutable("Column") {
		e.state.Columns.Put(c)
	}
	return e
}

// AddFunc adds a function column.
func (e *Engine) AddFunc(name string, fn column.Func) *Engine {
	return e.Column(column.NewFunction(name, fn))
}

// AddText adds a fixed-text column.
func (e *Engine) AddText(name, text string) *Engine {
	return e.Column(column.NewText(name, text))
}

// GetColumn returns the named column, or nil.
func (e *Engine) GetColumn(name string) column.Column {
	return e.state.Columns.Get(name)
}

// ColumnOrder returns the column names in output order.
func (e *Engine) ColumnOrder() []string {
	return e.state.Columns.Names()
}

// OrderingColumns returns the declared ordering allow-list.
func (e *Engine) OrderingColumns() []string {
	return e.state.OrderColumns
}

// SearchingColumns returns the declared search columns.
func (e *Engine) SearchingColumns() []string {
	return e.state.SearchColumns
}

// NameByIndex returns the column name at position i, or "".
func (e *Engine) NameByIndex(i int) string {
	return e.state.Columns.NameAt(i)
}

// ClearColumns removes every column.
func (e *Engine) ClearColumns() *Engine {
	if e.mutable("ClearColumns") {
		e.state.Columns.Clear()
	}
	return e
}

// ShowColumns adds a plain field column per name. created_at and updated_at
// render as long-form dates. Field lookup failures render as nil.
// The names also become the default global search columns.
func (e *Engine) ShowColumns(names ...string) *Engine {
	if !e.mutable("ShowColumns") {
		return e
	}
	for _, name := range names {
		switch name {
		case "created_at", "updated_at":
			e.state.Columns.Put(column.NewDate(name, column.DayDateTime, ""))
		default:
			e.state.Columns.Put(column.NewField(name, e.logger))
		}
		e.state.ShowColumns = append(e.state.ShowColumns, name)
	}
	return e
}

// SearchColumns sets the fields searched by the global search, in column
// position order for per-column search. Entries may carry a cast suffix
// ("price:DECIMAL:10,2"). Per-column searches (sSearch_<N>) apply only to
// declared search columns; the ShowColumns defaults serve the global search.
func (e *Engine) SearchColumns(specs ...string) *Engine {
	if e.mutable("SearchColumns") {
		e.state.SearchColumns = specs
	}
	return e
}

// OrderColumns sets the ordering allow-list. Entries may carry a cast suffix.
//
// A requested sort on a column absent from a non-empty allow-list is
// silently dropped. Without an allow-list every requested sort key
// (iSortCol_0 through iSortCol_<iSortingCols-1>) sorts by the column name at
// its index.
func (e *Engine) OrderColumns(specs ...string) *Engine {
	if e.mutable("OrderColumns") {
		e.state.OrderColumns = specs
	}
	return e
}

// SetRowClass sets the DT_RowClass callback.
func (e *Engine) SetRowClass(fn RowFunc) *Engine {
	if e.mutable("SetRowClass") {
		e.meta.Class = fn
	}
	return e
}

// SetRowID sets the DT_RowId callback.
func (e *Engine) SetRowID(fn RowFunc) *Engine {
	if e.mutable("SetRowID") {
		e.meta.ID = fn
	}
	return e
}

// SetRowData sets the DT_RowData callback.
func (e *Engine) SetRowData(fn RowFunc) *Engine {
	if e.mutable("SetRowData") {
		e.meta.Data = fn
	}
	return e
}

// SetRowMetadata installs a metadata provider. It replaces the callbacks set
// with SetRowClass, SetRowID and SetRowData.
func (e *Engine) SetRowMetadata(p RowMetadataProvider) *Engine {
	if e.mutable("SetRowMetadata") {
		e.provider = p
	}
	return e
}

// SetAliasMapping keys rendered cells by column name instead of position.
func (e *Engine) SetAliasMapping(v bool) *Engine {
	if e.mutable("SetAliasMapping") {
		e.state.AliasMapping = v
	}
	return e
}

// AliasMapping reports whether alias mapping is on.
func (e *Engine) AliasMapping() bool { return e.state.AliasMapping }

// SetExactWordSearch toggles whole-value matching for the global search.
func (e *Engine) SetExactWordSearch(v bool) *Engine {
	if e.mutable("SetExactWordSearch") {
		e.state.ExactWordSearch = v
	}
	return e
}

// ExactWordSearch reports whether exact word search is on.
func (e *Engine) ExactWordSearch() bool { return e.state.ExactWordSearch }

// SetEnableDisplayAll toggles iDisplayLength=-1 support.
func (e *Engine) SetEnableDisplayAll(v bool) *Engine {
	if e.mutable("SetEnableDisplayAll") {
		e.state.DisplayAll = v
	}
	return e
}

// DisplayAllEnabled reports whether iDisplayLength=-1 disables paging.
func (e *Engine) DisplayAllEnabled() bool { return e.state.DisplayAll }

// SetExactMatchColumns makes per-column search on the named fields use
// equality. Additive.
func (e *Engine) SetExactMatchColumns(fields ...string) *Engine {
	if e.mutable("SetExactMatchColumns") {
		for _, f := range fields {
			e.state.ExactMatch[f] = true
		}
	}
	return e
}

// SetAdditionalData attaches a value returned as aaAdditional/additional.
func (e *Engine) SetAdditionalData(v any) *Engine {
	if e.mutable("SetAdditionalData") {
		e.additional = v
	}
	return e
}

// SetOutputFormat selects "legacy" or "modern". Any other value returns
// ErrInvalidArgument and leaves the format unchanged.
func (e *Engine) SetOutputFormat(format string) error {
	if !e.mutable("SetOutputFormat") {
		return nil
	}
	switch f := OutputFormat(format); f {
	case Legacy, Modern:
		e.state.Format = f
		return nil
	default:
		return fmt.Errorf("%w: output format %q", ErrInvalidArgument, format)
	}
}

// Prepare interprets the request parameters into the state. Output calls it;
// adapters that expose the built query without rendering call it directly.
// Idempotent.
func (e *Engine) Prepare() {
	if e.prepared {
		return
	}
	e.prepared = true

	// sSearch_<N> resolves against declared search columns only.
	e.interpret()
	if len(e.state.SearchColumns) == 0 {
		e.state.SearchColumns = append([]string(nil), e.state.ShowColumns...)
	}
}

// Output runs the adapter and assembles the response. The engine is
// finalized afterwards: a second call returns ErrFinalized and further
// configuration calls are ignored.
//
// Failures of the backing source, Function columns and row metadata
// callbacks abort the call.
func (e *Engine) Output(ctx context.Context) (*Response, error) {
	if e.finalized {
		return nil, ErrFinalized
	}
	e.Prepare()
	e.finalized = true

	rows, err := e.adapter.Make(ctx, &e.state)
	if err != nil {
		return nil, err
	}

	data, err := e.render(rows)
	if err != nil {
		return nil, err
	}

	total, err := e.adapter.TotalCount(ctx)
	if err != nil {
		return nil, err
	}

	filtered, err := e.adapter.Count(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Grid page assembled",
		"format", e.state.Format,
		"rows", len(data),
		"total", total,
		"filtered", filtered,
	)

	return &Response{
		Format:     e.state.Format,
		Echo:       e.state.Echo,
		Total:      total,
		Filtered:   filtered,
		Data:       data,
		Additional: e.additional,
	}, nil
}
