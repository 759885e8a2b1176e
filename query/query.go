// Package query implements the DataTables engine over a SQL SELECT built with
// sqlbuilder.
//
// The builder handed to New is cloned; the engine never mutates it. Every
// stage (total count, filtered count, page) works on its own clone, so the
// engine can still produce alternate views after counting.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugr-lab/datatable-go/engine"
	"github.com/hugr-lab/datatable-go/sqlbuilder"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Engine serves grid pages from a SQL query.
type Engine struct {
	*engine.Engine

	builder  *sqlbuilder.Builder
	original *sqlbuilder.Builder
	encoder  *sqlexpr.Encoder
	opts     Options

	counter int64
	counted bool

	rows    []map[string]any
	fetched bool
}

// New creates a query engine for builder.
func New(builder *sqlbuilder.Builder, params engine.Params, opts engine.Options) *Engine {
	q := &Engine{
		builder:  builder.Clone(),
		original: builder.Clone(),
		encoder:  sqlexpr.NewEncoder(builder.Dialect(), nil),
		opts:     DefaultOptions(),
	}
	q.Engine = engine.New(q, params, opts)
	return q
}

// SetEncoderOptions registers trusted SQL expressions and column mappings
// used when search, order and column-search field specs are turned into SQL.
func (q *Engine) SetEncoderOptions(opts *sqlexpr.EncoderOptions) *Engine {
	q.encoder = sqlexpr.NewEncoder(q.builder.Dialect(), opts)
	return q
}

// Builder returns the working builder. Conditions added to it narrow the
// filtered count and the rows, but not the total count.
func (q *Engine) Builder() *sqlbuilder.Builder {
	return q.builder
}

// Reset discards changes made to the working builder and cached rows.
func (q *Engine) Reset() *Engine {
	q.builder = q.original.Clone()
	q.rows, q.fetched = nil, false
	return q
}

// TotalCount returns the number of rows of the unfiltered source query.
func (q *Engine) TotalCount(ctx context.Context) (int64, error) {
	b := q.original.Clone()

	if q.opts.DistinctCountGroup {
		if groups := b.Groups(); len(groups) == 1 {
			return b.CountDistinct(ctx, groups[0])
		}
	}

	if q.opts.SearchWithAlias {
		rows, err := b.Get(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(rows)), nil
	}

	if q.opts.NoGroupByOnCount {
		b.ClearGroups()
	}
	return b.Count(ctx)
}

// Count returns the filtered row count. Output computes it while building the
// page; called on its own it prepares the engine and runs the count.
func (q *Engine) Count(ctx context.Context) (int64, error) {
	if q.counted {
		return q.counter, nil
	}

	q.Prepare()
	b := q.builder.Clone()
	if err := q.applySearch(b, q.State()); err != nil {
		return 0, err
	}
	n, err := q.countFiltered(ctx, b)
	if err != nil {
		return 0, err
	}
	q.counter, q.counted = n, true
	return n, nil
}

// Make implements engine.Adapter.
func (q *Engine) Make(ctx context.Context, s *engine.State) ([]any, error) {
	if q.opts.ReturnQuery {
		return nil, fmt.Errorf("%w: returnQuery is set, use QueryBuilder", engine.ErrUsage)
	}

	b, err := q.build(ctx, s)
	if err != nil {
		return nil, err
	}

	rows, err := q.fetch(ctx, b, s)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

// QueryBuilder prepares the engine and returns the searched and ordered
// builder without executing it. The filtered count is computed on the way.
// With QueryKeepsLimits, skip and take are applied too.
func (q *Engine) QueryBuilder(ctx context.Context) (*sqlbuilder.Builder, error) {
	q.Prepare()
	q.opts.ReturnQuery = true

	s := q.State()
	b, err := q.build(ctx, s)
	if err != nil {
		return nil, err
	}
	if q.opts.QueryKeepsLimits {
		b.Skip(s.Skip).Take(s.Limit)
	}
	return b, nil
}

// Array returns the raw rows of the working builder, paged by the current
// state. Rows already fetched by Output are returned from cache.
func (q *Engine) Array(ctx context.Context) ([]map[string]any, error) {
	return q.fetch(ctx, q.builder.Clone(), q.State())
}

// build clones the working builder twice, applies search to both, counts the
// filtered clone and orders the row clone.
func (q *Engine) build(ctx context.Context, s *engine.State) (*sqlbuilder.Builder, error) {
	rows := q.builder.Clone()
	count := q.builder.Clone()

	if err := q.applySearch(rows, s); err != nil {
		return nil, err
	}
	if err := q.applySearch(count, s); err != nil {
		return nil, err
	}

	n, err := q.countFiltered(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("failed to count filtered rows: %w", err)
	}
	q.counter, q.counted = n, true

	if err := q.applyOrder(rows, s); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *Engine) fetch(ctx context.Context, b *sqlbuilder.Builder, s *engine.State) ([]map[string]any, error) {
	if q.fetched {
		return q.rows, nil
	}

	if s.Skip > 0 {
		b.Skip(s.Skip)
	}
	if s.Limit > 0 {
		b.Take(s.Limit)
	}

	rows, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	q.rows, q.fetched = rows, true
	return rows, nil
}

func (q *Engine) countFiltered(ctx context.Context, b *sqlbuilder.Builder) (int64, error) {
	if q.opts.DistinctCountGroup {
		if groups := b.Groups(); len(groups) == 1 {
			return b.CountDistinct(ctx, groups[0])
		}
	}

	if q.opts.SearchWithAlias {
		rows, err := b.Get(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(rows)), nil
	}

	if q.opts.NoGroupByOnCount {
		b.ClearGroups()
	}
	return b.Count(ctx)
}

func (q *Engine) searchOperator() (string, error) {
	op := strings.ToUpper(strings.TrimSpace(q.opts.SearchOperator))
	if !sqlbuilder.ValidOperator(op) {
		return "", fmt.Errorf("%w: search operator %q", engine.ErrInvalidArgument, q.opts.SearchOperator)
	}
	return op, nil
}

// searchExpr renders a search field for pattern matching. Fields without an
// explicit cast go through the dialect's text conversion, so numeric and
// temporal columns can be searched like text.
func (q *Engine) searchExpr(b *sqlbuilder.Builder, spec sqlexpr.FieldSpec) (string, error) {
	expr, err := q.encoder.Field(spec)
	if err != nil {
		return "", err
	}
	if spec.HasCast() {
		return expr, nil
	}
	return b.Dialect().SearchText(expr), nil
}

// applySearch adds the global search as one OR group over the search columns
// and each per-column search as an AND condition.
func (q *Engine) applySearch(b *sqlbuilder.Builder, s *engine.State) error {
	if s.Search == "" && len(s.ColumnSearches) == 0 {
		return nil
	}

	op, err := q.searchOperator()
	if err != nil {
		return err
	}

	if s.Search != "" && len(s.SearchColumns) > 0 {
		value := "%" + s.Search + "%"
		if s.ExactWordSearch {
			value = s.Search
		}

		terms := make([]string, len(s.SearchColumns))
		for i, c := range s.SearchColumns {
			expr, err := q.searchExpr(b, sqlexpr.ParseFieldSpec(c))
			if err != nil {
				return fmt.Errorf("search column %q: %w", c, err)
			}
			terms[i] = expr
		}

		b.WhereGroup(func(g *sqlbuilder.Builder) {
			for _, expr := range terms {
				g.OrWhereRaw(expr+" "+op+" ?", value)
			}
		})
	}

	for _, cs := range s.ColumnSearches {
		spec := sqlexpr.ParseFieldSpec(cs.Field)
		if s.IsExactMatch(cs.Field) || s.IsExactMatch(spec.Name()) {
			expr, err := q.encoder.Field(spec)
			if err != nil {
				return fmt.Errorf("search column %q: %w", cs.Field, err)
			}
			b.WhereRaw(expr+" = ?", cs.Value)
		} else {
			expr, err := q.searchExpr(b, spec)
			if err != nil {
				return fmt.Errorf("search column %q: %w", cs.Field, err)
			}
			b.WhereRaw(expr+" "+op+" ?", "%"+cs.Value+"%")
		}
	}
	return nil
}

// applyOrder adds one ORDER BY fragment per sort key.
func (q *Engine) applyOrder(b *sqlbuilder.Builder, s *engine.State) error {
	for _, k := range s.Sort {
		frag, err := q.encoder.Order(sqlexpr.ParseFieldSpec(k.Field), string(s.Direction(k)), q.opts.EmptyAtEnd)
		if err != nil {
			return fmt.Errorf("order column %q: %w", k.Field, err)
		}
		b.OrderByRaw(frag)
	}
	return nil
}
