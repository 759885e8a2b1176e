// Package sqlbuilder provides a small, cloneable SELECT builder on top of
// database/sql. It covers what a paged grid needs: WHERE conditions with
// OR-groups, raw ORDER BY fragments, GROUP BY, OFFSET/LIMIT, COUNT and row
// materialization.
//
// Builders are not goroutine-safe. Clone before mutating a builder that is
// shared with other code paths:
//
//	base := sqlbuilder.New(db, sqlexpr.DuckDB).From("users")
//	page := base.Clone().Where("active", "=", true).Take(10)
//	rows, err := page.Get(ctx)
package sqlbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Queryer executes queries. *sql.DB, *sql.Tx and *sql.Conn implement it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Condition is one WHERE term. Exactly one of Raw or Group is set.
type Condition struct {
	// Raw is a SQL fragment with '?' bind markers.
	Raw  string
	Args []any

	// Group holds nested conditions rendered in parentheses.
	Group []Condition

	// Or joins this condition to the previous one with OR instead of AND.
	Or bool
}

// Builder builds a single SELECT statement.
// Not thread-safe.
type Builder struct {
	db      Queryer
	dialect sqlexpr.Dialect
	logger  *slog.Logger

	from    string
	columns []string
	wheres  []Condition
	groups  []string
	orders  []string
	offset  int
	limit   int

	err error
}

// New creates an empty builder bound to db. If dialect is nil, DuckDB is used.
func New(db Queryer, dialect sqlexpr.Dialect) *Builder {
	if dialect == nil {
		dialect = sqlexpr.DuckDB
	}
	return &Builder{
		db:      db,
		dialect: dialect,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger used for statement debug output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Dialect returns the builder dialect.
func (b *Builder) Dialect() sqlexpr.Dialect {
	return b.dialect
}

// From sets the source table. The name is quoted.
func (b *Builder) From(table string) *Builder {
	b.from = b.dialect.QuoteIdentifier(table)
	return b
}

// FromRaw sets the FROM clause verbatim (joins, table functions, subqueries).
// Never pass request data here.
func (b *Builder) FromRaw(from string) *Builder {
	b.from = from
	return b
}

// Select adds quoted result columns.
func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		b.columns = append(b.columns, b.dialect.QuoteIdentifier(c))
	}
	return b
}

// SelectRaw adds a verbatim result expression (e.g. "count(*) AS total").
func (b *Builder) SelectRaw(expr string) *Builder {
	b.columns = append(b.columns, expr)
	return b
}

// Where adds an AND condition "column op ?".
func (b *Builder) Where(column, op string, value any) *Builder {
	return b.addComparison(column, op, value, false)
}

// OrWhere adds an OR condition "column op ?".
func (b *Builder) OrWhere(column, op string, value any) *Builder {
	return b.addComparison(column, op, value, true)
}

// WhereRaw adds an AND condition from a SQL fragment with '?' markers.
func (b *Builder) WhereRaw(raw string, args ...any) *Builder {
	b.wheres = append(b.wheres, Condition{Raw: raw, Args: args})
	return b
}

// OrWhereRaw adds an OR condition from a SQL fragment with '?' markers.
func (b *Builder) OrWhereRaw(raw string, args ...any) *Builder {
	b.wheres = append(b.wheres, Condition{Raw: raw, Args: args, Or: true})
	return b
}

// WhereGroup adds a parenthesized AND group. fn receives a scratch builder;
// only its conditions are kept.
func (b *Builder) WhereGroup(fn func(g *Builder)) *Builder {
	g := New(nil, b.dialect)
	fn(g)
	if g.err != nil && b.err == nil {
		b.err = g.err
	}
	if len(g.wheres) > 0 {
		b.wheres = append(b.wheres, Condition{Group: g.wheres})
	}
	return b
}

func (b *Builder) addComparison(column, op string, value any, or bool) *Builder {
	op = strings.ToUpper(strings.TrimSpace(op))
	if !ValidOperator(op) {
		if b.err == nil {
			b.err = fmt.Errorf("unsupported operator %q", op)
		}
		return b
	}
	b.wheres = append(b.wheres, Condition{
		Raw:  b.dialect.QuoteIdentifier(column) + " " + op + " ?",
		Args: []any{value},
		Or:   or,
	})
	return b
}

// GroupBy adds quoted GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groups = append(b.groups, columns...)
	return b
}

// Groups returns the GROUP BY columns (unquoted).
func (b *Builder) Groups() []string {
	return b.groups
}

// ClearGroups removes the GROUP BY clause.
func (b *Builder) ClearGroups() *Builder {
	b.groups = nil
	return b
}

// OrderBy adds "column ASC|DESC".
func (b *Builder) OrderBy(column, direction string) *Builder {
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	b.orders = append(b.orders, b.dialect.QuoteIdentifier(column)+" "+dir)
	return b
}

// OrderByRaw adds a verbatim ORDER BY fragment.
func (b *Builder) OrderByRaw(fragment string) *Builder {
	b.orders = append(b.orders, fragment)
	return b
}

// Skip sets OFFSET. Values <= 0 remove it.
func (b *Builder) Skip(n int) *Builder {
	b.offset = max(n, 0)
	return b
}

// Take sets LIMIT. Values <= 0 remove it.
func (b *Builder) Take(n int) *Builder {
	b.limit = max(n, 0)
	return b
}

// Offset returns the current OFFSET (0 = none).
func (b *Builder) Offset() int { return b.offset }

// Limit returns the current LIMIT (0 = none).
func (b *Builder) Limit() int { return b.limit }

// Err returns the first construction error, if any.
func (b *Builder) Err() error { return b.err }

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := *b
	c.columns = append([]string(nil), b.columns...)
	c.wheres = cloneConditions(b.wheres)
	c.groups = append([]string(nil), b.groups...)
	c.orders = append([]string(nil), b.orders...)
	return &c
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		out[i] = c
		out[i].Args = append([]any(nil), c.Args...)
		out[i].Group = cloneConditions(c.Group)
	}
	return out
}

// ValidOperator reports whether op is an allowed comparison operator.
func ValidOperator(op string) bool {
	switch strings.ToUpper(strings.TrimSpace(op)) {
	case "=", "<>", "!=", "<", ">", "<=", ">=", "LIKE", "NOT LIKE", "ILIKE", "NOT ILIKE":
		return true
	}
	return false
}
