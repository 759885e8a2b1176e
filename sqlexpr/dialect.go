package sqlexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect describes the syntax differences between the SQL backends the
// query builder can target.
type Dialect interface {
	// Name returns the dialect identifier ("duckdb", "sqlite", "postgres", "mysql").
	Name() string

	// QuoteIdentifier quotes a possibly qualified identifier (schema.table.column).
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// IsNull returns a boolean expression that is true when expr is NULL.
	IsNull(expr string) string

	// SearchText returns expr as a text operand for LIKE-style matching.
	SearchText(expr string) string
}

type dialect struct {
	name       string
	quote      byte
	numbered   bool
	isNull     func(expr string) string
	searchText func(expr string) string
}

func (d *dialect) Name() string { return d.name }

func (d *dialect) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdentifier(p, d.quote)
	}
	return strings.Join(parts, ".")
}

func (d *dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d *dialect) IsNull(expr string) string {
	return d.isNull(expr)
}

func (d *dialect) SearchText(expr string) string {
	if d.searchText == nil {
		return expr
	}
	return d.searchText(expr)
}

func isNullPredicate(expr string) string {
	return "(" + expr + " IS NULL)"
}

// castVarchar is needed where LIKE is only defined for text operands.
func castVarchar(expr string) string {
	return "CAST(" + expr + " AS VARCHAR)"
}

// Supported dialects.
var (
	DuckDB Dialect = &dialect{name: "duckdb", quote: '"', isNull: isNullPredicate, searchText: castVarchar}

	SQLite Dialect = &dialect{name: "sqlite", quote: '"', isNull: isNullPredicate, searchText: castVarchar}

	Postgres Dialect = &dialect{name: "postgres", quote: '"', numbered: true, isNull: isNullPredicate, searchText: castVarchar}

	// MySQL keeps the ISNULL() function form used by legacy grid backends
	// and coerces LIKE operands itself.
	MySQL Dialect = &dialect{name: "mysql", quote: '`', isNull: func(expr string) string {
		return "ISNULL(" + expr + ")"
	}}
)

// DialectFor returns the dialect for a dialect or database/sql driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "duckdb":
		return DuckDB, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
}
