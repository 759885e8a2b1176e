package sqlbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Count returns the number of rows (or groups) the query selects,
// ignoring ORDER BY and limits.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	query, args, err := b.CountSQL()
	if err != nil {
		return 0, err
	}
	return b.scalar(ctx, query, args)
}

// CountDistinct returns COUNT(DISTINCT column) over the filtered source.
func (b *Builder) CountDistinct(ctx context.Context, column string) (int64, error) {
	query, args, err := b.CountDistinctSQL(column)
	if err != nil {
		return 0, err
	}
	return b.scalar(ctx, query, args)
}

func (b *Builder) scalar(ctx context.Context, query string, args []any) (int64, error) {
	rows, err := b.query(ctx, query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return n.Int64, nil
}

// Get executes the query and returns every row as a column->value map.
// Text returned as []byte by the driver is converted to string; binary
// columns (BLOB, geometry) keep their bytes.
func (b *Builder) Get(ctx context.Context) ([]map[string]any, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := b.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	names := make([]string, len(types))
	binary := make([]bool, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		binary[i] = isBinaryType(ct.DatabaseTypeName())
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(names))
		for i, name := range names {
			v := values[i]
			if raw, ok := v.([]byte); ok && !binary[i] {
				v = string(raw)
			}
			row[name] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return result, nil
}

// First executes the query with LIMIT 1. Returns (nil, nil) when no row matches.
func (b *Builder) First(ctx context.Context) (map[string]any, error) {
	rows, err := b.Clone().Take(1).Get(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (b *Builder) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	if b.db == nil {
		return nil, fmt.Errorf("builder has no database")
	}

	b.logger.Debug("Executing grid query",
		"dialect", b.dialect.Name(),
		"sql", query,
		"args", len(args),
	)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

func isBinaryType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.Contains(t, "BLOB") ||
		strings.Contains(t, "BINARY") ||
		strings.Contains(t, "BYTEA") ||
		strings.Contains(t, "GEOMETRY") ||
		strings.Contains(t, "WKB")
}
