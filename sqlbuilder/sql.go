package sqlbuilder

import (
	"fmt"
	"strconv"
	"strings"
)

type renderMode int

const (
	// rows: GROUP BY, ORDER BY and limits.
	modeRows renderMode = iota
	// subquery for counting grouped results: GROUP BY only.
	modeGrouped
	// plain aggregate over the filtered source.
	modeAggregate
)

// ToSQL renders the full statement and its bind arguments.
func (b *Builder) ToSQL() (string, []any, error) {
	return b.renderSelect(b.selectList(), modeRows)
}

// CountSQL renders the statement used by Count. Grouped queries are counted
// through a subquery so that each group counts once.
func (b *Builder) CountSQL() (string, []any, error) {
	if len(b.groups) == 0 {
		return b.renderSelect("COUNT(*)", modeAggregate)
	}
	inner, args, err := b.renderSelect(b.selectList(), modeGrouped)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM (" + inner + ") AS aggregate_table", args, nil
}

// CountDistinctSQL renders "SELECT COUNT(DISTINCT column)" over the filtered
// source, ignoring GROUP BY.
func (b *Builder) CountDistinctSQL(column string) (string, []any, error) {
	return b.renderSelect("COUNT(DISTINCT "+b.dialect.QuoteIdentifier(column)+")", modeAggregate)
}

func (b *Builder) selectList() string {
	if len(b.columns) == 0 {
		return "*"
	}
	return strings.Join(b.columns, ", ")
}

func (b *Builder) renderSelect(selectList string, mode renderMode) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.from == "" {
		return "", nil, fmt.Errorf("query has no FROM clause")
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)

	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE ")
		writeConditions(&sb, b.wheres, &args)
	}

	if mode != modeAggregate && len(b.groups) > 0 {
		quoted := make([]string, len(b.groups))
		for i, g := range b.groups {
			quoted[i] = b.dialect.QuoteIdentifier(g)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(quoted, ", "))
	}

	if mode == modeRows {
		if len(b.orders) > 0 {
			sb.WriteString(" ORDER BY ")
			sb.WriteString(strings.Join(b.orders, ", "))
		}
		b.writeLimits(&sb)
	}

	return b.rebind(sb.String()), args, nil
}

func (b *Builder) writeLimits(sb *strings.Builder) {
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	} else if b.offset > 0 {
		// MySQL and SQLite reject OFFSET without LIMIT.
		switch b.dialect.Name() {
		case "mysql":
			sb.WriteString(" LIMIT 18446744073709551615")
		case "sqlite":
			sb.WriteString(" LIMIT -1")
		}
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}
}

func writeConditions(sb *strings.Builder, conds []Condition, args *[]any) {
	for i, c := range conds {
		if i > 0 {
			if c.Or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		if c.Group != nil {
			sb.WriteString("(")
			writeConditions(sb, c.Group, args)
			sb.WriteString(")")
			continue
		}
		sb.WriteString(c.Raw)
		*args = append(*args, c.Args...)
	}
}

// rebind replaces '?' markers outside quoted text with dialect placeholders.
func (b *Builder) rebind(query string) string {
	if b.dialect.Placeholder(1) == "?" {
		return query
	}

	var sb strings.Builder
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			n++
			sb.WriteString(b.dialect.Placeholder(n))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
