// Package collection implements the DataTables engine over rows held in
// memory: maps, structs, or the contents of an Arrow record reader.
//
// Search is a case-insensitive substring match (equality with exact word
// search). Sorting is stable. Paging slices the sorted rows.
package collection

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hugr-lab/datatable-go/column"
	"github.com/hugr-lab/datatable-go/engine"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Engine serves grid pages from an in-memory row slice.
type Engine struct {
	*engine.Engine

	source     []any
	emptyAtEnd bool

	filtered []any
	counted  bool
}

// New creates an engine over rows. The slice is not modified.
func New(rows []any, params engine.Params, opts engine.Options) *Engine {
	c := &Engine{source: rows}
	c.Engine = engine.New(c, params, opts)
	return c
}

// FromMaps creates an engine over map rows.
func FromMaps(rows []map[string]any, params engine.Params, opts engine.Options) *Engine {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return New(out, params, opts)
}

// FromSlice creates an engine over any row type column.Value understands,
// typically structs or pointers to structs.
func FromSlice[T any](rows []T, params engine.Params, opts engine.Options) *Engine {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return New(out, params, opts)
}

// SetEmptyAtEnd sorts nil values last regardless of direction.
func (c *Engine) SetEmptyAtEnd(v bool) *Engine {
	c.emptyAtEnd = v
	return c
}

// TotalCount returns the number of source rows.
func (c *Engine) TotalCount(context.Context) (int64, error) {
	return int64(len(c.source)), nil
}

// Count returns the number of rows matching the search.
func (c *Engine) Count(context.Context) (int64, error) {
	if !c.counted {
		c.Prepare()
		c.filtered = c.filter(c.State())
		c.counted = true
	}
	return int64(len(c.filtered)), nil
}

// Make implements engine.Adapter.
func (c *Engine) Make(ctx context.Context, s *engine.State) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.filtered = c.filter(s)
	c.counted = true

	rows := append([]any(nil), c.filtered...)
	c.sort(rows, s)

	return page(rows, s.Skip, s.Limit), nil
}

func page(rows []any, skip, limit int) []any {
	if skip >= len(rows) {
		return []any{}
	}
	rows = rows[skip:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (c *Engine) filter(s *engine.State) []any {
	if s.Search == "" && len(s.ColumnSearches) == 0 {
		return c.source
	}

	search := strings.ToLower(s.Search)
	if len(s.SearchColumns) == 0 {
		// Nothing to search in: the global search filters nothing.
		search = ""
	}
	out := make([]any, 0, len(c.source))

	for _, row := range c.source {
		if search != "" && !matchesAny(row, s.SearchColumns, search, s.ExactWordSearch) {
			continue
		}
		if !matchesColumns(row, s) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// matchesAny is the OR part: the global search hits any search column.
func matchesAny(row any, fields []string, search string, exact bool) bool {
	for _, f := range fields {
		text, ok := textValue(row, sqlexpr.StripCast(f))
		if !ok {
			continue
		}
		text = strings.ToLower(text)
		if exact && text == search || !exact && strings.Contains(text, search) {
			return true
		}
	}
	return false
}

// matchesColumns is the AND part: every per-column search must hit.
func matchesColumns(row any, s *engine.State) bool {
	for _, cs := range s.ColumnSearches {
		name := sqlexpr.StripCast(cs.Field)
		text, ok := textValue(row, name)
		if !ok {
			return false
		}
		if s.IsExactMatch(cs.Field) || s.IsExactMatch(name) {
			if text != cs.Value {
				return false
			}
			continue
		}
		if !strings.Contains(strings.ToLower(text), strings.ToLower(cs.Value)) {
			return false
		}
	}
	return true
}

func textValue(row any, name string) (string, bool) {
	v, ok := column.Value(row, name)
	if !ok || v == nil {
		return "", false
	}
	return stringify(v), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.DateTime)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

type sortKey struct {
	name    string
	numeric bool
	desc    bool
}

func (c *Engine) sort(rows []any, s *engine.State) {
	if len(s.Sort) == 0 {
		return
	}

	keys := make([]sortKey, len(s.Sort))
	for i, k := range s.Sort {
		spec := sqlexpr.ParseFieldSpec(k.Field)
		keys[i] = sortKey{
			name:    spec.Name(),
			numeric: spec.HasCast() && sqlexpr.IsNumericCast(spec.CastType),
			desc:    s.Direction(k) == engine.Desc,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, _ := column.Value(rows[i], k.name)
			b, _ := column.Value(rows[j], k.name)

			if cmp := c.compareNil(a, b, k.desc); cmp != 0 {
				return cmp < 0
			}
			if a == nil || b == nil {
				continue
			}

			cmp := compare(a, b, k.numeric)
			if k.desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

// compareNil orders nil against non-nil. Nil sorts first ascending and last
// descending, or always last with emptyAtEnd. The result is final (already
// direction-adjusted); 0 means both or neither are nil.
func (c *Engine) compareNil(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil, a != nil && b != nil:
		return 0
	case c.emptyAtEnd:
		if a == nil {
			return 1
		}
		return -1
	}
	cmp := -1
	if b == nil {
		cmp = 1
	}
	if desc {
		cmp = -cmp
	}
	return cmp
}

func compare(a, b any, numeric bool) int {
	if fa, ok := toFloat(a, numeric); ok {
		if fb, ok := toFloat(b, numeric); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	return strings.Compare(stringify(a), stringify(b))
}

// toFloat converts numbers, and numeric strings when parseStrings is set.
func toFloat(v any, parseStrings bool) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		if !parseStrings {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
