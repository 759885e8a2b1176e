package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hugr-lab/datatable-go/engine"
	"github.com/hugr-lab/datatable-go/sqlbuilder"
)

// Options tunes how the query engine searches, counts and returns results.
type Options struct {
	// SearchOperator is the comparison used for search terms.
	// Default: LIKE. Must be one of sqlbuilder.ValidOperator.
	SearchOperator string

	// SearchWithAlias counts by materializing rows instead of COUNT(*).
	// Use when the SELECT carries aliases referenced by search columns.
	SearchWithAlias bool

	// OrderOrder is accepted for compatibility and has no effect.
	OrderOrder any

	// NoGroupByOnCount strips GROUP BY before counting.
	NoGroupByOnCount bool

	// DistinctCountGroup counts a single-column GROUP BY as
	// COUNT(DISTINCT column).
	DistinctCountGroup bool

	// EmptyAtEnd sorts NULL values last regardless of direction.
	EmptyAtEnd bool

	// ReturnQuery makes the engine hand out the built query instead of rows.
	// See Engine.QueryBuilder.
	ReturnQuery bool

	// QueryKeepsLimits applies skip/take to the query returned by QueryBuilder.
	QueryKeepsLimits bool
}

// DefaultOptions returns the options a new engine starts with.
func DefaultOptions() Options {
	return Options{SearchOperator: "LIKE"}
}

// SetOptions sets options by their classic key names:
// searchOperator, searchWithAlias, orderOrder, counter, noGroupByOnCount,
// distinctCountGroup, emptyAtEnd, returnQuery, queryKeepsLimits.
//
// Unknown keys return engine.ErrInvalidArgument and no option is changed.
// Boolean options coerce their values: nil, false, numeric zero, "", "0" and
// "false" are false; anything else is true.
func (q *Engine) SetOptions(options map[string]any) error {
	next := q.opts
	counter, setCounter := q.counter, false

	for key, val := range options {
		switch key {
		case "searchOperator":
			op := strings.ToUpper(strings.TrimSpace(fmt.Sprint(val)))
			if !sqlbuilder.ValidOperator(op) {
				return fmt.Errorf("%w: search operator %q", engine.ErrInvalidArgument, val)
			}
			next.SearchOperator = op
		case "searchWithAlias":
			next.SearchWithAlias = truthy(val)
		case "orderOrder":
			next.OrderOrder = val
		case "counter":
			n, err := toInt64(val)
			if err != nil {
				return fmt.Errorf("%w: counter: %v", engine.ErrInvalidArgument, err)
			}
			counter, setCounter = n, true
		case "noGroupByOnCount":
			next.NoGroupByOnCount = truthy(val)
		case "distinctCountGroup":
			next.DistinctCountGroup = truthy(val)
		case "emptyAtEnd":
			next.EmptyAtEnd = truthy(val)
		case "returnQuery":
			next.ReturnQuery = truthy(val)
		case "queryKeepsLimits":
			next.QueryKeepsLimits = truthy(val)
		default:
			return fmt.Errorf("%w: the option %s is not valid", engine.ErrInvalidArgument, key)
		}
	}

	q.opts = next
	if setCounter {
		q.counter, q.counted = counter, true
	}
	return nil
}

// Options returns the current options.
func (q *Engine) Options() Options {
	return q.opts
}

// SetSearchOperator sets the search comparison operator. An unsupported
// operator makes Output fail with engine.ErrInvalidArgument.
func (q *Engine) SetSearchOperator(op string) *Engine {
	q.opts.SearchOperator = strings.ToUpper(strings.TrimSpace(op))
	return q
}

// SetSearchWithAlias toggles counting through materialized rows.
func (q *Engine) SetSearchWithAlias(v bool) *Engine {
	q.opts.SearchWithAlias = v
	return q
}

// SetEmptyAtEnd toggles NULLs-last ordering.
func (q *Engine) SetEmptyAtEnd(v bool) *Engine {
	q.opts.EmptyAtEnd = v
	return q
}

// SetNoGroupByOnCount toggles stripping GROUP BY for counts.
func (q *Engine) SetNoGroupByOnCount(v bool) *Engine {
	q.opts.NoGroupByOnCount = v
	return q
}

// SetDistinctCountGroup toggles COUNT(DISTINCT group) counting.
func (q *Engine) SetDistinctCountGroup(v bool) *Engine {
	q.opts.DistinctCountGroup = v
	return q
}

// SetReturnQuery toggles returning the built query instead of rows.
func (q *Engine) SetReturnQuery(v bool) *Engine {
	q.opts.ReturnQuery = v
	return q
}

// SetQueryKeepsLimits toggles applying skip/take to the returned query.
func (q *Engine) SetQueryKeepsLimits(v bool) *Engine {
	q.opts.QueryKeepsLimits = v
	return q
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false":
			return false
		}
		return true
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}
