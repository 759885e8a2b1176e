package engine

import (
	"strings"

	"github.com/hugr-lab/datatable-go/column"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns Desc for "desc" (any case) and Asc for everything else.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// OutputFormat selects the response payload shape.
type OutputFormat string

// Output formats.
const (
	// Legacy is the 1.9 shape: aaData, sEcho, iTotalRecords, iTotalDisplayRecords.
	Legacy OutputFormat = "legacy"
	// Modern is the 1.10+ shape: draw, recordsTotal, recordsFiltered, data.
	Modern OutputFormat = "modern"
)

// SortKey is one entry of the sort specification.
type SortKey struct {
	// Index is the requested column position.
	Index int
	// Field is the resolved field spec, possibly with a cast suffix.
	Field string
}

// ColumnSearch is a per-column filter.
type ColumnSearch struct {
	Field string
	Value string
}

// State is everything an adapter needs to produce one page.
// Adapters must treat it as read-only.
type State struct {
	Columns       *column.Set
	SearchColumns []string
	OrderColumns  []string
	ShowColumns   []string

	// Skip is the row offset. Limit is the page size, 0 means no limit.
	Skip  int
	Limit int

	// Search is the global free-text search. Empty means no search.
	Search         string
	ColumnSearches []ColumnSearch
	// ExactMatch lists fields whose per-column search uses equality.
	ExactMatch map[string]bool

	Sort       []SortKey
	Directions map[int]Direction

	Echo            int
	Format          OutputFormat
	AliasMapping    bool
	ExactWordSearch bool
	DisplayAll      bool
}

// Direction returns the direction requested for a sort key.
func (s *State) Direction(k SortKey) Direction {
	if d, ok := s.Directions[k.Index]; ok {
		return d
	}
	return Asc
}

// IsExactMatch reports whether per-column search on field uses equality.
func (s *State) IsExactMatch(field string) bool {
	return s.ExactMatch[field]
}
