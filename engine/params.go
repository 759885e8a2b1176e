package engine

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hugr-lab/datatable-go/sqlexpr"
)

// Params is the flat inbound parameter map of a paging request, using the
// legacy (Hungarian notation) key names.
type Params map[string]string

// ParamsFromValues flattens url.Values, keeping the first value of each key.
// Modern request keys (draw, start, length, search[value], order[i][column],
// order[i][dir], columns[i][search][value]) are translated to their legacy
// names unless the legacy key is also present.
func ParamsFromValues(values url.Values) Params {
	p := make(Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	p.normalize()
	return p
}

// Get returns the value of key and whether it was present.
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

var (
	modernOrderKey  = regexp.MustCompile(`^order\[(\d+)\]\[(column|dir)\]$`)
	modernSearchKey = regexp.MustCompile(`^columns\[(\d+)\]\[search\]\[value\]$`)
)

func (p Params) normalize() {
	setDefault := func(key, value string) {
		if _, ok := p[key]; !ok {
			p[key] = value
		}
	}

	for modern, legacy := range map[string]string{
		"draw":          "sEcho",
		"start":         "iDisplayStart",
		"length":        "iDisplayLength",
		"search[value]": "sSearch",
	} {
		if v, ok := p[modern]; ok {
			setDefault(legacy, v)
		}
	}

	sortKeys := 0
	for k, v := range p {
		if m := modernOrderKey.FindStringSubmatch(k); m != nil {
			i, _ := strconv.Atoi(m[1])
			if m[2] == "column" {
				setDefault("iSortCol_"+m[1], v)
				sortKeys = max(sortKeys, i+1)
			} else {
				setDefault("sSortDir_"+m[1], v)
			}
			continue
		}
		if m := modernSearchKey.FindStringSubmatch(k); m != nil {
			setDefault("sSearch_"+m[1], v)
		}
	}
	if sortKeys > 0 {
		setDefault("iSortingCols", strconv.Itoa(sortKeys))
	}
}

// ShouldHandle reports whether params describe a paging request: sEcho (or
// its modern alias draw) is present and numeric.
func ShouldHandle(p Params) bool {
	v, ok := p["sEcho"]
	if !ok {
		v, ok = p["draw"]
	}
	if !ok {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil
}

type paramHandler func(e *Engine, value string)

// paramHandlers is the closed set of recognized parameters. Keys not listed
// here (and not sSearch_<N>) are ignored.
var paramHandlers = map[string]paramHandler{
	"sEcho":          (*Engine).handleEcho,
	"iDisplayStart":  (*Engine).handleDisplayStart,
	"iDisplayLength": (*Engine).handleDisplayLength,
	"sSearch":        (*Engine).handleSearch,
	"iSortCol_0":     (*Engine).handleSort,
}

const columnSearchPrefix = "sSearch_"

// interpret applies the request parameters to the engine state.
// Keys are visited in sorted order.
func (e *Engine) interpret() {
	keys := make([]string, 0, len(e.params))
	for k := range e.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := e.params[key]
		if idx, ok := strings.CutPrefix(key, columnSearchPrefix); ok {
			e.handleColumnSearch(idx, value)
			continue
		}
		if h, ok := paramHandlers[key]; ok {
			h(e, value)
		}
	}
}

func (e *Engine) handleEcho(value string) {
	n, err := parseNumber(value)
	if err != nil {
		e.logger.Debug("Ignoring non-numeric sEcho", "value", value)
		return
	}
	e.state.Echo = n
}

func (e *Engine) handleDisplayStart(value string) {
	n, err := parseNumber(value)
	if err != nil || n < 0 {
		e.logger.Debug("Ignoring invalid iDisplayStart", "value", value)
		return
	}
	e.state.Skip = n
}

func (e *Engine) handleDisplayLength(value string) {
	if n, err := parseNumber(value); err == nil {
		switch {
		case n > -1:
			e.state.Limit = n
			return
		case n == -1 && e.state.DisplayAll:
			e.state.Limit = 0
			return
		}
	}
	e.state.Limit = e.opts.DefaultDisplayLength
}

func (e *Engine) handleSearch(value string) {
	e.state.Search = value
}

// handleSort builds the sort specification from iSortCol_<i>/sSortDir_<i>
// for i < iSortingCols. Each requested column is resolved by name against
// the ordering allow-list (cast suffix ignored); unresolved keys are dropped.
// Without an allow-list the column name at the requested index is used.
func (e *Engine) handleSort(first string) {
	count := 1
	if v, ok := e.params["iSortingCols"]; ok {
		if n, err := parseNumber(v); err == nil && n > 1 {
			count = n
		}
	}

	directions := make(map[int]Direction, count)
	var keys []SortKey

	for i := 0; i < count; i++ {
		raw := first
		if i > 0 {
			raw = e.params["iSortCol_"+strconv.Itoa(i)]
		}
		idx, err := parseNumber(raw)
		if err != nil {
			e.logger.Debug("Dropping sort key with invalid column index", "key", i, "value", raw)
			continue
		}
		directions[idx] = ParseDirection(e.params["sSortDir_"+strconv.Itoa(i)])

		name := e.state.Columns.NameAt(idx)
		if name == "" {
			e.logger.Debug("Dropping sort key for unknown column", "index", idx)
			continue
		}

		if len(e.state.OrderColumns) == 0 {
			keys = append(keys, SortKey{Index: idx, Field: name})
			continue
		}

		field, ok := e.resolveOrderColumn(name)
		if !ok {
			e.logger.Debug("Dropping sort key not declared as ordering column",
				"index", idx,
				"column", name,
			)
			continue
		}
		keys = append(keys, SortKey{Index: idx, Field: field})
	}

	e.state.Sort = keys
	e.state.Directions = directions
}

func (e *Engine) resolveOrderColumn(name string) (string, bool) {
	for _, spec := range e.state.OrderColumns {
		if sqlexpr.StripCast(spec) == name {
			return spec, true
		}
	}
	return "", false
}

// handleColumnSearch maps sSearch_<N> through the search column list.
// An empty value is skipped; "0" is a real filter value.
func (e *Engine) handleColumnSearch(index, value string) {
	idx, err := strconv.Atoi(index)
	if err != nil || idx < 0 || idx >= len(e.state.SearchColumns) {
		return
	}
	if value == "" {
		return
	}
	e.state.ColumnSearches = append(e.state.ColumnSearches, ColumnSearch{
		Field: e.state.SearchColumns[idx],
		Value: value,
	})
}

// parseNumber accepts integers and integral decimals ("10", " 10 ", "10.0").
func parseNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
