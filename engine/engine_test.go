package engine

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/datatable-go/column"
)

// staticAdapter returns fixed rows and records the state it was given.
type staticAdapter struct {
	rows  []any
	state *State
	err   error
}

func (a *staticAdapter) Make(_ context.Context, s *State) ([]any, error) {
	a.state = s
	return a.rows, a.err
}

func (a *staticAdapter) TotalCount(context.Context) (int64, error) {
	return int64(len(a.rows)), nil
}

func (a *staticAdapter) Count(context.Context) (int64, error) {
	return int64(len(a.rows)), nil
}

func newEngine(params Params, rows ...any) (*Engine, *staticAdapter) {
	a := &staticAdapter{rows: rows}
	return New(a, params, Options{}), a
}

func TestDisplayLength(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		displayAll bool
		want       int
	}{
		{"positive", "25", false, 25},
		{"zero", "0", false, 0},
		{"display all enabled", "-1", true, 0},
		{"display all disabled", "-1", false, DefaultDisplayLength},
		{"non-numeric", "many", false, DefaultDisplayLength},
		{"other negative", "-5", true, DefaultDisplayLength},
		{"decimal", "15.0", false, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(Params{"iDisplayLength": tt.value})
			e.SetEnableDisplayAll(tt.displayAll)
			e.Prepare()
			if got := e.State().Limit; got != tt.want {
				t.Errorf("expected limit %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDisplayLengthUsesConfiguredDefault(t *testing.T) {
	e := New(&staticAdapter{}, Params{"iDisplayLength": "x"}, Options{DefaultDisplayLength: 50})
	e.Prepare()
	if e.State().Limit != 50 {
		t.Errorf("expected configured default 50, got %d", e.State().Limit)
	}
}

func TestPagingAndEcho(t *testing.T) {
	e, _ := newEngine(Params{"iDisplayStart": "20", "sEcho": "7", "sSearch": "bob", "ignored": "x"})
	e.Prepare()

	s := e.State()
	if s.Skip != 20 || s.Echo != 7 || s.Search != "bob" {
		t.Errorf("unexpected state: skip=%d echo=%d search=%q", s.Skip, s.Echo, s.Search)
	}

	e, _ = newEngine(Params{"iDisplayStart": "-3", "sEcho": "abc"})
	e.Prepare()
	if e.State().Skip != 0 || e.State().Echo != 0 {
		t.Errorf("invalid values must be ignored, got skip=%d echo=%d", e.State().Skip, e.State().Echo)
	}
}

func TestSortResolution(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		order    []string
		wantKeys []SortKey
		wantDirs map[int]Direction
	}{
		{
			name:     "single key resolved with cast",
			params:   Params{"iSortCol_0": "1", "sSortDir_0": "desc"},
			order:    []string{"id", "name:CHAR"},
			wantKeys: []SortKey{{Index: 1, Field: "name:CHAR"}},
			wantDirs: map[int]Direction{1: Desc},
		},
		{
			name: "multi key, undeclared dropped",
			params: Params{
				"iSortingCols": "3",
				"iSortCol_0":   "2",
				"sSortDir_0":   "asc",
				"iSortCol_1":   "1",
				"sSortDir_1":   "desc",
				"iSortCol_2":   "0",
				"sSortDir_2":   "sideways",
			},
			order:    []string{"id", "created_at"},
			wantKeys: []SortKey{{Index: 2, Field: "created_at"}, {Index: 0, Field: "id"}},
			wantDirs: map[int]Direction{2: Asc, 1: Desc, 0: Asc},
		},
		{
			name:     "no allow-list falls back to column name",
			params:   Params{"iSortingCols": "2", "iSortCol_0": "1", "iSortCol_1": "0", "sSortDir_1": "DESC"},
			wantKeys: []SortKey{{Index: 1, Field: "name"}, {Index: 0, Field: "id"}},
			wantDirs: map[int]Direction{1: Asc, 0: Desc},
		},
		{
			name:     "out of range index",
			params:   Params{"iSortCol_0": "9"},
			wantKeys: nil,
			wantDirs: map[int]Direction{9: Asc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(tt.params)
			e.ShowColumns("id", "name", "created_at").OrderColumns(tt.order...)
			e.Prepare()

			s := e.State()
			if len(s.Sort) != len(tt.wantKeys) {
				t.Fatalf("expected %d sort keys, got %v", len(tt.wantKeys), s.Sort)
			}
			for i, k := range tt.wantKeys {
				if s.Sort[i] != k {
					t.Errorf("key %d: expected %+v, got %+v", i, k, s.Sort[i])
				}
			}
			for idx, d := range tt.wantDirs {
				if s.Directions[idx] != d {
					t.Errorf("direction for %d: expected %s, got %s", idx, d, s.Directions[idx])
				}
			}
		})
	}
}

func TestColumnSearchParams(t *testing.T) {
	e, _ := newEngine(Params{
		"sSearch_0": "",
		"sSearch_1": "0",
		"sSearch_2": "x",
		"sSearch_9": "ignored",
		"sSearch_a": "ignored",
	})
	e.SearchColumns("id", "qty", "name")
	e.Prepare()

	got := e.State().ColumnSearches
	want := []ColumnSearch{{Field: "qty", Value: "0"}, {Field: "name", Value: "x"}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("search %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSearchColumnsDefaultToShowColumns(t *testing.T) {
	e, _ := newEngine(Params{"sSearch": "bo", "sSearch_1": "bob"})
	e.ShowColumns("id", "name")
	e.Prepare()

	if cols := e.SearchingColumns(); len(cols) != 2 || cols[1] != "name" {
		t.Fatalf("expected show columns as search columns, got %v", cols)
	}
	if e.State().Search != "bo" {
		t.Errorf("expected global search to be kept, got %q", e.State().Search)
	}
	// Per-column searches resolve only against declared search columns.
	if cs := e.State().ColumnSearches; len(cs) != 0 {
		t.Errorf("expected per-column search to be ignored, got %v", cs)
	}

	e, _ = newEngine(Params{"sSearch_1": "bob"})
	e.ShowColumns("id", "name").SearchColumns("id", "name")
	e.Prepare()
	if cs := e.State().ColumnSearches; len(cs) != 1 || cs[0].Field != "name" {
		t.Errorf("expected search on declared column name, got %v", cs)
	}
}

func TestAddColumn(t *testing.T) {
	e, _ := newEngine(nil)

	if err := e.AddColumn(); !errors.Is(err, ErrUsage) {
		t.Errorf("expected ErrUsage for no args, got %v", err)
	}
	if err := e.AddColumn("a", "b", "c"); !errors.Is(err, ErrUsage) {
		t.Errorf("expected ErrUsage for three args, got %v", err)
	}
	if err := e.AddColumn("not a column"); !errors.Is(err, ErrUsage) {
		t.Errorf("expected ErrUsage for bad single arg, got %v", err)
	}

	mustAdd := func(args ...any) {
		t.Helper()
		if err := e.AddColumn(args...); err != nil {
			t.Fatalf("AddColumn failed: %v", err)
		}
	}
	mustAdd(column.NewText("fixed", "x"))
	mustAdd("fn", func(row any) (any, error) { return "f", nil })
	mustAdd("simple", func(row any) any { return "s" })
	mustAdd("text", "t")
	mustAdd("number", 42)

	want := []string{"fixed", "fn", "simple", "text", "number"}
	got := e.ColumnOrder()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for name, expected := range map[string]any{"fn": "f", "simple": "s", "text": "t", "number": "42"} {
		v, err := e.GetColumn(name).Run(nil)
		if err != nil || v != expected {
			t.Errorf("%s: expected %v, got %v (%v)", name, expected, v, err)
		}
	}
	if e.NameByIndex(1) != "fn" || e.NameByIndex(10) != "" {
		t.Error("NameByIndex mismatch")
	}

	e.ClearColumns()
	if len(e.ColumnOrder()) != 0 {
		t.Error("ClearColumns left columns")
	}
}

func TestSetOutputFormat(t *testing.T) {
	e, _ := newEngine(nil)
	if err := e.SetOutputFormat("modern"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SetOutputFormat("xml"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if e.State().Format != Modern {
		t.Errorf("invalid format must not change the state, got %s", e.State().Format)
	}
}

func TestOutputFinalizes(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(Params{"sEcho": "3"}, map[string]any{"id": 1})
	e.ShowColumns("id")

	resp, err := e.Output(ctx)
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if resp.Echo != 3 || resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !e.Finalized() {
		t.Error("engine must be finalized")
	}

	e.ShowColumns("name").SetAliasMapping(true)
	if len(e.ColumnOrder()) != 1 || e.AliasMapping() {
		t.Error("configuration after Output must be ignored")
	}

	if _, err := e.Output(ctx); !errors.Is(err, ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestOutputPropagatesFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	e, a := newEngine(nil, map[string]any{"id": 1})
	a.err = boom
	if _, err := e.Output(ctx); !errors.Is(err, boom) {
		t.Errorf("expected adapter error, got %v", err)
	}

	e, _ = newEngine(nil, map[string]any{"id": 1})
	e.AddFunc("bad", func(any) (any, error) { return nil, boom })
	if _, err := e.Output(ctx); !errors.Is(err, boom) {
		t.Errorf("expected column error, got %v", err)
	}

	e, _ = newEngine(nil, map[string]any{"id": 1})
	e.ShowColumns("id").SetRowClass(func(any) (any, error) { return nil, boom })
	if _, err := e.Output(ctx); !errors.Is(err, boom) {
		t.Errorf("expected row class error, got %v", err)
	}

	e, _ = newEngine(nil, map[string]any{"id": 1})
	e.ShowColumns("id").SetRowID(func(row any) (any, error) {
		return row.(map[string]any)["missing"].(string), nil
	})
	resp, err := e.Output(ctx)
	if err == nil || !strings.Contains(err.Error(), "row metadata panicked") {
		t.Errorf("expected a recovered row metadata panic, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected no response, got %+v", resp)
	}
}

func TestRowShapes(t *testing.T) {
	ctx := context.Background()
	rows := []any{map[string]any{"id": 1, "name": "B"}}

	tests := []struct {
		name  string
		setup func(e *Engine)
		want  string
	}{
		{"positional", func(e *Engine) {}, `[1,"B"]`},
		{"alias", func(e *Engine) { e.SetAliasMapping(true) }, `{"id":1,"name":"B"}`},
		{
			"metadata",
			func(e *Engine) {
				e.SetRowID(func(row any) (any, error) {
					v, _ := column.Value(row, "id")
					return v, nil
				})
				e.SetRowClass(func(any) (any, error) { return "odd", nil })
			},
			`{"DT_RowClass":"odd","DT_RowId":1,"0":1,"1":"B"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(nil, rows...)
			e.ShowColumns("id", "name")
			tt.setup(e)

			resp, err := e.Output(ctx)
			if err != nil {
				t.Fatalf("Output failed: %v", err)
			}
			got, err := json.Marshal(resp.Data[0])
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

type classProvider struct{}

func (classProvider) RowMetadata(row any) ([]Cell, error) {
	return []Cell{{Key: RowDataKey, Value: map[string]any{"pk": 1}}}, nil
}

func TestRowMetadataProvider(t *testing.T) {
	e, _ := newEngine(nil, map[string]any{"id": 1})
	e.ShowColumns("id").
		SetRowClass(func(any) (any, error) { return "ignored", nil }).
		SetRowMetadata(classProvider{})

	resp, err := e.Output(context.Background())
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	got, _ := json.Marshal(resp.Data[0])
	if string(got) != `{"DT_RowData":{"pk":1},"0":1}` {
		t.Errorf("unexpected row: %s", got)
	}
}

func TestAliasAndPositionalCarrySameValues(t *testing.T) {
	rows := []any{
		map[string]any{"id": 1, "name": "B"},
		map[string]any{"id": 2, "name": "A"},
	}

	render := func(alias bool) []Row {
		e, _ := newEngine(nil, rows...)
		e.ShowColumns("id", "name").SetAliasMapping(alias)
		resp, err := e.Output(context.Background())
		if err != nil {
			t.Fatalf("Output failed: %v", err)
		}
		return resp.Data
	}

	positional, named := render(false), render(true)
	for i := range positional {
		p, n := positional[i].Values(), named[i].Values()
		for j := range p {
			if p[j] != n[j] {
				t.Errorf("row %d col %d: %v != %v", i, j, p[j], n[j])
			}
		}
		if positional[i].Cells[1].Key != "1" || named[i].Cells[1].Key != "name" {
			t.Errorf("unexpected keys: %q / %q", positional[i].Cells[1].Key, named[i].Cells[1].Key)
		}
	}
}

func TestResponseFormats(t *testing.T) {
	data := []Row{{Cells: []Cell{{Key: "0", Value: 1}}}}

	tests := []struct {
		format OutputFormat
		want   string
	}{
		{Legacy, `{"aaData":[[1]],"sEcho":2,"iTotalRecords":10,"iTotalDisplayRecords":4,"aaAdditional":{"k":"v"}}`},
		{Modern, `{"draw":2,"recordsTotal":10,"recordsFiltered":4,"data":[[1]],"additional":{"k":"v"}}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			resp := &Response{
				Format: tt.format, Echo: 2, Total: 10, Filtered: 4,
				Data: data, Additional: map[string]string{"k": "v"},
			}
			got, err := json.Marshal(resp)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}

			m := resp.Map()
			rows, ok := m[resp.DataKey()].([]any)
			if !ok || len(rows) != 1 {
				t.Fatalf("expected one row under %s, got %v", resp.DataKey(), m)
			}
		})
	}

	empty, _ := json.Marshal(&Response{Format: Modern})
	if !strings.Contains(string(empty), `"data":[]`) {
		t.Errorf("empty data must encode as an array: %s", empty)
	}
}

func TestResponseMsgpack(t *testing.T) {
	resp := &Response{
		Format:   Modern,
		Echo:     1,
		Total:    2,
		Filtered: 1,
		Data: []Row{{
			Named: true,
			Cells: []Cell{{Key: "name", Value: "Bob"}},
		}},
	}

	b, err := msgpack.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := msgpack.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	rows, ok := decoded["data"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("unexpected data: %#v", decoded["data"])
	}
	row, ok := rows[0].(map[string]any)
	if !ok || row["name"] != "Bob" {
		t.Errorf("unexpected row: %#v", rows[0])
	}
}

func TestParamsFromValues(t *testing.T) {
	values := url.Values{
		"draw":                      {"4"},
		"start":                     {"10"},
		"length":                    {"5"},
		"search[value]":             {"al"},
		"order[0][column]":          {"1"},
		"order[0][dir]":             {"desc"},
		"order[1][column]":          {"0"},
		"columns[2][search][value]": {"x"},
		"sSearch":                   {"legacy wins"},
	}

	p := ParamsFromValues(values)
	want := map[string]string{
		"sEcho":          "4",
		"iDisplayStart":  "10",
		"iDisplayLength": "5",
		"sSearch":        "legacy wins",
		"iSortCol_0":     "1",
		"sSortDir_0":     "desc",
		"iSortCol_1":     "0",
		"iSortingCols":   "2",
		"sSearch_2":      "x",
	}
	for k, v := range want {
		if got, _ := p.Get(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestShouldHandle(t *testing.T) {
	tests := []struct {
		params Params
		want   bool
	}{
		{Params{"sEcho": "1"}, true},
		{Params{"sEcho": "1.5"}, true},
		{Params{"draw": "2"}, true},
		{Params{"sEcho": "x"}, false},
		{Params{"sEcho": ""}, false},
		{Params{}, false},
	}
	for _, tt := range tests {
		if got := ShouldHandle(tt.params); got != tt.want {
			t.Errorf("ShouldHandle(%v): expected %v, got %v", tt.params, tt.want, got)
		}
	}
}
