package engine

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/datatable-go/internal/recovery"
)

// Row metadata keys understood by the browser grid.
const (
	RowClassKey = "DT_RowClass"
	RowIDKey    = "DT_RowId"
	RowDataKey  = "DT_RowData"
)

// RowFunc computes a value from a source row.
type RowFunc func(row any) (any, error)

// RowMetadataProvider computes the DT_Row* entries of a rendered row.
type RowMetadataProvider interface {
	RowMetadata(row any) ([]Cell, error)
}

// MetadataFuncs is a RowMetadataProvider built from callbacks. A nil
// callback omits its key.
type MetadataFuncs struct {
	Class RowFunc
	ID    RowFunc
	Data  RowFunc
}

// RowMetadata implements RowMetadataProvider.
func (m MetadataFuncs) RowMetadata(row any) ([]Cell, error) {
	var cells []Cell
	for _, f := range []struct {
		key string
		fn  RowFunc
	}{
		{RowClassKey, m.Class},
		{RowIDKey, m.ID},
		{RowDataKey, m.Data},
	} {
		if f.fn == nil {
			continue
		}
		v, err := f.fn(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		cells = append(cells, Cell{Key: f.key, Value: v})
	}
	return cells, nil
}

// Cell is one keyed value of a rendered row.
type Cell struct {
	Key   string
	Value any
}

// Row is a rendered result row: optional metadata followed by one cell per
// column. It encodes as a JSON array when it carries neither metadata nor
// column names, and as an ordered object otherwise.
type Row struct {
	Meta  []Cell
	Cells []Cell
	// Named is true when cells are keyed by column name (alias mapping).
	Named bool
}

// Values returns the column values in order.
func (r Row) Values() []any {
	out := make([]any, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Value
	}
	return out
}

// IsArray reports whether the row encodes as a positional array.
func (r Row) IsArray() bool {
	return !r.Named && len(r.Meta) == 0
}

func (r Row) entries() []Cell {
	out := make([]Cell, 0, len(r.Meta)+len(r.Cells))
	return append(append(out, r.Meta...), r.Cells...)
}

// Map returns the row as a map (object rows) or nil for array rows.
func (r Row) Map() map[string]any {
	if r.IsArray() {
		return nil
	}
	m := make(map[string]any, len(r.Meta)+len(r.Cells))
	for _, c := range r.entries() {
		m[c.Key] = c.Value
	}
	return m
}

// Value returns []any for array rows and map[string]any otherwise.
func (r Row) Value() any {
	if r.IsArray() {
		return r.Values()
	}
	return r.Map()
}

// MarshalJSON implements json.Marshaler, preserving key order.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.IsArray() {
		return json.Marshal(r.Values())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", c.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var _ msgpack.CustomEncoder = Row{}

// EncodeMsgpack implements msgpack.CustomEncoder, preserving key order.
func (r Row) EncodeMsgpack(enc *msgpack.Encoder) error {
	if r.IsArray() {
		if err := enc.EncodeArrayLen(len(r.Cells)); err != nil {
			return err
		}
		for _, c := range r.Cells {
			if err := enc.Encode(c.Value); err != nil {
				return err
			}
		}
		return nil
	}

	entries := r.entries()
	if err := enc.EncodeMapLen(len(entries)); err != nil {
		return err
	}
	for _, c := range entries {
		if err := enc.EncodeString(c.Key); err != nil {
			return err
		}
		if err := enc.Encode(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// render runs metadata providers and columns over every source row.
func (e *Engine) render(rows []any) ([]Row, error) {
	provider := e.provider
	if provider == nil && (e.meta.Class != nil || e.meta.ID != nil || e.meta.Data != nil) {
		provider = e.meta
	}

	columns := e.state.Columns.Columns()
	out := make([]Row, 0, len(rows))

	for _, src := range rows {
		row := Row{Named: e.state.AliasMapping}

		if provider != nil {
			err := recovery.RecoverToError(e.logger, "row metadata", func() error {
				meta, err := provider.RowMetadata(src)
				row.Meta = meta
				return err
			})
			if err != nil {
				return nil, err
			}
		}

		row.Cells = make([]Cell, len(columns))
		for i, c := range columns {
			v, err := c.Run(src)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name(), err)
			}
			key := c.Name()
			if !row.Named {
				key = strconv.Itoa(i)
			}
			row.Cells[i] = Cell{Key: key, Value: v}
		}

		out = append(out, row)
	}
	return out, nil
}
