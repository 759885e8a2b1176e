package engine

import (
	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Response is one assembled page.
type Response struct {
	Format     OutputFormat
	Echo       int
	Total      int64
	Filtered   int64
	Data       []Row
	Additional any
}

type legacyPayload struct {
	AaData               []Row `json:"aaData"`
	SEcho                int   `json:"sEcho"`
	ITotalRecords        int64 `json:"iTotalRecords"`
	ITotalDisplayRecords int64 `json:"iTotalDisplayRecords"`
	AaAdditional         any   `json:"aaAdditional"`
}

type modernPayload struct {
	Draw            int   `json:"draw"`
	RecordsTotal    int64 `json:"recordsTotal"`
	RecordsFiltered int64 `json:"recordsFiltered"`
	Data            []Row `json:"data"`
	Additional      any   `json:"additional"`
}

func (r *Response) rows() []Row {
	if r.Data == nil {
		return []Row{}
	}
	return r.Data
}

// MarshalJSON implements json.Marshaler with the key names and order of the
// selected format.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.Format == Modern {
		return json.Marshal(modernPayload{
			Draw:            r.Echo,
			RecordsTotal:    r.Total,
			RecordsFiltered: r.Filtered,
			Data:            r.rows(),
			Additional:      r.Additional,
		})
	}
	return json.Marshal(legacyPayload{
		AaData:               r.rows(),
		SEcho:                r.Echo,
		ITotalRecords:        r.Total,
		ITotalDisplayRecords: r.Filtered,
		AaAdditional:         r.Additional,
	})
}

var _ msgpack.CustomEncoder = (*Response)(nil)

// EncodeMsgpack implements msgpack.CustomEncoder with the same keys as
// MarshalJSON.
func (r *Response) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	for _, kv := range r.entries() {
		if err := enc.EncodeString(kv.Key); err != nil {
			return err
		}
		if err := enc.Encode(kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Response) entries() []Cell {
	if r.Format == Modern {
		return []Cell{
			{"draw", r.Echo},
			{"recordsTotal", r.Total},
			{"recordsFiltered", r.Filtered},
			{"data", r.rows()},
			{"additional", r.Additional},
		}
	}
	return []Cell{
		{"aaData", r.rows()},
		{"sEcho", r.Echo},
		{"iTotalRecords", r.Total},
		{"iTotalDisplayRecords", r.Filtered},
		{"aaAdditional", r.Additional},
	}
}

// Map returns the payload as plain values for templating layers: rows become
// []any or map[string]any.
func (r *Response) Map() map[string]any {
	m := make(map[string]any, 5)
	for _, kv := range r.entries() {
		if rows, ok := kv.Value.([]Row); ok {
			data := make([]any, len(rows))
			for i, row := range rows {
				data[i] = row.Value()
			}
			m[kv.Key] = data
			continue
		}
		m[kv.Key] = kv.Value
	}
	return m
}

// DataKey returns the payload key holding the rows.
func (r *Response) DataKey() string {
	if r.Format == Modern {
		return "data"
	}
	return "aaData"
}
