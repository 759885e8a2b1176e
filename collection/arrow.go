package collection

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/datatable-go/engine"
)

// FromRecordReader drains reader into map rows keyed by schema field name
// and creates an engine over them. The reader is released.
//
// Integer, floating point, string, boolean, binary, date and timestamp
// columns convert to Go values (timestamps and dates to time.Time, binary to
// []byte); other types use their JSON-friendly representation.
func FromRecordReader(reader array.RecordReader, params engine.Params, opts engine.Options) (*Engine, error) {
	rows, err := ReadRows(reader)
	if err != nil {
		return nil, err
	}
	return FromMaps(rows, params, opts), nil
}

// ReadRows drains reader into map rows. The reader is released.
func ReadRows(reader array.RecordReader) ([]map[string]any, error) {
	defer reader.Release()

	var rows []map[string]any
	for reader.Next() {
		record := reader.RecordBatch()
		schema := record.Schema()

		for i := 0; i < int(record.NumRows()); i++ {
			row := make(map[string]any, record.NumCols())
			for c := 0; c < int(record.NumCols()); c++ {
				row[schema.Field(c).Name] = arrowValue(record.Column(c), i)
			}
			rows = append(rows, row)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return rows, nil
}

func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...)
	case *array.LargeBinary:
		return append([]byte(nil), a.Value(i)...)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	default:
		return arr.GetOneForMarshal(i)
	}
}
