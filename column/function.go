package column

import (
	"fmt"
	"log/slog"

	"github.com/hugr-lab/datatable-go/internal/recovery"
)

// Func is a user-supplied cell renderer.
type Func func(row any) (any, error)

// Function runs a caller-supplied transform. Its errors and panics are not
// caught.
type Function struct {
	name string
	fn   Func
}

// NewFunction creates a function column.
func NewFunction(name string, fn Func) *Function {
	return &Function{name: name, fn: fn}
}

// Name implements Column.
func (c *Function) Name() string { return c.name }

// Run implements Column.
func (c *Function) Run(row any) (any, error) {
	return c.fn(row)
}

// Field renders row[name] as is. Lookup failures (including panics from
// custom Getter implementations) render as nil.
type Field struct {
	name   string
	logger *slog.Logger
}

// NewField creates a field column. logger may be nil.
func NewField(name string, logger *slog.Logger) *Field {
	return &Field{name: name, logger: logger}
}

// Name implements Column.
func (c *Field) Name() string { return c.name }

// Run implements Column. It never returns an error.
func (c *Field) Run(row any) (any, error) {
	return recovery.OrZero(c.logger, "field "+c.name, func() (any, error) {
		v, ok := Value(row, c.name)
		if !ok {
			return nil, fmt.Errorf("field %q not found", c.name)
		}
		return v, nil
	}), nil
}
