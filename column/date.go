package column

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/ncruces/go-strftime"
)

// DateMode selects how a Date column renders time values.
type DateMode int

// Date representations.
const (
	DateOnly      DateMode = 0 // 2006-01-02
	TimeOnly      DateMode = 1 // 15:04:05
	DateTime      DateMode = 2 // 2006-01-02 15:04:05
	Custom        DateMode = 4 // strftime pattern
	FormattedDate DateMode = 5 // Jan 2, 2006
	DayDateTime   DateMode = 6 // Mon, Jan 2, 2006 3:04 PM
)

var dateLayouts = map[DateMode]string{
	DateOnly:      time.DateOnly,
	TimeOnly:      time.TimeOnly,
	DateTime:      time.DateTime,
	FormattedDate: "Jan 2, 2006",
	DayDateTime:   "Mon, Jan 2, 2006 3:04 PM",
}

// Date formats the row field with the same name.
//
// String values pass through unchanged, unless a custom pattern is set: then
// the string is parsed and re-formatted with that pattern.
type Date struct {
	name    string
	mode    DateMode
	pattern string
}

// NewDate creates a date column. pattern is a strftime pattern
// (e.g. "%d.%m.%Y %H:%M") used by the Custom mode and for string values.
func NewDate(name string, mode DateMode, pattern string) *Date {
	return &Date{name: name, mode: mode, pattern: pattern}
}

// Name implements Column.
func (c *Date) Name() string { return c.name }

// Run implements Column.
func (c *Date) Run(row any) (any, error) {
	v, ok := Value(row, c.name)
	if !ok || v == nil {
		return nil, nil
	}

	switch t := v.(type) {
	case string:
		if c.pattern == "" {
			return t, nil
		}
		parsed, err := dateparse.ParseAny(t)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
		return strftime.Format(c.pattern, parsed), nil
	case time.Time:
		return c.format(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return c.format(*t), nil
	case sql.NullTime:
		if !t.Valid {
			return nil, nil
		}
		return c.format(t.Time), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (c *Date) format(t time.Time) string {
	if c.mode == Custom {
		return strftime.Format(c.pattern, t)
	}
	if layout, ok := dateLayouts[c.mode]; ok {
		return t.Format(layout)
	}
	return t.String()
}
