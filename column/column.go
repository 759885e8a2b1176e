// Package column defines the value-extraction units that turn a source row
// into the cells of a grid row.
//
// A row can be a map[string]any, any type implementing Getter, or a struct
// (or pointer to struct). Columns never mutate the row they read.
package column

import (
	"reflect"
	"strings"
)

// Column renders one cell from a row.
type Column interface {
	// Name returns the column name. Unique within a Set.
	Name() string

	// Run computes the cell value. Absent source fields yield nil.
	Run(row any) (any, error)
}

// Getter is implemented by row types that expose fields by name.
type Getter interface {
	Get(name string) (any, bool)
}

// Value looks up a named field in a row.
//
// Lookup order for structs: exported field name, `db` tag, `json` tag,
// case-insensitive field name.
func Value(row any, name string) (any, bool) {
	switch r := row.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := r[name]
		return v, ok
	case map[string]string:
		v, ok := r[name]
		return v, ok
	case Getter:
		return r.Get(name)
	}

	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		return structField(rv, name)
	}

	return nil, false
}

func structField(rv reflect.Value, name string) (any, bool) {
	rt := rv.Type()

	if f, ok := rt.FieldByName(name); ok && f.IsExported() {
		return rv.FieldByIndex(f.Index).Interface(), true
	}

	for _, tag := range []string{"db", "json"} {
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			tagName, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if tagName == name {
				return rv.Field(i).Interface(), true
			}
		}
	}

	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return rv.Field(i).Interface(), true
		}
	}

	return nil, false
}
