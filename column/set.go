package column

// Set is an ordered collection of columns keyed by name.
// Put on an existing name replaces the column in place.
type Set struct {
	names  []string
	byName map[string]Column
}

// NewSet creates an empty column set.
func NewSet() *Set {
	return &Set{byName: make(map[string]Column)}
}

// Put adds or replaces a column.
func (s *Set) Put(c Column) {
	name := c.Name()
	if _, ok := s.byName[name]; !ok {
		s.names = append(s.names, name)
	}
	s.byName[name] = c
}

// Get returns the column with the given name, or nil.
func (s *Set) Get(name string) Column {
	return s.byName[name]
}

// At returns the column at position i, or nil when out of range.
func (s *Set) At(i int) Column {
	if i < 0 || i >= len(s.names) {
		return nil
	}
	return s.byName[s.names[i]]
}

// NameAt returns the column name at position i, or "" when out of range.
func (s *Set) NameAt(i int) string {
	if i < 0 || i >= len(s.names) {
		return ""
	}
	return s.names[i]
}

// Names returns column names in insertion order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Columns returns the columns in insertion order.
func (s *Set) Columns() []Column {
	out := make([]Column, len(s.names))
	for i, n := range s.names {
		out[i] = s.byName[n]
	}
	return out
}

// Len returns the number of columns.
func (s *Set) Len() int {
	return len(s.names)
}

// Clear removes all columns.
func (s *Set) Clear() {
	s.names = nil
	s.byName = make(map[string]Column)
}
