package column

// Text is a column with a fixed value.
type Text struct {
	name string
	text string
}

// NewText creates a column that always renders text.
func NewText(name, text string) *Text {
	return &Text{name: name, text: text}
}

// Name implements Column.
func (c *Text) Name() string { return c.name }

// Run implements Column.
func (c *Text) Run(any) (any, error) { return c.text, nil }
