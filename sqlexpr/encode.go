package sqlexpr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeExpression is returned when a field spec cannot be turned into SQL
// without interpolating unchecked text.
var ErrUnsafeExpression = errors.New("unsafe SQL expression")

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// Expressions maps field names to trusted SQL expressions.
	// Takes precedence over ColumnMapping.
	// Use for computed columns, aggregates behind an alias, etc.
	Expressions map[string]string

	// ColumnMapping maps field names to backend column names.
	// Fields not in the map use their own names.
	ColumnMapping map[string]string
}

// Encoder turns field specs into SQL fragments for one dialect.
type Encoder struct {
	dialect Dialect
	opts    *EncoderOptions
}

// NewEncoder creates an encoder for the dialect.
// If opts is nil, default options are used.
func NewEncoder(d Dialect, opts *EncoderOptions) *Encoder {
	if d == nil {
		d = DuckDB
	}
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &Encoder{dialect: d, opts: opts}
}

// Dialect returns the target dialect.
func (e *Encoder) Dialect() Dialect {
	return e.dialect
}

// Expression resolves a field name to SQL: a registered expression, or the
// (mapped) quoted identifier.
func (e *Encoder) Expression(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty field name", ErrUnsafeExpression)
	}

	if expr, ok := e.opts.Expressions[name]; ok {
		return expr, nil
	}

	if mapped, ok := e.opts.ColumnMapping[name]; ok {
		name = mapped
	}

	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return "", fmt.Errorf("%w: malformed identifier %q", ErrUnsafeExpression, name)
		}
	}

	return e.dialect.QuoteIdentifier(name), nil
}

// Field encodes a field spec, wrapping it in CAST when a cast type is present.
func (e *Encoder) Field(spec FieldSpec) (string, error) {
	expr, err := e.Expression(spec.Expr)
	if err != nil {
		return "", err
	}
	if !spec.HasCast() {
		return expr, nil
	}
	return e.encodeCast(expr, spec)
}

// Order encodes one ORDER BY term. With emptyAtEnd the term is prefixed by a
// NULL test so that empty values sort last regardless of direction.
func (e *Encoder) Order(spec FieldSpec, direction string, emptyAtEnd bool) (string, error) {
	field, err := e.Field(spec)
	if err != nil {
		return "", err
	}

	dir := "ASC"
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		dir = "DESC"
	}

	if emptyAtEnd {
		base, err := e.Expression(spec.Expr)
		if err != nil {
			return "", err
		}
		return e.dialect.IsNull(base) + " ASC, " + field + " " + dir, nil
	}

	return field + " " + dir, nil
}

// encodeCast encodes a CAST expression.
func (e *Encoder) encodeCast(expr string, spec FieldSpec) (string, error) {
	typeName := strings.ToUpper(strings.TrimSpace(spec.CastType))
	if !AllowedCastTypes[typeName] {
		return "", fmt.Errorf("%w: cast type %q is not allowed", ErrUnsafeExpression, spec.CastType)
	}

	if spec.CastArgs != "" {
		if !castArgsPattern.MatchString(spec.CastArgs) {
			return "", fmt.Errorf("%w: cast arguments %q", ErrUnsafeExpression, spec.CastArgs)
		}
		typeName += "(" + strings.ReplaceAll(spec.CastArgs, " ", "") + ")"
	}

	return "CAST(" + expr + " AS " + typeName + ")", nil
}

var castArgsPattern = regexp.MustCompile(`^\s*\d+\s*(,\s*\d+\s*)?$`)

// AllowedCastTypes lists the type names accepted in field spec casts.
var AllowedCastTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true, "TEXT": true, "NCHAR": true, "STRING": true,
	"BINARY": true, "BLOB": true,
	"SIGNED": true, "UNSIGNED": true, "SIGNED INTEGER": true, "UNSIGNED INTEGER": true,
	"INTEGER": true, "INT": true, "BIGINT": true, "SMALLINT": true, "TINYINT": true, "HUGEINT": true,
	"DECIMAL": true, "NUMERIC": true, "DOUBLE": true, "FLOAT": true, "REAL": true,
	"DATE": true, "DATETIME": true, "TIME": true, "TIMESTAMP": true,
	"BOOLEAN": true, "JSON": true,
}

// IsNumericCast reports whether a cast type produces numbers.
func IsNumericCast(castType string) bool {
	switch strings.ToUpper(strings.TrimSpace(castType)) {
	case "SIGNED", "UNSIGNED", "SIGNED INTEGER", "UNSIGNED INTEGER",
		"INTEGER", "INT", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT",
		"DECIMAL", "NUMERIC", "DOUBLE", "FLOAT", "REAL":
		return true
	}
	return false
}

// quoteIdentifier returns a quoted identifier if needed.
func quoteIdentifier(name string, q byte) string {
	if needsQuoting(name) {
		quote := string(q)
		return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
	}
	return name
}

// needsQuoting returns true if the identifier needs quoting.
func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	// Check first character (must be letter or underscore)
	c := name[0]
	if !isLetter(c) && c != '_' {
		return true
	}

	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return true
		}
	}

	// Check for reserved words (simplified list)
	upper := strings.ToUpper(name)
	switch upper {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TABLE", "INDEX",
		"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "IN", "IS", "LIKE",
		"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "ORDER", "BY",
		"GROUP", "HAVING", "LIMIT", "OFFSET", "UNION", "EXCEPT", "INTERSECT",
		"ALL", "DISTINCT", "VALUES", "SET", "INTO", "PRIMARY", "KEY", "FOREIGN",
		"REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "UNIQUE", "ASC", "DESC",
		"NULLS", "FIRST", "LAST", "CAST", "INTERVAL", "DATE", "TIME", "TIMESTAMP":
		return true
	}

	return false
}

// isLetter returns true if c is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if c is an ASCII digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
