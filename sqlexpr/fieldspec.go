package sqlexpr

import "strings"

// FieldSpec is a parsed "expression[:castType[:castArgs]]" field reference.
type FieldSpec struct {
	Expr     string
	CastType string
	CastArgs string
}

// ParseFieldSpec splits a field spec on ':'. A leading ':' is not treated as
// a delimiter, so ":param" style names stay intact.
func ParseFieldSpec(s string) FieldSpec {
	if strings.LastIndex(s, ":") <= 0 {
		return FieldSpec{Expr: s}
	}

	parts := strings.SplitN(s, ":", 3)
	spec := FieldSpec{Expr: parts[0], CastType: parts[1]}
	if len(parts) == 3 {
		spec.CastArgs = parts[2]
	}
	return spec
}

// Name returns the field name without the cast suffix.
func (f FieldSpec) Name() string {
	return f.Expr
}

// HasCast reports whether the spec asks for a cast.
func (f FieldSpec) HasCast() bool {
	return f.CastType != ""
}

// String reassembles the spec.
func (f FieldSpec) String() string {
	s := f.Expr
	if f.CastType != "" {
		s += ":" + f.CastType
		if f.CastArgs != "" {
			s += ":" + f.CastArgs
		}
	}
	return s
}

// StripCast returns the name part of a raw field spec.
func StripCast(s string) string {
	return ParseFieldSpec(s).Name()
}
