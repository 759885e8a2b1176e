// Package sqlexpr builds the raw SQL fragments the query adapter needs for
// searching and ordering: quoted identifiers, CAST wrappers and ORDER BY terms.
//
// Field specs come from the grid configuration and have the form
//
//	expression[:castType[:castArgs]]
//
// for example "price", "users.created_at" or "code:CHAR:10". The expression
// part is treated as an identifier and quoted for the target dialect. Raw SQL
// is only accepted when the developer registered it up front:
//
//	enc := sqlexpr.NewEncoder(sqlexpr.DuckDB, &sqlexpr.EncoderOptions{
//	    Expressions: map[string]string{
//	        "full_name": "first_name || ' ' || last_name",
//	    },
//	})
//	frag, err := enc.Field(sqlexpr.ParseFieldSpec("full_name:VARCHAR"))
//	// CAST(first_name || ' ' || last_name AS VARCHAR)
//
// Cast types must be on the allow-list (see AllowedCastTypes) and cast
// arguments must be numeric. Anything else fails with ErrUnsafeExpression,
// so request data can never reach the query text.
package sqlexpr
