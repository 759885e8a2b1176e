// Package engine holds the adapter-independent part of a DataTables
// server-side handler: the request state, the builder-style configuration
// surface, the parameter interpreter, row rendering and the response payload.
//
// An Engine is request-scoped. It is configured, then consumed exactly once by
// Output. Data access is delegated to an Adapter; see the query and
// collection packages for the SQL and in-memory implementations.
//
//	e := query.New(builder, engine.ParamsFromValues(r.URL.Query()), engine.Options{})
//	e.ShowColumns("id", "name", "created_at").
//	    SearchColumns("name").
//	    OrderColumns("id", "name")
//	resp, err := e.Output(ctx)
package engine
