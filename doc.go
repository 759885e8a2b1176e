// Package datatable serves paginated, searched and sorted pages for
// DataTables-style browser grids from a SQL query or an in-memory collection.
//
// The package turns the grid's flat request parameters (sEcho, iDisplayStart,
// iDisplayLength, sSearch, iSortCol_N, sSearch_N, or their modern
// equivalents) into a page of rendered rows plus total and filtered counts,
// in either the legacy (aaData) or the modern (data) payload shape.
//
// # Quick Start
//
//	func handler(db *sql.DB) http.HandlerFunc {
//	    return func(w http.ResponseWriter, r *http.Request) {
//	        params := datatable.ParamsFromRequest(r)
//	        if !datatable.ShouldHandle(params) {
//	            http.Error(w, "not a grid request", http.StatusBadRequest)
//	            return
//	        }
//
//	        users := sqlbuilder.New(db, sqlexpr.DuckDB).From("users")
//	        q, err := datatable.NewQuery(users, params, datatable.Config{OutputFormat: "modern"})
//	        if err != nil {
//	            http.Error(w, err.Error(), http.StatusInternalServerError)
//	            return
//	        }
//	        q.ShowColumns("id", "name", "email", "created_at").
//	            SearchColumns("name", "email").
//	            OrderColumns("id", "name", "created_at")
//
//	        resp, err := q.Output(r.Context())
//	        if err != nil {
//	            http.Error(w, err.Error(), http.StatusInternalServerError)
//	            return
//	        }
//	        json.NewEncoder(w).Encode(resp)
//	    }
//	}
//
// # Architecture
//
//   - engine: request state, parameter interpretation, row rendering, payload
//   - query: adapter over a sqlbuilder.Builder (COUNT strategies, cast ordering)
//   - collection: adapter over in-memory rows and Arrow record readers
//   - column: cell renderers (text, function, field, date, geometry)
//   - sqlexpr / sqlbuilder: quoted, allow-listed SQL fragments and SELECT building
//   - payload: JSON, MessagePack and zstd encoders for responses
//
// # Field Specs
//
// Search and ordering columns may carry a cast: "price:DECIMAL:10,2" searches
// and sorts CAST(price AS DECIMAL(10,2)). Cast types come from an allow-list
// and identifiers are always quoted, so field specs built from request data
// cannot inject SQL. Computed expressions must be registered up front with
// query.Engine.SetEncoderOptions.
//
// # Ordering Allow-List
//
// When OrderColumns is set, a requested sort on a column that is not listed
// is dropped silently (logged at debug level). Without OrderColumns every
// column is sortable by its name.
//
// # Lifecycle
//
// Engines are request-scoped and single-use. Output finalizes the engine: a
// second Output returns ErrFinalized and later configuration calls are
// ignored with a warning.
//
// # Logging
//
// The package logs through log/slog. Pass Config.Logger, or Config.LogLevel to
// get a text logger on stderr; otherwise slog.Default() is used.
package datatable
