package column

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// GeometryFormat selects the rendering of a Geometry column.
type GeometryFormat int

const (
	// WKT renders "POINT(1 2)" style text.
	WKT GeometryFormat = iota
	// GeoJSON renders a GeoJSON geometry object.
	GeoJSON
)

// Geometry renders spatial values stored as WKB bytes (DuckDB spatial,
// GeoParquet) or as orb.Geometry.
type Geometry struct {
	name   string
	format GeometryFormat
}

// NewGeometry creates a geometry column.
func NewGeometry(name string, format GeometryFormat) *Geometry {
	return &Geometry{name: name, format: format}
}

// Name implements Column.
func (c *Geometry) Name() string { return c.name }

// Run implements Column.
func (c *Geometry) Run(row any) (any, error) {
	v, ok := Value(row, c.name)
	if !ok || v == nil {
		return nil, nil
	}

	var geom orb.Geometry
	switch g := v.(type) {
	case orb.Geometry:
		geom = g
	case []byte:
		if len(g) == 0 {
			return nil, nil
		}
		decoded, err := wkb.Unmarshal(g)
		if err != nil {
			return nil, fmt.Errorf("column %s: failed to decode WKB: %w", c.name, err)
		}
		geom = decoded
	case string:
		return g, nil
	default:
		return nil, fmt.Errorf("column %s: unsupported geometry value %T", c.name, v)
	}

	if c.format == GeoJSON {
		return geojson.NewGeometry(geom), nil
	}
	return wkt.MarshalString(geom), nil
}
