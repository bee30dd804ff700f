// Package geo refines bounding-box-prefiltered listing sets into the exact
// polygon a user drew on a map. Coordinates follow GeoJSON order, longitude
// then latitude.
package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// BBox is the axis-aligned bounding box of a polygon, used as the storage
// prefilter before exact containment.
type BBox struct {
	MinLng float64 `json:"minLng"`
	MinLat float64 `json:"minLat"`
	MaxLng float64 `json:"maxLng"`
	MaxLat float64 `json:"maxLat"`
}

// ParsePolygon decodes a GeoJSON Polygon and returns its exterior ring.
func ParsePolygon(data []byte) ([]geom.Coord, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("geo: expected Polygon, got %T", g)
	}
	if poly.NumLinearRings() == 0 {
		return nil, eris.New("geo: polygon has no rings")
	}
	ring := poly.Coords()[0]
	if len(ring) < 3 {
		return nil, eris.Errorf("geo: exterior ring has %d points, need at least 3", len(ring))
	}
	return ring, nil
}

// Bounds computes the bounding box of a ring.
func Bounds(ring []geom.Coord) BBox {
	b := BBox{}
	for i, c := range ring {
		lng, lat := c.X(), c.Y()
		if i == 0 || lng < b.MinLng {
			b.MinLng = lng
		}
		if i == 0 || lng > b.MaxLng {
			b.MaxLng = lng
		}
		if i == 0 || lat < b.MinLat {
			b.MinLat = lat
		}
		if i == 0 || lat > b.MaxLat {
			b.MaxLat = lat
		}
	}
	return b
}

// PointInPolygon reports whether the point lies inside the ring, by ray
// casting over consecutive vertex pairs wrapping last to first. Exact
// boundary hits are not specially resolved; callers must not rely on
// boundary semantics.
func PointInPolygon(lng, lat float64, ring []geom.Coord) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
