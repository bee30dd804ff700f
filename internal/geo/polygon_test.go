package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square is a unit square centered at the origin, closed the way GeoJSON
// rings are.
var square = []geom.Coord{
	{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1},
}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name   string
		lng    float64
		lat    float64
		inside bool
	}{
		{"origin inside square", 0, 0, true},
		{"far outside", 5, 5, false},
		{"just inside the edge", 0.999, 0, true},
		{"just outside the edge", 1.001, 0, false},
		{"below", 0, -5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, PointInPolygon(tt.lng, tt.lat, square))
		})
	}
}

func TestPointInPolygonConcave(t *testing.T) {
	// A "U" shape: the notch between the arms is outside.
	u := []geom.Coord{
		{0, 0}, {4, 0}, {4, 4}, {3, 4}, {3, 1}, {1, 1}, {1, 4}, {0, 4}, {0, 0},
	}
	assert.True(t, PointInPolygon(0.5, 2, u), "left arm")
	assert.True(t, PointInPolygon(3.5, 2, u), "right arm")
	assert.False(t, PointInPolygon(2, 2, u), "notch")
}

func TestParsePolygon(t *testing.T) {
	data := []byte(`{"type":"Polygon","coordinates":[[[-97.8,30.2],[-97.7,30.2],[-97.7,30.3],[-97.8,30.3],[-97.8,30.2]]]}`)
	ring, err := ParsePolygon(data)
	require.NoError(t, err)
	require.Len(t, ring, 5)
	assert.Equal(t, -97.8, ring[0].X())
	assert.Equal(t, 30.2, ring[0].Y())
}

func TestParsePolygonRejectsOtherGeometries(t *testing.T) {
	_, err := ParsePolygon([]byte(`{"type":"Point","coordinates":[1,2]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Polygon")
}

func TestParsePolygonRejectsGarbage(t *testing.T) {
	_, err := ParsePolygon([]byte(`not json`))
	require.Error(t, err)
}

func TestBounds(t *testing.T) {
	ring := []geom.Coord{
		{-97.8, 30.2}, {-97.7, 30.25}, {-97.75, 30.3}, {-97.8, 30.2},
	}
	b := Bounds(ring)
	assert.Equal(t, BBox{MinLng: -97.8, MinLat: 30.2, MaxLng: -97.7, MaxLat: 30.3}, b)
}
