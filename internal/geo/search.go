package geo

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// Filters narrows a polygon search beyond shape containment. Nil fields
// are not applied.
type Filters struct {
	MinPrice     *float64 `json:"minPrice"`
	MaxPrice     *float64 `json:"maxPrice"`
	MinBeds      *float64 `json:"minBeds"`
	MaxBeds      *float64 `json:"maxBeds"`
	MinBaths     *float64 `json:"minBaths"`
	MaxBaths     *float64 `json:"maxBaths"`
	MinSqft      *float64 `json:"minSqft"`
	MaxSqft      *float64 `json:"maxSqft"`
	PropertyType *string  `json:"propertyType"`
	Status       *string  `json:"status"`
}

// Match reports whether the listing passes every set filter. Range filters
// on an absent listing field fail, matching storage-side comparison
// semantics where NULL never satisfies a comparison.
func (f Filters) Match(l *model.Listing) bool {
	if !rangeOK(l.Price, f.MinPrice, f.MaxPrice) {
		return false
	}
	if !rangeOK(l.Beds, f.MinBeds, f.MaxBeds) {
		return false
	}
	if !rangeOK(l.Baths, f.MinBaths, f.MaxBaths) {
		return false
	}
	if !rangeOK(l.Sqft, f.MinSqft, f.MaxSqft) {
		return false
	}
	if f.PropertyType != nil && (l.PropertyType == nil || *l.PropertyType != *f.PropertyType) {
		return false
	}
	if f.Status != nil && string(l.Status) != *f.Status {
		return false
	}
	return true
}

func rangeOK(v, min, max *float64) bool {
	if min != nil && (v == nil || *v < *min) {
		return false
	}
	if max != nil && (v == nil || *v > *max) {
		return false
	}
	return true
}

// ListingSource is the storage port for the bounding-box prefilter stage.
type ListingSource interface {
	// ListingsInBounds returns listings with coordinates inside the box,
	// with the given filters already applied where the store supports
	// them.
	ListingsInBounds(ctx context.Context, box BBox, f Filters) ([]model.Listing, error)
}

// SearchResult is a polygon search response.
type SearchResult struct {
	Listings []model.Listing `json:"listings"`
	Count    int             `json:"count"`
	Bounds   BBox            `json:"bounds"`
}

// Searcher runs two-stage polygon searches: a bounding-box prefilter
// through storage, then exact ray-casting containment. Containment is the
// source of truth; the box only cuts candidate volume.
type Searcher struct {
	src ListingSource
}

// NewSearcher returns a Searcher reading through src.
func NewSearcher(src ListingSource) *Searcher {
	return &Searcher{src: src}
}

// Search decodes the GeoJSON polygon and returns the listings inside it.
// Filters are re-checked application-side so the result does not depend on
// how much filtering the store pushed down.
func (s *Searcher) Search(ctx context.Context, polygon []byte, f Filters) (*SearchResult, error) {
	ring, err := ParsePolygon(polygon)
	if err != nil {
		return nil, err
	}
	return s.SearchRing(ctx, ring, f)
}

// SearchRing is Search for an already-decoded exterior ring.
func (s *Searcher) SearchRing(ctx context.Context, ring []geom.Coord, f Filters) (*SearchResult, error) {
	box := Bounds(ring)
	candidates, err := s.src.ListingsInBounds(ctx, box, f)
	if err != nil {
		return nil, eris.Wrap(err, "geo: prefilter listings")
	}

	matched := make([]model.Listing, 0, len(candidates))
	for i := range candidates {
		l := &candidates[i]
		if !l.HasCoordinates() {
			continue
		}
		if !PointInPolygon(*l.Longitude, *l.Latitude, ring) {
			continue
		}
		if !f.Match(l) {
			continue
		}
		matched = append(matched, *l)
	}

	zap.L().Debug("geo: polygon search",
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(matched)),
	)

	return &SearchResult{Listings: matched, Count: len(matched), Bounds: box}, nil
}
