package analytics

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/distress"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// ViewPoint is one plottable listing for the view heatmap.
type ViewPoint struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Views   int     `json:"views"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
}

// scopedListings applies the viewer's visibility rule: a wholesaler sees
// their own listings regardless of status, everyone else sees live
// listings only.
func (a *Aggregator) scopedListings(ctx context.Context, v model.Viewer) ([]model.Listing, error) {
	if v.Wholesaler() {
		return a.src.ListingsByOwner(ctx, v.UserID)
	}
	return a.src.LiveListings(ctx)
}

// ViewHeatmap returns the viewer's listings as map points. Listings
// without coordinates are skipped; a missing view count plots as zero.
func (a *Aggregator) ViewHeatmap(ctx context.Context, v model.Viewer) ([]ViewPoint, error) {
	listings, err := a.scopedListings(ctx, v)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load heatmap listings")
	}
	points := make([]ViewPoint, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		if !l.HasCoordinates() {
			continue
		}
		views := 0
		if l.Views != nil {
			views = *l.Views
		}
		points = append(points, ViewPoint{
			ID:      l.ID,
			Lat:     *l.Latitude,
			Lng:     *l.Longitude,
			Views:   views,
			Address: l.Address,
			City:    l.City,
			State:   l.State,
			Zip:     l.Zip,
		})
	}
	zap.L().Debug("view heatmap built",
		zap.Int("listings", len(listings)),
		zap.Int("points", len(points)))
	return points, nil
}

// DistressHeatmap scores the viewer's listings against current market
// snapshots and returns them as scored map points.
func (a *Aggregator) DistressHeatmap(ctx context.Context, v model.Viewer, cfg distress.Config) ([]distress.HeatPoint, error) {
	listings, err := a.scopedListings(ctx, v)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load distress listings")
	}
	snapshots, err := a.src.MarketSnapshots(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load market snapshots")
	}
	return distress.Heatmap(listings, distress.MarketIndex(snapshots), cfg, a.now()), nil
}
