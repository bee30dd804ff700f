package distress

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// avgHomeSqft is the assumed dwelling size used to derive a market price per
// square foot from a home value index.
const avgHomeSqft = 2000

// MarketContext is the resolved market signal set for one region.
type MarketContext struct {
	PricePerSqft *float64
	PriceCutPct  *float64
	DaysToClose  *float64
}

// HeatPoint is one scored map point for the distress heatmap.
type HeatPoint struct {
	ListingID     string  `json:"listingId"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	DistressScore int     `json:"distressScore"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	Zip           *string `json:"zip"`
}

// MarketIndex builds a lookup of market context keyed "STATE|city" with a
// state-only fallback key "STATE|". The first snapshot seen for a state wins
// the fallback slot.
func MarketIndex(snapshots []model.MarketSnapshot) map[string]MarketContext {
	idx := make(map[string]MarketContext, len(snapshots)*2)
	for _, s := range snapshots {
		if s.StateName == "" || s.RegionName == "" {
			continue
		}
		mc := MarketContext{
			PriceCutPct: s.PctListingsPriceCut,
			DaysToClose: s.MedianDaysToClose,
		}
		if s.ZHVIMidSFR != nil {
			ppsf := *s.ZHVIMidSFR / avgHomeSqft
			mc.PricePerSqft = &ppsf
		}
		idx[s.StateName+"|"+strings.ToLower(s.RegionName)] = mc
		stateKey := s.StateName + "|"
		if _, ok := idx[stateKey]; !ok {
			idx[stateKey] = mc
		}
	}
	return idx
}

// LookupMarket resolves the market context for a listing, trying the exact
// "STATE|city" key before falling back to the state-wide entry.
func LookupMarket(idx map[string]MarketContext, l *model.Listing) *MarketContext {
	if l.State == nil {
		return nil
	}
	if l.City != nil {
		if mc, ok := idx[*l.State+"|"+strings.ToLower(*l.City)]; ok {
			return &mc
		}
	}
	if mc, ok := idx[*l.State+"|"]; ok {
		return &mc
	}
	return nil
}

// ListingFactors assembles score inputs for a listing against its market
// context. A nil context leaves the market factors unset.
func ListingFactors(l *model.Listing, mc *MarketContext, now time.Time) Factors {
	f := Factors{
		DaysOnMarket:      DaysOnMarketAt(l.CreatedAt, now),
		PricePerSqft:      PricePerSqft(l.Price, l.Sqft),
		HasPriceReduction: l.PriceReduced,
	}
	if mc != nil {
		f.MarketPricePerSqft = mc.PricePerSqft
		f.MarketPriceCutPct = mc.PriceCutPct
		f.MarketDaysToClose = mc.DaysToClose
	}
	return f
}

// Heatmap scores every mappable, priced listing against the market index.
// Listings without coordinates or a price are skipped.
func Heatmap(listings []model.Listing, idx map[string]MarketContext, cfg Config, now time.Time) []HeatPoint {
	points := make([]HeatPoint, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		if !l.HasCoordinates() || l.Price == nil {
			continue
		}
		f := ListingFactors(l, LookupMarket(idx, l), now)
		points = append(points, HeatPoint{
			ListingID:     l.ID,
			Lat:           *l.Latitude,
			Lng:           *l.Longitude,
			DistressScore: ScoreWith(f, cfg),
			Address:       l.Address,
			City:          l.City,
			State:         l.State,
			Zip:           l.Zip,
		})
	}

	zap.L().Debug("distress: heatmap built",
		zap.Int("listings", len(listings)),
		zap.Int("points", len(points)),
	)

	return points
}
