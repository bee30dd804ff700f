package model

import "time"

// MarketTrend is one row of the market_trends time series, unique on
// (region, period_end). Rows are created by the bulk importer and are
// read-only to everything else.
type MarketTrend struct {
	Region             string    `json:"region"`
	PeriodEnd          time.Time `json:"period_end"`
	MedianSalePrice    float64   `json:"median_sale_price"`
	HomesSold          *int      `json:"homes_sold"`
	MedianDaysOnMarket *int      `json:"median_days_on_market"`
	AvgSaleToList      *float64  `json:"avg_sale_to_list"`
}

// MarketSnapshot carries the market-level distress context for a region.
// All metrics are nullable; a missing metric contributes nothing to any
// downstream score.
type MarketSnapshot struct {
	RegionName          string   `json:"region_name"`
	StateName           string   `json:"state_name"`
	RegionType          string   `json:"region_type"`
	PctListingsPriceCut *float64 `json:"pct_listings_price_cut"`
	MedianDaysToClose   *float64 `json:"median_days_to_close"`
	ZHVIMidSFR          *float64 `json:"zhvi_mid_sfr"`
}
