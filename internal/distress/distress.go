package distress

import (
	"time"
)

// Factors holds the per-listing and per-market signals feeding the score.
// Pointer fields are optional; a missing signal contributes zero points
// rather than penalizing or rewarding the listing.
type Factors struct {
	DaysOnMarket       int      `json:"days_on_market"`
	PricePerSqft       *float64 `json:"price_per_sqft"`
	MarketPricePerSqft *float64 `json:"market_price_per_sqft"`
	MarketPriceCutPct  *float64 `json:"market_price_cut_pct"`
	MarketDaysToClose  *float64 `json:"market_days_to_close"`
	HasPriceReduction  bool     `json:"has_price_reduction"`
}

// Score computes the distress score under the default bands.
func Score(f Factors) int {
	return ScoreWith(f, DefaultConfig())
}

// ScoreWith computes the distress score under the given bands: five
// independent factors each contribute 0, 1, or 2 points, summed and clamped
// to [0, MaxScore]. The function is pure and total; it never fails.
func ScoreWith(f Factors, cfg Config) int {
	score := 0

	// Time on market.
	score += cfg.DaysOnMarket.Points(float64(f.DaysOnMarket))

	// Listing discount vs market price per square foot. Only evaluated when
	// both sides are known and the market figure is positive.
	if f.PricePerSqft != nil && f.MarketPricePerSqft != nil && *f.MarketPricePerSqft > 0 {
		discountPct := (*f.MarketPricePerSqft - *f.PricePerSqft) / *f.MarketPricePerSqft * 100
		score += cfg.Discount.Points(discountPct)
	}

	// Market-wide price-cut prevalence.
	if f.MarketPriceCutPct != nil {
		score += cfg.PriceCut.Points(*f.MarketPriceCutPct)
	}

	// Market-wide closing time.
	if f.MarketDaysToClose != nil {
		score += cfg.DaysToClose.Points(*f.MarketDaysToClose)
	}

	// Explicit price reduction on the listing.
	if f.HasPriceReduction {
		score += 2
	}

	if score > cfg.MaxScore {
		return cfg.MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// DaysOnMarketAt returns the whole-day difference between createdAt and now,
// clamped to zero. A nil createdAt counts as zero days on market.
func DaysOnMarketAt(createdAt *time.Time, now time.Time) int {
	if createdAt == nil {
		return 0
	}
	days := int(now.Sub(*createdAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DaysOnMarket is DaysOnMarketAt against the wall clock.
func DaysOnMarket(createdAt *time.Time) int {
	return DaysOnMarketAt(createdAt, time.Now())
}

// PricePerSqft divides price by square footage. Missing inputs or a
// non-positive area yield nil.
func PricePerSqft(price, sqft *float64) *float64 {
	if price == nil || sqft == nil || *sqft <= 0 {
		return nil
	}
	v := *price / *sqft
	return &v
}
