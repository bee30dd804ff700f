// Package trends maintains the market_trends time series and the
// median-ratio price adjustment built on top of it.
package trends

// AdjustPriceForTrend rescales a price recorded under the reference-period
// median into current market terms. Missing medians and a zero reference
// median both mean "no adjustment possible" and return the price unchanged;
// neither is an error.
func AdjustPriceForTrend(originalPrice float64, medianAtRef, medianCurrent *float64) float64 {
	if medianAtRef == nil || medianCurrent == nil || *medianAtRef == 0 {
		return originalPrice
	}
	return originalPrice * (*medianCurrent / *medianAtRef)
}
