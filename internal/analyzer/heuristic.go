package analyzer

import "math"

// heuristic estimates a deal from square footage and bed/bath count. It
// anchors value at $150/sqft plus $5k per bed or bath, spreads ARV 15%
// either side, budgets repairs at 15% of base value split across buckets,
// and backs the offer out of ARV minus repairs and margin.
func (a *Analyzer) heuristic(in Input) *Analysis {
	basePrice := in.Sqft * 150
	arvBase := basePrice + (in.Beds+in.Baths)*5000

	arv := ARV{
		Low:        math.Round(arvBase * 0.85),
		High:       math.Round(arvBase * 1.15),
		Median:     math.Round(arvBase),
		Confidence: 0.75,
	}

	repairTotal := math.Round(arvBase * 0.15)
	repairs := Repairs{
		Cosmetic:   Range{Low: math.Round(repairTotal * 0.3), High: math.Round(repairTotal * 0.5)},
		Structural: Range{Low: math.Round(repairTotal * 0.2), High: math.Round(repairTotal * 0.4)},
		Systems:    Range{Low: math.Round(repairTotal * 0.1), High: math.Round(repairTotal * 0.3)},
		Total:      Range{Low: math.Round(repairTotal * 0.6), High: math.Round(repairTotal * 1.2)},
	}

	mao := MAO{
		Low:         arv.Low - repairs.Total.High - 20000,
		High:        arv.High - repairs.Total.Low - 10000,
		Recommended: arv.Median - (repairs.Total.Low+repairs.Total.High)/2 - 15000,
	}

	notes := []string{
		"Analysis based on property size and configuration.",
		"Repair estimates assume typical wear for the area.",
	}
	if in.Sqft > 2000 {
		notes = append(notes, "Larger property may appeal to family buyers.")
	}
	if arv.Median > 300000 {
		notes = append(notes, "Higher price point may extend time on market.")
	}
	if mao.Recommended > 200000 {
		notes = append(notes, "Offer leaves room for a healthy assignment fee.")
	}

	return &Analysis{
		ARV:             arv,
		Repairs:         repairs,
		MAO:             mao,
		Comps:           a.heuristicComps(in),
		Notes:           notes,
		ConfidenceScore: 0.8,
		Model:           heuristicModel,
	}
}

// heuristicComps fabricates three nearby sales bracketing the estimate.
func (a *Analyzer) heuristicComps(in Input) []Comp {
	arvBase := in.Sqft*150 + (in.Beds+in.Baths)*5000
	now := a.now()

	specs := []struct {
		street   string
		factor   float64
		sqftOff  float64
		distance float64
		soldDays int
	}{
		{"100 Main St", 0.92, -150, 0.3, 30},
		{"150 Oak Ave", 1.0, 0, 0.5, 60},
		{"200 Pine Rd", 1.08, 150, 0.8, 90},
	}

	comps := make([]Comp, 0, len(specs))
	for _, s := range specs {
		comps = append(comps, Comp{
			Address:  s.street,
			Price:    math.Round(arvBase * s.factor),
			Beds:     in.Beds,
			Baths:    in.Baths,
			Sqft:     in.Sqft + s.sqftOff,
			Distance: s.distance,
			SoldDate: now.AddDate(0, 0, -s.soldDays).Format("2006-01-02"),
		})
	}
	return comps
}
