package distress

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genFactors() gopter.Gen {
	optional := func(g gopter.Gen) gopter.Gen {
		return gen.PtrOf(g)
	}
	return gopter.CombineGens(
		gen.IntRange(0, 500),
		optional(gen.Float64Range(1, 1000)),
		optional(gen.Float64Range(1, 1000)),
		optional(gen.Float64Range(0, 100)),
		optional(gen.Float64Range(0, 365)),
		gen.Bool(),
	).Map(func(vals []interface{}) Factors {
		// gen.PtrOf yields an untyped nil for the "absent" case, which a
		// plain *float64 assertion would panic on.
		optFloat := func(v interface{}) *float64 {
			if v == nil {
				return nil
			}
			return v.(*float64)
		}
		return Factors{
			DaysOnMarket:       vals[0].(int),
			PricePerSqft:       optFloat(vals[1]),
			MarketPricePerSqft: optFloat(vals[2]),
			MarketPriceCutPct:  optFloat(vals[3]),
			MarketDaysToClose:  optFloat(vals[4]),
			HasPriceReduction:  vals[5].(bool),
		}
	})
}

func TestScoreProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("score is always in [0,10]", prop.ForAll(
		func(f Factors) bool {
			s := Score(f)
			return s >= 0 && s <= 10
		},
		genFactors(),
	))

	properties.Property("longer time on market never lowers the score", prop.ForAll(
		func(f Factors, extra int) bool {
			more := f
			more.DaysOnMarket += extra
			return Score(more) >= Score(f)
		},
		genFactors(),
		gen.IntRange(0, 500),
	))

	properties.Property("adding a price reduction never lowers the score", prop.ForAll(
		func(f Factors) bool {
			reduced := f
			reduced.HasPriceReduction = true
			return Score(reduced) >= Score(f)
		},
		genFactors(),
	))

	properties.Property("a deeper discount never lowers the score", prop.ForAll(
		func(f Factors, cut float64) bool {
			if f.PricePerSqft == nil {
				return true
			}
			cheaper := f
			lower := *f.PricePerSqft * (1 - cut)
			cheaper.PricePerSqft = &lower
			return Score(cheaper) >= Score(f)
		},
		genFactors(),
		gen.Float64Range(0, 1),
	))

	properties.Property("identical inputs give identical outputs", prop.ForAll(
		func(f Factors) bool {
			return Score(f) == Score(f)
		},
		genFactors(),
	))

	properties.TestingRun(t)
}
