// Package profile scores how complete a role-specific user profile is,
// driving the profile-completion prompts on the account surfaces.
package profile

import (
	"math"
	"strings"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// Result is a completeness score with the fields still missing, listed in
// evaluation order (base, then trust, then role-specific).
type Result struct {
	Score         int      `json:"score"`
	MissingFields []string `json:"missingFields"`
}

// Group weights are fixed: identity basics 30, trust signals 20, and the
// role-specific preference set 50. Each field in a group earns an equal
// share of the group's weight.
const (
	baseWeight  = 30.0
	trustWeight = 20.0
	roleWeight  = 50.0
)

type field struct {
	name   string
	filled func(*model.Profile) bool
}

var baseFields = []field{
	{"full_name", func(p *model.Profile) bool { return stringSet(p.FullName) }},
	{"company_name", func(p *model.Profile) bool { return stringSet(p.CompanyName) }},
	{"profile_photo_url", func(p *model.Profile) bool { return stringSet(p.ProfilePhotoURL) }},
}

var trustFields = []field{
	{"phone_verified", func(p *model.Profile) bool { return p.PhoneVerified != nil && *p.PhoneVerified }},
	{"license_info", func(p *model.Profile) bool { return stringSet(p.LicenseInfo) }},
}

var investorFields = []field{
	{"buy_markets", func(p *model.Profile) bool { return len(p.BuyMarkets) > 0 }},
	{"buy_property_types", func(p *model.Profile) bool { return len(p.BuyPropertyTypes) > 0 }},
	{"buy_price_min", func(p *model.Profile) bool { return numberSet(p.BuyPriceMin) }},
	{"buy_price_max", func(p *model.Profile) bool { return numberSet(p.BuyPriceMax) }},
	{"buy_strategy", func(p *model.Profile) bool { return stringSet(p.BuyStrategy) }},
	{"buy_condition", func(p *model.Profile) bool { return stringSet(p.BuyCondition) }},
	{"capital_available", func(p *model.Profile) bool { return numberSet(p.CapitalAvailable) }},
}

var wholesalerFields = []field{
	{"wholesale_markets", func(p *model.Profile) bool { return len(p.WholesaleMarkets) > 0 }},
	{"deal_arbands", func(p *model.Profile) bool { return len(p.DealARVBands) > 0 }},
	{"deal_discount_target", func(p *model.Profile) bool { return numberSet(p.DealDiscountTarget) }},
	{"assignment_methods", func(p *model.Profile) bool { return len(p.AssignmentMethods) > 0 }},
	{"avg_days_to_buyer", func(p *model.Profile) bool { return numberSet(p.AvgDaysToBuyer) }},
}

// Completeness scores a profile 0-100 and reports the unfilled fields.
// The result depends only on the profile value; scoring is pure.
func Completeness(p *model.Profile) Result {
	var score float64
	var missing []string

	roleFields := investorFields
	if p.Role == model.RoleWholesaler {
		roleFields = wholesalerFields
	}

	groups := []struct {
		weight float64
		fields []field
	}{
		{baseWeight, baseFields},
		{trustWeight, trustFields},
		{roleWeight, roleFields},
	}

	for _, g := range groups {
		if len(g.fields) == 0 {
			continue
		}
		perField := g.weight / float64(len(g.fields))
		for _, f := range g.fields {
			if f.filled(p) {
				score += perField
			} else {
				missing = append(missing, f.name)
			}
		}
	}

	rounded := int(math.Round(score))
	if rounded > 100 {
		rounded = 100
	}
	if rounded < 0 {
		rounded = 0
	}

	return Result{Score: rounded, MissingFields: missing}
}

func stringSet(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func numberSet(n *float64) bool {
	return n != nil && !math.IsNaN(*n) && !math.IsInf(*n, 0) && *n > 0
}
