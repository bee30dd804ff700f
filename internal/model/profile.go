package model

// Role identifies which side of the marketplace a user works.
type Role string

const (
	RoleInvestor   Role = "investor"
	RoleWholesaler Role = "wholesaler"
)

// ParseRole normalizes a raw role string, defaulting to investor the way
// the dashboard boundary does for unknown segments.
func ParseRole(s string) Role {
	if Role(s) == RoleWholesaler {
		return RoleWholesaler
	}
	return RoleInvestor
}

// Profile is a role-specific user profile. Base identity and trust fields
// apply to every role; the buy_* fields are investor preferences and the
// wholesale/deal fields are wholesaler preferences. Unused fields for a
// given role stay nil.
type Profile struct {
	ID              string  `json:"id"`
	Role            Role    `json:"role"`
	FullName        *string `json:"full_name,omitempty"`
	CompanyName     *string `json:"company_name,omitempty"`
	ProfilePhotoURL *string `json:"profile_photo_url,omitempty"`
	PhoneVerified   *bool   `json:"phone_verified,omitempty"`
	LicenseInfo     *string `json:"license_info,omitempty"`

	// Investor preferences.
	BuyMarkets       []string `json:"buy_markets,omitempty"`
	BuyPropertyTypes []string `json:"buy_property_types,omitempty"`
	BuyPriceMin      *float64 `json:"buy_price_min,omitempty"`
	BuyPriceMax      *float64 `json:"buy_price_max,omitempty"`
	BuyStrategy      *string  `json:"buy_strategy,omitempty"`
	BuyCondition     *string  `json:"buy_condition,omitempty"`
	CapitalAvailable *float64 `json:"capital_available,omitempty"`

	// Wholesaler preferences.
	WholesaleMarkets   []string `json:"wholesale_markets,omitempty"`
	DealARVBands       []string `json:"deal_arbands,omitempty"`
	DealDiscountTarget *float64 `json:"deal_discount_target,omitempty"`
	AssignmentMethods  []string `json:"assignment_methods,omitempty"`
	AvgDaysToBuyer     *float64 `json:"avg_days_to_buyer,omitempty"`
}
