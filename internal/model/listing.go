// Package model defines the domain types shared across the dealflow core.
package model

import "time"

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusDraft   ListingStatus = "draft"
	StatusLive    ListingStatus = "live"
	StatusPending ListingStatus = "pending"
	StatusSold    ListingStatus = "sold"
	StatusClosed  ListingStatus = "closed"
)

// Closed reports whether the status counts as a completed sale.
// The source data uses both "sold" and "closed".
func (s ListingStatus) Closed() bool {
	return s == StatusSold || s == StatusClosed
}

// Listing is a marketplace listing as read from storage. Numeric and
// location fields are pointers because the source rows are partially
// populated; absence is meaningful and never an error.
type Listing struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Address      *string       `json:"address"`
	City         *string       `json:"city"`
	State        *string       `json:"state"`
	Zip          *string       `json:"zip"`
	Price        *float64      `json:"price"`
	Sqft         *float64      `json:"sqft"`
	Beds         *float64      `json:"beds"`
	Baths        *float64      `json:"baths"`
	PropertyType *string       `json:"property_type"`
	Status       ListingStatus `json:"status"`
	Latitude     *float64      `json:"latitude"`
	Longitude    *float64      `json:"longitude"`
	Views        *int          `json:"views"`
	PriceReduced bool          `json:"price_reduced"`
	CreatedAt    *time.Time    `json:"created_at"`
}

// HasCoordinates reports whether the listing can be placed on a map.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}
