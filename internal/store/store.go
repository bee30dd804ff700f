// Package store persists marketplace data behind a narrow typed interface.
// Postgres backs production; SQLite backs local and dev use.
package store

import (
	"context"
	"time"

	"github.com/russellquealy-cloud/dealflow/internal/geo"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// ListingFilter specifies criteria for listing queries.
type ListingFilter struct {
	OwnerID        string              `json:"owner_id,omitempty"`
	Status         model.ListingStatus `json:"status,omitempty"`
	HasCoordinates bool                `json:"has_coordinates,omitempty"`
	BBox           *geo.BBox           `json:"bbox,omitempty"`
	Fields         geo.Filters         `json:"fields,omitempty"`
	Limit          int                 `json:"limit,omitempty"`
	Offset         int                 `json:"offset,omitempty"`
}

// AnalysisLog records one AI deal-analysis invocation for usage metering.
type AnalysisLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ListingID *string   `json:"listing_id"`
	Model     string    `json:"model"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for the deal marketplace core.
type Store interface {
	// Listings
	CreateListing(ctx context.Context, l model.Listing) (*model.Listing, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error)
	ListingsByOwner(ctx context.Context, ownerID string) ([]model.Listing, error)
	LiveListings(ctx context.Context) ([]model.Listing, error)
	ListingsInBounds(ctx context.Context, box geo.BBox, f geo.Filters) ([]model.Listing, error)

	// Activity
	WatchlistCount(ctx context.Context, userID string) (int, error)
	WatchlistSince(ctx context.Context, userID string, since time.Time) ([]model.WatchlistEntry, error)
	MessagesFrom(ctx context.Context, userID string) ([]model.Message, error)
	MessagesTo(ctx context.Context, userID string) ([]model.Message, error)

	// AI analysis usage
	InsertAnalysisLog(ctx context.Context, log AnalysisLog) error
	AIAnalysisCount(ctx context.Context, userID string) (int, error)

	// Market trends
	LatestMedianSalePrice(ctx context.Context, region string) (*float64, error)
	MedianSalePriceAt(ctx context.Context, region string, date time.Time) (*float64, error)
	TrendSeries(ctx context.Context, region string, limit int) ([]model.MarketTrend, error)
	ImportTrends(ctx context.Context, records []model.MarketTrend) (int64, error)

	// Market snapshots
	MarketSnapshots(ctx context.Context) ([]model.MarketSnapshot, error)
	ImportSnapshots(ctx context.Context, records []model.MarketSnapshot) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
