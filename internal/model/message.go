package model

import "time"

// Message is a buyer/seller conversation row. ReadAt is nil until the
// recipient opens the message; response-time stats only use read rows.
type Message struct {
	ID        string     `json:"id"`
	ListingID *string    `json:"listing_id"`
	FromID    string     `json:"from_id"`
	ToID      string     `json:"to_id"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}

// WatchlistEntry is a saved listing, joined with the listing's location so
// market rollups don't need a second fetch.
type WatchlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	City      *string   `json:"city"`
	State     *string   `json:"state"`
	Zip       *string   `json:"zip"`
	CreatedAt time.Time `json:"created_at"`
}
