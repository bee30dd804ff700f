package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/russellquealy-cloud/dealflow/internal/geo"
	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/trends"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	address       TEXT,
	city          TEXT,
	state         TEXT,
	zip           TEXT,
	price         REAL,
	sqft          REAL,
	beds          REAL,
	baths         REAL,
	property_type TEXT,
	status        TEXT NOT NULL DEFAULT 'draft',
	latitude      REAL,
	longitude     REAL,
	views         INTEGER,
	price_reduced INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME
);

CREATE TABLE IF NOT EXISTS watchlists (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	listing_id TEXT REFERENCES listings(id),
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	read_at    DATETIME
);

CREATE TABLE IF NOT EXISTS ai_analysis_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	listing_id TEXT,
	model      TEXT NOT NULL,
	tokens     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS market_trends (
	region                TEXT NOT NULL,
	period_end            DATETIME NOT NULL,
	median_sale_price     REAL NOT NULL,
	homes_sold            INTEGER,
	median_days_on_market INTEGER,
	avg_sale_to_list      REAL,
	PRIMARY KEY (region, period_end)
);

CREATE TABLE IF NOT EXISTS market_snapshots (
	region_name            TEXT NOT NULL,
	state_name             TEXT NOT NULL,
	region_type            TEXT NOT NULL DEFAULT 'city',
	pct_listings_price_cut REAL,
	median_days_to_close   REAL,
	zhvi_mid_sfr           REAL,
	PRIMARY KEY (region_name, state_name)
);

CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_watchlists_user ON watchlists(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_id);
CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_id);
CREATE INDEX IF NOT EXISTS idx_analysis_logs_user ON ai_analysis_logs(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateListing(ctx context.Context, l model.Listing) (*model.Listing, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt == nil {
		now := time.Now().UTC()
		l.CreatedAt = &now
	}
	if l.Status == "" {
		l.Status = model.StatusDraft
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (id, owner_id, address, city, state, zip, price, sqft, beds, baths,
		 property_type, status, latitude, longitude, views, price_reduced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.Address, l.City, l.State, l.Zip, l.Price, l.Sqft, l.Beds, l.Baths,
		l.PropertyType, string(l.Status), l.Latitude, l.Longitude, l.Views, l.PriceReduced, l.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert listing")
	}
	return &l, nil
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, address, city, state, zip, price, sqft, beds, baths,
		 property_type, status, latitude, longitude, views, price_reduced, created_at
		 FROM listings WHERE id = ?`, id)
	l, err := scanSQLiteListing(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	query := `SELECT id, owner_id, address, city, state, zip, price, sqft, beds, baths,
	 property_type, status, latitude, longitude, views, price_reduced, created_at
	 FROM listings WHERE true`
	args := []any{}

	add := func(clause string, v any) {
		query += clause
		args = append(args, v)
	}

	if f.OwnerID != "" {
		add(` AND owner_id = ?`, f.OwnerID)
	}
	if f.Status != "" {
		add(` AND status = ?`, string(f.Status))
	}
	if f.HasCoordinates || f.BBox != nil {
		query += ` AND latitude IS NOT NULL AND longitude IS NOT NULL`
	}
	if f.BBox != nil {
		add(` AND latitude >= ?`, f.BBox.MinLat)
		add(` AND latitude <= ?`, f.BBox.MaxLat)
		add(` AND longitude >= ?`, f.BBox.MinLng)
		add(` AND longitude <= ?`, f.BBox.MaxLng)
	}
	if f.Fields.MinPrice != nil {
		add(` AND price >= ?`, *f.Fields.MinPrice)
	}
	if f.Fields.MaxPrice != nil {
		add(` AND price <= ?`, *f.Fields.MaxPrice)
	}
	if f.Fields.MinBeds != nil {
		add(` AND beds >= ?`, *f.Fields.MinBeds)
	}
	if f.Fields.MaxBeds != nil {
		add(` AND beds <= ?`, *f.Fields.MaxBeds)
	}
	if f.Fields.MinBaths != nil {
		add(` AND baths >= ?`, *f.Fields.MinBaths)
	}
	if f.Fields.MaxBaths != nil {
		add(` AND baths <= ?`, *f.Fields.MaxBaths)
	}
	if f.Fields.MinSqft != nil {
		add(` AND sqft >= ?`, *f.Fields.MinSqft)
	}
	if f.Fields.MaxSqft != nil {
		add(` AND sqft <= ?`, *f.Fields.MaxSqft)
	}
	if f.Fields.PropertyType != nil {
		add(` AND property_type = ?`, *f.Fields.PropertyType)
	}
	if f.Fields.Status != nil {
		add(` AND status = ?`, *f.Fields.Status)
	}

	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	add(` LIMIT ?`, limit)
	if f.Offset > 0 {
		add(` OFFSET ?`, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) ListingsByOwner(ctx context.Context, ownerID string) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{OwnerID: ownerID})
}

func (s *SQLiteStore) LiveListings(ctx context.Context) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{Status: model.StatusLive})
}

func (s *SQLiteStore) ListingsInBounds(ctx context.Context, box geo.BBox, f geo.Filters) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{BBox: &box, Fields: f})
}

// SaveToWatchlist records a saved listing, idempotent per (user, listing).
func (s *SQLiteStore) SaveToWatchlist(ctx context.Context, userID, listingID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlists (id, user_id, listing_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, listing_id) DO NOTHING`,
		uuid.New().String(), userID, listingID, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save to watchlist")
}

func (s *SQLiteStore) WatchlistCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watchlists WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: watchlist count")
}

func (s *SQLiteStore) WatchlistSince(ctx context.Context, userID string, since time.Time) ([]model.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT w.id, w.user_id, w.listing_id, l.city, l.state, l.zip, w.created_at
		 FROM watchlists w JOIN listings l ON l.id = w.listing_id
		 WHERE w.user_id = ? AND w.created_at >= ?
		 ORDER BY w.created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: watchlist since")
	}
	defer rows.Close()

	var out []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ListingID, &e.City, &e.State, &e.Zip, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan watchlist entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: watchlist iterate")
}

// InsertMessage records a conversation row. Used by fixtures and local dev.
func (s *SQLiteStore) InsertMessage(ctx context.Context, m model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, listing_id, from_id, to_id, created_at, read_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ListingID, m.FromID, m.ToID, m.CreatedAt, m.ReadAt,
	)
	return eris.Wrap(err, "sqlite: insert message")
}

func (s *SQLiteStore) MessagesFrom(ctx context.Context, userID string) ([]model.Message, error) {
	return s.queryMessages(ctx, `from_id`, userID)
}

func (s *SQLiteStore) MessagesTo(ctx context.Context, userID string) ([]model.Message, error) {
	return s.queryMessages(ctx, `to_id`, userID)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, col, userID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, from_id, to_id, created_at, read_at FROM messages
		 WHERE `+col+` = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: messages by %s", col)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ListingID, &m.FromID, &m.ToID, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: messages iterate")
}

func (s *SQLiteStore) InsertAnalysisLog(ctx context.Context, log AnalysisLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_analysis_logs (id, user_id, listing_id, model, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.ListingID, log.Model, log.Tokens, log.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert analysis log")
}

func (s *SQLiteStore) AIAnalysisCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_analysis_logs WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: analysis count")
}

func (s *SQLiteStore) LatestMedianSalePrice(ctx context.Context, region string) (*float64, error) {
	var median float64
	err := s.db.QueryRowContext(ctx,
		`SELECT median_sale_price FROM market_trends WHERE region = ? ORDER BY period_end DESC LIMIT 1`,
		region,
	).Scan(&median)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest median for %s", region)
	}
	return &median, nil
}

func (s *SQLiteStore) MedianSalePriceAt(ctx context.Context, region string, date time.Time) (*float64, error) {
	var median float64
	err := s.db.QueryRowContext(ctx,
		`SELECT median_sale_price FROM market_trends WHERE region = ? AND period_end <= ? ORDER BY period_end DESC LIMIT 1`,
		region, date,
	).Scan(&median)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: median for %s at %s", region, date.Format("2006-01-02"))
	}
	return &median, nil
}

// AdjustedPrice rescales a historical price for a region into current
// market terms using the stored medians.
func (s *SQLiteStore) AdjustedPrice(ctx context.Context, region string, originalPrice float64, asOf time.Time) (float64, error) {
	atRef, err := s.MedianSalePriceAt(ctx, region, asOf)
	if err != nil {
		return originalPrice, err
	}
	current, err := s.LatestMedianSalePrice(ctx, region)
	if err != nil {
		return originalPrice, err
	}
	return trends.AdjustPriceForTrend(originalPrice, atRef, current), nil
}

func (s *SQLiteStore) TrendSeries(ctx context.Context, region string, limit int) ([]model.MarketTrend, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, period_end, median_sale_price, homes_sold, median_days_on_market, avg_sale_to_list
		 FROM market_trends WHERE region = ? ORDER BY period_end DESC LIMIT ?`,
		region, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: series for %s", region)
	}
	defer rows.Close()

	var out []model.MarketTrend
	for rows.Next() {
		var t model.MarketTrend
		if err := rows.Scan(&t.Region, &t.PeriodEnd, &t.MedianSalePrice, &t.HomesSold, &t.MedianDaysOnMarket, &t.AvgSaleToList); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan series row")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: series iterate")
}

func (s *SQLiteStore) ImportTrends(ctx context.Context, records []model.MarketTrend) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO market_trends (region, period_end, median_sale_price, homes_sold, median_days_on_market, avg_sale_to_list)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (region, period_end) DO UPDATE SET
		   median_sale_price = excluded.median_sale_price,
		   homes_sold = excluded.homes_sold,
		   median_days_on_market = excluded.median_days_on_market,
		   avg_sale_to_list = excluded.avg_sale_to_list`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close()

	var n int64
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Region, r.PeriodEnd, r.MedianSalePrice,
			r.HomesSold, r.MedianDaysOnMarket, r.AvgSaleToList); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert trend %s", r.Region)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

func (s *SQLiteStore) MarketSnapshots(ctx context.Context) ([]model.MarketSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_name, state_name, region_type, pct_listings_price_cut, median_days_to_close, zhvi_mid_sfr
		 FROM market_snapshots`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: market snapshots")
	}
	defer rows.Close()

	var out []model.MarketSnapshot
	for rows.Next() {
		var m model.MarketSnapshot
		if err := rows.Scan(&m.RegionName, &m.StateName, &m.RegionType, &m.PctListingsPriceCut, &m.MedianDaysToClose, &m.ZHVIMidSFR); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: snapshots iterate")
}

func (s *SQLiteStore) ImportSnapshots(ctx context.Context, records []model.MarketSnapshot) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin snapshot import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO market_snapshots (region_name, state_name, region_type, pct_listings_price_cut, median_days_to_close, zhvi_mid_sfr)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (region_name, state_name) DO UPDATE SET
		   region_type = excluded.region_type,
		   pct_listings_price_cut = excluded.pct_listings_price_cut,
		   median_days_to_close = excluded.median_days_to_close,
		   zhvi_mid_sfr = excluded.zhvi_mid_sfr`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare snapshot import")
	}
	defer stmt.Close()

	var n int64
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.RegionName, r.StateName, r.RegionType,
			r.PctListingsPriceCut, r.MedianDaysToClose, r.ZHVIMidSFR); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert snapshot %s", r.RegionName)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit snapshot import")
	}
	return n, nil
}

// scanSQLiteListing reads one listing row; scan is *sql.Row.Scan or
// *sql.Rows.Scan.
func scanSQLiteListing(scan func(dest ...any) error) (*model.Listing, error) {
	var l model.Listing
	var status string
	err := scan(
		&l.ID, &l.OwnerID, &l.Address, &l.City, &l.State, &l.Zip,
		&l.Price, &l.Sqft, &l.Beds, &l.Baths, &l.PropertyType, &status,
		&l.Latitude, &l.Longitude, &l.Views, &l.PriceReduced, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListingStatus(status)
	return &l, nil
}
