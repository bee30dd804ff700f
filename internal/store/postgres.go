package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/russellquealy-cloud/dealflow/internal/db"
	"github.com/russellquealy-cloud/dealflow/internal/geo"
	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/trends"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	trends  *trends.Store
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const listingColumns = `id, owner_id, address, city, state, zip, price, sqft, beds, baths,
	property_type, status, latitude, longitude, views, price_reduced, created_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_listing":       `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`,
	"listings_by_owner": `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`,
	"live_listings":     `SELECT ` + listingColumns + ` FROM listings WHERE status = 'live' ORDER BY created_at DESC`,
	"watchlist_count":   `SELECT COUNT(*) FROM watchlists WHERE user_id = $1`,
	"analysis_count":    `SELECT COUNT(*) FROM ai_analysis_logs WHERE user_id = $1`,
	"messages_from":     `SELECT id, listing_id, from_id, to_id, created_at, read_at FROM messages WHERE from_id = $1 ORDER BY created_at DESC`,
	"messages_to":       `SELECT id, listing_id, from_id, to_id, created_at, read_at FROM messages WHERE to_id = $1 ORDER BY created_at DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, trends: trends.NewStore(pool), closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, for tests and embedding.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, trends: trends.NewStore(pool)}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id      TEXT NOT NULL,
	address       TEXT,
	city          TEXT,
	state         TEXT,
	zip           TEXT,
	price         DOUBLE PRECISION,
	sqft          DOUBLE PRECISION,
	beds          DOUBLE PRECISION,
	baths         DOUBLE PRECISION,
	property_type TEXT,
	status        TEXT NOT NULL DEFAULT 'draft',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	views         INTEGER,
	price_reduced BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS watchlists (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	listing_id TEXT REFERENCES listings(id),
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	read_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ai_analysis_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	listing_id TEXT,
	model      TEXT NOT NULL,
	tokens     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS market_trends (
	region                TEXT NOT NULL,
	period_end            DATE NOT NULL,
	median_sale_price     DOUBLE PRECISION NOT NULL,
	homes_sold            INTEGER,
	median_days_on_market INTEGER,
	avg_sale_to_list      DOUBLE PRECISION,
	PRIMARY KEY (region, period_end)
);

CREATE TABLE IF NOT EXISTS market_snapshots (
	region_name            TEXT NOT NULL,
	state_name             TEXT NOT NULL,
	region_type            TEXT NOT NULL DEFAULT 'city',
	pct_listings_price_cut DOUBLE PRECISION,
	median_days_to_close   DOUBLE PRECISION,
	zhvi_mid_sfr           DOUBLE PRECISION,
	PRIMARY KEY (region_name, state_name)
);

CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_listings_coords ON listings(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_watchlists_user ON watchlists(user_id);
CREATE INDEX IF NOT EXISTS idx_watchlists_listing ON watchlists(listing_id);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_id);
CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_id);
CREATE INDEX IF NOT EXISTS idx_analysis_logs_user ON ai_analysis_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_market_trends_region ON market_trends(region, period_end DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, l model.Listing) (*model.Listing, error) {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		l.ID, l.OwnerID, l.Address, l.City, l.State, l.Zip, l.Price, l.Sqft, l.Beds, l.Baths,
		l.PropertyType, string(l.Status), l.Latitude, l.Longitude, l.Views, l.PriceReduced, l.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert listing")
	}
	return &l, nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE true`
	args := []any{}
	argIdx := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(clause, argIdx)
		args = append(args, v)
		argIdx++
	}

	if f.OwnerID != "" {
		add(` AND owner_id = $%d`, f.OwnerID)
	}
	if f.Status != "" {
		add(` AND status = $%d`, string(f.Status))
	}
	if f.HasCoordinates || f.BBox != nil {
		query += ` AND latitude IS NOT NULL AND longitude IS NOT NULL`
	}
	if f.BBox != nil {
		add(` AND latitude >= $%d`, f.BBox.MinLat)
		add(` AND latitude <= $%d`, f.BBox.MaxLat)
		add(` AND longitude >= $%d`, f.BBox.MinLng)
		add(` AND longitude <= $%d`, f.BBox.MaxLng)
	}
	if f.Fields.MinPrice != nil {
		add(` AND price >= $%d`, *f.Fields.MinPrice)
	}
	if f.Fields.MaxPrice != nil {
		add(` AND price <= $%d`, *f.Fields.MaxPrice)
	}
	if f.Fields.MinBeds != nil {
		add(` AND beds >= $%d`, *f.Fields.MinBeds)
	}
	if f.Fields.MaxBeds != nil {
		add(` AND beds <= $%d`, *f.Fields.MaxBeds)
	}
	if f.Fields.MinBaths != nil {
		add(` AND baths >= $%d`, *f.Fields.MinBaths)
	}
	if f.Fields.MaxBaths != nil {
		add(` AND baths <= $%d`, *f.Fields.MaxBaths)
	}
	if f.Fields.MinSqft != nil {
		add(` AND sqft >= $%d`, *f.Fields.MinSqft)
	}
	if f.Fields.MaxSqft != nil {
		add(` AND sqft <= $%d`, *f.Fields.MaxSqft)
	}
	if f.Fields.PropertyType != nil {
		add(` AND property_type = $%d`, *f.Fields.PropertyType)
	}
	if f.Fields.Status != nil {
		add(` AND status = $%d`, *f.Fields.Status)
	}

	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	add(` LIMIT $%d`, limit)
	if f.Offset > 0 {
		add(` OFFSET $%d`, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) ListingsByOwner(ctx context.Context, ownerID string) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{OwnerID: ownerID})
}

func (s *PostgresStore) LiveListings(ctx context.Context) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{Status: model.StatusLive})
}

func (s *PostgresStore) ListingsInBounds(ctx context.Context, box geo.BBox, f geo.Filters) ([]model.Listing, error) {
	return s.ListListings(ctx, ListingFilter{BBox: &box, Fields: f})
}

func (s *PostgresStore) WatchlistCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM watchlists WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: watchlist count")
}

func (s *PostgresStore) WatchlistSince(ctx context.Context, userID string, since time.Time) ([]model.WatchlistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.id, w.user_id, w.listing_id, l.city, l.state, l.zip, w.created_at
		 FROM watchlists w JOIN listings l ON l.id = w.listing_id
		 WHERE w.user_id = $1 AND w.created_at >= $2
		 ORDER BY w.created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: watchlist since")
	}
	defer rows.Close()

	var out []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ListingID, &e.City, &e.State, &e.Zip, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan watchlist entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: watchlist iterate")
}

func (s *PostgresStore) MessagesFrom(ctx context.Context, userID string) ([]model.Message, error) {
	return s.queryMessages(ctx, `from_id`, userID)
}

func (s *PostgresStore) MessagesTo(ctx context.Context, userID string) ([]model.Message, error) {
	return s.queryMessages(ctx, `to_id`, userID)
}

func (s *PostgresStore) queryMessages(ctx context.Context, col, userID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, listing_id, from_id, to_id, created_at, read_at FROM messages
		 WHERE `+col+` = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: messages by %s", col)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ListingID, &m.FromID, &m.ToID, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: messages iterate")
}

func (s *PostgresStore) InsertAnalysisLog(ctx context.Context, log AnalysisLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_analysis_logs (id, user_id, listing_id, model, tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.UserID, log.ListingID, log.Model, log.Tokens, log.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert analysis log")
}

func (s *PostgresStore) AIAnalysisCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ai_analysis_logs WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: analysis count")
}

func (s *PostgresStore) LatestMedianSalePrice(ctx context.Context, region string) (*float64, error) {
	return s.trends.LatestMedianSalePrice(ctx, region)
}

func (s *PostgresStore) MedianSalePriceAt(ctx context.Context, region string, date time.Time) (*float64, error) {
	return s.trends.MedianSalePriceAt(ctx, region, date)
}

func (s *PostgresStore) TrendSeries(ctx context.Context, region string, limit int) ([]model.MarketTrend, error) {
	return s.trends.Series(ctx, region, limit)
}

func (s *PostgresStore) ImportTrends(ctx context.Context, records []model.MarketTrend) (int64, error) {
	return s.trends.Import(ctx, records)
}

func (s *PostgresStore) MarketSnapshots(ctx context.Context) ([]model.MarketSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region_name, state_name, region_type, pct_listings_price_cut, median_days_to_close, zhvi_mid_sfr
		 FROM market_snapshots`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: market snapshots")
	}
	defer rows.Close()

	var out []model.MarketSnapshot
	for rows.Next() {
		var m model.MarketSnapshot
		if err := rows.Scan(&m.RegionName, &m.StateName, &m.RegionType, &m.PctListingsPriceCut, &m.MedianDaysToClose, &m.ZHVIMidSFR); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: snapshots iterate")
}

func (s *PostgresStore) ImportSnapshots(ctx context.Context, records []model.MarketSnapshot) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.RegionName, r.StateName, r.RegionType,
			r.PctListingsPriceCut, r.MedianDaysToClose, r.ZHVIMidSFR,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "market_snapshots",
		Columns:      []string{"region_name", "state_name", "region_type", "pct_listings_price_cut", "median_days_to_close", "zhvi_mid_sfr"},
		ConflictKeys: []string{"region_name", "state_name"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import snapshots")
}

// scanListing reads one listing row in listingColumns order.
func scanListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	var status string
	err := row.Scan(
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
