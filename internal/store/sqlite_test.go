package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellquealy-cloud/dealflow/internal/geo"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func str(s string) *string   { return &s }
func f64(v float64) *float64 { return &v }
func intPtr(v int) *int      { return &v }

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedListing(t *testing.T, st *SQLiteStore, l model.Listing) model.Listing {
	t.Helper()
	created, err := st.CreateListing(context.Background(), l)
	require.NoError(t, err)
	return *created
}

// --- Listings ---

func TestSQLite_CreateAndGetListing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created := seedListing(t, st, model.Listing{
		OwnerID:      "w1",
		Address:      str("12 Elm St"),
		City:         str("Austin"),
		State:        str("TX"),
		Price:        f64(250000),
		Sqft:         f64(1500),
		Status:       model.StatusLive,
		Latitude:     f64(30.27),
		Longitude:    f64(-97.74),
		Views:        intPtr(9),
		PriceReduced: true,
	})
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.CreatedAt)

	got, err := st.GetListing(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "w1", got.OwnerID)
	assert.Equal(t, model.StatusLive, got.Status)
	require.NotNil(t, got.Price)
	assert.Equal(t, 250000.0, *got.Price)
	require.NotNil(t, got.Views)
	assert.Equal(t, 9, *got.Views)
	assert.True(t, got.PriceReduced)
}

func TestSQLite_GetListingMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetListing(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListingNullFields(t *testing.T) {
	st := newTestSQLiteStore(t)

	created := seedListing(t, st, model.Listing{OwnerID: "w1"})

	got, err := st.GetListing(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Price)
	assert.Nil(t, got.City)
	assert.Nil(t, got.Views)
	assert.Equal(t, model.StatusDraft, got.Status, "status defaults on create")
	assert.False(t, got.HasCoordinates())
}

func TestSQLite_ListListingsFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedListing(t, st, model.Listing{OwnerID: "w1", Status: model.StatusLive, Price: f64(100000)})
	seedListing(t, st, model.Listing{OwnerID: "w1", Status: model.StatusSold, Price: f64(200000)})
	seedListing(t, st, model.Listing{OwnerID: "w2", Status: model.StatusLive, Price: f64(300000)})

	byOwner, err := st.ListingsByOwner(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	live, err := st.LiveListings(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 2)

	expensive, err := st.ListListings(ctx, ListingFilter{Fields: geo.Filters{MinPrice: f64(250000)}})
	require.NoError(t, err)
	require.Len(t, expensive, 1)
	assert.Equal(t, "w2", expensive[0].OwnerID)
}

func TestSQLite_ListingsInBounds(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	in := seedListing(t, st, model.Listing{OwnerID: "w1", Latitude: f64(30.5), Longitude: f64(-97.5)})
	seedListing(t, st, model.Listing{OwnerID: "w1", Latitude: f64(40.0), Longitude: f64(-97.5)})
	seedListing(t, st, model.Listing{OwnerID: "w1"}) // no coordinates

	got, err := st.ListingsInBounds(ctx, geo.BBox{MinLng: -98, MinLat: 30, MaxLng: -97, MaxLat: 31}, geo.Filters{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in.ID, got[0].ID)
}

// --- Activity ---

func TestSQLite_Watchlist(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := seedListing(t, st, model.Listing{OwnerID: "w1", City: str("Austin"), State: str("TX")})

	require.NoError(t, st.SaveToWatchlist(ctx, "u1", l.ID))
	// Saving twice stays idempotent.
	require.NoError(t, st.SaveToWatchlist(ctx, "u1", l.ID))

	count, err := st.WatchlistCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := st.WatchlistSince(ctx, "u1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].City)
	assert.Equal(t, "Austin", *entries[0].City)

	none, err := st.WatchlistSince(ctx, "u1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Messages(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := seedListing(t, st, model.Listing{OwnerID: "w1"})
	older := time.Now().UTC().Add(-2 * time.Hour)
	read := older.Add(time.Hour)
	require.NoError(t, st.InsertMessage(ctx, model.Message{
		ListingID: &l.ID, FromID: "u1", ToID: "w1", CreatedAt: older, ReadAt: &read,
	}))
	require.NoError(t, st.InsertMessage(ctx, model.Message{
		FromID: "u2", ToID: "w1",
	}))

	inbound, err := st.MessagesTo(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, inbound, 2)

	sent, err := st.MessagesFrom(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].ListingID)
	assert.Equal(t, l.ID, *sent[0].ListingID)
	assert.NotNil(t, sent[0].ReadAt)
	assert.Nil(t, inbound[0].ReadAt, "newest message is unread")
}

func TestSQLite_AnalysisLogs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertAnalysisLog(ctx, AnalysisLog{UserID: "u1", Model: "claude", Tokens: 1200}))
	require.NoError(t, st.InsertAnalysisLog(ctx, AnalysisLog{UserID: "u1", Model: "heuristic"}))
	require.NoError(t, st.InsertAnalysisLog(ctx, AnalysisLog{UserID: "u2", Model: "claude"}))

	count, err := st.AIAnalysisCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// --- Market data ---

func TestSQLite_TrendsImportAndLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	jan := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	n, err := st.ImportTrends(ctx, []model.MarketTrend{
		{Region: "Austin, TX", PeriodEnd: jan, MedianSalePrice: 100},
		{Region: "Austin, TX", PeriodEnd: feb, MedianSalePrice: 110},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	latest, err := st.LatestMedianSalePrice(ctx, "Austin, TX")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 110.0, *latest)

	at, err := st.MedianSalePriceAt(ctx, "Austin, TX", jan.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, 100.0, *at)

	adjusted, err := st.AdjustedPrice(ctx, "Austin, TX", 200000, jan)
	require.NoError(t, err)
	assert.Equal(t, 220000.0, adjusted)

	missing, err := st.LatestMedianSalePrice(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, missing)

	series, err := st.TrendSeries(ctx, "Austin, TX", 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 110.0, series[0].MedianSalePrice, "newest first")
}

func TestSQLite_TrendsImportUpserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	jan := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := st.ImportTrends(ctx, []model.MarketTrend{
		{Region: "Austin, TX", PeriodEnd: jan, MedianSalePrice: 100},
	})
	require.NoError(t, err)
	_, err = st.ImportTrends(ctx, []model.MarketTrend{
		{Region: "Austin, TX", PeriodEnd: jan, MedianSalePrice: 105},
	})
	require.NoError(t, err)

	latest, err := st.LatestMedianSalePrice(ctx, "Austin, TX")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 105.0, *latest)
}

func TestSQLite_Snapshots(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ImportSnapshots(ctx, []model.MarketSnapshot{
		{RegionName: "Austin", StateName: "TX", RegionType: "city", ZHVIMidSFR: f64(400000)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Re-import replaces the row instead of duplicating it.
	_, err = st.ImportSnapshots(ctx, []model.MarketSnapshot{
		{RegionName: "Austin", StateName: "TX", RegionType: "city", ZHVIMidSFR: f64(410000)},
	})
	require.NoError(t, err)

	snaps, err := st.MarketSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].ZHVIMidSFR)
	assert.Equal(t, 410000.0, *snaps[0].ZHVIMidSFR)
	assert.Nil(t, snaps[0].PctListingsPriceCut)
}
