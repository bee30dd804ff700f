package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func str(s string) *string      { return &s }
func f64(v float64) *float64    { return &v }
func intPtr(v int) *int         { return &v }
func tm(t time.Time) *time.Time { return &t }
func daysAgo(d int) time.Time   { return testNow.Add(-time.Duration(d) * 24 * time.Hour) }

type fakeSource struct {
	owned      []model.Listing
	live       []model.Listing
	watchCount int
	watchlist  []model.WatchlistEntry
	sent       []model.Message
	inbound    []model.Message
	analyses   int
	snapshots  []model.MarketSnapshot
	err        error
}

func (f *fakeSource) ListingsByOwner(_ context.Context, _ string) ([]model.Listing, error) {
	return f.owned, f.err
}

func (f *fakeSource) LiveListings(_ context.Context) ([]model.Listing, error) {
	return f.live, f.err
}

func (f *fakeSource) WatchlistCount(_ context.Context, _ string) (int, error) {
	return f.watchCount, f.err
}

func (f *fakeSource) WatchlistSince(_ context.Context, _ string, _ time.Time) ([]model.WatchlistEntry, error) {
	return f.watchlist, f.err
}

func (f *fakeSource) MessagesFrom(_ context.Context, _ string) ([]model.Message, error) {
	return f.sent, f.err
}

func (f *fakeSource) MessagesTo(_ context.Context, _ string) ([]model.Message, error) {
	return f.inbound, f.err
}

func (f *fakeSource) AIAnalysisCount(_ context.Context, _ string) (int, error) {
	return f.analyses, f.err
}

func (f *fakeSource) MarketSnapshots(_ context.Context) ([]model.MarketSnapshot, error) {
	return f.snapshots, f.err
}

func newTestAggregator(src Source) *Aggregator {
	return NewAt(src, func() time.Time { return testNow })
}

func TestNewTrendStat(t *testing.T) {
	tests := []struct {
		name       string
		current    int
		previous   int
		change     int
		changeType ChangeType
	}{
		{"flat is neutral", 10, 10, 0, ChangeNeutral},
		{"drop to zero is a decrease", 0, 5, -5, ChangeDecrease},
		{"growth from zero is an increase", 5, 0, 5, ChangeIncrease},
		{"both zero is neutral", 0, 0, 0, ChangeNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTrendStat("Deals Viewed", tt.current, tt.previous)
			assert.Equal(t, "Deals Viewed", ts.Label)
			assert.Equal(t, tt.change, ts.Change)
			assert.Equal(t, tt.changeType, ts.ChangeType)
		})
	}
}

func TestInvestorSnapshot(t *testing.T) {
	src := &fakeSource{
		watchCount: 3,
		analyses:   2,
		sent: []model.Message{
			// Two messages to the same listing inside the current window
			// count once for deals viewed.
			{ID: "m1", FromID: "u1", ListingID: str("l1"), CreatedAt: daysAgo(5)},
			{ID: "m2", FromID: "u1", ListingID: str("l1"), CreatedAt: daysAgo(10)},
			{ID: "m3", FromID: "u1", ListingID: str("l2"), CreatedAt: daysAgo(20)},
			{ID: "m4", FromID: "u1", ListingID: str("l3"), CreatedAt: daysAgo(45)},
			{ID: "m5", FromID: "u1", ListingID: str("l4"), CreatedAt: daysAgo(90)},
			{ID: "m6", FromID: "u1", ListingID: nil, CreatedAt: daysAgo(5)},
		},
		watchlist: []model.WatchlistEntry{
			{ID: "w1", City: str("Austin"), State: str("TX"), CreatedAt: daysAgo(3)},
			{ID: "w2", City: str("Austin"), State: str("TX"), CreatedAt: daysAgo(9)},
			{ID: "w3", City: str("Tulsa"), State: str("OK"), CreatedAt: daysAgo(40)},
		},
	}
	snap, err := newTestAggregator(src).Investor(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, snap.SavedListings)
	assert.Equal(t, 3, snap.Watchlists)
	assert.Equal(t, 2, snap.AIAnalyses)
	// Distinct listings across all sent messages, nil listing ids skipped.
	assert.Equal(t, 4, snap.ContactsMade)

	assert.Equal(t, 2, snap.DealsViewed.Current)
	assert.Equal(t, 1, snap.DealsViewed.Previous)
	assert.Equal(t, ChangeIncrease, snap.DealsViewed.ChangeType)

	require.Len(t, snap.HotMarkets, 2)
	assert.Equal(t, HotMarket{Label: "Austin, TX", Value: 2}, snap.HotMarkets[0])
	assert.Equal(t, HotMarket{Label: "Tulsa, OK", Value: 1}, snap.HotMarkets[1])

	// round((3*5 + 4*12 + 3*4 + 2*8 + 2*10) / 2) = round(111/2) = 56
	assert.Equal(t, 56, snap.ActivityScore)
}

func TestActivityScoreCapped(t *testing.T) {
	score := activityScore(&InvestorSnapshot{
		SavedListings: 50,
		ContactsMade:  50,
		Watchlists:    50,
		AIAnalyses:    50,
		DealsViewed:   TrendStat{Current: 50},
	})
	assert.Equal(t, 100, score)
}

func TestWholesalerSnapshot(t *testing.T) {
	src := &fakeSource{
		watchCount: 1,
		analyses:   4,
		owned: []model.Listing{
			{ID: "l1", Status: model.StatusLive, Views: intPtr(10), CreatedAt: tm(daysAgo(7))},
			{ID: "l2", Status: model.StatusPending, CreatedAt: tm(daysAgo(40))},
			{ID: "l3", Status: model.StatusSold, Views: intPtr(5), CreatedAt: tm(daysAgo(120))},
			{ID: "l4", Status: model.StatusClosed, Views: intPtr(2), CreatedAt: tm(daysAgo(200))},
		},
		inbound: []model.Message{
			{ID: "m1", FromID: "a", CreatedAt: daysAgo(2), ReadAt: tm(daysAgo(2).Add(2 * time.Hour))},
			{ID: "m2", FromID: "b", CreatedAt: daysAgo(8), ReadAt: tm(daysAgo(8).Add(3 * time.Hour))},
			{ID: "m3", FromID: "b", CreatedAt: daysAgo(12)},
			{ID: "m4", FromID: "c", CreatedAt: daysAgo(50), ReadAt: tm(daysAgo(51))},
		},
	}
	snap, err := newTestAggregator(src).Wholesaler(context.Background(), "w1")
	require.NoError(t, err)

	assert.Equal(t, 1, snap.SavedListings)
	assert.Equal(t, 4, snap.AIAnalyses)
	assert.Equal(t, 4, snap.MessagesReceived)
	assert.Equal(t, 3, snap.ContactsMade)
	assert.Equal(t, 17, snap.ViewsReceived)

	assert.Equal(t, 1, snap.ListingsPosted.Current)
	assert.Equal(t, 1, snap.ListingsPosted.Previous)
	assert.Equal(t, ChangeNeutral, snap.ListingsPosted.ChangeType)

	assert.Equal(t, 2, snap.LeadsGenerated.Current)
	assert.Equal(t, 1, snap.LeadsGenerated.Previous)
	assert.Equal(t, ChangeIncrease, snap.LeadsGenerated.ChangeType)

	assert.Equal(t, StatusBreakdown{Total: 4, Active: 1, Pending: 1, Sold: 2}, snap.StatusBreakdown)

	// Two usable samples, 2h and 3h; the read-before-created row is skipped.
	require.NotNil(t, snap.AvgResponseHours)
	assert.Equal(t, 2.5, *snap.AvgResponseHours)

	// Two leads over one listing posted this period caps at 1.
	require.NotNil(t, snap.ConversionRate)
	assert.Equal(t, 1.0, *snap.ConversionRate)
}

func TestWholesalerSnapshot_NoActivity(t *testing.T) {
	snap, err := newTestAggregator(&fakeSource{}).Wholesaler(context.Background(), "w1")
	require.NoError(t, err)

	assert.Equal(t, ChangeNeutral, snap.ListingsPosted.ChangeType)
	assert.Equal(t, StatusBreakdown{}, snap.StatusBreakdown)
	assert.Nil(t, snap.AvgResponseHours, "no read messages means no average")
	assert.Nil(t, snap.ConversionRate, "no listings posted means no rate")
}

func TestSnapshotDispatchesOnRole(t *testing.T) {
	agg := newTestAggregator(&fakeSource{})

	inv, err := agg.Snapshot(context.Background(), model.Viewer{UserID: "u1", Role: model.RoleInvestor})
	require.NoError(t, err)
	assert.NotNil(t, inv.Investor)
	assert.Nil(t, inv.Wholesaler)

	ws, err := agg.Snapshot(context.Background(), model.Viewer{UserID: "u1", Role: model.RoleWholesaler})
	require.NoError(t, err)
	assert.NotNil(t, ws.Wholesaler)
	assert.Nil(t, ws.Investor)
}

func TestSnapshotSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	agg := newTestAggregator(src)

	_, err := agg.Investor(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load investor activity")

	_, err = agg.Wholesaler(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load wholesaler activity")
}

func TestMarketLabelFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		entry model.WatchlistEntry
		want  string
	}{
		{"city and state", model.WatchlistEntry{City: str("Austin"), State: str("TX")}, "Austin, TX"},
		{"city only", model.WatchlistEntry{City: str("Austin")}, "Austin"},
		{"state only", model.WatchlistEntry{State: str("TX")}, "TX"},
		{"zip only", model.WatchlistEntry{Zip: str("78701")}, "78701"},
		{"nothing", model.WatchlistEntry{}, "Unknown Market"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marketLabel(tt.entry))
		})
	}
}

func TestRankMarketsTopThree(t *testing.T) {
	entries := []model.WatchlistEntry{
		{City: str("Austin"), State: str("TX")},
		{City: str("Austin"), State: str("TX")},
		{City: str("Austin"), State: str("TX")},
		{City: str("Tulsa"), State: str("OK")},
		{City: str("Tulsa"), State: str("OK")},
		{City: str("Boise"), State: str("ID")},
		{City: str("Reno"), State: str("NV")},
	}
	ranked := rankMarkets(entries)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Austin, TX", ranked[0].Label)
	assert.Equal(t, 3, ranked[0].Value)
	assert.Equal(t, "Tulsa, OK", ranked[1].Label)
	// Boise and Reno tie at 1; the alphabetical one survives the cut.
	assert.Equal(t, "Boise, ID", ranked[2].Label)
}

func TestAggregatorDeterministic(t *testing.T) {
	src := &fakeSource{
		watchCount: 2,
		analyses:   1,
		sent: []model.Message{
			{ID: "m1", FromID: "u1", ListingID: str("l1"), CreatedAt: daysAgo(3)},
		},
	}
	agg := newTestAggregator(src)
	first, err := agg.Investor(context.Background(), "u1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := agg.Investor(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
