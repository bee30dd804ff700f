package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/russellquealy-cloud/dealflow/internal/distress"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

var scoreNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func agedListing(id string, daysOnMarket int, reduced bool) model.Listing {
	created := scoreNow.AddDate(0, 0, -daysOnMarket)
	return model.Listing{
		ID:           id,
		OwnerID:      "w1",
		Status:       model.StatusLive,
		State:        str("TX"),
		City:         str("Austin"),
		Price:        f64(200000),
		Sqft:         f64(1000),
		PriceReduced: reduced,
		CreatedAt:    &created,
	}
}

func TestScoreListingsOrdersByDistress(t *testing.T) {
	listings := []model.Listing{
		agedListing("fresh", 5, false),
		agedListing("stale", 120, true),
		agedListing("aging", 70, false),
	}

	results := scoreListings(listings, nil, distress.DefaultConfig(), 0, scoreNow)
	require.Len(t, results, 3)
	assert.Equal(t, "stale", results[0].Listing.ID)
	assert.Equal(t, 120, results[0].DaysOnMarket)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "fresh", results[2].Listing.ID)
	assert.Zero(t, results[2].Score)
}

func TestScoreListingsMinScoreCut(t *testing.T) {
	listings := []model.Listing{
		agedListing("fresh", 5, false),
		agedListing("stale", 120, true),
	}

	results := scoreListings(listings, nil, distress.DefaultConfig(), 3, scoreNow)
	require.Len(t, results, 1)
	assert.Equal(t, "stale", results[0].Listing.ID)
}

func TestScoreListingsUsesMarketContext(t *testing.T) {
	snapshots := []model.MarketSnapshot{{
		RegionName:          "Austin",
		StateName:           "TX",
		ZHVIMidSFR:          f64(800000), // market $400/sqft vs listing $200/sqft
		PctListingsPriceCut: f64(35),
		MedianDaysToClose:   f64(70),
	}}

	bare := scoreListings([]model.Listing{agedListing("l1", 5, false)}, nil, distress.DefaultConfig(), 0, scoreNow)
	contextual := scoreListings([]model.Listing{agedListing("l1", 5, false)}, snapshots, distress.DefaultConfig(), 0, scoreNow)

	require.Len(t, bare, 1)
	require.Len(t, contextual, 1)
	assert.Greater(t, contextual[0].Score, bare[0].Score)
}

func TestWriteScoreCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	f, err := os.Create(path)
	require.NoError(t, err)

	results := scoreListings([]model.Listing{agedListing("stale", 120, true)}, nil, distress.DefaultConfig(), 0, scoreNow)
	require.NoError(t, writeScoreCSV(f, results))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,address,city,state,status,price,days_on_market,score")
	assert.Contains(t, string(data), "stale")
	assert.Contains(t, string(data), "Austin")
}

func TestWriteScoreXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	results := scoreListings([]model.Listing{agedListing("stale", 120, true)}, nil, distress.DefaultConfig(), 0, scoreNow)
	require.NoError(t, writeScoreXLSX(path, results))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	require.GreaterOrEqual(t, len(f.Sheets[0].Rows), 2)
	assert.Equal(t, "stale", f.Sheets[0].Rows[1].Cells[0].String())
}

func TestCountAtOrAbove(t *testing.T) {
	counts := map[int]int{2: 3, 6: 2, 9: 1}
	assert.Equal(t, 3, countAtOrAbove(counts, 6))
	assert.Equal(t, 6, countAtOrAbove(counts, 0))
	assert.Equal(t, 0, countAtOrAbove(counts, 10))
}
