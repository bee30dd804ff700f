package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellquealy-cloud/dealflow/internal/model"
)

func TestParseListingsCSV(t *testing.T) {
	csv := `owner_id,address,city,state,zip,price,sqft,beds,baths,status,latitude,longitude,views,price_reduced,created_at
w1,12 Oak St,Austin,TX,78701,250000,1400,3,2,live,30.27,-97.74,12,true,2026-01-15
w1,99 Elm Ave,Tulsa,OK,,180000,,,,draft,,,,false,
,no owner,,,,,,,,,,,,,
w2,"7 Pine Rd, Unit B",Boise,ID,83702,$310000,1800,4,2.5,live,43.61,-116.20,3,,2026-02-01T10:00:00Z
`
	listings, skipped, err := parseListingsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, listings, 3)

	first := listings[0]
	assert.Equal(t, "w1", first.OwnerID)
	assert.Equal(t, "12 Oak St", *first.Address)
	assert.Equal(t, "TX", *first.State)
	assert.Equal(t, 250000.0, *first.Price)
	assert.Equal(t, 3.0, *first.Beds)
	assert.Equal(t, model.StatusLive, first.Status)
	assert.Equal(t, 30.27, *first.Latitude)
	assert.Equal(t, 12, *first.Views)
	assert.True(t, first.PriceReduced)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, "2026-01-15", first.CreatedAt.Format("2006-01-02"))

	second := listings[1]
	assert.Equal(t, 180000.0, *second.Price)
	assert.Nil(t, second.Sqft)
	assert.Equal(t, model.StatusDraft, second.Status)
	assert.False(t, second.PriceReduced)
	assert.Nil(t, second.CreatedAt)

	third := listings[2]
	assert.Equal(t, "7 Pine Rd, Unit B", *third.Address)
	assert.Equal(t, 310000.0, *third.Price)
	assert.Equal(t, 2.5, *third.Baths)
	require.NotNil(t, third.CreatedAt)
	assert.Equal(t, "2026-02-01", third.CreatedAt.Format("2006-01-02"))
}

func TestParseListingsCSV_HeaderOnly(t *testing.T) {
	listings, skipped, err := parseListingsCSV(strings.NewReader("owner_id,address\n"))
	require.NoError(t, err)
	assert.Empty(t, listings)
	assert.Zero(t, skipped)
}

func TestParseListingsCSV_UnknownColumnsIgnored(t *testing.T) {
	csv := "owner_id,mystery,price\nw1,whatever,100000\n"
	listings, _, err := parseListingsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 100000.0, *listings[0].Price)
}
