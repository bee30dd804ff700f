package trends

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_NilPool(t *testing.T) {
	assert.Nil(t, NewStore(nil))
}

func TestLatestMedianSalePrice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT median_sale_price FROM market_trends").
		WithArgs("Austin, TX").
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}).AddRow(450_000.0))

	s := NewStore(mock)
	median, err := s.LatestMedianSalePrice(context.Background(), "Austin, TX")
	require.NoError(t, err)
	require.NotNil(t, median)
	assert.InDelta(t, 450_000, *median, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestMedianSalePrice_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT median_sale_price FROM market_trends").
		WithArgs("Nowhere, ZZ").
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}))

	s := NewStore(mock)
	median, err := s.LatestMedianSalePrice(context.Background(), "Nowhere, ZZ")
	require.NoError(t, err)
	assert.Nil(t, median)
}

func TestMedianSalePriceAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	asOf := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("period_end <= \\$2").
		WithArgs("Austin, TX", asOf).
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}).AddRow(380_000.0))

	s := NewStore(mock)
	median, err := s.MedianSalePriceAt(context.Background(), "Austin, TX", asOf)
	require.NoError(t, err)
	require.NotNil(t, median)
	assert.InDelta(t, 380_000, *median, 1e-9)
}

func TestAdjustedPrice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	asOf := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("period_end <= \\$2").
		WithArgs("Austin, TX", asOf).
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}).AddRow(100.0))
	mock.ExpectQuery("SELECT median_sale_price FROM market_trends").
		WithArgs("Austin, TX").
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}).AddRow(110.0))

	s := NewStore(mock)
	adjusted, err := s.AdjustedPrice(context.Background(), "Austin, TX", 200_000, asOf)
	require.NoError(t, err)
	assert.InDelta(t, 220_000, adjusted, 1e-6)
}

func TestAdjustedPrice_NoData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	asOf := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("period_end <= \\$2").
		WithArgs("Nowhere, ZZ", asOf).
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}))
	mock.ExpectQuery("SELECT median_sale_price FROM market_trends").
		WithArgs("Nowhere, ZZ").
		WillReturnRows(pgxmock.NewRows([]string{"median_sale_price"}))

	s := NewStore(mock)
	adjusted, err := s.AdjustedPrice(context.Background(), "Nowhere, ZZ", 200_000, asOf)
	require.NoError(t, err)
	assert.Equal(t, 200_000.0, adjusted)
}

func TestSeries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sold := 120
	mock.ExpectQuery("FROM market_trends WHERE region = \\$1 ORDER BY period_end DESC").
		WithArgs("Austin, TX", 2).
		WillReturnRows(pgxmock.NewRows([]string{"region", "period_end", "median_sale_price", "homes_sold", "median_days_on_market", "avg_sale_to_list"}).
			AddRow("Austin, TX", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 470_000.0, &sold, (*int)(nil), (*float64)(nil)).
			AddRow("Austin, TX", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 460_000.0, (*int)(nil), (*int)(nil), (*float64)(nil)))

	s := NewStore(mock)
	series, err := s.Series(context.Background(), "Austin, TX", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 470_000.0, series[0].MedianSalePrice)
	require.NotNil(t, series[0].HomesSold)
	assert.Equal(t, 120, *series[0].HomesSold)
	assert.Nil(t, series[1].HomesSold)
}
