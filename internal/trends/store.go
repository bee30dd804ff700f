package trends

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/db"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

// Store reads and bulk-writes the market_trends table.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store. Returns nil if pool is nil.
func NewStore(pool db.Pool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// LatestMedianSalePrice returns the most recent median sale price on record
// for a region, or nil when the region has no rows.
func (s *Store) LatestMedianSalePrice(ctx context.Context, region string) (*float64, error) {
	var median float64
	err := s.pool.QueryRow(ctx,
		`SELECT median_sale_price FROM market_trends WHERE region = $1 ORDER BY period_end DESC LIMIT 1`,
		region,
	).Scan(&median)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "trends: latest median for %s", region)
	}
	return &median, nil
}

// MedianSalePriceAt returns the median sale price from the most recent period
// ending at or before the given date. There is no interpolation and no exact
// date match requirement; the newest prior data point wins. Returns nil when
// no period precedes the date.
func (s *Store) MedianSalePriceAt(ctx context.Context, region string, date time.Time) (*float64, error) {
	var median float64
	err := s.pool.QueryRow(ctx,
		`SELECT median_sale_price FROM market_trends WHERE region = $1 AND period_end <= $2 ORDER BY period_end DESC LIMIT 1`,
		region, date,
	).Scan(&median)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "trends: median for %s at %s", region, date.Format("2006-01-02"))
	}
	return &median, nil
}

// AdjustedPrice rescales a historical price for a region into current market
// terms. When either median is unavailable the original price comes back
// unchanged.
func (s *Store) AdjustedPrice(ctx context.Context, region string, originalPrice float64, asOf time.Time) (float64, error) {
	atRef, err := s.MedianSalePriceAt(ctx, region, asOf)
	if err != nil {
		return originalPrice, err
	}
	current, err := s.LatestMedianSalePrice(ctx, region)
	if err != nil {
		return originalPrice, err
	}
	return AdjustPriceForTrend(originalPrice, atRef, current), nil
}

// Series returns up to limit rows for a region, newest first.
func (s *Store) Series(ctx context.Context, region string, limit int) ([]model.MarketTrend, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.pool.Query(ctx,
		`SELECT region, period_end, median_sale_price, homes_sold, median_days_on_market, avg_sale_to_list
		 FROM market_trends WHERE region = $1 ORDER BY period_end DESC LIMIT $2`,
		region, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "trends: series for %s", region)
	}
	defer rows.Close()

	var out []model.MarketTrend
	for rows.Next() {
		var t model.MarketTrend
		if err := rows.Scan(&t.Region, &t.PeriodEnd, &t.MedianSalePrice, &t.HomesSold, &t.MedianDaysOnMarket, &t.AvgSaleToList); err != nil {
			return nil, eris.Wrap(err, "trends: scan series row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "trends: iterate series rows")
	}
	return out, nil
}

// Import bulk-upserts trend rows keyed on (region, period_end).
func (s *Store) Import(ctx context.Context, records []model.MarketTrend) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.Region, r.PeriodEnd, r.MedianSalePrice,
			r.HomesSold, r.MedianDaysOnMarket, r.AvgSaleToList,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "market_trends",
		Columns:      []string{"region", "period_end", "median_sale_price", "homes_sold", "median_days_on_market", "avg_sale_to_list"},
		ConflictKeys: []string{"region", "period_end"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "trends: import")
	}

	zap.L().Info("trends: import complete",
		zap.Int("records", len(records)),
		zap.Int64("rows_affected", n),
	)
	return n, nil
}
