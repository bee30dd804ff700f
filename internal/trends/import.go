package trends

import (
	"encoding/csv"
	"io"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/numeric"
)

// expected header names, case-insensitive.
var trendColumns = []string{"region", "period_end", "median_sale_price", "homes_sold", "median_days_on_market", "avg_sale_to_list"}

// ParseCSV reads a market-trend export with a header row. Rows missing a
// region, a parseable period_end, or a median sale price are skipped and
// counted, never fatal; columns beyond the known set are ignored.
func ParseCSV(r io.Reader) ([]model.MarketTrend, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "trends: read csv header")
	}
	cols := headerIndex(header)

	var records []model.MarketTrend
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "trends: read csv row")
		}
		rec, ok := rowToTrend(row, cols)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// ParseXLSX reads the first sheet of a market-trend workbook with the same
// header contract as ParseCSV.
func ParseXLSX(path string) ([]model.MarketTrend, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "trends: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, 0, eris.Errorf("trends: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var cols map[string]int
	var records []model.MarketTrend
	skipped := 0
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		if i == 0 {
			cols = headerIndex(cells)
			continue
		}
		rec, ok := rowToTrend(cells, cols)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(trendColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range trendColumns {
			if name == want {
				cols[want] = i
			}
		}
	}
	return cols
}

func rowToTrend(row []string, cols map[string]int) (model.MarketTrend, bool) {
	region := strings.TrimSpace(cell(row, cols, "region"))
	if region == "" {
		return model.MarketTrend{}, false
	}

	periodEnd, err := time.Parse("2006-01-02", strings.TrimSpace(cell(row, cols, "period_end")))
	if err != nil {
		zap.L().Debug("trends: skipping row with bad period_end",
			zap.String("region", region),
			zap.String("period_end", cell(row, cols, "period_end")),
		)
		return model.MarketTrend{}, false
	}

	median, ok := numeric.ToNumber(cell(row, cols, "median_sale_price"))
	if !ok || median <= 0 {
		return model.MarketTrend{}, false
	}

	return model.MarketTrend{
		Region:             region,
		PeriodEnd:          periodEnd,
		MedianSalePrice:    median,
		HomesSold:          intCell(row, cols, "homes_sold"),
		MedianDaysOnMarket: intCell(row, cols, "median_days_on_market"),
		AvgSaleToList:      floatCell(row, cols, "avg_sale_to_list"),
	}, true
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func floatCell(row []string, cols map[string]int, name string) *float64 {
	v, ok := numeric.ToNumber(cell(row, cols, name))
	if !ok {
		return nil
	}
	return &v
}

func intCell(row []string, cols map[string]int, name string) *int {
	v, ok := numeric.ToNumber(cell(row, cols, name))
	if !ok {
		return nil
	}
	n := int(math.Round(v))
	return &n
}
