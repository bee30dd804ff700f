package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/trends"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Import and inspect market trend data",
}

var trendsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk-import market trends from a CSV or XLSX export",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrendsImport,
}

var trendsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the trend series and adjusted price for a region",
	RunE:  runTrendsShow,
}

var snapshotsImportCmd = &cobra.Command{
	Use:   "import-snapshots <file>",
	Short: "Bulk-import market snapshots from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsImport,
}

func init() {
	trendsShowCmd.Flags().String("region", "", "region name (required)")
	trendsShowCmd.Flags().Int("limit", 12, "number of periods to show")
	trendsShowCmd.Flags().Float64("price", 0, "original price to adjust to the current market")
	trendsShowCmd.Flags().String("as-of", "", "reference date for price adjustment (YYYY-MM-DD, default today)")

	trendsCmd.AddCommand(trendsImportCmd)
	trendsCmd.AddCommand(trendsShowCmd)
	trendsCmd.AddCommand(snapshotsImportCmd)
	rootCmd.AddCommand(trendsCmd)
}

func runTrendsImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("trends"); err != nil {
		return err
	}

	path := args[0]
	records, skipped, err := parseTrendFile(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return eris.Errorf("trends: no importable rows in %s (%d skipped)", path, skipped)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "trends: migrate")
	}

	n, err := st.ImportTrends(ctx, records)
	if err != nil {
		return eris.Wrap(err, "trends: import")
	}

	zap.L().Info("trend import complete",
		zap.String("file", path),
		zap.Int64("imported", n),
		zap.Int("skipped", skipped),
	)
	fmt.Printf("Imported %d trend rows (%d skipped)\n", n, skipped)
	return nil
}

func parseTrendFile(path string) ([]model.MarketTrend, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return trends.ParseXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "trends: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return trends.ParseCSV(f)
}

func runTrendsShow(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("trends"); err != nil {
		return err
	}

	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		return eris.New("trends: --region is required")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	price, _ := cmd.Flags().GetFloat64("price")
	asOfRaw, _ := cmd.Flags().GetString("as-of")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	series, err := st.TrendSeries(ctx, region, limit)
	if err != nil {
		return eris.Wrapf(err, "trends: series for %s", region)
	}
	if len(series) == 0 {
		fmt.Printf("No trend data for %q.\n", region)
		return nil
	}

	fmt.Printf("%-12s %15s %10s %6s %8s\n", "Period End", "Median Price", "Homes Sold", "DOM", "Sale/List")
	for _, rec := range series {
		fmt.Printf("%-12s %15.0f %10s %6s %8s\n",
			rec.PeriodEnd.Format("2006-01-02"),
			rec.MedianSalePrice,
			intString(rec.HomesSold),
			intString(rec.MedianDaysOnMarket),
			ratioString(rec.AvgSaleToList),
		)
	}

	if price > 0 {
		asOf := time.Now().UTC()
		if asOfRaw != "" {
			asOf, err = time.Parse("2006-01-02", asOfRaw)
			if err != nil {
				return eris.Wrapf(err, "trends: parse --as-of %q", asOfRaw)
			}
		}

		ref, err := st.MedianSalePriceAt(ctx, region, asOf)
		if err != nil {
			return eris.Wrap(err, "trends: median at reference date")
		}
		current, err := st.LatestMedianSalePrice(ctx, region)
		if err != nil {
			return eris.Wrap(err, "trends: latest median")
		}
		adjusted := trends.AdjustPriceForTrend(price, ref, current)
		fmt.Printf("\nAdjusted price: %.0f (from %.0f as of %s)\n",
			adjusted, price, asOf.Format("2006-01-02"))
	}

	return nil
}

func runSnapshotsImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("trends"); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "trends: read %s", path)
	}
	var records []model.MarketSnapshot
	if err := json.Unmarshal(data, &records); err != nil {
		return eris.Wrapf(err, "trends: decode %s", path)
	}
	if len(records) == 0 {
		return eris.Errorf("trends: no snapshots in %s", path)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "trends: migrate")
	}

	n, err := st.ImportSnapshots(ctx, records)
	if err != nil {
		return eris.Wrap(err, "trends: import snapshots")
	}
	fmt.Printf("Imported %d market snapshots\n", n)
	return nil
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func ratioString(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *v)
}
