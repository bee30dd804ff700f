package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/numeric"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import listings from a CSV export",
	Long: `Import listings from a CSV file with a header row. Recognized columns:
owner_id, address, city, state, zip, price, sqft, beds, baths,
property_type, status, latitude, longitude, views, price_reduced,
created_at. Rows without an owner_id are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("migrate"); err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	listings, skipped, err := parseListingsCSV(f)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return eris.Errorf("import: no importable rows in %s (%d skipped)", path, skipped)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "import: migrate")
	}

	var created int
	for i := range listings {
		if _, err := st.CreateListing(ctx, listings[i]); err != nil {
			return eris.Wrapf(err, "import: row %d", created+skipped+1)
		}
		created++
	}

	zap.L().Info("listing import complete",
		zap.String("file", path),
		zap.Int("created", created),
		zap.Int("skipped", skipped),
	)
	fmt.Printf("Imported %d listings (%d skipped)\n", created, skipped)
	return nil
}

// listingColumns are the recognized header names, case-insensitive.
var listingColumns = []string{
	"owner_id", "address", "city", "state", "zip", "price", "sqft", "beds",
	"baths", "property_type", "status", "latitude", "longitude", "views",
	"price_reduced", "created_at",
}

// parseListingsCSV reads a listing export with a header row. Rows without
// an owner_id are skipped and counted, never fatal.
func parseListingsCSV(r io.Reader) ([]model.Listing, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "import: read csv header")
	}
	cols := make(map[string]int, len(listingColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range listingColumns {
			if name == want {
				cols[want] = i
			}
		}
	}

	var listings []model.Listing
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "import: read csv row")
		}
		l, ok := rowToListing(row, cols)
		if !ok {
			skipped++
			continue
		}
		listings = append(listings, l)
	}
	return listings, skipped, nil
}

func rowToListing(row []string, cols map[string]int) (model.Listing, bool) {
	owner := strings.TrimSpace(csvCell(row, cols, "owner_id"))
	if owner == "" {
		return model.Listing{}, false
	}

	l := model.Listing{
		OwnerID:      owner,
		Address:      csvStrCell(row, cols, "address"),
		City:         csvStrCell(row, cols, "city"),
		State:        csvStrCell(row, cols, "state"),
		Zip:          csvStrCell(row, cols, "zip"),
		Price:        csvFloatCell(row, cols, "price"),
		Sqft:         csvFloatCell(row, cols, "sqft"),
		Beds:         csvFloatCell(row, cols, "beds"),
		Baths:        csvFloatCell(row, cols, "baths"),
		PropertyType: csvStrCell(row, cols, "property_type"),
		Status:       model.ListingStatus(strings.TrimSpace(csvCell(row, cols, "status"))),
		Latitude:     csvFloatCell(row, cols, "latitude"),
		Longitude:    csvFloatCell(row, cols, "longitude"),
	}
	if v := csvFloatCell(row, cols, "views"); v != nil {
		n := int(*v)
		l.Views = &n
	}
	switch strings.ToLower(strings.TrimSpace(csvCell(row, cols, "price_reduced"))) {
	case "true", "t", "1", "yes":
		l.PriceReduced = true
	}
	if raw := strings.TrimSpace(csvCell(row, cols, "created_at")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			l.CreatedAt = &ts
		} else if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			l.CreatedAt = &ts
		}
	}

	return l, true
}

func csvCell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func csvStrCell(row []string, cols map[string]int, name string) *string {
	v := strings.TrimSpace(csvCell(row, cols, name))
	if v == "" {
		return nil
	}
	return &v
}

func csvFloatCell(row []string, cols map[string]int, name string) *float64 {
	v, ok := numeric.ToNumber(csvCell(row, cols, name))
	if !ok {
		return nil
	}
	return &v
}
