package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/distress"
	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/store"
)

// listingScore pairs a listing with its computed distress signals.
type listingScore struct {
	Listing      model.Listing
	DaysOnMarket int
	Score        int
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score listings for seller distress",
	Long: `Score listings on a 0-10 distress scale from time on market, discount
to the local market price per square foot, market-wide price-cut share,
closing velocity, and explicit price reductions.

Examples:
  # Score every live listing
  score --status live

  # Score one wholesaler's inventory, highest distress first
  score --owner u123

  # Export distressed listings to a spreadsheet
  score --min-score 6 --format xlsx --output distressed.xlsx`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("owner", "", "score a single owner's listings")
	f.String("status", "", "filter by listing status (live, draft, pending, sold)")
	f.Int("min-score", 0, "only output listings at or above this score")
	f.Int("limit", 0, "maximum number of listings to score (0=store default)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, or xlsx")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	owner, _ := cmd.Flags().GetString("owner")
	status, _ := cmd.Flags().GetString("status")
	minScore, _ := cmd.Flags().GetInt("min-score")
	limit, _ := cmd.Flags().GetInt("limit")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != "table" && format != "csv" && format != "xlsx" {
		return eris.Errorf("score: --format must be table, csv, or xlsx (got %q)", format)
	}
	if format == "xlsx" && outputPath == "" {
		return eris.New("score: --format xlsx requires --output")
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "score: migrate")
	}

	listings, err := st.ListListings(ctx, store.ListingFilter{
		OwnerID: owner,
		Status:  model.ListingStatus(status),
		Limit:   limit,
	})
	if err != nil {
		return eris.Wrap(err, "score: load listings")
	}
	snapshots, err := st.MarketSnapshots(ctx)
	if err != nil {
		return eris.Wrap(err, "score: load market snapshots")
	}

	log.Info("scoring listings",
		zap.Int("listings", len(listings)),
		zap.Int("markets", len(snapshots)),
	)

	results := scoreListings(listings, snapshots, cfg.Distress, minScore, time.Now().UTC())

	if err := outputScores(results, format, outputPath); err != nil {
		return err
	}
	printScoreSummary(results)

	return nil
}

// scoreListings computes distress per listing and returns the survivors of
// the min-score cut sorted highest distress first.
func scoreListings(listings []model.Listing, snapshots []model.MarketSnapshot, cfg distress.Config, minScore int, now time.Time) []listingScore {
	idx := distress.MarketIndex(snapshots)

	results := make([]listingScore, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		f := distress.ListingFactors(l, distress.LookupMarket(idx, l), now)
		score := distress.ScoreWith(f, cfg)
		if score < minScore {
			continue
		}
		results = append(results, listingScore{
			Listing:      listings[i],
			DaysOnMarket: f.DaysOnMarket,
			Score:        score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func outputScores(results []listingScore, format, outputPath string) error {
	if format == "xlsx" {
		return writeScoreXLSX(outputPath, results)
	}

	var w *os.File
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	} else {
		w = os.Stdout
	}

	switch format {
	case "csv":
		return writeScoreCSV(w, results)
	default:
		return writeScoreTable(w, results)
	}
}

func writeScoreCSV(w *os.File, results []listingScore) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"id", "address", "city", "state", "status", "price", "days_on_market", "score"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, r := range results {
		row := []string{
			r.Listing.ID,
			strDeref(r.Listing.Address),
			strDeref(r.Listing.City),
			strDeref(r.Listing.State),
			string(r.Listing.Status),
			priceString(r.Listing.Price),
			fmt.Sprintf("%d", r.DaysOnMarket),
			fmt.Sprintf("%d", r.Score),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreTable(w *os.File, results []listingScore) error {
	header := fmt.Sprintf("%-36s %-30s %-18s %-8s %12s %5s %6s\n",
		"ID", "Address", "City", "Status", "Price", "DOM", "Score")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 120)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, r := range results {
		addr := strDeref(r.Listing.Address)
		if len(addr) > 30 {
			addr = addr[:27] + "..."
		}
		line := fmt.Sprintf("%-36s %-30s %-18s %-8s %12s %5d %6d\n",
			r.Listing.ID, addr, strDeref(r.Listing.City), r.Listing.Status,
			priceString(r.Listing.Price), r.DaysOnMarket, r.Score)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}

func writeScoreXLSX(path string, results []listingScore) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Distress Scores")
	if err != nil {
		return eris.Wrap(err, "score: add xlsx sheet")
	}

	hr := sheet.AddRow()
	for _, h := range []string{"ID", "Address", "City", "State", "Status", "Price", "Days on Market", "Score"} {
		hr.AddCell().SetString(h)
	}

	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Listing.ID)
		row.AddCell().SetString(strDeref(r.Listing.Address))
		row.AddCell().SetString(strDeref(r.Listing.City))
		row.AddCell().SetString(strDeref(r.Listing.State))
		row.AddCell().SetString(string(r.Listing.Status))
		if r.Listing.Price != nil {
			row.AddCell().SetFloat(*r.Listing.Price)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetInt(r.DaysOnMarket)
		row.AddCell().SetInt(r.Score)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "score: save xlsx %s", path)
	}
	return nil
}

func printScoreSummary(results []listingScore) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	var sum int
	counts := make(map[int]int)
	for _, r := range results {
		sum += r.Score
		counts[r.Score]++
	}
	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Listings scored: %d\n", len(results))
	fmt.Printf("Average score:   %.1f\n", float64(sum)/float64(len(results)))
	fmt.Printf("High distress:   %d (score >= 6)\n", countAtOrAbove(counts, 6))
}

func countAtOrAbove(counts map[int]int, threshold int) int {
	var n int
	for score, c := range counts {
		if score >= threshold {
			n += c
		}
	}
	return n
}

func priceString(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *p)
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
