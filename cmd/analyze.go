package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/russellquealy-cloud/dealflow/internal/analyzer"
	"github.com/russellquealy-cloud/dealflow/pkg/anthropic"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run an AI deal analysis for a listing or an ad-hoc property",
	Long: `Estimate ARV, repair costs, and the maximum allowable offer. With an
Anthropic key configured the analysis runs through Claude; otherwise a
deterministic size-based estimate is produced.

Examples:
  # Analyze a stored listing
  analyze --user u123 --listing 4f9c...

  # Analyze an ad-hoc property
  analyze --user u123 --address "12 Oak St" --beds 3 --baths 2 --sqft 1400`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("user", "", "requesting user ID (required)")
	f.String("listing", "", "listing ID to analyze")
	f.String("address", "", "property address")
	f.Float64("beds", 0, "bedroom count")
	f.Float64("baths", 0, "bathroom count")
	f.Float64("sqft", 0, "square footage")
	f.String("property-type", "", "property type")
	f.String("notes", "", "condition notes for the analysis")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("analyze"); err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return eris.New("analyze: --user is required")
	}
	listingID, _ := cmd.Flags().GetString("listing")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var in analyzer.Input
	if listingID != "" {
		l, err := st.GetListing(ctx, listingID)
		if err != nil {
			return eris.Wrapf(err, "analyze: load listing %s", listingID)
		}
		if l == nil {
			return eris.Errorf("analyze: listing %s not found", listingID)
		}
		in = listingInput(l)
		if l.City != nil {
			snaps, err := st.MarketSnapshots(ctx)
			if err != nil {
				return eris.Wrap(err, "analyze: load market snapshots")
			}
			for i := range snaps {
				if strings.EqualFold(snaps[i].RegionName, *l.City) {
					in.Market = &snaps[i]
					break
				}
			}
		}
	} else {
		in.Address, _ = cmd.Flags().GetString("address")
		in.Beds, _ = cmd.Flags().GetFloat64("beds")
		in.Baths, _ = cmd.Flags().GetFloat64("baths")
		in.Sqft, _ = cmd.Flags().GetFloat64("sqft")
		in.PropertyType, _ = cmd.Flags().GetString("property-type")
		in.Notes, _ = cmd.Flags().GetString("notes")
	}
	if in.Sqft <= 0 {
		return eris.New("analyze: sqft must be > 0")
	}

	var client anthropic.Client
	if cfg.Anthropic.Key != "" {
		client = anthropic.NewClient(cfg.Anthropic.Key)
	}
	an := analyzer.New(client, cfg.Anthropic.Model, st)

	analysis, err := an.Analyze(ctx, userID, listingID, in)
	if err != nil {
		return eris.Wrap(err, "analyze: run")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}
