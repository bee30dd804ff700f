package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/russellquealy-cloud/dealflow/internal/analytics"
	"github.com/russellquealy-cloud/dealflow/internal/model"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print the activity snapshot or a heatmap for a user",
	RunE:  runAnalytics,
}

func init() {
	f := analyticsCmd.Flags()
	f.String("user", "", "user ID (required)")
	f.String("role", "investor", "user role: investor or wholesaler")
	f.String("view", "snapshot", "output: snapshot, heatmap, or distress")

	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("analytics"); err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return eris.New("analytics: --user is required")
	}
	role, _ := cmd.Flags().GetString("role")
	view, _ := cmd.Flags().GetString("view")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	agg := analytics.New(st)
	viewer := model.Viewer{UserID: userID, Role: model.ParseRole(role)}

	var out any
	switch view {
	case "snapshot":
		out, err = agg.Snapshot(ctx, viewer)
	case "heatmap":
		out, err = agg.ViewHeatmap(ctx, viewer)
	case "distress":
		out, err = agg.DistressHeatmap(ctx, viewer, cfg.Distress)
	default:
		return eris.Errorf("analytics: --view must be snapshot, heatmap, or distress (got %q)", view)
	}
	if err != nil {
		return eris.Wrapf(err, "analytics: %s for %s", view, userID)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
