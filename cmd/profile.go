package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Score a profile JSON file for completeness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "profile: read %s", args[0])
		}

		var p model.Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return eris.Wrapf(err, "profile: decode %s", args[0])
		}

		result := profile.Completeness(&p)
		fmt.Printf("Role:  %s\n", p.Role)
		fmt.Printf("Score: %d%%\n", result.Score)
		if len(result.MissingFields) > 0 {
			fmt.Println("Missing:")
			for _, f := range result.MissingFields {
				fmt.Printf("  %s\n", f)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
