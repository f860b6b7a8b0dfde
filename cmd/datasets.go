package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/manifest"
)

var datasetsLastRun bool

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List configured datasets, or the outcome of the last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if datasetsLastRun {
			m, err := manifest.Load(c.ResultsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s (%s)\n", m.RunID, m.StartedAt.Format("2006-01-02 15:04:05 MST"))
			for _, key := range m.Keys() {
				d := m.Datasets[key]
				fmt.Fprintf(out, "- %s: %s (raw %dx%d, processed %dx%d, %d outputs)\n",
					key, d.Status, d.Raw.Rows, d.Raw.Cols, d.Processed.Rows, d.Processed.Cols, len(d.Outputs))
				for _, e := range d.Errors {
					fmt.Fprintf(out, "    ⚠ %s\n", e)
				}
			}
			return nil
		}
		for _, s := range fetch.Sources(c) {
			fmt.Fprintf(out, "- %s: %s [%s] %s\n", s.Key, s.Title, s.Kind, s.Location)
		}
		if c.KaggleUsername == "" || c.KaggleKey == "" {
			fmt.Fprintln(os.Stderr, "⚠ Kaggle credentials not set; Kaggle datasets will be skipped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.Flags().BoolVar(&datasetsLastRun, "last-run", false, "show the manifest of the last run instead")
}
