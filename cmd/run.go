package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/manifest"
	"github.com/KaramelBytes/healthlens-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [dataset...]",
	Short: "Download, process, profile and chart every dataset",
	Long: `Runs the whole analysis: each dataset is downloaded, cleaned and written to
<data_dir>/processed, profiled into <results_dir>/<dataset>.summary.md and charted
into <results_dir>. Datasets that fail to download are skipped. A run manifest is
written to <results_dir>/manifest.json.`,
	Args: validDatasets,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		r := pipeline.New(c, nil, logger, cmd.OutOrStdout())
		m, err := r.Run(cmd.Context(), args...)
		if err != nil {
			return err
		}
		counts := m.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Run %s: %d ok, %d skipped, %d failed (manifest: %s)\n",
			m.RunID, counts[manifest.StatusOK], counts[manifest.StatusSkipped], counts[manifest.StatusFailed], m.Path())
		return nil
	},
}

// validDatasets rejects unknown dataset keys.
func validDatasets(cmd *cobra.Command, args []string) error {
	for _, a := range args {
		known := false
		for _, k := range fetch.Keys {
			if a == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown dataset %q (see 'healthlens datasets')", a)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
