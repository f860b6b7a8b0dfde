package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/healthlens-cli/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [dataset...]",
	Short: "Download datasets into <data_dir>/raw without processing",
	Args:  validDatasets,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		r := pipeline.New(c, nil, logger, cmd.OutOrStdout())
		failed, err := r.Fetch(cmd.Context(), args...)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to download: %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
