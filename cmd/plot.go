package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/healthlens-cli/internal/pipeline"
)

var plotSheet string

var plotCmd = &cobra.Command{
	Use:   "plot <dataset> <file>",
	Short: "Render a dataset's charts from a local CSV/TSV/XLSX file (offline)",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return err
		}
		return validDatasets(cmd, args[:1])
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		r := pipeline.New(c, nil, logger, cmd.OutOrStdout())
		files, err := r.Plot(args[0], args[1], plotSheet)
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", f)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().StringVar(&plotSheet, "sheet-name", "", "XLSX: sheet name to read (default first sheet)")
}
