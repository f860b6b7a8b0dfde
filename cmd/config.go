package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/healthlens-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set HealthLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(out, "results_dir: %s\n", cfg.ResultsDir)
		fmt.Fprintf(out, "doc_dir: %s\n", cfg.DocDir)
		fmt.Fprintf(out, "mpx_research_url: %s\n", cfg.MPXResearchURL)
		fmt.Fprintf(out, "celiac_dataset_slug: %s\n", cfg.CeliacDatasetSlug)
		fmt.Fprintf(out, "infant_dataset_slug: %s\n", cfg.InfantDatasetSlug)
		fmt.Fprintf(out, "kaggle_username: %s\n", cfg.KaggleUsername)
		fmt.Fprintf(out, "kaggle_key: %s\n", mask(cfg.KaggleKey))
		fmt.Fprintf(out, "kaggle_api_url: %s\n", cfg.KaggleAPIURL)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "requests_per_second: %.2f\n", cfg.RequestsPerSecond)
		fmt.Fprintf(out, "chart_dpi: %d\n", cfg.ChartDPI)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	positiveInt := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "data_dir":
		c.DataDir = val
	case "results_dir":
		c.ResultsDir = val
	case "doc_dir":
		c.DocDir = val
	case "mpx_research_url":
		c.MPXResearchURL = val
	case "celiac_dataset_slug":
		c.CeliacDatasetSlug = val
	case "infant_dataset_slug":
		c.InfantDatasetSlug = val
	case "kaggle_username":
		c.KaggleUsername = val
	case "kaggle_key":
		c.KaggleKey = val
	case "kaggle_api_url":
		c.KaggleAPIURL = val
	case "http_timeout_sec":
		return positiveInt(&c.HTTPTimeoutSec)
	case "retry_max_attempts":
		return positiveInt(&c.RetryMaxAttempts)
	case "retry_base_delay_ms":
		return positiveInt(&c.RetryBaseDelayMs)
	case "retry_max_delay_ms":
		return positiveInt(&c.RetryMaxDelayMs)
	case "chart_dpi":
		return positiveInt(&c.ChartDPI)
	case "requests_per_second":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for requests_per_second: %v", val)
		}
		c.RequestsPerSecond = f
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch val {
		case "console", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
