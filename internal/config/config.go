package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Data sources used by the pipeline.
const (
	MPXResearchURL    = "https://healthdata.gov/api/views/x7kq-cyv4/rows.csv"
	CeliacDatasetSlug = "jackwin07/celiac-disease-coeliac-disease"
	InfantDatasetSlug = "chidirolex/weightheight-and-breastfeeding-pattern-of-infants"
	KaggleAPIURL      = "https://www.kaggle.com/api/v1"
)

// Global configuration structure.
type Global struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	ResultsDir string `mapstructure:"results_dir" yaml:"results_dir"`
	DocDir     string `mapstructure:"doc_dir" yaml:"doc_dir"`

	MPXResearchURL    string `mapstructure:"mpx_research_url" yaml:"mpx_research_url"`
	CeliacDatasetSlug string `mapstructure:"celiac_dataset_slug" yaml:"celiac_dataset_slug"`
	InfantDatasetSlug string `mapstructure:"infant_dataset_slug" yaml:"infant_dataset_slug"`

	// Kaggle credentials; empty values fall back to ~/.kaggle/kaggle.json
	KaggleUsername string `mapstructure:"kaggle_username" yaml:"kaggle_username"`
	KaggleKey      string `mapstructure:"kaggle_key" yaml:"kaggle_key"`
	KaggleAPIURL   string `mapstructure:"kaggle_api_url" yaml:"kaggle_api_url"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts  int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	ChartDPI  int    `mapstructure:"chart_dpi" yaml:"chart_dpi"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// envAliases lists the unprefixed variable names honoured alongside HEALTHLENS_<KEY>.
var envAliases = map[string][]string{
	"data_dir":        {"DATA_DIR"},
	"results_dir":     {"RESULTS_DIR"},
	"doc_dir":         {"DOC_DIR"},
	"kaggle_username": {"KAGGLE_USERNAME"},
	"kaggle_key":      {"KAGGLE_KEY"},
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.healthlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from defaults, the config file, a .env file in the
// working directory and the environment.
// Precedence: env > .env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("HEALTHLENS")
	v.AutomaticEnv()
	setDefaults(v)
	for key, names := range envAliases {
		args := append([]string{key, "HEALTHLENS_" + strings.ToUpper(key)}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else if dir, err := defaultDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	if err := mergeDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.KaggleUsername == "" || c.KaggleKey == "" {
		if user, key, err := readKaggleJSON(); err == nil {
			if c.KaggleUsername == "" {
				c.KaggleUsername = user
			}
			if c.KaggleKey == "" {
				c.KaggleKey = key
			}
		}
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("results_dir", "results")
	v.SetDefault("doc_dir", "doc")
	v.SetDefault("mpx_research_url", MPXResearchURL)
	v.SetDefault("celiac_dataset_slug", CeliacDatasetSlug)
	v.SetDefault("infant_dataset_slug", InfantDatasetSlug)
	v.SetDefault("kaggle_username", "")
	v.SetDefault("kaggle_key", "")
	v.SetDefault("kaggle_api_url", KaggleAPIURL)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("requests_per_second", 2.0)
	v.SetDefault("chart_dpi", 150)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// mergeDotEnv layers KEY=VALUE pairs from a dotenv file under the environment.
// Keys already set in the process environment keep priority because viper
// consults bound env vars before config values.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	settings := map[string]any{}
	for _, k := range ev.AllKeys() {
		key := strings.ToLower(strings.TrimPrefix(strings.ToUpper(k), "HEALTHLENS_"))
		settings[key] = ev.Get(k)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

// readKaggleJSON reads the credentials file written by the official Kaggle tooling.
func readKaggleJSON() (string, string, error) {
	path := os.Getenv("KAGGLE_CONFIG_DIR")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".kaggle")
	}
	b, err := os.ReadFile(filepath.Join(path, "kaggle.json"))
	if err != nil {
		return "", "", err
	}
	var creds struct {
		Username string `json:"username"`
		Key      string `json:"key"`
	}
	if err := json.Unmarshal(b, &creds); err != nil {
		return "", "", fmt.Errorf("parse kaggle.json: %w", err)
	}
	return creds.Username, creds.Key, nil
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".healthlens"), nil
}
