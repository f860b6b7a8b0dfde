package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/healthlens-cli/internal/config"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// Dataset keys, also used as output names.
const (
	KeyMPXResearch = "mpx_research"
	KeyCeliac      = "celiac"
	KeyInfant      = "infant_breastfeeding"
)

// Keys lists the datasets in pipeline order.
var Keys = []string{KeyMPXResearch, KeyCeliac, KeyInfant}

// Kind is where a dataset is fetched from.
type Kind string

const (
	KindWeb    Kind = "web"
	KindKaggle Kind = "kaggle"
)

// Source describes one configured dataset.
type Source struct {
	Key      string
	Title    string
	Kind     Kind
	Location string // URL for web sources, owner/dataset slug for Kaggle
}

// Sources returns the configured dataset sources in pipeline order.
func Sources(c *cfgpkg.Global) []Source {
	return []Source{
		{Key: KeyMPXResearch, Title: "MPX Research Data", Kind: KindWeb, Location: c.MPXResearchURL},
		{Key: KeyCeliac, Title: "Celiac Disease Data", Kind: KindKaggle, Location: c.CeliacDatasetSlug},
		{Key: KeyInfant, Title: "Infant Breastfeeding Data", Kind: KindKaggle, Location: c.InfantDatasetSlug},
	}
}

// Loader fetches the configured datasets.
type Loader struct {
	web     *Client
	kaggle  *Kaggle
	dataDir string
	sources map[string]Source
	logger  *zap.Logger
}

// NewLoader builds a Loader from configuration.
func NewLoader(c *cfgpkg.Global, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := NewClient(Options{
		HTTPTimeout:       time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMaxAttempts:  c.RetryMaxAttempts,
		RetryBaseDelay:    time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:     time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RequestsPerSecond: c.RequestsPerSecond,
		Logger:            logger.Named("fetch"),
	})
	srcs := map[string]Source{}
	for _, s := range Sources(c) {
		srcs[s.Key] = s
	}
	return &Loader{
		web:     client,
		kaggle:  NewKaggle(client, c.KaggleAPIURL, c.KaggleUsername, c.KaggleKey),
		dataDir: c.DataDir,
		sources: srcs,
		logger:  logger,
	}
}

// Source returns the source registered under key.
func (l *Loader) Source(key string) (Source, bool) {
	s, ok := l.sources[key]
	return s, ok
}

// Load fetches the dataset registered under key.
func (l *Loader) Load(ctx context.Context, key string) (dataframe.DataFrame, error) {
	src, ok := l.sources[key]
	if !ok {
		return tabular.Empty(), fmt.Errorf("unknown dataset %q", key)
	}
	switch src.Kind {
	case KindWeb:
		return l.web.GetWebCSV(ctx, src.Location)
	case KindKaggle:
		return l.kaggle.GetData(ctx, src.Location, l.KaggleDir(src.Location))
	}
	return tabular.Empty(), fmt.Errorf("unsupported source kind %q", src.Kind)
}

// KaggleDir is the default extraction directory for a Kaggle slug.
func (l *Loader) KaggleDir(slug string) string {
	return filepath.Join(l.dataDir, "kaggle", utils.SlugDir(slug))
}

// LoadMPXResearch loads Monkeypox research data from healthdata.gov.
func (l *Loader) LoadMPXResearch(ctx context.Context) (dataframe.DataFrame, error) {
	return l.Load(ctx, KeyMPXResearch)
}

// LoadCeliac loads Celiac disease data from Kaggle.
func (l *Loader) LoadCeliac(ctx context.Context) (dataframe.DataFrame, error) {
	return l.Load(ctx, KeyCeliac)
}

// LoadInfantBreastfeeding loads infant breastfeeding/weight data from Kaggle.
func (l *Loader) LoadInfantBreastfeeding(ctx context.Context) (dataframe.DataFrame, error) {
	return l.Load(ctx, KeyInfant)
}
