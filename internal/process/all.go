package process

import (
	"context"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// Loader fetches a raw dataset by key.
type Loader interface {
	Load(ctx context.Context, key string) (dataframe.DataFrame, error)
}

// Dataset is one loaded and processed source.
type Dataset struct {
	Key       string
	Raw       dataframe.DataFrame
	Processed dataframe.DataFrame
	LoadErr   error
	Err       error
	Infant    *InfantColumns
}

// Loaded reports whether the raw table holds any rows.
func (d *Dataset) Loaded() bool { return d.LoadErr == nil && !tabular.IsEmpty(d.Raw) }

// LoadAndProcessAll loads the given datasets concurrently and processes each.
// A failure only empties its own entry. With no keys, every known dataset is loaded.
func LoadAndProcessAll(ctx context.Context, l Loader, logger *zap.Logger, keys ...string) map[string]*Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(keys) == 0 {
		keys = fetch.Keys
	}
	out := make([]*Dataset, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			out[i] = loadOne(ctx, l, logger.With(zap.String("dataset", key)), key)
			return nil
		})
	}
	_ = g.Wait()

	res := make(map[string]*Dataset, len(keys))
	for _, d := range out {
		res[d.Key] = d
	}
	return res
}

func loadOne(ctx context.Context, l Loader, log *zap.Logger, key string) *Dataset {
	raw, err := l.Load(ctx, key)
	if err != nil {
		log.Warn("load failed", zap.Error(err))
		return &Dataset{Key: key, Raw: tabular.Empty(), Processed: tabular.Empty(), LoadErr: err}
	}
	rows, cols := tabular.Shape(raw)
	log.Info("loaded", zap.Int("rows", rows), zap.Int("cols", cols))
	return Prepare(key, raw, log)
}

// Prepare processes an already loaded raw table for key.
func Prepare(key string, raw dataframe.DataFrame, log *zap.Logger) *Dataset {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dataset{Key: key, Raw: raw, Processed: tabular.Empty()}
	if key == fetch.KeyInfant {
		p, ic, err := ProcessInfant(raw)
		d.Processed, d.Err, d.Infant = p, err, &ic
		if err == nil {
			log.Info("infant columns",
				zap.Strings("weight", ic.Weight),
				zap.Strings("height", ic.Height),
				zap.Strings("breastfeeding", ic.Breastfeeding))
		}
	} else {
		d.Processed, d.Err = Process(key, raw)
	}
	if d.Err != nil {
		log.Warn("processing failed", zap.Error(d.Err))
		d.Processed = tabular.Empty()
		return d
	}
	rows, cols := tabular.Shape(d.Processed)
	log.Info("processed", zap.Int("rows", rows), zap.Int("cols", cols))
	return d
}
