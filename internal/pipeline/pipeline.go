// Package pipeline runs the end-to-end analysis: load every dataset, process
// it, write the cleaned tables, profile them and render the charts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"

	"github.com/KaramelBytes/healthlens-cli/internal/analysis"
	"github.com/KaramelBytes/healthlens-cli/internal/charts"
	cfgpkg "github.com/KaramelBytes/healthlens-cli/internal/config"
	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/manifest"
	"github.com/KaramelBytes/healthlens-cli/internal/process"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// headRows is how many rows are echoed after each load.
const headRows = 5

const rule = "============================================================"

// groupColumns is the column each dataset profile is grouped by.
var groupColumns = map[string]string{
	fetch.KeyMPXResearch: charts.ColTopic,
	fetch.KeyCeliac:      charts.ColCDType,
	fetch.KeyInfant:      charts.ColPattern,
}

// Runner wires configuration, a dataset loader and output.
type Runner struct {
	cfg    *cfgpkg.Global
	loader process.Loader
	logger *zap.Logger
	out    io.Writer
}

// New builds a Runner. A nil loader uses the configured download sources.
func New(cfg *cfgpkg.Global, loader process.Loader, logger *zap.Logger, out io.Writer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		loader = fetch.NewLoader(cfg, logger)
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, loader: loader, logger: logger, out: out}
}

// ProcessedPath is where the cleaned table for key is written.
func (r *Runner) ProcessedPath(key string) string {
	return filepath.Join(r.cfg.DataDir, "processed", key+".csv")
}

// RawPath is where the fetch command stores a downloaded table.
func (r *Runner) RawPath(key string) string {
	return filepath.Join(r.cfg.DataDir, "raw", key+".csv")
}

// SummaryPath is the markdown profile for key.
func (r *Runner) SummaryPath(key string) string {
	return filepath.Join(r.cfg.ResultsDir, key+".summary.md")
}

// Run executes the whole pipeline for keys (all datasets when empty) and
// returns the saved run manifest. Datasets that fail to load are skipped.
func (r *Runner) Run(ctx context.Context, keys ...string) (*manifest.Manifest, error) {
	if len(keys) == 0 {
		keys = fetch.Keys
	}
	if err := utils.EnsureDirs(r.cfg.DataDir, r.cfg.ResultsDir); err != nil {
		return nil, err
	}
	m := manifest.New(r.cfg.DataDir, r.cfg.ResultsDir)
	r.logger.Info("run started", zap.String("run_id", m.RunID), zap.Strings("datasets", keys))
	fmt.Fprintln(r.out, "Starting Breastfeeding & Gluten Sensitivity Data Analysis Pipeline")
	fmt.Fprintln(r.out)

	loaded := process.LoadAndProcessAll(ctx, r.loader, r.logger, keys...)
	renderer := charts.NewRenderer(r.cfg.ResultsDir, r.cfg.ChartDPI, r.logger.Named("charts"))
	var sheets []analysis.Sheet
	for _, key := range keys {
		d := loaded[key]
		rec := m.Dataset(key, r.sourceLabel(key))
		r.runDataset(d, rec, renderer)
		if !tabular.IsEmpty(d.Processed) {
			sheets = append(sheets, analysis.Sheet{Name: key, Table: d.Processed})
		}
		fmt.Fprintf(r.out, "\n%s\n\n", rule)
	}

	if len(sheets) > 0 {
		path := filepath.Join(r.cfg.ResultsDir, analysis.WorkbookFile)
		if err := analysis.ExportWorkbook(path, sheets); err != nil {
			r.logger.Warn("workbook export failed", zap.Error(err))
			fmt.Fprintf(r.out, "⚠ Workbook export failed: %v\n", err)
		} else {
			m.AddOutput(path)
		}
	}
	if err := m.Finish(); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	counts := m.Counts()
	r.logger.Info("run finished",
		zap.Int("ok", counts[manifest.StatusOK]),
		zap.Int("skipped", counts[manifest.StatusSkipped]),
		zap.Int("failed", counts[manifest.StatusFailed]))
	fmt.Fprintln(r.out, "--- Breastfeeding & Gluten Sensitivity Analysis Complete! ---")
	fmt.Fprintf(r.out, "Check '%s' directory for plots and visualizations.\n", r.cfg.ResultsDir)
	return m, nil
}

func (r *Runner) runDataset(d *process.Dataset, rec *manifest.DatasetRecord, renderer *charts.Renderer) {
	title := r.title(d.Key)
	fmt.Fprintf(r.out, "Loading %s...\n", title)
	if !d.Loaded() {
		err := d.LoadErr
		if err == nil {
			err = errors.New("no rows loaded")
		}
		rec.Note(err)
		fmt.Fprintf(r.out, "⚠ %s skipped: %v\n", title, err)
		return
	}
	rows, cols := tabular.Shape(d.Raw)
	rec.Raw = manifest.Shape{Rows: rows, Cols: cols}
	fmt.Fprintf(r.out, "%s Shape: (%d, %d)\n", title, rows, cols)
	fmt.Fprintln(r.out, tabular.Head(d.Raw, headRows).String())

	if d.Err != nil {
		rec.Fail(fmt.Errorf("process: %w", d.Err))
		fmt.Fprintf(r.out, "⚠ Processing %s failed: %v\n", title, d.Err)
	} else {
		rows, cols = tabular.Shape(d.Processed)
		rec.Processed = manifest.Shape{Rows: rows, Cols: cols}
		rec.Status = manifest.StatusOK
		if !tabular.IsEmpty(d.Processed) {
			path := r.ProcessedPath(d.Key)
			if err := tabular.WriteCSVFile(path, d.Processed); err != nil {
				rec.Note(err)
			} else {
				rec.Outputs = append(rec.Outputs, path)
			}
		}
	}

	if path, err := r.writeSummary(d.Key, d.Raw); err != nil {
		rec.Note(err)
		fmt.Fprintf(r.out, "⚠ Summary for %s failed: %v\n", title, err)
	} else {
		rec.Outputs = append(rec.Outputs, path)
	}

	files, err := renderer.Render(d.Key, ChartTable(d.Raw))
	rec.Outputs = append(rec.Outputs, files...)
	if err != nil {
		rec.Note(err)
		fmt.Fprintf(r.out, "⚠ Some %s charts failed: %v\n", title, err)
	}
	if rec.Status == manifest.StatusOK {
		fmt.Fprintf(r.out, "✓ %s: %d charts written\n", title, len(files))
	}
}

// writeSummary profiles the raw table and writes the markdown report.
func (r *Runner) writeSummary(key string, raw dataframe.DataFrame) (string, error) {
	opt := analysis.DefaultOptions()
	if col, ok := groupColumns[key]; ok && tabular.HasColumns(raw, col) {
		opt.GroupBy = []string{col}
	}
	rep, err := analysis.Profile(key, tabular.TrimStrings(raw), opt)
	if err != nil {
		return "", fmt.Errorf("profile: %w", err)
	}
	path := r.SummaryPath(key)
	if err := utils.SafeWriteFile(path, []byte(rep.Markdown())); err != nil {
		return "", err
	}
	return path, nil
}

// ChartTable is the table the charts are drawn from: the raw table with
// string cells trimmed.
func ChartTable(raw dataframe.DataFrame) dataframe.DataFrame {
	return tabular.TrimStrings(raw)
}

// Fetch downloads keys (all datasets when empty) and stores each raw table
// under data_dir/raw. It returns the keys that failed.
func (r *Runner) Fetch(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		keys = fetch.Keys
	}
	if err := utils.EnsureDirs(r.cfg.DataDir); err != nil {
		return nil, err
	}
	loaded := process.LoadAndProcessAll(ctx, r.loader, r.logger, keys...)
	var failed []string
	for _, key := range keys {
		d := loaded[key]
		if !d.Loaded() {
			failed = append(failed, key)
			fmt.Fprintf(r.out, "⚠ %s: %v\n", key, d.LoadErr)
			continue
		}
		path := r.RawPath(key)
		if err := tabular.WriteCSVFile(path, d.Raw); err != nil {
			return failed, err
		}
		rows, cols := tabular.Shape(d.Raw)
		fmt.Fprintf(r.out, "✓ %s: %d rows x %d cols -> %s\n", key, rows, cols, path)
	}
	return failed, nil
}

// Plot renders the charts for key from a local table without any download.
func (r *Runner) Plot(key, path, sheet string) ([]string, error) {
	raw, err := analysis.LoadTable(path, sheet, 0)
	if err != nil {
		return nil, err
	}
	if tabular.IsEmpty(raw) {
		return nil, fmt.Errorf("table %s has no rows", path)
	}
	if err := utils.EnsureDirs(r.cfg.ResultsDir); err != nil {
		return nil, err
	}
	renderer := charts.NewRenderer(r.cfg.ResultsDir, r.cfg.ChartDPI, r.logger.Named("charts"))
	return renderer.Render(key, ChartTable(raw))
}

func (r *Runner) title(key string) string {
	for _, s := range fetch.Sources(r.cfg) {
		if s.Key == key {
			return s.Title
		}
	}
	return key
}

func (r *Runner) sourceLabel(key string) string {
	for _, s := range fetch.Sources(r.cfg) {
		if s.Key == key {
			if s.Kind == fetch.KindKaggle {
				return "kaggle:" + s.Location
			}
			return s.Location
		}
	}
	return ""
}
