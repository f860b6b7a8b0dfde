// Package charts renders the PNG figures for each dataset. Statistical plots
// (histograms, boxplots, heatmaps, lines) use gonum/plot; pie and bar charts
// use go-chart.
package charts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// Output file names.
const (
	FileInfantTrajectory = "infant_weight_trajectory_linechart.png"
	FileCeliacAgeHist    = "celiac_age_histogram.png"
	FileCeliacBoxplot    = "celiac_immuno_boxplot.png"
	FileCeliacHeatmap    = "celiac_corr_heatmap.png"
	FileMPXRegionPie     = "monkeypox_proj_byregion_piechart.png"
	FileMPXCompBar       = "monkeypox_proj_comp_barchart.png"
	FileMPXDescBoxplot   = "monkeypox_desclen_boxplot.png"
)

// DefaultDPI matches the resolution used when no DPI is configured.
const DefaultDPI = 150

// Renderer writes charts into Dir.
type Renderer struct {
	Dir    string
	DPI    int
	logger *zap.Logger
}

// NewRenderer returns a Renderer writing into dir at dpi.
func NewRenderer(dir string, dpi int, logger *zap.Logger) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{Dir: dir, DPI: dpi, logger: logger}
}

// chartRenderer is satisfied by go-chart's PieChart and BarChart.
type chartRenderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// savePlot draws p onto a w x h inch PNG at the renderer DPI.
func (r *Renderer) savePlot(p *plot.Plot, name string, w, h float64) (string, error) {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch),
		vgimg.UseDPI(r.DPI),
	)
	p.Draw(draw.New(c))
	return r.write(name, func(f io.Writer) error {
		_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(f)
		return err
	})
}

// saveChart renders a go-chart chart to PNG.
func (r *Renderer) saveChart(ch chartRenderer, name string) (string, error) {
	return r.write(name, func(f io.Writer) error {
		return ch.Render(chart.PNG, f)
	})
}

func (r *Renderer) write(name string, fn func(io.Writer) error) (string, error) {
	if err := utils.EnsureDirs(r.Dir); err != nil {
		return "", err
	}
	path := filepath.Join(r.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	r.logger.Info("chart saved", zap.String("file", path))
	return path, nil
}

// pixels converts inches to pixels at the renderer DPI. go-chart sizes
// canvases in pixels.
func (r *Renderer) pixels(inches float64) int {
	return int(inches * float64(r.DPI))
}

// Render draws every chart defined for the dataset key. Charts that fail are
// reported in the returned error while the others are still written.
func (r *Renderer) Render(key string, df dataframe.DataFrame) ([]string, error) {
	switch key {
	case fetch.KeyMPXResearch:
		return r.Monkeypox(df)
	case fetch.KeyCeliac:
		return r.Celiac(df)
	case fetch.KeyInfant:
		return r.Infant(df)
	}
	return nil, fmt.Errorf("no charts defined for dataset %q", key)
}

type step struct {
	name string
	fn   func(dataframe.DataFrame) (string, error)
}

func (r *Renderer) runAll(df dataframe.DataFrame, steps ...step) ([]string, error) {
	var (
		files []string
		errs  []error
	)
	for _, s := range steps {
		path, err := s.fn(df)
		if err != nil {
			r.logger.Warn("chart failed", zap.String("chart", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		files = append(files, path)
	}
	return files, errors.Join(errs...)
}
