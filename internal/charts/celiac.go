package charts

import (
	"fmt"
	"image/color"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/healthlens-cli/internal/analysis"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// Celiac dataset columns.
const (
	ColAge    = "Age"
	ColIgA    = "IgA"
	ColCDType = "cd_type"
)

// ImmunoColumns are the numeric columns correlated in the heatmap.
var ImmunoColumns = []string{"Age", "IgA", "IgG", "IgM"}

const ageBins = 15

// Celiac renders the celiac dataset charts.
func (r *Renderer) Celiac(df dataframe.DataFrame) ([]string, error) {
	return r.runAll(df,
		step{"age histogram", r.CeliacAgeHistogram},
		step{"immunoglobulin boxplot", r.CeliacImmunoBoxplot},
		step{"correlation heatmap", r.CeliacCorrHeatmap},
	)
}

// CeliacAgeHistogram draws a 15-bin histogram of Age.
func (r *Renderer) CeliacAgeHistogram(df dataframe.DataFrame) (string, error) {
	if err := tabular.Require(df, ColAge); err != nil {
		return "", err
	}
	ages := analysis.Finite(tabular.Floats(df, ColAge))
	if len(ages) == 0 {
		return "", ErrNoData
	}
	h, err := plotter.NewHist(plotter.Values(ages), ageBins)
	if err != nil {
		return "", err
	}
	h.FillColor = color.RGBA{G: 128, A: 255}
	h.LineStyle.Color = color.Black
	h.LineStyle.Width = vg.Points(0.8)

	p := plot.New()
	p.Title.Text = "Distribution of Ages - Celiac Dataset (Histogram)"
	p.X.Label.Text = "Age"
	p.Y.Label.Text = "Number of Patients"
	p.Add(plotter.NewGrid(), h)
	return r.savePlot(p, FileCeliacAgeHist, 6, 5)
}

// CeliacImmunoBoxplot draws IgA per disease type with each median written at its box.
func (r *Renderer) CeliacImmunoBoxplot(df dataframe.DataFrame) (string, error) {
	if err := tabular.Require(df, ColCDType, ColIgA); err != nil {
		return "", err
	}
	types, miss := tabular.Strings(df, ColCDType)
	names, groups := groupedValues(types, miss, tabular.Floats(df, ColIgA))
	p, err := boxplotWithMedians(names, groups)
	if err != nil {
		return "", err
	}
	p.Title.Text = "IgA Levels by Celiac Disease Type (boxplot)"
	p.X.Label.Text = "Celiac Disease Type"
	p.Y.Label.Text = "IgA Level"
	return r.savePlot(p, FileCeliacBoxplot, 6, 4)
}

// boxplotWithMedians places one box per name at x = index and labels each
// with its median.
func boxplotWithMedians(names []string, groups map[string][]float64) (*plot.Plot, error) {
	if len(names) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Add(plotter.NewGrid())
	xys := make(plotter.XYs, len(names))
	texts := make([]string, len(names))
	for i, name := range names {
		b, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(groups[name]))
		if err != nil {
			return nil, fmt.Errorf("boxplot %s: %w", name, err)
		}
		b.FillColor = color.RGBA{R: 147, G: 197, B: 253, A: 255}
		p.Add(b)
		med := analysis.Median(groups[name])
		xys[i] = plotter.XY{X: float64(i), Y: med}
		texts[i] = fmt.Sprintf("%.2f", med)
	}
	labels, err := centeredLabels(xys, texts)
	if err != nil {
		return nil, err
	}
	p.Add(labels)
	p.NominalX(names...)
	return p, nil
}

func centeredLabels(xys plotter.XYs, texts []string) (*plotter.Labels, error) {
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
		labels.TextStyle[i].Color = color.Black
	}
	return labels, nil
}

// corrGrid lays a square matrix out with its first row at the top.
type corrGrid struct{ m [][]float64 }

func (g corrGrid) Dims() (c, r int)   { return len(g.m), len(g.m) }
func (g corrGrid) Z(c, r int) float64 { return g.m[len(g.m)-1-r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// CeliacCorrHeatmap draws the Pearson correlation matrix of Age and the
// immunoglobulin columns on a diverging palette fixed to [-1, 1].
func (r *Renderer) CeliacCorrHeatmap(df dataframe.DataFrame) (string, error) {
	if err := tabular.Require(df, ImmunoColumns...); err != nil {
		return "", err
	}
	cols := make([][]float64, len(ImmunoColumns))
	for i, c := range ImmunoColumns {
		cols[i] = tabular.Floats(df, c)
	}
	m := analysis.Correlations(cols)
	n := len(m)

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(corrGrid{m: m}, cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 200}

	xys := make(plotter.XYs, 0, n*n)
	texts := make([]string, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - row)})
			texts = append(texts, fmt.Sprintf("%.2f", m[row][col]))
		}
	}
	labels, err := centeredLabels(xys, texts)
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = "Correlation: Age & Immunoglobulins (Heatmap)"
	p.Add(hm, labels)
	p.NominalX(ImmunoColumns...)
	reversed := make([]string, n)
	for i, c := range ImmunoColumns {
		reversed[n-1-i] = c
	}
	p.NominalY(reversed...)
	return r.savePlot(p, FileCeliacHeatmap, 6, 5)
}
