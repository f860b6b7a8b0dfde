package charts

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// Monkeypox research columns.
const (
	ColRegion      = "Region"
	ColCompletion  = "Completion"
	ColTopic       = "Topic"
	ColDescription = "Brief Description"
)

// maxCompletionLabel drops free-text completion values from the bar chart.
const maxCompletionLabel = 15

const barColor = "16a34a"

// Monkeypox renders the Monkeypox research charts.
func (r *Renderer) Monkeypox(df dataframe.DataFrame) ([]string, error) {
	return r.runAll(df,
		step{"region pie", r.MonkeypoxRegionPie},
		step{"completion bar", r.MonkeypoxCompletionBar},
		step{"description length boxplot", r.MonkeypoxDescLengthBoxplot},
	)
}

// RegionShares returns one slice per region, most frequent first, labelled
// with the region name and its percentage.
func RegionShares(df dataframe.DataFrame) ([]chart.Value, error) {
	counts, err := tabular.ValueCounts(df, ColRegion)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	out := make([]chart.Value, 0, len(counts))
	for _, c := range counts {
		pct := 100 * float64(c.Count) / float64(total)
		out = append(out, chart.Value{
			Value: float64(c.Count),
			Label: fmt.Sprintf("%s %.1f%%", c.Value, pct),
		})
	}
	return out, nil
}

// MonkeypoxRegionPie draws the share of projects per region.
func (r *Renderer) MonkeypoxRegionPie(df dataframe.DataFrame) (string, error) {
	values, err := RegionShares(df)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", ErrNoData
	}
	pie := chart.PieChart{
		Title:  "Monkeypox Research Projects by Region",
		Width:  r.pixels(6),
		Height: r.pixels(6),
		DPI:    float64(r.DPI),
		Values: values,
	}
	return r.saveChart(pie, FileMPXRegionPie)
}

// CompletionCounts counts projects per anticipated completion, keeping labels
// of at most 15 characters, sorted by label.
func CompletionCounts(df dataframe.DataFrame) ([]tabular.ValueCount, error) {
	counts, err := tabular.ValueCounts(df, ColCompletion)
	if err != nil {
		return nil, err
	}
	out := counts[:0]
	for _, c := range counts {
		if utf8.RuneCountInString(c.Value) <= maxCompletionLabel {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

// MonkeypoxCompletionBar draws project counts per anticipated completion.
func (r *Renderer) MonkeypoxCompletionBar(df dataframe.DataFrame) (string, error) {
	counts, err := CompletionCounts(df)
	if err != nil {
		return "", err
	}
	if len(counts) == 0 {
		return "", ErrNoData
	}
	fill := drawing.ColorFromHex(barColor)
	bars := make([]chart.Value, len(counts))
	maxCount := 0
	for i, c := range counts {
		bars[i] = chart.Value{
			Value: float64(c.Count),
			Label: c.Value,
			Style: chart.Style{FillColor: fill, StrokeColor: drawing.ColorBlack, StrokeWidth: 1},
		}
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}
	width := r.pixels(10)
	barWidth := (width - 200) / (2 * len(bars))
	if barWidth < 8 {
		barWidth = 8
	}
	bc := chart.BarChart{
		Title:    "Monkeypox Projects by Anticipated Completion",
		Width:    width,
		Height:   r.pixels(5),
		DPI:      float64(r.DPI),
		BarWidth: barWidth,
		XAxis:    chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Name:  "Number of Projects",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Ceil(float64(maxCount) * 1.1)},
		},
		Bars: bars,
	}
	return r.saveChart(bc, FileMPXCompBar)
}

// DescriptionLengths returns the character count of each brief description;
// missing descriptions are NaN.
func DescriptionLengths(df dataframe.DataFrame) ([]float64, error) {
	if err := tabular.Require(df, ColDescription); err != nil {
		return nil, err
	}
	descs, miss := tabular.Strings(df, ColDescription)
	out := make([]float64, len(descs))
	for i, d := range descs {
		if miss[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(utf8.RuneCountInString(d))
	}
	return out, nil
}

// MonkeypoxDescLengthBoxplot draws description length per topic with medians.
func (r *Renderer) MonkeypoxDescLengthBoxplot(df dataframe.DataFrame) (string, error) {
	if err := tabular.Require(df, ColTopic, ColDescription); err != nil {
		return "", err
	}
	lengths, err := DescriptionLengths(df)
	if err != nil {
		return "", err
	}
	topics, miss := tabular.Strings(df, ColTopic)
	names, groups := groupedValues(topics, miss, lengths)
	p, err := boxplotWithMedians(names, groups)
	if err != nil {
		return "", err
	}
	p.Title.Text = "Description Length by Topic - Monkeypox Projects"
	p.X.Label.Text = "Monkeypox research topic"
	p.Y.Label.Text = "Description length (characters)"
	p.X.Tick.Label.Rotation = math.Pi / 9
	p.X.Tick.Label.XAlign = draw.XRight
	return r.savePlot(p, FileMPXDescBoxplot, 9, 5)
}
