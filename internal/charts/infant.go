package charts

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no plottable values")

// Infant dataset columns.
const (
	ColMonth   = "Month"
	ColWeight  = "Weight"
	ColPattern = "Breastfeeding Partern"
)

// Infant renders the infant dataset charts.
func (r *Renderer) Infant(df dataframe.DataFrame) ([]string, error) {
	return r.runAll(df, step{"weight trajectory", r.InfantWeightTrajectory})
}

// TrajectoryPoint is the mean weight of one feeding pattern at one month.
type TrajectoryPoint struct {
	Month      int
	MeanWeight float64
}

// WeightTrajectories averages Weight per month number and feeding pattern.
// Rows whose month has no number or whose weight is missing are skipped.
func WeightTrajectories(df dataframe.DataFrame) (map[string][]TrajectoryPoint, error) {
	if err := tabular.Require(df, ColMonth, ColWeight, ColPattern); err != nil {
		return nil, err
	}
	months, mmiss := tabular.Strings(df, ColMonth)
	weights := tabular.Floats(df, ColWeight)
	patterns, pmiss := tabular.Strings(df, ColPattern)

	type acc struct {
		sum float64
		n   int
	}
	sums := map[string]map[int]*acc{}
	for i := range months {
		if mmiss[i] || pmiss[i] || math.IsNaN(weights[i]) {
			continue
		}
		m, ok := MonthNum(months[i])
		if !ok {
			continue
		}
		byMonth := sums[patterns[i]]
		if byMonth == nil {
			byMonth = map[int]*acc{}
			sums[patterns[i]] = byMonth
		}
		a := byMonth[m]
		if a == nil {
			a = &acc{}
			byMonth[m] = a
		}
		a.sum += weights[i]
		a.n++
	}
	out := make(map[string][]TrajectoryPoint, len(sums))
	for pattern, byMonth := range sums {
		pts := make([]TrajectoryPoint, 0, len(byMonth))
		for m, a := range byMonth {
			pts = append(pts, TrajectoryPoint{Month: m, MeanWeight: a.sum / float64(a.n)})
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].Month < pts[j].Month })
		out[pattern] = pts
	}
	return out, nil
}

// InfantWeightTrajectory draws one line per feeding pattern of mean weight by month.
func (r *Renderer) InfantWeightTrajectory(df dataframe.DataFrame) (string, error) {
	traj, err := WeightTrajectories(df)
	if err != nil {
		return "", err
	}
	if len(traj) == 0 {
		return "", ErrNoData
	}
	names := make([]string, 0, len(traj))
	for k := range traj {
		names = append(names, k)
	}
	sort.Strings(names)

	p := plot.New()
	p.Title.Text = "Average Infant Weight Trajectory by Feeding Method"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Average Weight"
	p.Add(dashedGrid())

	for i, name := range names {
		pts := traj[name]
		xys := make(plotter.XYs, len(pts))
		for j, pt := range pts {
			xys[j].X = float64(pt.Month)
			xys[j].Y = pt.MeanWeight
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return "", err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2.5)
		points.Shape = draw.CircleGlyph{}
		points.Color = plotutil.Color(i)
		points.Radius = vg.Points(3)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}
	p.Legend.Top = true
	return r.savePlot(p, FileInfantTrajectory, 6, 4)
}

func dashedGrid() *plotter.Grid {
	g := plotter.NewGrid()
	dash := []vg.Length{vg.Points(3), vg.Points(3)}
	g.Vertical.Dashes = dash
	g.Horizontal.Dashes = dash
	return g
}
