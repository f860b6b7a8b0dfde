package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// Options controls profiling behavior for tabular data.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the categorical values listed per column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Correlations:     true,
		Outliers:         true,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|unknown
	Unit    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	Median float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []tabular.ValueCount
	ExampleTexts []string
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// maxCategoryLen is the longest value still counted as a category.
const maxCategoryLen = 64

// Profile summarises every column of df.
func Profile(name string, df dataframe.DataFrame, opt Options) (*Report, error) {
	rep := &Report{Name: name}
	if df.Err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, df.Err)
	}
	if df.Ncol() == 0 {
		return rep, nil
	}
	rep.Rows = df.Nrow()
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}

	numeric := map[string][]float64{}
	var numCols []string
	for _, col := range df.Names() {
		s, vals := summarizeColumn(df, col, opt, topN)
		if s.Kind == KindNumeric {
			numeric[col] = vals
			numCols = append(numCols, col)
		}
		rep.Cols = append(rep.Cols, s)
	}

	head := tabular.Head(df, sampleRows)
	for i := 0; i < head.Nrow(); i++ {
		row := make([]string, head.Ncol())
		for j, col := range head.Names() {
			el := head.Col(col).Elem(i)
			if !el.IsNA() {
				row[j] = formatCell(head.Col(col), i)
			}
		}
		rep.Samples = append(rep.Samples, row)
	}

	if len(opt.GroupBy) > 0 {
		groups, err := groupSummaries(df, opt.GroupBy, numCols, numeric)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by skipped: %v", err))
		}
		rep.Groups = groups
	}

	if opt.Correlations && len(numCols) >= 2 {
		cols := make([][]float64, len(numCols))
		for i, c := range numCols {
			cols[i] = numeric[c]
		}
		rep.Corr = &CorrMatrix{Columns: numCols, Values: Correlations(cols)}
	}
	return rep, nil
}

// summarizeColumn infers the kind of col and returns its summary plus the
// numeric values (NaN for missing or unparsable cells) when numeric.
func summarizeColumn(df dataframe.DataFrame, col string, opt Options, topN int) (ColumnSummary, []float64) {
	clean, unit := splitUnits(col)
	s := ColumnSummary{Name: clean, Unit: unit}
	strs, miss := tabular.Strings(df, col)
	nums := tabular.Floats(df, col)
	isFloat := df.Col(col).Type() == series.Float

	var numCnt, dtCnt, txtCnt int
	cats := map[string]int{}
	var exText []string
	for i := range strs {
		v := strings.TrimSpace(strs[i])
		if miss[i] || (!isFloat && v == "") {
			s.Missing++
			continue
		}
		s.NonNull++
		if !math.IsNaN(nums[i]) && !math.IsInf(nums[i], 0) {
			numCnt++
			continue
		}
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
			continue
		}
		txtCnt++
		if len(v) <= maxCategoryLen {
			cats[v]++
		}
		if len(exText) < 3 {
			exText = append(exText, v)
		}
	}

	vals := Finite(nums)
	switch {
	case numCnt >= dtCnt && numCnt >= txtCnt && numCnt > 0 && len(vals) > 0:
		s.Kind = KindNumeric
		s.Min, s.Max = vals[0], vals[0]
		for _, v := range vals {
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
		s.Mean, s.Std = stat.MeanStdDev(vals, nil)
		if len(vals) < 2 {
			s.Std = 0
		}
		s.Median = Median(vals)
		if opt.Outliers && len(vals) >= 8 {
			s.OutliersCount, s.OutliersMaxAbsZ, s.OutlierThreshold = outliers(vals, opt.OutlierThreshold)
		}
		return s, nums
	case dtCnt >= txtCnt && dtCnt > 0:
		s.Kind = KindDatetime
	case len(cats) > 0 && len(cats) < s.NonNull:
		s.Kind = KindCategorical
		tops := make([]tabular.ValueCount, 0, len(cats))
		for k, v := range cats {
			tops = append(tops, tabular.ValueCount{Value: k, Count: v})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > topN {
			tops = tops[:topN]
		}
		s.TopValues = tops
		s.Unique = len(cats)
	case txtCnt > 0:
		s.Kind = KindText
		s.ExampleTexts = exText
		s.Unique = len(cats)
	default:
		s.Kind = KindUnknown
	}
	return s, nil
}

func outliers(vals []float64, thr float64) (count int, maxAbsZ, threshold float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, mad := medianMAD(vals)
	if mad > 0 {
		for _, v := range vals {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				count++
			}
			if az > maxAbsZ {
				maxAbsZ = az
			}
		}
	}
	return count, maxAbsZ, thr
}

func groupSummaries(df dataframe.DataFrame, by []string, numCols []string, numeric map[string][]float64) ([]GroupResult, error) {
	groups, err := tabular.GroupBy(df, by...)
	if err != nil {
		return nil, err
	}
	skip := map[string]bool{}
	for _, b := range by {
		skip[b] = true
	}
	out := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		parts := make([]string, len(by))
		for i, b := range by {
			parts[i] = fmt.Sprintf("%s=%s", b, safeVal(g.Keys[i]))
		}
		gr := GroupResult{Key: strings.Join(parts, " | "), Size: len(g.Rows), Metrics: map[string]NumSummary{}}
		for _, c := range numCols {
			if skip[c] {
				continue
			}
			var ns NumSummary
			sum := 0.0
			for _, r := range g.Rows {
				v := numeric[c][r]
				if math.IsNaN(v) {
					continue
				}
				if ns.Count == 0 || v < ns.Min {
					ns.Min = v
				}
				if ns.Count == 0 || v > ns.Max {
					ns.Max = v
				}
				sum += v
				ns.Count++
			}
			if ns.Count > 0 {
				ns.Mean = sum / float64(ns.Count)
				gr.Metrics[c] = ns
			}
		}
		out = append(out, gr)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func formatCell(s series.Series, i int) string {
	if s.Type() == series.Float {
		return fmt.Sprintf("%g", s.Elem(i).Float())
	}
	return s.Elem(i).String()
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Weight (kg)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., IgA [g/L]
	{regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|kg|cm|°[CF]|%)$`), 2},
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
