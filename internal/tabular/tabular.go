// Package tabular holds the small set of DataFrame helpers the pipeline needs on
// top of gota: string-typed CSV loading, trimming, numeric coercion, missing-value
// filtering and grouping.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MissingTokens are cell values treated as missing when reading CSV input.
var MissingTokens = []string{"", "NA", "N/A", "NaN", "nan", "<nil>"}

// ErrMissingColumns is wrapped by MissingColumnsError.
var ErrMissingColumns = errors.New("missing columns")

// MissingColumnsError names the columns a table lacks.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Empty returns a table without rows or columns.
func Empty() dataframe.DataFrame { return dataframe.DataFrame{} }

// IsEmpty reports whether df has no usable rows.
func IsEmpty(df dataframe.DataFrame) bool {
	return df.Err != nil || df.Ncol() == 0 || df.Nrow() == 0
}

func loadOptions(extra ...dataframe.LoadOption) []dataframe.LoadOption {
	return append([]dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(MissingTokens),
	}, extra...)
}

// ReadCSV loads CSV content with a header row. Every column is kept as string;
// callers coerce the columns they need.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	return ReadDelimited(r, ',')
}

// ReadDelimited is ReadCSV with a custom field delimiter.
func ReadDelimited(r io.Reader, delim rune) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, loadOptions(dataframe.WithDelimiter(delim))...)
	if df.Err != nil {
		return Empty(), fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

// FromRecords builds a table from rows whose first row is the header.
// Short rows are padded with missing cells.
func FromRecords(records [][]string) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return Empty(), nil
	}
	width := len(records[0])
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, width)
		copy(row, rec)
		rows[i] = row
	}
	df := dataframe.LoadRecords(rows, loadOptions()...)
	if df.Err != nil {
		return Empty(), fmt.Errorf("load records: %w", df.Err)
	}
	return df, nil
}

// ReadCSVFile opens path and loads it; .tsv files are tab separated.
func ReadCSVFile(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Empty(), fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return ReadDelimited(f, '\t')
	}
	return ReadCSV(f)
}

// WriteCSVFile writes df to path, creating parent directories.
func WriteCSVFile(path string, df dataframe.DataFrame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

// Shape returns (rows, columns).
func Shape(df dataframe.DataFrame) (int, int) {
	if df.Err != nil {
		return 0, 0
	}
	return df.Nrow(), df.Ncol()
}

// Require returns a *MissingColumnsError when df lacks any of cols.
func Require(df dataframe.DataFrame, cols ...string) error {
	have := make(map[string]struct{}, df.Ncol())
	for _, n := range df.Names() {
		have[n] = struct{}{}
	}
	var missing []string
	for _, c := range cols {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// HasColumns reports whether df has every one of cols.
func HasColumns(df dataframe.DataFrame, cols ...string) bool {
	return Require(df, cols...) == nil
}

// Strings returns the column values with missing cells as "" and a parallel
// missing mask.
func Strings(df dataframe.DataFrame, col string) ([]string, []bool) {
	s := df.Col(col)
	vals := make([]string, s.Len())
	miss := make([]bool, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			miss[i] = true
			continue
		}
		vals[i] = el.String()
	}
	return vals, miss
}

// Floats coerces a column to float64; missing and non-finite cells become NaN.
func Floats(df dataframe.DataFrame, col string) []float64 {
	s := df.Col(col)
	out := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			out[i] = math.NaN()
			continue
		}
		if s.Type() == series.Float {
			out[i] = el.Float()
			if math.IsInf(out[i], 0) {
				out[i] = math.NaN()
			}
			continue
		}
		out[i] = ParseFloat(el.String())
	}
	return out
}

// ParseFloat parses a trimmed number, returning NaN when s is not a finite
// number ("inf" and "Infinity" included).
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a":
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// SetStrings replaces or adds a string column. Cells flagged in miss are stored as missing.
func SetStrings(df dataframe.DataFrame, col string, vals []string, miss []bool) dataframe.DataFrame {
	cells := make([]string, len(vals))
	for i, v := range vals {
		if miss != nil && miss[i] {
			cells[i] = "NaN"
			continue
		}
		cells[i] = v
	}
	return df.Mutate(series.New(cells, series.String, col))
}

// SetFloats replaces or adds a float column; NaN values are missing.
func SetFloats(df dataframe.DataFrame, col string, vals []float64) dataframe.DataFrame {
	return df.Mutate(series.New(vals, series.Float, col))
}

// TrimStrings strips surrounding whitespace in the named string columns, or in
// every string column when none are named.
func TrimStrings(df dataframe.DataFrame, cols ...string) dataframe.DataFrame {
	if len(cols) == 0 {
		for _, n := range df.Names() {
			if df.Col(n).Type() == series.String {
				cols = append(cols, n)
			}
		}
	}
	for _, c := range cols {
		vals, miss := Strings(df, c)
		for i := range vals {
			vals[i] = strings.TrimSpace(vals[i])
		}
		df = SetStrings(df, c, vals, miss)
	}
	return df
}

// DropNA keeps only rows without missing cells.
func DropNA(df dataframe.DataFrame) dataframe.DataFrame {
	if df.Ncol() == 0 {
		return df
	}
	keep := make([]int, 0, df.Nrow())
	names := df.Names()
	for i := 0; i < df.Nrow(); i++ {
		ok := true
		for _, n := range names {
			if df.Col(n).Elem(i).IsNA() {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return Rows(df, keep)
}

// Rows builds a new table with the selected row positions, preserving column
// order and types (float columns stay float, everything else string).
func Rows(df dataframe.DataFrame, idx []int) dataframe.DataFrame {
	names := df.Names()
	if len(names) == 0 {
		return df
	}
	cols := make([]series.Series, 0, len(names))
	for _, n := range names {
		s := df.Col(n)
		if s.Type() == series.Float {
			vals := make([]float64, len(idx))
			for j, i := range idx {
				vals[j] = s.Elem(i).Float()
			}
			cols = append(cols, series.New(vals, series.Float, n))
			continue
		}
		vals := make([]string, len(idx))
		for j, i := range idx {
			el := s.Elem(i)
			if el.IsNA() {
				vals[j] = "NaN"
			} else {
				vals[j] = el.String()
			}
		}
		cols = append(cols, series.New(vals, series.String, n))
	}
	return dataframe.New(cols...)
}

// Head returns the first n rows.
func Head(df dataframe.DataFrame, n int) dataframe.DataFrame {
	if n > df.Nrow() {
		n = df.Nrow()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Rows(df, idx)
}

// Group is one key combination of a grouping with its row positions.
type Group struct {
	Keys []string
	Rows []int
}

// GroupBy groups rows by the string values of cols. Rows with a missing key are
// excluded. Groups are ordered by their keys.
func GroupBy(df dataframe.DataFrame, cols ...string) ([]Group, error) {
	if err := Require(df, cols...); err != nil {
		return nil, err
	}
	keyCols := make([][]string, len(cols))
	keyMiss := make([][]bool, len(cols))
	for i, c := range cols {
		keyCols[i], keyMiss[i] = Strings(df, c)
	}
	index := map[string]*Group{}
	for r := 0; r < df.Nrow(); r++ {
		keys := make([]string, len(cols))
		skip := false
		for i := range cols {
			if keyMiss[i][r] {
				skip = true
				break
			}
			keys[i] = keyCols[i][r]
		}
		if skip {
			continue
		}
		k := strings.Join(keys, "\x1f")
		g := index[k]
		if g == nil {
			g = &Group{Keys: keys}
			index[k] = g
		}
		g.Rows = append(g.Rows, r)
	}
	out := make([]Group, 0, len(index))
	for _, g := range index {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return lessKeys(out[i].Keys, out[j].Keys) })
	return out, nil
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ValueCount is a distinct value with its frequency.
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts counts non-missing values of col, most frequent first; ties keep
// first-appearance order.
func ValueCounts(df dataframe.DataFrame, col string) ([]ValueCount, error) {
	if err := Require(df, col); err != nil {
		return nil, err
	}
	vals, miss := Strings(df, col)
	pos := map[string]int{}
	var out []ValueCount
	for i, v := range vals {
		if miss[i] {
			continue
		}
		if p, ok := pos[v]; ok {
			out[p].Count++
			continue
		}
		pos[v] = len(out)
		out = append(out, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}
