package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

var celiacRows = []string{
	"Age,IgA (g/L),cd_type,Diagnosis date,Note",
	"10,1.0,typical,2024-01-02,first",
	"12,1.1,typical,2024-01-03,second",
	"14,0.9,atypical,2024-01-04,third",
	"16,1.2,typical,2024-01-05,fourth",
	"18,1.0,atypical,2024-01-06,fifth",
	"20,1.1,typical,2024-01-07,sixth",
	"22,0.95,silent,2024-01-08,seventh",
	"24,1.05,typical,2024-01-09,eighth",
	"26,9.0,atypical,2024-01-10,ninth",
	",1.0,typical,,tenth",
}

func loadRows(t *testing.T, rows []string) dataframe.DataFrame {
	t.Helper()
	df, err := tabular.ReadCSV(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return df
}

func column(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not in report", name)
	return ColumnSummary{}
}

func TestProfileAndMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.GroupBy = []string{"cd_type"}

	rep, err := Profile("celiac", loadRows(t, celiacRows), opt)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if rep.Rows != 10 || len(rep.Cols) != 5 {
		t.Fatalf("unexpected shape: rows=%d cols=%d", rep.Rows, len(rep.Cols))
	}

	age := column(t, rep, "Age")
	if age.Kind != KindNumeric || age.NonNull != 9 || age.Missing != 1 {
		t.Fatalf("age summary: %+v", age)
	}
	if age.Min != 10 || age.Max != 26 || age.Mean != 18 || age.Median != 18 {
		t.Fatalf("age stats: %+v", age)
	}

	iga := column(t, rep, "IgA")
	if iga.Unit != "g/L" {
		t.Fatalf("expected unit g/L, got %q", iga.Unit)
	}
	if iga.OutliersCount != 1 || iga.OutlierThreshold != 3.5 {
		t.Fatalf("expected one outlier, got %+v", iga)
	}

	cd := column(t, rep, "cd_type")
	if cd.Kind != KindCategorical || cd.Unique != 3 {
		t.Fatalf("cd_type summary: %+v", cd)
	}
	if cd.TopValues[0] != (tabular.ValueCount{Value: "typical", Count: 6}) {
		t.Fatalf("top value: %+v", cd.TopValues)
	}
	if k := column(t, rep, "Diagnosis date").Kind; k != KindDatetime {
		t.Fatalf("expected datetime, got %s", k)
	}
	if k := column(t, rep, "Note").Kind; k != KindText {
		t.Fatalf("expected text, got %s", k)
	}

	if len(rep.Groups) != 3 || rep.Groups[0].Key != "cd_type=typical" || rep.Groups[0].Size != 6 {
		t.Fatalf("groups: %+v", rep.Groups)
	}
	if m := rep.Groups[0].Metrics["Age"]; m.Count != 5 || m.Min != 10 || m.Max != 24 {
		t.Fatalf("typical age metrics: %+v", m)
	}
	if rep.Corr == nil || len(rep.Corr.Columns) != 2 {
		t.Fatalf("expected 2x2 correlation matrix, got %+v", rep.Corr)
	}
	if len(rep.Samples) != 3 || rep.Samples[0][0] != "10" {
		t.Fatalf("samples: %v", rep.Samples)
	}

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Dataset: celiac",
		"Rows: 10",
		"IgA [g/L]: numeric",
		"outliers: 1 above |z|>3.5",
		"cd_type: categorical",
		"typical(6), atypical(3), silent(1)",
		"[GROUP-BY SUMMARY]",
		"cd_type=typical (n=6)",
		"[CORRELATIONS]",
		"[HEAD AND SAMPLE ROWS]",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestProfileEmptyTable(t *testing.T) {
	rep, err := Profile("empty", tabular.Empty(), DefaultOptions())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if rep.Rows != 0 || len(rep.Cols) != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
	if !strings.Contains(rep.Markdown(), "Columns: 0") {
		t.Fatalf("markdown: %s", rep.Markdown())
	}
}

func TestProfileUnknownGroupColumnWarns(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = []string{"nope"}
	rep, err := Profile("celiac", loadRows(t, celiacRows), opt)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "nope") {
		t.Fatalf("expected group-by warning, got %v", rep.Warnings)
	}
}

func TestMedianAndCorrelations(t *testing.T) {
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("median even: %v", got)
	}
	if got := Median([]float64{3, math.NaN(), 1, 5}); got != 3 {
		t.Fatalf("median with NaN: %v", got)
	}
	if !math.IsNaN(Median(nil)) {
		t.Fatalf("median of nothing should be NaN")
	}

	a := []float64{1, 2, 3, 4}
	b := []float64{2, 4, 6, math.NaN()}
	c := []float64{4, 3, 2, 1}
	flat := []float64{1, 1, 1, 1}
	m := Correlations([][]float64{a, b, c, flat})
	if math.Abs(m[0][1]-1) > 1e-9 || math.Abs(m[0][2]+1) > 1e-9 {
		t.Fatalf("unexpected correlations: %v", m)
	}
	if m[2][0] != m[0][2] {
		t.Fatalf("matrix not symmetric: %v", m)
	}
	if !math.IsNaN(m[0][3]) {
		t.Fatalf("zero-variance pair should be NaN, got %v", m[0][3])
	}
}

func TestSplitUnits(t *testing.T) {
	cases := map[string][2]string{
		"Weight (kg)":  {"Weight", "kg"},
		"IgA [g/L]":    {"IgA", "g/L"},
		"Height_cm":    {"Height", "cm"},
		"cd_type":      {"cd_type", ""},
		" Completion ": {"Completion", ""},
	}
	for in, want := range cases {
		name, unit := splitUnits(in)
		if name != want[0] || unit != want[1] {
			t.Fatalf("splitUnits(%q) = (%q, %q), want %v", in, name, unit, want)
		}
	}
}

func TestProfileInfinityColumnIsNotNumeric(t *testing.T) {
	rep, err := Profile("scores", loadRows(t, []string{"name,score", "a,inf", "b,Infinity", "c,inf"}), DefaultOptions())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	c := column(t, rep, "score")
	if c.Kind == KindNumeric {
		t.Fatalf("score kind = %s, want non-numeric", c.Kind)
	}
	if c.NonNull != 3 {
		t.Fatalf("score non-null = %d, want 3", c.NonNull)
	}
	_ = rep.Markdown()
}
