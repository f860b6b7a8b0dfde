package analysis

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

func TestExportAndReadWorkbook(t *testing.T) {
	summary := dataframe.New(
		series.New([]string{"Vaccines", "Diagnostics"}, series.String, "Topic"),
		series.New([]int{2, 1}, series.Int, "Count"),
	)
	weights := dataframe.New(
		series.New([]string{"Month 1", "Month 2"}, series.String, "Month"),
		series.New([]float64{3.5, math.NaN()}, series.Float, "Weight"),
	)
	path := filepath.Join(t.TempDir(), "out", WorkbookFile)
	err := ExportWorkbook(path, []Sheet{
		{Name: "mpx_research", Table: summary},
		{Name: "celiac", Table: tabular.Empty()},
		{Name: "infant/breastfeeding", Table: weights},
	})
	if err != nil {
		t.Fatalf("ExportWorkbook: %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Fatalf("workbook not written: %v", err)
	}

	df, err := ReadWorkbook(path, "MPX_RESEARCH", 0)
	if err != nil {
		t.Fatalf("ReadWorkbook by name: %v", err)
	}
	topics, _ := tabular.Strings(df, "Topic")
	if df.Nrow() != 2 || topics[0] != "Vaccines" {
		t.Fatalf("unexpected first sheet: %v", df)
	}

	df, err = ReadWorkbook(path, "", 2)
	if err != nil {
		t.Fatalf("ReadWorkbook by index: %v", err)
	}
	w := tabular.Floats(df, "Weight")
	if len(w) != 2 || w[0] != 3.5 || !math.IsNaN(w[1]) {
		t.Fatalf("unexpected weights: %v", w)
	}

	_, err = ReadWorkbook(path, "celiac", 0)
	if err == nil || !strings.Contains(err.Error(), "Available sheets: mpx_research, infant_breastfeeding") {
		t.Fatalf("expected missing sheet error, got %v", err)
	}
}

func TestLoadTableDispatch(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "rows.tsv")
	if err := os.WriteFile(tsv, []byte("a\tb\n1\tx\n"), 0o644); err != nil {
		t.Fatalf("write tsv: %v", err)
	}
	df, err := LoadTable(tsv, "", 0)
	if err != nil {
		t.Fatalf("LoadTable tsv: %v", err)
	}
	if df.Ncol() != 2 || df.Nrow() != 1 {
		t.Fatalf("unexpected tsv shape %dx%d", df.Nrow(), df.Ncol())
	}
	if _, err := LoadTable(filepath.Join(dir, "notes.txt"), "", 0); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestSheetName(t *testing.T) {
	if got := sheetName("a/b:c"); got != "a_b_c" {
		t.Fatalf("sheetName sanitize: %q", got)
	}
	if got := sheetName(strings.Repeat("x", 40)); len(got) != maxSheetName {
		t.Fatalf("sheetName length: %d", len(got))
	}
	if got := sheetName("  "); got != "data" {
		t.Fatalf("sheetName empty: %q", got)
	}
}
