package cmd

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/healthlens-cli/internal/manifest"
)

const mpxRows = `Topic,Status,Agency and Office Name,Region,Completion,Brief Description
Vaccines,Active,NIH / NIAID,Africa,2024,trial of a new vaccine
Vaccines,Active,NIH/NIAID,Europe,2025,dose study
Diagnostics,Done,CDC / NCEZID,Americas,2024,rapid test
`

const celiacRows = `Age,IgA,IgG,IgM,cd_type
10,1.2,0.8,0.5,typical
20,1.8,1.1,0.6,typical
30,2.4,1.0,0.7,atypical
50,3.6,1.9,0.9,silent
`

// execCLI is a helper to execute the root command with args and return stdout.
func execCLI(t *testing.T, args ...string) string {
	t.Helper()
	// Reset sticky flags that may persist Changed state across invocations
	for _, name := range []string{"data-dir", "results-dir", "dpi"} {
		if fl := rootCmd.PersistentFlags().Lookup(name); fl != nil {
			fl.Changed = false
		}
	}
	if fl := datasetsCmd.Flags().Lookup("last-run"); fl != nil {
		_ = fl.Value.Set("false")
		fl.Changed = false
	}
	cfg, cfgFile = nil, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

// sourceServer stands in for healthdata.gov and the Kaggle API.
func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	w, err := zw.Create("celiac_disease.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(celiacRows)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rows.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mpxRows))
	})
	mux.HandleFunc("/api/v1/datasets/download/jackwin07/celiac-disease-coeliac-disease", func(w http.ResponseWriter, r *http.Request) {
		if u, k, ok := r.BasicAuth(); !ok || u != "tester" || k != "secret-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zbuf.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func isolateEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("KAGGLE_CONFIG_DIR", filepath.Join(home, ".kaggle"))
	t.Setenv("HEALTHLENS_MPX_RESEARCH_URL", srv.URL+"/rows.csv")
	t.Setenv("HEALTHLENS_KAGGLE_API_URL", srv.URL+"/api/v1")
	t.Setenv("HEALTHLENS_RETRY_MAX_ATTEMPTS", "1")
	t.Setenv("HEALTHLENS_REQUESTS_PER_SECOND", "0")
	t.Setenv("KAGGLE_USERNAME", "tester")
	t.Setenv("KAGGLE_KEY", "secret-key")
	return home
}

func TestCLI_RunEndToEnd(t *testing.T) {
	srv := sourceServer(t)
	home := isolateEnv(t, srv)
	dataDir := filepath.Join(home, "data")
	resultsDir := filepath.Join(home, "results")

	out := execCLI(t, "run", "--data-dir", dataDir, "--results-dir", resultsDir, "--dpi", "60")
	for _, want := range []string{
		"MPX Research Data Shape: (3, 6)",
		"Celiac Disease Data Shape: (4, 5)",
		"⚠ Infant Breastfeeding Data skipped",
		"Check '" + resultsDir + "' directory",
		"2 ok, 1 skipped, 0 failed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("run output missing %q:\n%s", want, out)
		}
	}
	for _, p := range []string{
		filepath.Join(dataDir, "processed", "mpx_research.csv"),
		filepath.Join(dataDir, "processed", "celiac.csv"),
		filepath.Join(dataDir, "kaggle", "jackwin07_celiac-disease-coeliac-disease", "celiac_disease.csv"),
		filepath.Join(resultsDir, "celiac_age_histogram.png"),
		filepath.Join(resultsDir, "monkeypox_proj_comp_barchart.png"),
		filepath.Join(resultsDir, "mpx_research.summary.md"),
		filepath.Join(resultsDir, "processed_tables.xlsx"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected output %s: %v", p, err)
		}
	}
	m, err := manifest.Load(resultsDir)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if m.Datasets["celiac"].Status != manifest.StatusOK || m.Datasets["infant_breastfeeding"].Status != manifest.StatusSkipped {
		t.Fatalf("unexpected manifest statuses: %+v", m.Datasets)
	}

	last := execCLI(t, "datasets", "--last-run", "--results-dir", resultsDir)
	if !strings.Contains(last, "- celiac: ok (raw 4x5, processed 4x5") {
		t.Fatalf("datasets --last-run output:\n%s", last)
	}
}

func TestCLI_ProfileAndPlotOffline(t *testing.T) {
	srv := sourceServer(t)
	home := isolateEnv(t, srv)
	csvPath := filepath.Join(home, "celiac.csv")
	if err := os.WriteFile(csvPath, []byte(celiacRows), 0o644); err != nil {
		t.Fatal(err)
	}
	summary := filepath.Join(home, "celiac.summary.md")
	out := execCLI(t, "profile", csvPath, "--group-by", "cd_type", "-o", summary)
	if !strings.Contains(out, "✓ Wrote profile") {
		t.Fatalf("profile output: %s", out)
	}
	b, err := os.ReadFile(summary)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(b), "Dataset: celiac") || !strings.Contains(string(b), "cd_type=typical (n=2)") {
		t.Fatalf("summary content:\n%s", b)
	}

	resultsDir := filepath.Join(home, "plots")
	out = execCLI(t, "plot", "celiac", csvPath, "--results-dir", resultsDir, "--dpi", "60")
	if strings.Count(out, "✓ Wrote") != 3 {
		t.Fatalf("plot output: %s", out)
	}
}

func TestCLI_ConfigSetAndShowMasksKey(t *testing.T) {
	srv := sourceServer(t)
	home := isolateEnv(t, srv)
	cfgPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	execCLI(t, "--config", cfgPath, "config", "set", "chart_dpi", "200")
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(b), "chart_dpi: 200") {
		t.Fatalf("config not saved:\n%s", b)
	}
	out := execCLI(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "kaggle_key: sec****key") || strings.Contains(out, "secret-key") {
		t.Fatalf("key not masked:\n%s", out)
	}
	if !strings.Contains(out, "chart_dpi: 200") {
		t.Fatalf("show output:\n%s", out)
	}

	rootCmd.SetArgs([]string{"--config", cfgPath, "config", "set", "chart_dpi", "lots"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected invalid int error")
	}
}
