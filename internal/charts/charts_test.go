package charts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

func read(t *testing.T, csv string) dataframe.DataFrame {
	t.Helper()
	df, err := tabular.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return df
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, "\x89PNG", string(b[:4]), path)
}

const infantCSV = `Month,Weight,Breastfeeding Partern
Month 1,3.0,Exclusive
Month 1,3.4,Exclusive
Month 2,4.1,Exclusive
Month 1,3.1,Mixed
Month 2,4.5,Mixed
Unknown,9.9,Mixed
Month 3,,Mixed
`

const celiacCSV = `Age,IgA,IgG,IgM,cd_type
10,1.2,0.8,0.5,typical
20,1.8,1.1,0.6,typical
30,2.4,1.0,0.7,atypical
40,3.0,1.6,,atypical
50,3.6,1.9,0.9,silent
`

const mpxCSV = `Topic,Region,Completion,Brief Description
Vaccines,Africa,2024,abcd
Vaccines,Africa,2025,abcdefgh
Diagnostics,Americas,2024,ab
Diagnostics,Europe,Ongoing work pending review,abcdef
`

func TestWeightTrajectoriesMeansByMonth(t *testing.T) {
	traj, err := WeightTrajectories(read(t, infantCSV))
	require.NoError(t, err)
	require.Len(t, traj, 2)
	ex := traj["Exclusive"]
	require.Len(t, ex, 2)
	assert.Equal(t, 1, ex[0].Month)
	assert.InDelta(t, 3.2, ex[0].MeanWeight, 1e-9)
	assert.Equal(t, 2, ex[1].Month)
	assert.Len(t, traj["Mixed"], 2)
}

func TestMonthNum(t *testing.T) {
	n, ok := MonthNum("Month 12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	_, ok = MonthNum("Birth")
	assert.False(t, ok)
}

func TestCompletionCountsFiltersLongLabels(t *testing.T) {
	counts, err := CompletionCounts(read(t, mpxCSV))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, tabular.ValueCount{Value: "2024", Count: 2}, counts[0])
	assert.Equal(t, tabular.ValueCount{Value: "2025", Count: 1}, counts[1])
}

func TestRegionSharesLabels(t *testing.T) {
	vals, err := RegionShares(read(t, mpxCSV))
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, "Africa 50.0%", vals[0].Label)
	assert.Equal(t, 2.0, vals[0].Value)
}

func TestRenderAllDatasets(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, 72, nil)

	cases := []struct {
		key   string
		csv   string
		files []string
	}{
		{"infant_breastfeeding", infantCSV, []string{FileInfantTrajectory}},
		{"celiac", celiacCSV, []string{FileCeliacAgeHist, FileCeliacBoxplot, FileCeliacHeatmap}},
		{"mpx_research", mpxCSV, []string{FileMPXRegionPie, FileMPXCompBar, FileMPXDescBoxplot}},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			files, err := r.Render(tc.key, read(t, tc.csv))
			require.NoError(t, err)
			require.Len(t, files, len(tc.files))
			for _, name := range tc.files {
				assertPNG(t, filepath.Join(dir, name))
			}
		})
	}
}

func TestRenderReportsMissingColumns(t *testing.T) {
	r := NewRenderer(t.TempDir(), 72, nil)
	files, err := r.Celiac(read(t, "Age,IgA\n1,2\n3,4\n"))
	require.Error(t, err)
	var mc *tabular.MissingColumnsError
	assert.ErrorAs(t, err, &mc)
	// the histogram only needs Age
	assert.Len(t, files, 1)

	_, err = r.Render("unknown", tabular.Empty())
	assert.Error(t, err)
}
