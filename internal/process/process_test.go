package process

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

func read(t *testing.T, csv string) dataframe.DataFrame {
	t.Helper()
	df, err := tabular.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return df
}

const mpx = `Research Activity,Topic,Status,Agency and Office Name
a, Vaccines ,Active,NIH / NIAID
b,Vaccines,Active ,NIH/NIAID
c,Diagnostics,Complete,CDC / NCEZID
d,Diagnostics,Complete,
e,,Active,FDA
`

func TestProcessMPXResearchSummary(t *testing.T) {
	out, err := ProcessMPXResearch(read(t, mpx))
	require.NoError(t, err)
	assert.Equal(t, []string{"Topic", "Status", "Agency", "Count"}, out.Names())
	require.Equal(t, 2, out.Nrow())

	topics, _ := tabular.Strings(out, ColTopic)
	agencies, _ := tabular.Strings(out, ColAgency)
	assert.Equal(t, []string{"Diagnostics", "Vaccines"}, topics)
	assert.Equal(t, []string{"CDC", "NIH"}, agencies)
	assert.Equal(t, []float64{1, 2}, tabular.Floats(out, ColCount))
}

func TestProcessMPXResearchMissingColumns(t *testing.T) {
	_, err := ProcessMPXResearch(read(t, "Topic,Status\nx,y\n"))
	var mc *tabular.MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"Agency and Office Name"}, mc.Columns)
}

func TestAgencyName(t *testing.T) {
	cases := map[string]string{
		"NIH / NIAID": "NIH",
		" CDC ":       "CDC",
		"/x":          "",
		"A/B/C":       "A",
	}
	for in, want := range cases {
		assert.Equal(t, want, AgencyName(in), in)
	}
}

func TestProcessCeliacTrimsAndDrops(t *testing.T) {
	in := read(t, "Age,cd_type,IgA\n12, typical ,1.5\n30,atypical,\n 41 ,silent,2\n")
	out, err := ProcessCeliac(in)
	require.NoError(t, err)
	require.Equal(t, 2, out.Nrow())
	types, _ := tabular.Strings(out, "cd_type")
	ages, _ := tabular.Strings(out, "Age")
	assert.Equal(t, []string{"typical", "silent"}, types)
	assert.Equal(t, []string{"12", "41"}, ages)
}

func TestProcessInfantKeepsCategoricals(t *testing.T) {
	in := read(t, "Month,Weight (kg),Length,Breastfeeding Partern,Sex\n"+
		"Month 1,3.4,50,Exclusive, M\n"+
		"Month 2,abc,52,Mixed,F\n"+
		"Month 3,4.8,55,Exclusive,F\n")
	out, ic, err := ProcessInfant(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"Weight (kg)"}, ic.Weight)
	assert.Equal(t, []string{"Length"}, ic.Height)
	assert.Equal(t, []string{"Breastfeeding Partern"}, ic.Breastfeeding)
	assert.ElementsMatch(t, []string{"Weight (kg)", "Length"}, ic.Numeric)

	require.Equal(t, 2, out.Nrow())
	assert.Equal(t, series.Float, out.Col("Weight (kg)").Type())
	assert.Equal(t, []float64{3.4, 4.8}, tabular.Floats(out, "Weight (kg)"))
	sex, _ := tabular.Strings(out, "Sex")
	assert.Equal(t, []string{"M", "F"}, sex)
	months, _ := tabular.Strings(out, "Month")
	assert.Equal(t, []string{"Month 1", "Month 3"}, months)
}

func TestProcessEmptyInputs(t *testing.T) {
	for _, key := range fetch.Keys {
		out, err := Process(key, tabular.Empty())
		require.NoError(t, err, key)
		assert.True(t, tabular.IsEmpty(out), key)
	}
	_, err := Process("nope", tabular.Empty())
	assert.Error(t, err)
}

type fakeLoader struct {
	tables map[string]string
	calls  int32
}

func (f *fakeLoader) Load(_ context.Context, key string) (dataframe.DataFrame, error) {
	atomic.AddInt32(&f.calls, 1)
	csv, ok := f.tables[key]
	if !ok {
		return tabular.Empty(), errors.New("unreachable")
	}
	return tabular.ReadCSV(strings.NewReader(csv))
}

func TestLoadAndProcessAllIsolatesFailures(t *testing.T) {
	l := &fakeLoader{tables: map[string]string{
		fetch.KeyMPXResearch: mpx,
		fetch.KeyCeliac:      "Age,IgA\n1,2\n",
	}}
	res := LoadAndProcessAll(context.Background(), l, nil)
	require.Len(t, res, 3)
	assert.EqualValues(t, 3, atomic.LoadInt32(&l.calls))

	assert.True(t, res[fetch.KeyMPXResearch].Loaded())
	assert.Equal(t, 2, res[fetch.KeyMPXResearch].Processed.Nrow())
	assert.Equal(t, 1, res[fetch.KeyCeliac].Processed.Nrow())

	inf := res[fetch.KeyInfant]
	assert.False(t, inf.Loaded())
	assert.Error(t, inf.LoadErr)
	assert.True(t, tabular.IsEmpty(inf.Processed))
}

func TestLoadAndProcessAllSubset(t *testing.T) {
	l := &fakeLoader{tables: map[string]string{fetch.KeyCeliac: "Age\n1\n"}}
	res := LoadAndProcessAll(context.Background(), l, nil, fetch.KeyCeliac)
	require.Len(t, res, 1)
	assert.True(t, res[fetch.KeyCeliac].Loaded())
}
