// Package process cleans the raw source tables into their analysis-ready form.
package process

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/healthlens-cli/internal/fetch"
	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// Column names used by the Monkeypox research source.
const (
	ColTopic     = "Topic"
	ColStatus    = "Status"
	ColAgency    = "Agency"
	ColAgencyRaw = "Agency and Office Name"
	ColCount     = "Count"
)

// numericShare is the fraction of non-missing cells that must parse as numbers
// for a column to be treated as numeric.
const numericShare = 0.5

// ProcessMPXResearch summarises research activities by topic, status and agency.
// The agency is the part of "Agency and Office Name" before the first "/".
func ProcessMPXResearch(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if tabular.IsEmpty(df) {
		return tabular.Empty(), nil
	}
	if err := tabular.Require(df, ColTopic, ColStatus, ColAgencyRaw); err != nil {
		return tabular.Empty(), fmt.Errorf("process mpx research: %w", err)
	}
	df = tabular.TrimStrings(df, ColTopic, ColStatus)
	raw, miss := tabular.Strings(df, ColAgencyRaw)
	agency := make([]string, len(raw))
	for i, v := range raw {
		agency[i] = AgencyName(v)
	}
	df = tabular.SetStrings(df, ColAgency, agency, miss)

	groups, err := tabular.GroupBy(df, ColTopic, ColStatus, ColAgency)
	if err != nil {
		return tabular.Empty(), fmt.Errorf("process mpx research: %w", err)
	}
	topics := make([]string, len(groups))
	statuses := make([]string, len(groups))
	agencies := make([]string, len(groups))
	counts := make([]int, len(groups))
	for i, g := range groups {
		topics[i], statuses[i], agencies[i] = g.Keys[0], g.Keys[1], g.Keys[2]
		counts[i] = len(g.Rows)
	}
	if len(groups) == 0 {
		return tabular.Empty(), nil
	}
	return dataframe.New(
		series.New(topics, series.String, ColTopic),
		series.New(statuses, series.String, ColStatus),
		series.New(agencies, series.String, ColAgency),
		series.New(counts, series.Int, ColCount),
	), nil
}

// AgencyName returns the text before the first "/", trimmed.
func AgencyName(s string) string {
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// ProcessCeliac trims every text cell and drops rows with missing values.
func ProcessCeliac(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if tabular.IsEmpty(df) {
		return tabular.Empty(), nil
	}
	return tabular.DropNA(tabular.TrimStrings(df)), nil
}

// InfantColumns lists the columns recognised in the infant dataset.
type InfantColumns struct {
	Weight        []string
	Height        []string
	Breastfeeding []string
	Numeric       []string
}

// DetectInfantColumns matches column names case-insensitively.
func DetectInfantColumns(names []string) InfantColumns {
	var ic InfantColumns
	for _, n := range names {
		l := strings.ToLower(n)
		if strings.Contains(l, "weight") || strings.Contains(l, "wt") {
			ic.Weight = append(ic.Weight, n)
		}
		if strings.Contains(l, "height") || strings.Contains(l, "length") {
			ic.Height = append(ic.Height, n)
		}
		if strings.Contains(l, "breast") || strings.Contains(l, "feed") {
			ic.Breastfeeding = append(ic.Breastfeeding, n)
		}
	}
	return ic
}

// ProcessInfant coerces mostly-numeric columns to numbers, trims the remaining
// text columns and drops rows with missing values.
func ProcessInfant(df dataframe.DataFrame) (dataframe.DataFrame, InfantColumns, error) {
	if tabular.IsEmpty(df) {
		return tabular.Empty(), InfantColumns{}, nil
	}
	ic := DetectInfantColumns(df.Names())
	for _, n := range df.Names() {
		if df.Col(n).Type() != series.String {
			continue
		}
		if isMostlyNumeric(df, n) {
			df = tabular.SetFloats(df, n, tabular.Floats(df, n))
			ic.Numeric = append(ic.Numeric, n)
			continue
		}
		df = tabular.TrimStrings(df, n)
	}
	if df.Err != nil {
		return tabular.Empty(), ic, fmt.Errorf("process infant: %w", df.Err)
	}
	return tabular.DropNA(df), ic, nil
}

func isMostlyNumeric(df dataframe.DataFrame, col string) bool {
	vals, miss := tabular.Strings(df, col)
	present, numeric := 0, 0
	for i, v := range vals {
		if miss[i] || strings.TrimSpace(v) == "" {
			continue
		}
		present++
		if !math.IsNaN(tabular.ParseFloat(v)) {
			numeric++
		}
	}
	return present > 0 && float64(numeric) >= numericShare*float64(present)
}

// Process dispatches to the processing step registered for key.
func Process(key string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	switch key {
	case fetch.KeyMPXResearch:
		return ProcessMPXResearch(df)
	case fetch.KeyCeliac:
		return ProcessCeliac(df)
	case fetch.KeyInfant:
		out, _, err := ProcessInfant(df)
		return out, err
	}
	return tabular.Empty(), fmt.Errorf("no processing step for dataset %q", key)
}
