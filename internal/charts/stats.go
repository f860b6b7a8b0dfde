package charts

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

var monthNumRe = regexp.MustCompile(`(\d+)`)

// MonthNum extracts the first integer in a month label such as "Month 3".
func MonthNum(s string) (int, bool) {
	m := monthNumRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// groupedValues collects the non-NaN values of vals per key, skipping rows
// with a missing key. Keys are returned sorted.
func groupedValues(keys []string, miss []bool, vals []float64) ([]string, map[string][]float64) {
	groups := map[string][]float64{}
	for i, k := range keys {
		if miss[i] || math.IsNaN(vals[i]) {
			continue
		}
		groups[k] = append(groups[k], vals[i])
	}
	names := make([]string, 0, len(groups))
	for k := range groups {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, groups
}
