package coherence

import (
	"regexp"
	"strconv"
	"strings"
)

// metricPattern extracts one category of figures from headline text.
type metricPattern struct {
	name       string
	re         *regexp.Regexp
	multiplier func(match []string) float64
}

var one = func([]string) float64 { return 1 }

// metricPatterns covers the four figure categories sources most often
// disagree on. Values are compared per perspective group.
var metricPatterns = []metricPattern{
	{
		name:       "Crowd Size/Attendance",
		re:         regexp.MustCompile(`(?i)([\d,]+)\s*(?:people|protesters|demonstrators|attendees|marchers|crowd)`),
		multiplier: one,
	},
	{
		name:       "Casualties",
		re:         regexp.MustCompile(`(?i)([\d,]+)\s*(?:dead|killed|deaths|casualties|fatalities|injured|wounded)`),
		multiplier: one,
	},
	{
		name: "Financial Figures",
		re:   regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)\s*(million|billion|trillion)?`),
		multiplier: func(match []string) float64 {
			switch strings.ToLower(match[2]) {
			case "million":
				return 1e6
			case "billion":
				return 1e9
			case "trillion":
				return 1e12
			}
			return 1
		},
	},
	{
		name:       "Percentages",
		re:         regexp.MustCompile(`(?i)([\d]+(?:\.\d+)?)\s*(?:%|percent)`),
		multiplier: one,
	},
}

// extractMetricValues pulls every value for one metric from a set of titles.
func extractMetricValues(p metricPattern, titles []string) []float64 {
	var values []float64
	for _, title := range titles {
		for _, match := range p.re.FindAllStringSubmatch(title, -1) {
			raw := strings.ReplaceAll(match[1], ",", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v == 0 {
				continue
			}
			values = append(values, v*p.multiplier(match))
		}
	}
	return values
}

// detectNumericDiscrepancies compares the maximum figure each group
// reports per metric. A metric present in at least two groups whose
// max/min ratio clears minRatio is flagged, with significance scaled
// by how far apart the figures are.
func detectNumericDiscrepancies(groupTitles [][]string, minRatio float64) []NumericDiscrepancy {
	var out []NumericDiscrepancy

	for _, p := range metricPatterns {
		var groupMaxes []float64
		for _, titles := range groupTitles {
			values := extractMetricValues(p, titles)
			if len(values) == 0 {
				continue
			}
			max := values[0]
			for _, v := range values[1:] {
				if v > max {
					max = v
				}
			}
			groupMaxes = append(groupMaxes, max)
		}

		if len(groupMaxes) < 2 {
			continue
		}

		lo, hi := groupMaxes[0], groupMaxes[0]
		for _, v := range groupMaxes[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if lo == 0 {
			continue
		}

		ratio := hi / lo
		if ratio < minRatio {
			continue
		}

		significance := "low"
		if ratio >= 10 {
			significance = "high"
		} else if ratio >= 5 {
			significance = "medium"
		}

		out = append(out, NumericDiscrepancy{
			Metric:       p.name,
			MinValue:     lo,
			MaxValue:     hi,
			Ratio:        ratio,
			Significance: significance,
		})
	}

	return out
}
