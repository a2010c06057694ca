package coherence

import "testing"

func TestExtractMetricValues(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		metric string
		want   []float64
	}{
		{
			name:   "crowd with comma",
			text:   "Organizers say 50,000 people marched downtown",
			metric: "Crowd Size/Attendance",
			want:   []float64{50000},
		},
		{
			name:   "crowd protesters",
			text:   "Police counted 5,000 protesters at the rally",
			metric: "Crowd Size/Attendance",
			want:   []float64{5000},
		},
		{
			name:   "casualties",
			text:   "At least 12 dead and dozens injured after the blast",
			metric: "Casualties",
			want:   []float64{12},
		},
		{
			name:   "financial millions",
			text:   "The package costs $1.5 million over two years",
			metric: "Financial Figures",
			want:   []float64{1500000},
		},
		{
			name:   "financial billions",
			text:   "A $2 billion shortfall looms",
			metric: "Financial Figures",
			want:   []float64{2000000000},
		},
		{
			name:   "percentage",
			text:   "Turnout rose 45% from last year",
			metric: "Percentages",
			want:   []float64{45},
		},
		{
			name:   "no match",
			text:   "City council met on Tuesday",
			metric: "Crowd Size/Attendance",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pat metricPattern
			for _, p := range metricPatterns {
				if p.name == tt.metric {
					pat = p
				}
			}
			if pat.re == nil {
				t.Fatalf("unknown metric %q", tt.metric)
			}

			got := extractMetricValues(pat, []string{tt.text})
			if len(got) != len(tt.want) {
				t.Fatalf("extractMetricValues() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectNumericDiscrepancies(t *testing.T) {
	groups := [][]string{
		{"Organizers say 50,000 people joined", "March draws 50,000 people"},
		{"Police estimate 5,000 people attended"},
	}

	discrepancies := detectNumericDiscrepancies(groups, 2.0)
	if len(discrepancies) != 1 {
		t.Fatalf("discrepancies = %+v, want exactly one", discrepancies)
	}

	d := discrepancies[0]
	if d.Metric != "Crowd Size/Attendance" {
		t.Errorf("Metric = %q, want Crowd Size/Attendance", d.Metric)
	}
	if d.MinValue != 5000 || d.MaxValue != 50000 {
		t.Errorf("range = [%v, %v], want [5000, 50000]", d.MinValue, d.MaxValue)
	}
	if d.Ratio != 10 {
		t.Errorf("Ratio = %v, want 10", d.Ratio)
	}
	if d.Significance != "high" {
		t.Errorf("Significance = %q, want high", d.Significance)
	}
}

func TestDetectNumericDiscrepanciesBelowRatio(t *testing.T) {
	groups := [][]string{
		{"About 6,000 people attended"},
		{"Roughly 5,000 people attended"},
	}
	if got := detectNumericDiscrepancies(groups, 2.0); len(got) != 0 {
		t.Errorf("ratio 1.2 reported as discrepancy: %+v", got)
	}
}

func TestDetectNumericDiscrepanciesSignificance(t *testing.T) {
	tests := []struct {
		name string
		hi   string
		want string
	}{
		{"low", "Turnout of 15,000 people", "low"},       // ratio 3
		{"medium", "Turnout of 30,000 people", "medium"}, // ratio 6
		{"high", "Turnout of 60,000 people", "high"},     // ratio 12
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := [][]string{{tt.hi}, {"Turnout of 5,000 people"}}
			got := detectNumericDiscrepancies(groups, 2.0)
			if len(got) != 1 {
				t.Fatalf("discrepancies = %+v, want one", got)
			}
			if got[0].Significance != tt.want {
				t.Errorf("Significance = %q, want %q", got[0].Significance, tt.want)
			}
		})
	}
}

func TestSingleGroupNoDiscrepancy(t *testing.T) {
	groups := [][]string{{"50,000 people marched", "5,000 people marched"}}
	if got := detectNumericDiscrepancies(groups, 2.0); len(got) != 0 {
		t.Errorf("intra-group spread reported as discrepancy: %+v", got)
	}
}
