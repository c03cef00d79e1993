package ml

import (
	"math"
	"testing"
)

func TestCheckSample(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*WaterSample)
		rules []string
	}{
		{name: "plausible", edit: func(*WaterSample) {}},
		{name: "negative hardness", edit: func(s *WaterSample) { s.Hardness = -3 }, rules: []string{"non_negative"}},
		{name: "ph above 14", edit: func(s *WaterSample) { s.PH = 15 }, rules: []string{"range_ph"}},
		{name: "negative ph", edit: func(s *WaterSample) { s.PH = -1 }, rules: []string{"non_negative", "range_ph"}},
		{name: "nan solids", edit: func(s *WaterSample) { s.Solids = math.NaN() }, rules: []string{"finite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSample()
			tt.edit(&s)
			issues := CheckSample(s)
			if len(issues) != len(tt.rules) {
				t.Fatalf("expected %d issues, got %v", len(tt.rules), issues)
			}
			for i, rule := range tt.rules {
				if issues[i].Rule != rule {
					t.Errorf("issue %d: got rule %s, want %s", i, issues[i].Rule, rule)
				}
			}
		})
	}
}
