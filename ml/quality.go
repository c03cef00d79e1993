package ml

import (
	"fmt"
	"math"
)

// QualityRule inspects a sample and reports what looks implausible.
// Rules never modify or reject a sample.
type QualityRule interface {
	Name() string
	Check(WaterSample) []Issue
}

// Issue is one advisory finding about a reading.
type Issue struct {
	Rule    string  `json:"rule"`
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

func (i Issue) String() string {
	return i.Message
}

// DefaultRules returns the rules applied by CheckSample.
func DefaultRules() []QualityRule {
	return []QualityRule{
		finiteRule{},
		nonNegativeRule{},
		RangeRule{Feature: "ph", Min: 0, Max: 14},
	}
}

// CheckSample runs the default rules. An empty result means nothing looked
// wrong; a non-empty one is still safe to classify.
func CheckSample(sample WaterSample) []Issue {
	var issues []Issue
	for _, rule := range DefaultRules() {
		issues = append(issues, rule.Check(sample)...)
	}
	return issues
}

type finiteRule struct{}

func (finiteRule) Name() string { return "finite" }

func (r finiteRule) Check(s WaterSample) []Issue {
	if s.Finite() {
		return nil
	}
	var issues []Issue
	vector := FeatureVector(s)
	for i, name := range FeatureNames() {
		v := vector[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			issues = append(issues, Issue{
				Rule:    r.Name(),
				Feature: name,
				Value:   v,
				Message: fmt.Sprintf("%s is not a finite number", name),
			})
		}
	}
	return issues
}

type nonNegativeRule struct{}

func (nonNegativeRule) Name() string { return "non_negative" }

func (r nonNegativeRule) Check(s WaterSample) []Issue {
	var issues []Issue
	vector := FeatureVector(s)
	for i, name := range FeatureNames() {
		if vector[i] < 0 {
			issues = append(issues, Issue{
				Rule:    r.Name(),
				Feature: name,
				Value:   vector[i],
				Message: fmt.Sprintf("%s is negative (%g)", name, vector[i]),
			})
		}
	}
	return issues
}

// RangeRule flags a reading outside [Min, Max].
type RangeRule struct {
	Feature  string
	Min, Max float64
}

func (r RangeRule) Name() string { return "range_" + r.Feature }

func (r RangeRule) Check(s WaterSample) []Issue {
	v, ok := s.Values()[r.Feature]
	if !ok || math.IsNaN(v) {
		return nil
	}
	if v < r.Min || v > r.Max {
		return []Issue{{
			Rule:    r.Name(),
			Feature: r.Feature,
			Value:   v,
			Message: fmt.Sprintf("%s %g is outside [%g, %g]", r.Feature, v, r.Min, r.Max),
		}}
	}
	return nil
}
