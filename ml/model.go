package ml

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned when a model artifact is missing,
// unreadable, or cannot be decoded.
var ErrModelUnavailable = errors.New("model unavailable")

// ModelProvider is the one capability every classifier offers. Predict
// returns one raw output per frame row; an output may be a number, a
// string, a bool, or a nested sequence of those.
type ModelProvider interface {
	Predict(ctx context.Context, frame *Frame) ([]any, error)
}

// ProbabilityEstimator is implemented by providers that can report class
// probabilities. Each inner slice is indexed like ModelInfo.Classes.
type ProbabilityEstimator interface {
	PredictProba(ctx context.Context, frame *Frame) ([][]float64, error)
}

// Describer is implemented by providers that know their own metadata.
type Describer interface {
	Info() ModelInfo
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Type         string        `json:"type"`
	Source       string        `json:"source,omitempty"`
	FeatureNames []string      `json:"feature_names,omitempty"`
	Classes      []any         `json:"classes,omitempty"`
	Probability  bool          `json:"probability"`
	LabelMapping *LabelMapping `json:"label_mapping,omitempty"`
}

// LabelMapping is the contract, published with a model, for reading its
// outputs: which raw labels mean "potable", and which probability column
// belongs to that class.
type LabelMapping struct {
	PositiveTokens     []string `json:"positive_tokens" yaml:"positive_tokens"`
	PositiveClassIndex int      `json:"positive_class_index" yaml:"positive_class_index"`
}

// DescribeModel returns the provider's metadata, or a minimal record when
// it does not describe itself.
func DescribeModel(m ModelProvider) ModelInfo {
	if d, ok := m.(Describer); ok {
		return d.Info()
	}
	_, proba := m.(ProbabilityEstimator)
	return ModelInfo{Type: "unknown", Probability: proba}
}

// WithSource stamps where a model was loaded from onto its metadata.
func WithSource(m ModelProvider, source string) ModelProvider {
	if m == nil {
		return nil
	}
	if p, ok := m.(ProbabilityEstimator); ok {
		return &sourcedEstimator{sourced{m, source}, p}
	}
	return &sourced{m, source}
}

type sourced struct {
	ModelProvider
	source string
}

func (s *sourced) Info() ModelInfo {
	info := DescribeModel(s.ModelProvider)
	info.Source = s.source
	return info
}

type sourcedEstimator struct {
	sourced
	p ProbabilityEstimator
}

func (s *sourcedEstimator) PredictProba(ctx context.Context, frame *Frame) ([][]float64, error) {
	return s.p.PredictProba(ctx, frame)
}
