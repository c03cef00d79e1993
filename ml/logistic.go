package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// LogisticModel is a binary logistic regression. The sigmoid of the
// linear score is the probability of Classes[1].
type LogisticModel struct {
	FeatureNames []string      `json:"feature_names,omitempty"`
	Classes      []any         `json:"classes,omitempty"`
	Coefficients []float64     `json:"coefficients"`
	Intercept    float64       `json:"intercept"`
	Threshold    float64       `json:"threshold,omitempty"`
	LabelMapping *LabelMapping `json:"label_mapping,omitempty"`
}

// DecodeLogistic parses a JSON logistic artifact.
func DecodeLogistic(payload []byte) (*LogisticModel, error) {
	var m LogisticModel
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	if len(m.Coefficients) == 0 {
		return nil, errors.New("logistic model has no coefficients")
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != len(m.Coefficients) {
		return nil, fmt.Errorf("%d feature names for %d coefficients", len(m.FeatureNames), len(m.Coefficients))
	}
	if len(m.Classes) != 0 && len(m.Classes) != 2 {
		return nil, fmt.Errorf("logistic model needs 2 classes, got %d", len(m.Classes))
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	return &m, nil
}

func (m *LogisticModel) Info() ModelInfo {
	return ModelInfo{
		Type:         "logistic",
		FeatureNames: m.FeatureNames,
		Classes:      m.Classes,
		Probability:  true,
		LabelMapping: m.LabelMapping,
	}
}

func (m *LogisticModel) Predict(ctx context.Context, frame *Frame) ([]any, error) {
	probs, err := m.positive(ctx, frame)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(probs))
	for i, p := range probs {
		class := 0
		if p >= m.Threshold {
			class = 1
		}
		if len(m.Classes) == 2 {
			out[i] = m.Classes[class]
		} else {
			out[i] = class
		}
	}
	return out, nil
}

func (m *LogisticModel) PredictProba(ctx context.Context, frame *Frame) ([][]float64, error) {
	probs, err := m.positive(ctx, frame)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(probs))
	for i, p := range probs {
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

func (m *LogisticModel) positive(ctx context.Context, frame *Frame) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, errors.New("frame is nil")
	}
	names := m.FeatureNames
	if len(names) == 0 && len(m.Coefficients) == len(FeatureNames()) {
		names = FeatureNames()
	}
	rows := frame.Rows
	if len(names) > 0 {
		arranged, err := frame.Arrange(names)
		if err != nil {
			return nil, err
		}
		rows = arranged
	} else if err := frame.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i+1, len(row), len(m.Coefficients))
		}
		z := m.Intercept
		for j, w := range m.Coefficients {
			z += w * row[j]
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}
