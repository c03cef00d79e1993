package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionTree is a binary tree classifier stored as a flat node list,
// root first.
type DecisionTree struct {
	featureNames []string
	classes      []any
	mapping      *LabelMapping
	nodes        []TreeNode
}

// TreeNode is one split or leaf. Counts holds the training samples per
// class that reached the node; leaves turn them into probabilities.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	IsLeaf     bool      `json:"is_leaf"`
	Counts     []float64 `json:"counts,omitempty"`
}

type treeArtifact struct {
	FeatureNames []string      `json:"feature_names,omitempty"`
	Classes      []any         `json:"classes,omitempty"`
	LabelMapping *LabelMapping `json:"label_mapping,omitempty"`
	Nodes        []TreeNode    `json:"nodes"`
}

// NewDecisionTree checks the node list and returns a ready tree.
// featureNames may be nil for a positional model; classes may be nil, in
// which case Predict returns the integer class index.
func NewDecisionTree(featureNames []string, classes []any, nodes []TreeNode) (*DecisionTree, error) {
	dt := &DecisionTree{featureNames: featureNames, classes: classes, nodes: nodes}
	if err := dt.check(); err != nil {
		return nil, err
	}
	return dt, nil
}

// DecodeDecisionTree parses a JSON artifact. A bare node array is accepted
// for artifacts written before feature names were recorded.
func DecodeDecisionTree(payload []byte) (*DecisionTree, error) {
	var artifact treeArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		var nodes []TreeNode
		if err2 := json.Unmarshal(payload, &nodes); err2 != nil {
			return nil, err
		}
		artifact.Nodes = nodes
	}
	dt, err := NewDecisionTree(artifact.FeatureNames, artifact.Classes, artifact.Nodes)
	if err != nil {
		return nil, err
	}
	dt.mapping = artifact.LabelMapping
	return dt, nil
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	return json.Marshal(treeArtifact{
		FeatureNames: dt.featureNames,
		Classes:      dt.classes,
		LabelMapping: dt.mapping,
		Nodes:        dt.nodes,
	})
}

func (dt *DecisionTree) Info() ModelInfo {
	return ModelInfo{
		Type:         "decision_tree",
		FeatureNames: dt.featureNames,
		Classes:      dt.classes,
		Probability:  true,
		LabelMapping: dt.mapping,
	}
}

func (dt *DecisionTree) Predict(ctx context.Context, frame *Frame) ([]any, error) {
	rows, err := dt.rows(ctx, frame)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		leaf, err := dt.leaf(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = dt.label(dt.nodes[leaf].ClassLabel)
	}
	return out, nil
}

func (dt *DecisionTree) PredictProba(ctx context.Context, frame *Frame) ([][]float64, error) {
	rows, err := dt.rows(ctx, frame)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		leaf, err := dt.leaf(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = dt.proba(dt.nodes[leaf])
	}
	return out, nil
}

func (dt *DecisionTree) rows(ctx context.Context, frame *Frame) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not loaded")
	}
	if frame == nil {
		return nil, errors.New("frame is nil")
	}
	names := dt.featureNames
	if len(names) == 0 {
		// positional artifacts were trained on the standard column order
		names = FeatureNames()
	}
	return frame.Arrange(names)
}

func (dt *DecisionTree) leaf(features []float64) (int, error) {
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return idx, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) label(classIdx int) any {
	if classIdx >= 0 && classIdx < len(dt.classes) {
		return dt.classes[classIdx]
	}
	return classIdx
}

func (dt *DecisionTree) proba(node TreeNode) []float64 {
	width := len(dt.classes)
	if width == 0 {
		width = 2
	}
	if len(node.Counts) > width {
		width = len(node.Counts)
	}
	if node.ClassLabel >= width {
		width = node.ClassLabel + 1
	}
	out := make([]float64, width)

	total := 0.0
	for _, c := range node.Counts {
		total += c
	}
	if total <= 0 {
		out[node.ClassLabel] = 1
		return out
	}
	for i, c := range node.Counts {
		out[i] = c / total
	}
	return out
}

func (dt *DecisionTree) check() error {
	if len(dt.nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if node.ClassLabel < 0 {
				return fmt.Errorf("node %d: negative class label", i)
			}
			continue
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.nodes) ||
			node.RightChild <= i || node.RightChild >= len(dt.nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		if len(dt.featureNames) > 0 && node.FeatureIdx >= len(dt.featureNames) {
			return fmt.Errorf("node %d: feature index %d beyond %d named features", i, node.FeatureIdx, len(dt.featureNames))
		}
	}
	return nil
}
