package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testTree is potable only when ph > 6.5 and Sulfate <= 400.
func testTree(t *testing.T, names []string) *DecisionTree {
	t.Helper()
	nodes := []TreeNode{
		{FeatureIdx: 0, Threshold: 6.5, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, ClassLabel: 0, Counts: []float64{8, 2}},
		{FeatureIdx: 4, Threshold: 400, LeftChild: 3, RightChild: 4},
		{IsLeaf: true, ClassLabel: 1, Counts: []float64{1, 9}},
		{IsLeaf: true, ClassLabel: 0, Counts: []float64{6, 4}},
	}
	tree, err := NewDecisionTree(names, []any{0.0, 1.0}, nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tree
}

func TestDecisionTreePredict(t *testing.T) {
	tree := testTree(t, FeatureNames())

	acidic := DefaultSample()
	acidic.PH = 5
	salty := DefaultSample()
	salty.Sulfate = 480

	frame := NewSampleFrame(DefaultSample(), acidic, salty)
	got, err := tree.Predict(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []any{1.0, 0.0, 0.0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}

	proba, err := tree.PredictProba(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[0][1] != 0.9 || proba[1][1] != 0.2 || proba[2][1] != 0.4 {
		t.Fatalf("unexpected probabilities: %v", proba)
	}
}

func TestDecisionTreeColumnOrder(t *testing.T) {
	sample := DefaultSample()

	t.Run("positional model notices swapped columns", func(t *testing.T) {
		tree := testTree(t, nil)
		frame := &Frame{Rows: [][]float64{FeatureVector(sample)}}
		swapped := &Frame{Rows: [][]float64{FeatureVector(sample)}}
		swapped.Rows[0][2], swapped.Rows[0][4] = swapped.Rows[0][4], swapped.Rows[0][2]

		before, err := tree.Predict(context.Background(), frame)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		after, err := tree.Predict(context.Background(), swapped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if before[0] == after[0] {
			t.Fatalf("swapping Solids and Sulfate should change the prediction, both %v", before[0])
		}
	})

	t.Run("named model reads columns by name", func(t *testing.T) {
		tree := testTree(t, FeatureNames())
		frame := NewSampleFrame(sample)
		reordered, err := frame.Select([]string{
			"Turbidity", "Sulfate", "ph", "Hardness", "Solids",
			"Chloramines", "Conductivity", "Organic_carbon", "Trihalomethanes",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a, _ := tree.Predict(context.Background(), frame)
		b, err := tree.Predict(context.Background(), reordered)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a[0] != b[0] {
			t.Fatalf("reordered named columns changed the prediction: %v vs %v", a[0], b[0])
		}
	})

	t.Run("named model rejects missing columns", func(t *testing.T) {
		tree := testTree(t, FeatureNames())
		frame := &Frame{Columns: []string{"ph", "Hardness"}, Rows: [][]float64{{7, 150}}}
		if _, err := tree.Predict(context.Background(), frame); err == nil {
			t.Fatal("expected error for missing columns")
		}
	})
}

func TestPositionalTreeChecksWidth(t *testing.T) {
	tree := testTree(t, nil)
	full := NewSampleFrame(DefaultSample())
	partial, err := full.Select(FeatureNames()[:8])
	if err != nil {
		t.Fatal(err)
	}

	t.Run("named frame missing a column", func(t *testing.T) {
		_, err := tree.Predict(context.Background(), partial)
		if err == nil || !strings.Contains(err.Error(), "missing columns: Turbidity") {
			t.Fatalf("expected missing Turbidity, got %v", err)
		}
	})

	t.Run("unnamed frame too narrow", func(t *testing.T) {
		_, err := tree.PredictProba(context.Background(), &Frame{Rows: partial.Rows})
		if err == nil || !strings.Contains(err.Error(), "has 8 features, model expects 9") {
			t.Fatalf("expected width error, got %v", err)
		}
	})

	t.Run("named frame in another order", func(t *testing.T) {
		reordered, err := full.Select([]string{
			"Turbidity", "Sulfate", "ph", "Hardness", "Solids",
			"Chloramines", "Conductivity", "Organic_carbon", "Trihalomethanes",
		})
		if err != nil {
			t.Fatal(err)
		}
		a, _ := tree.Predict(context.Background(), full)
		b, err := tree.Predict(context.Background(), reordered)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a[0] != b[0] {
			t.Fatalf("positional tree should read named frames in training order: %v vs %v", a[0], b[0])
		}
	})
}

func TestDecisionTreeArtifactRoundTrip(t *testing.T) {
	payload, err := testTree(t, FeatureNames()).MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := DecodeDecisionTree(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := loaded.Predict(context.Background(), NewSampleFrame(DefaultSample()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 1.0 {
		t.Fatalf("expected class 1, got %v", got[0])
	}
}

func TestDecodeDecisionTreeBareNodes(t *testing.T) {
	payload := []byte(`[
		{"feature_idx":0,"threshold":6.5,"left_child":1,"right_child":2},
		{"is_leaf":true,"class_label":0},
		{"is_leaf":true,"class_label":1}
	]`)
	tree, err := DecodeDecisionTree(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := FeatureVector(DefaultSample())
	got, err := tree.Predict(context.Background(), &Frame{Rows: [][]float64{row}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("expected integer class 1, got %#v", got[0])
	}
	proba, _ := tree.PredictProba(context.Background(), &Frame{Rows: [][]float64{row}})
	if proba[0][1] != 1 {
		t.Fatalf("expected one-hot probability, got %v", proba[0])
	}
}

func TestNewDecisionTreeRejectsBadNodes(t *testing.T) {
	cases := map[string][]TreeNode{
		"empty":        nil,
		"child before": {{FeatureIdx: 0, LeftChild: 0, RightChild: 1}, {IsLeaf: true}},
		"child beyond": {{FeatureIdx: 0, LeftChild: 1, RightChild: 5}, {IsLeaf: true}},
		"feature":      {{FeatureIdx: 12, LeftChild: 1, RightChild: 2}, {IsLeaf: true}, {IsLeaf: true}},
	}
	for name, nodes := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewDecisionTree(FeatureNames(), nil, nodes); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadModel(TypeDecisionTree, filepath.Join(dir, "nope.json"))
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := LoadModel(TypeDecisionTree, path)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := DecodeModel("random_forest", []byte("{}"))
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("source recorded", func(t *testing.T) {
		path := filepath.Join(dir, "tree.json")
		payload, err := testTree(t, FeatureNames()).MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, payload, 0o600); err != nil {
			t.Fatal(err)
		}
		m, err := LoadModel(TypeDecisionTree, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info := DescribeModel(m)
		if info.Source != path || info.Type != TypeDecisionTree || !info.Probability {
			t.Fatalf("unexpected info: %+v", info)
		}
		if _, ok := m.(ProbabilityEstimator); !ok {
			t.Fatal("loaded tree lost its probability estimator")
		}
	})
}
