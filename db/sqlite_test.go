package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aquamind/ml"
)

const treeArtifact = `{
	"feature_names": ["ph","Hardness","Solids","Chloramines","Sulfate","Conductivity","Organic_carbon","Trihalomethanes","Turbidity"],
	"classes": [0, 1],
	"nodes": [
		{"feature_idx": 0, "threshold": 6.5, "left_child": 1, "right_child": 2},
		{"is_leaf": true, "class_label": 0, "counts": [9, 1]},
		{"is_leaf": true, "class_label": 1, "counts": [3, 7]}
	]
}`

func openStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := OpenArtifactStore(filepath.Join(t.TempDir(), "data", "aquamind.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArtifactStoreSaveLatest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "water", ml.TypeDecisionTree, []byte(treeArtifact))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := store.Save(ctx, "water", ml.TypeDecisionTree, []byte(treeArtifact))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != again.ID {
		t.Fatalf("saving the same payload twice created a new row: %d vs %d", first.ID, again.ID)
	}

	second, err := store.Save(ctx, "water", ml.TypeLogistic, []byte(`{"coefficients":[1],"intercept":0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latest, err := store.Latest(ctx, "water")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.ID != second.ID || latest.ModelType != ml.TypeLogistic {
		t.Fatalf("expected the newest artifact, got %+v", latest)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestArtifactStoreNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Latest(context.Background(), "missing")
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
	_, err = store.LoadModel(context.Background(), "missing")
	if !errors.Is(err, ml.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestArtifactStoreLoadModel(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(treeArtifact), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ImportFile(ctx, "water", ml.TypeDecisionTree, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := store.LoadModel(ctx, "water")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := m.Predict(ctx, ml.NewSampleFrame(ml.DefaultSample()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 1.0 {
		t.Fatalf("expected class 1, got %v", got[0])
	}
	if _, ok := m.(ml.ProbabilityEstimator); !ok {
		t.Fatal("expected the stored tree to estimate probabilities")
	}
	if src := ml.DescribeModel(m).Source; !strings.HasPrefix(src, "sqlite:"+store.Path()+"#water@") {
		t.Fatalf("unexpected source %q", src)
	}
}

func TestArtifactStoreImportRejectsBadArtifacts(t *testing.T) {
	store := openStore(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(`{"nodes": []}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := store.ImportFile(context.Background(), "water", ml.TypeDecisionTree, path)
	if !errors.Is(err, ml.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if _, err := store.Save(context.Background(), "", ml.TypeDecisionTree, []byte("{}")); err == nil {
		t.Fatal("expected error for empty name")
	}
}
