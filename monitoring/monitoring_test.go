package monitoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aquamind/ml"
	"aquamind/potability"
)

type constModel struct {
	label any
	err   error
}

func (m constModel) Predict(ctx context.Context, frame *ml.Frame) ([]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]any, frame.Len())
	for i := range out {
		out[i] = m.label
	}
	return out, nil
}

func newClassifier(t *testing.T, m ml.ModelProvider) potability.Classifier {
	t.Helper()
	a, err := potability.NewAdapter(m)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestCanaryRun(t *testing.T) {
	c, err := NewCanary(newClassifier(t, constModel{label: 1}), "@every 1h", nil)
	if err != nil {
		t.Fatal(err)
	}

	res := c.Run(context.Background())
	if res.Outcome != potability.OutcomePotable {
		t.Fatalf("unexpected result %+v", res)
	}
	st := c.Status()
	if st.Runs != 1 || st.Failures != 0 || st.Last == nil || st.LastRun.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCanaryCountsFailures(t *testing.T) {
	c, err := NewCanary(newClassifier(t, constModel{err: errors.New("down")}), "*/5 * * * *", nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Run(context.Background())
	c.Run(context.Background())

	if st := c.Status(); st.Runs != 2 || st.Failures != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
}

// flakyModel answers once and then fails.
type flakyModel struct {
	calls int
}

func (m *flakyModel) Predict(ctx context.Context, frame *ml.Frame) ([]any, error) {
	m.calls++
	if m.calls > 1 {
		return nil, errors.New("model went away")
	}
	return []any{1}, nil
}

func TestCanaryBypassesCache(t *testing.T) {
	model := &flakyModel{}
	cached, err := potability.NewCachedAdapter(newClassifier(t, model), 16)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCanary(cached, "@every 1h", nil)
	if err != nil {
		t.Fatal(err)
	}

	if res := c.Run(context.Background()); res.Failed() {
		t.Fatalf("first run should succeed, got %+v", res)
	}
	if res := c.Run(context.Background()); !res.Failed() {
		t.Fatal("second run must reach the failing model")
	}
	if st := c.Status(); st.Runs != 2 || st.Failures != 1 || model.calls != 2 {
		t.Fatalf("unexpected status %+v after %d model calls", st, model.calls)
	}
}

func TestCanaryRejectsBadSchedule(t *testing.T) {
	if _, err := NewCanary(newClassifier(t, constModel{label: 0}), "every now and then", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestCanaryStartStop(t *testing.T) {
	c, err := NewCanary(newClassifier(t, constModel{label: 0}), "@every 1h", nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Start()
	c.Stop()
}

func TestWatchArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := WatchArtifact(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(other, []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"nodes":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case change := <-changes:
		if filepath.Base(change.Path) != "model.json" {
			t.Fatalf("unexpected change %+v", change)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}

func TestWatchArtifactMissingDir(t *testing.T) {
	_, err := WatchArtifact(context.Background(), filepath.Join(t.TempDir(), "nope", "model.json"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
