package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteModel forwards frames to an external scoring service.
//
// Request:  POST endpoint {"columns": [...], "rows": [[...], ...]}
// Response: {"predictions": [...], "probabilities": [[...], ...]}
type RemoteModel struct {
	endpoint string
	client   *http.Client
	proba    bool
}

type remoteResponse struct {
	Predictions   []any       `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// NewRemoteModel returns a client for endpoint. When withProba is false
// the returned provider does not implement ProbabilityEstimator.
func NewRemoteModel(endpoint string, client *http.Client, withProba bool) (ModelProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: remote endpoint is empty", ErrModelUnavailable)
	}
	if client == nil {
		client = http.DefaultClient
	}
	m := &RemoteModel{endpoint: endpoint, client: client, proba: withProba}
	if withProba {
		return &remoteEstimator{m}, nil
	}
	return m, nil
}

func (m *RemoteModel) Info() ModelInfo {
	return ModelInfo{Type: "remote", Source: m.endpoint, Probability: m.proba}
}

func (m *RemoteModel) Predict(ctx context.Context, frame *Frame) ([]any, error) {
	resp, err := m.score(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) != frame.Len() {
		return nil, fmt.Errorf("remote returned %d predictions for %d rows", len(resp.Predictions), frame.Len())
	}
	return resp.Predictions, nil
}

// Health checks that the scoring service answers.
func (m *RemoteModel) Health(ctx context.Context) error {
	url := strings.TrimSuffix(m.endpoint, "/predict") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (m *RemoteModel) score(ctx context.Context, frame *Frame) (*remoteResponse, error) {
	if frame == nil {
		return nil, errors.New("frame is nil")
	}
	body, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	var out remoteResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("remote status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		}
		return nil, fmt.Errorf("invalid remote response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("remote status %d: %s", resp.StatusCode, msg)
	}
	return &out, nil
}

type remoteEstimator struct {
	*RemoteModel
}

func (m *remoteEstimator) PredictProba(ctx context.Context, frame *Frame) ([][]float64, error) {
	resp, err := m.score(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(resp.Probabilities) != frame.Len() {
		return nil, fmt.Errorf("remote returned %d probability rows for %d rows", len(resp.Probabilities), frame.Len())
	}
	return resp.Probabilities, nil
}
