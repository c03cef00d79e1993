package ml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const (
	TypeDecisionTree = "decision_tree"
	TypeLogistic     = "logistic"
)

// maxArtifactBytes bounds artifact downloads.
const maxArtifactBytes = 256 << 20

// DecodeModel builds a provider from an in-memory artifact.
func DecodeModel(modelType string, payload []byte) (ModelProvider, error) {
	var (
		m   ModelProvider
		err error
	)
	switch modelType {
	case TypeDecisionTree, "":
		m, err = DecodeDecisionTree(payload)
	case TypeLogistic:
		m, err = DecodeLogistic(payload)
	default:
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrModelUnavailable, modelType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s artifact: %v", ErrModelUnavailable, modelType, err)
	}
	return m, nil
}

// LoadModel reads and decodes the artifact at path.
func LoadModel(modelType, path string) (ModelProvider, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: model file %q not found", ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	m, err := DecodeModel(modelType, payload)
	if err != nil {
		return nil, err
	}
	return WithSource(m, path), nil
}

// DownloadModel fetches an artifact over HTTP, optionally keeps a copy at
// cachePath, and decodes it.
func DownloadModel(ctx context.Context, client *http.Client, url, modelType, cachePath string) (ModelProvider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrModelUnavailable, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download %s: unexpected status %s", ErrModelUnavailable, url, resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrModelUnavailable, url, err)
	}
	m, err := DecodeModel(modelType, payload)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		if err := os.WriteFile(cachePath, payload, 0o600); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}
	return WithSource(m, url), nil
}
