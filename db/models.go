package db

import (
	"context"
	"fmt"
	"os"

	"aquamind/ml"
)

// LoadModel decodes the latest artifact stored under name. Every failure
// wraps ml.ErrModelUnavailable.
func (s *ArtifactStore) LoadModel(ctx context.Context, name string) (ml.ModelProvider, error) {
	a, err := s.Latest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrModelUnavailable, err)
	}
	m, err := ml.DecodeModel(a.ModelType, a.Payload)
	if err != nil {
		return nil, err
	}
	return ml.WithSource(m, fmt.Sprintf("sqlite:%s#%s@%s", s.Path(), a.Name, a.Checksum[:12])), nil
}

// ImportFile checks that the file decodes as modelType, then stores it.
func (s *ArtifactStore) ImportFile(ctx context.Context, name, modelType, path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := ml.DecodeModel(modelType, payload); err != nil {
		return nil, err
	}
	return s.Save(ctx, name, modelType, payload)
}
