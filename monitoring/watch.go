package monitoring

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactChange is one filesystem event on the watched model artifact.
type ArtifactChange struct {
	Path string
	Op   fsnotify.Op
}

// WatchArtifact reports changes to the model file at path until ctx ends.
// The loaded model is never swapped: a change is only logged, and a restart
// picks up the new artifact.
//
// The parent directory is watched rather than the file so that editors and
// deploy tools that replace the file by rename are still seen.
func WatchArtifact(ctx context.Context, path string, logger *zap.Logger) (<-chan ArtifactChange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	changes := make(chan ArtifactChange, 8)
	go func() {
		defer close(changes)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				logger.Warn("model artifact changed on disk; restart to load it",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()),
				)
				select {
				case changes <- ArtifactChange{Path: event.Name, Op: event.Op}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("artifact watcher error", zap.Error(err))
			}
		}
	}()
	return changes, nil
}
