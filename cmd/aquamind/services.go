package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"aquamind/config"
	"aquamind/db"
	"aquamind/logging"
	"aquamind/ml"
	"aquamind/potability"
)

// globals is shared by every subcommand.
type globals struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

// env is what a subcommand needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (g *globals) env() (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// openModel loads the configured model. Every failure wraps
// ml.ErrModelUnavailable.
func openModel(ctx context.Context, cfg *config.Config) (ml.ModelProvider, error) {
	m := cfg.Model
	client := &http.Client{Timeout: m.Timeout}

	switch m.Source {
	case config.SourceFile:
		return ml.LoadModel(m.Type, m.Path)
	case config.SourceHTTP:
		return ml.DownloadModel(ctx, client, m.URL, m.Type, m.CachePath)
	case config.SourceRemote:
		return ml.NewRemoteModel(m.URL, client, m.Proba)
	case config.SourceSQLite:
		store, err := db.OpenArtifactStore(m.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ml.ErrModelUnavailable, err)
		}
		defer store.Close()
		return store.LoadModel(ctx, m.Name)
	default:
		return nil, fmt.Errorf("%w: unknown model source %q", ml.ErrModelUnavailable, m.Source)
	}
}

// newClassifier loads the model and wraps it in the adapter, plus the
// result cache when withCache is set and cache.size is positive.
func (e *env) newClassifier(ctx context.Context, withCache bool) (potability.Classifier, error) {
	model, err := openModel(ctx, e.cfg)
	if err != nil {
		return nil, err
	}

	opts := []potability.Option{potability.WithLogger(e.logger)}
	if e.cfg.Model.LabelMapping != nil {
		opts = append(opts, potability.WithLabelMapping(*e.cfg.Model.LabelMapping))
	}
	adapter, err := potability.NewAdapter(model, opts...)
	if err != nil {
		return nil, err
	}

	info := adapter.Info()
	e.logger.Info("model loaded",
		zap.String("type", info.Type),
		zap.String("source", info.Source),
		zap.Bool("probability", info.Probability),
		zap.Strings("positive_tokens", adapter.Mapping().PositiveTokens),
	)

	if !withCache || e.cfg.Cache.Size == 0 {
		return adapter, nil
	}
	cached, err := potability.NewCachedAdapter(adapter, e.cfg.Cache.Size)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// reportLoadError prints a model load failure the way every subcommand
// does.
func (g *globals) reportLoadError(err error) {
	if errors.Is(err, ml.ErrModelUnavailable) {
		fmt.Fprintf(g.stderr, "ModelUnavailable: %v\n", err)
		return
	}
	fmt.Fprintf(g.stderr, "error: %v\n", err)
}
