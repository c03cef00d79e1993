// Package potability turns water readings into a potability verdict using
// an opaque classification model.
package potability

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"aquamind/ml"
)

// Classifier is what front-ends depend on.
type Classifier interface {
	Classify(ctx context.Context, sample ml.WaterSample) Result
	ClassifyBatch(ctx context.Context, frame *ml.Frame) BatchResult
	Info() ml.ModelInfo
}

// Adapter arranges readings for a model, invokes it, and normalises what
// comes back. The model is shared read-only; an Adapter is safe for
// concurrent use when its model is.
type Adapter struct {
	model   ml.ModelProvider
	mapping LabelMapping
	logger  *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLabelMapping overrides the mapping published by the model.
func WithLabelMapping(m LabelMapping) Option {
	return func(a *Adapter) {
		a.mapping = m
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter binds a loaded model. A nil model is ErrModelUnavailable.
func NewAdapter(model ml.ModelProvider, opts ...Option) (*Adapter, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model loaded", ErrModelUnavailable)
	}
	a := &Adapter{
		model:   model,
		mapping: DefaultLabelMapping(),
		logger:  zap.NewNop(),
	}
	if published := ml.DescribeModel(model).LabelMapping; published != nil && len(published.PositiveTokens) > 0 {
		a.mapping = *published
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Info describes the bound model and the mapping in effect.
func (a *Adapter) Info() ml.ModelInfo {
	info := ml.DescribeModel(a.model)
	mapping := a.mapping
	info.LabelMapping = &mapping
	return info
}

// Mapping returns the label mapping in effect.
func (a *Adapter) Mapping() LabelMapping {
	return a.mapping
}

// Classify predicts one sample. It never panics and never returns an
// error value: provider failures come back as an OutcomeError result.
// Implausible readings are passed through unchanged and listed as
// warnings.
func (a *Adapter) Classify(ctx context.Context, sample ml.WaterSample) (res Result) {
	warnings := ml.CheckSample(sample)
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(&InferenceError{Op: "predict", Err: fmt.Errorf("model panicked: %v", r)})
		}
		res.Warnings = warnings
		a.logResult(sample, res)
	}()

	frame := ml.NewSampleFrame(sample)

	var confidence *float64
	if est, ok := a.model.(ml.ProbabilityEstimator); ok {
		p, err := a.positiveProbability(ctx, est, frame)
		if err != nil {
			return errorResult(err)
		}
		confidence = &p
	}

	raw, err := a.model.Predict(ctx, frame)
	if err != nil {
		return errorResult(&InferenceError{Op: "predict", Err: err})
	}
	if len(raw) == 0 {
		return errorResult(&InferenceError{Op: "predict", Err: errors.New("model returned no prediction")})
	}

	return potableResult(IsPositive(raw[0], a.mapping), confidence)
}

func (a *Adapter) positiveProbability(ctx context.Context, est ml.ProbabilityEstimator, frame *ml.Frame) (float64, error) {
	proba, err := est.PredictProba(ctx, frame)
	if err != nil {
		return 0, &InferenceError{Op: "predict_proba", Err: err}
	}
	if len(proba) == 0 {
		return 0, &InferenceError{Op: "predict_proba", Err: errors.New("model returned no probabilities")}
	}
	idx := a.mapping.PositiveClassIndex
	if idx < 0 || idx >= len(proba[0]) {
		return 0, &InferenceError{
			Op:  "predict_proba",
			Err: fmt.Errorf("positive class index %d out of range for %d classes", idx, len(proba[0])),
		}
	}
	p := proba[0][idx]
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, &InferenceError{Op: "predict_proba", Err: fmt.Errorf("probability %v outside [0, 1]", p)}
	}
	return p, nil
}

// ClassifyBatch runs a single predict call over the whole table and
// returns the model's raw per-row outputs, without label normalisation or
// probabilities. A failure anywhere fails the whole batch.
func (a *Adapter) ClassifyBatch(ctx context.Context, frame *ml.Frame) (res BatchResult) {
	if frame != nil {
		res.Columns = frame.Columns
		res.Rows = frame.Len()
	}
	defer func() {
		if r := recover(); r != nil {
			err := &InferenceError{Op: "predict", Err: fmt.Errorf("model panicked: %v", r)}
			res.Predictions, res.Err, res.Cause = nil, err.Error(), err
		}
		if res.Failed() {
			a.logger.Warn("batch prediction failed", zap.Int("rows", res.Rows), zap.String("error", res.Err))
		} else {
			a.logger.Info("batch prediction", zap.Int("rows", res.Rows))
		}
	}()

	fail := func(err error) BatchResult {
		res.Err, res.Cause = err.Error(), err
		return res
	}
	if frame == nil || frame.Len() == 0 {
		return fail(&InferenceError{Op: "predict", Err: errors.New("table has no rows")})
	}

	raw, err := a.model.Predict(ctx, frame)
	if err != nil {
		return fail(&InferenceError{Op: "predict", Err: err})
	}
	if len(raw) != frame.Len() {
		return fail(&InferenceError{
			Op:  "predict",
			Err: fmt.Errorf("model returned %d predictions for %d rows", len(raw), frame.Len()),
		})
	}
	res.Predictions = raw
	return res
}

func (a *Adapter) logResult(sample ml.WaterSample, res Result) {
	fields := []zap.Field{
		zap.Stringer("outcome", res.Outcome),
		zap.Float64s("features", ml.FeatureVector(sample)),
	}
	if res.Confidence != nil {
		fields = append(fields, zap.Float64("confidence", *res.Confidence))
	}
	if len(res.Warnings) > 0 {
		fields = append(fields, zap.Int("warnings", len(res.Warnings)))
	}
	if res.Failed() {
		a.logger.Warn("prediction failed", append(fields, zap.String("error", res.Err))...)
		return
	}
	a.logger.Debug("prediction", fields...)
}
