// Package monitoring keeps an eye on the loaded model while the service runs.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"aquamind/ml"
	"aquamind/potability"
)

// CanaryStatus is the outcome of the most recent canary run.
type CanaryStatus struct {
	Runs     int64              `json:"runs"`
	Failures int64              `json:"failures"`
	LastRun  time.Time          `json:"last_run"`
	Last     *potability.Result `json:"last,omitempty"`
}

// Canary classifies a fixed reference sample on a cron schedule so that a
// model which stops answering shows up in the logs before users notice.
type Canary struct {
	classifier potability.Classifier
	sample     ml.WaterSample
	logger     *zap.Logger
	cron       *cron.Cron

	mu     sync.RWMutex
	status CanaryStatus
}

// NewCanary schedules the reference sample on schedule, a standard five-field
// cron expression or a descriptor such as "@every 5m". A result cache in
// front of the model is bypassed.
func NewCanary(classifier potability.Classifier, schedule string, logger *zap.Logger) (*Canary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// a cached answer would keep reporting a model that stopped responding
	if cached, ok := classifier.(interface{ Uncached() potability.Classifier }); ok {
		classifier = cached.Uncached()
	}
	c := &Canary{
		classifier: classifier,
		sample:     ml.DefaultSample(),
		logger:     logger.Named("canary"),
		cron:       cron.New(),
	}
	if _, err := c.cron.AddFunc(schedule, func() { c.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid canary schedule %q: %w", schedule, err)
	}
	return c, nil
}

func (c *Canary) Start() {
	c.logger.Info("canary scheduled", zap.Int("entries", len(c.cron.Entries())))
	c.cron.Start()
}

// Stop halts the schedule and waits for a running check to finish.
func (c *Canary) Stop() {
	<-c.cron.Stop().Done()
}

// Run classifies the reference sample once and records the outcome.
func (c *Canary) Run(ctx context.Context) potability.Result {
	res := c.classifier.Classify(ctx, c.sample)

	c.mu.Lock()
	c.status.Runs++
	c.status.LastRun = time.Now()
	if res.Failed() {
		c.status.Failures++
	}
	c.status.Last = &res
	c.mu.Unlock()

	if res.Failed() {
		c.logger.Error("canary classification failed", zap.String("error", res.Err))
	} else {
		c.logger.Info("canary classification",
			zap.Stringer("outcome", res.Outcome),
			zap.String("confidence", res.ConfidencePercent()),
		)
	}
	return res
}

func (c *Canary) Status() CanaryStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
