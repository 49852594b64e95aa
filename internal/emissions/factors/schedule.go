package factors

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled factor task, such as a refresh or a seed sync.
type Job func(ctx context.Context) error

// Schedule runs job on a six-field cron expression (seconds first) until ctx is
// done. A run still in progress when the next one is due is skipped. onResult,
// if set, sees the outcome of every run.
func Schedule(ctx context.Context, spec string, job Job, onResult func(error), logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		err := job(ctx)
		if err != nil {
			logger.Error("Scheduled factor job failed", zap.String("schedule", spec), zap.Error(err))
		}
		if onResult != nil {
			onResult(err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
