package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Run polls every interval until ctx is done. A cycle still running when the
// next tick fires makes that tick a no-op. The interval must be a whole
// number of seconds, the resolution of the cron schedule.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval < time.Second || interval%time.Second != 0 {
		return fmt.Errorf("invalid poll interval %s: must be a whole number of seconds", interval)
	}
	logger := cronLogger{c.logger.Sugar()}
	sched := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := sched.AddFunc("@every "+interval.String(), func() {
		c.poll(ctx)
	}); err != nil {
		return err
	}

	c.poll(ctx)
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()
	c.Close()
	c.logger.Info("poller stopped")
	return ctx.Err()
}

func (c *Coordinator) poll(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("scheduled update failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
