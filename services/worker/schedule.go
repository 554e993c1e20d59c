package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

// cronLogger routes cron's own messages to the worker logger
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Start runs once immediately and then on every tick of spec until ctx is
// cancelled. A tick that fires while a run is still going is skipped.
// An empty spec runs once and returns.
func (w *Worker) Start(ctx context.Context, spec string) error {
	if spec == "" {
		w.Run(ctx)
		return nil
	}

	cl := cronLogger{log: w.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	job := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() { w.Run(ctx) }))
	if _, err := c.AddJob(spec, job); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("invalid CRON_SPEC %q", spec), err)
	}

	w.log.Info().Str("spec", spec).Msg("cron started")
	c.Start()
	job.Run()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	w.log.Info().Msg("cron stopped")
	return nil
}
