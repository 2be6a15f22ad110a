package scheduler

import (
	"context"
	"fmt"
	"time"

	"impact-lending-backend/internal/application/reconciliation"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// passTimeout bounds one scheduled reconciliation pass.
const passTimeout = 5 * time.Minute

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) *reconciliation.Report
}

// Scheduler runs background jobs on six-field (seconds first) cron specs, in UTC.
type Scheduler struct {
	cron *cron.Cron
}

// New registers the reconciliation job. An empty spec disables it.
func New(spec string, rec Reconciler) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	s := &Scheduler{cron: c}
	if spec == "" || rec == nil {
		return s, nil
	}
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		rec.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("register reconciliation job %q: %w", spec, err)
	}
	log.Info().Str("spec", spec).Msg("reconciliation job registered")
	return s, nil
}

func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("cron scheduler stopped")
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
