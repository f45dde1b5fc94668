package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/api"
)

// Scheduler generates a report for the monitored address on a cron schedule.
type Scheduler struct {
	service *Service
	cron    *cron.Cron
	spec    string
}

// NewScheduler parses spec, a standard five-field cron expression.
func NewScheduler(service *Service, spec string) (*Scheduler, error) {
	s := &Scheduler{service: service, spec: spec, cron: cron.New()}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse report schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	s.generate(context.Background())
}

func (s *Scheduler) generate(ctx context.Context) {
	out, err := s.service.Generate(ctx, api.GenerateReportRequest{})
	switch {
	case errors.Is(err, ErrNoSelection):
		log.Debug().Msg("scheduled report skipped: no address selected")
	case err != nil:
		log.Error().Err(err).Msg("scheduled report failed")
	case out.JobID != "":
		log.Info().Str("job", out.JobID).Msg("⏰ scheduled report queued")
	default:
		log.Info().Str("file", out.LocalPath).Msg("⏰ scheduled report saved")
	}
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("schedule", s.spec).Msg("📅 report scheduler started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
