package scheduler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// ErrUnauthorized is returned by TriggerManual on a bad credential. No run is
// started in that case.
var ErrUnauthorized = errors.New("invalid API key")

const jobName = "threat-discovery"

// Runner executes one discovery pass. A run always completes and reports
// counts.
type Runner interface {
	Run(ctx context.Context) models.RunSummary
}

// Scheduler owns the recurring discovery job and its lifecycle. It caps
// scheduled runs at one in flight: a tick that fires while the previous
// scheduled run is still executing is skipped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	secret  string
	spec    string
	log     *slog.Logger
	entryID cron.EntryID

	started  atomic.Bool
	inFlight atomic.Bool
}

// New registers the recurring trigger. A registration failure is fatal to
// process startup, so callers should abort on error.
func New(runner Runner, spec, secret string, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		secret: secret,
		spec:   spec,
		log:    log,
	}

	id, err := s.cron.AddFunc(spec, s.scheduledRun)
	if err != nil {
		return nil, fmt.Errorf("register discovery job: %w", err)
	}
	s.entryID = id

	return s, nil
}

// Start begins firing scheduled ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.started.Store(true)
	s.log.Info("scheduler started",
		slog.String("job", jobName),
		slog.String("spec", s.spec),
		slog.Time("next_run", s.cron.Entry(s.entryID).Next),
	)
}

// Shutdown stops new ticks and waits for any in-flight scheduled run to
// finish, or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.started.Store(false)

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// TriggerManual validates the credential and, on a match, executes one run
// synchronously and returns its summary. Manual runs are a separate path from
// scheduled ticks and are not covered by the single-instance cap: a manual
// run may overlap a concurrently executing scheduled run.
func (s *Scheduler) TriggerManual(ctx context.Context, apiKey string) (models.RunSummary, error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.secret)) != 1 {
		return models.RunSummary{}, ErrUnauthorized
	}
	return s.runner.Run(ctx), nil
}

func (s *Scheduler) scheduledRun() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("previous scheduled run still executing, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	s.runner.Run(context.Background())
}

// JobStatus describes one registered job.
type JobStatus struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	NextRunTime string `json:"next_run_time"`
	Trigger     string `json:"trigger"`
}

// Status reports lifecycle state and, when running, the next fire time.
type Status struct {
	State   string      `json:"status"`
	NextRun string      `json:"next_run,omitempty"`
	Jobs    []JobStatus `json:"jobs,omitempty"`
}

// Status returns the current lifecycle state.
func (s *Scheduler) Status() Status {
	if !s.started.Load() {
		return Status{State: "stopped"}
	}

	next := s.cron.Entry(s.entryID).Next.UTC().Format(time.RFC3339)
	return Status{
		State:   "running",
		NextRun: next,
		Jobs: []JobStatus{{
			ID:          int(s.entryID),
			Name:        jobName,
			NextRunTime: next,
			Trigger:     s.spec,
		}},
	}
}
