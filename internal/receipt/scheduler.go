package receipt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// ScanRunner runs one pass over the inbox
type ScanRunner interface {
	Scan() *ScanResult
}

// Scheduler triggers inbox scans on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	runner ScanRunner
}

// NewScheduler registers runner under the standard 5-field cron spec
// (e.g. "*/15 * * * *")
func NewScheduler(spec string, runner ScanRunner) (*Scheduler, error) {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))))
	s := &Scheduler{cron: c, runner: runner}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("parsing scan schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scan scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the schedule. The returned context is done once a running
// scan has finished.
func (s *Scheduler) Stop() context.Context {
	slog.Info("Scan scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) run() {
	result := s.runner.Scan()
	if result.PersistErr != nil {
		slog.Error("Scheduled scan could not save the ledger", "error", result.PersistErr)
	}
}
