package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 30 * time.Second

// Scheduler runs Writer.Write on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron   *cron.Cron
	writer *Writer
	log    *logrus.Entry
}

func NewScheduler(schedule string, writer *Writer, log *logrus.Entry) (*Scheduler, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	logger := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		),
	)

	s := &Scheduler{cron: c, writer: writer, log: log}
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("diagnostics schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := s.writer.Write(ctx); err != nil {
		s.log.WithError(err).Warn("diagnostics write failed")
	}
}

// Next reports when the next write is due.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running write to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
