package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/app"
)

// SweepScheduler triggers the care sweep on a cron schedule. The sweep itself has
// no notion of scheduling; this is just one trigger for it.
type SweepScheduler struct {
	cronEngine *cron.Cron
	parser     cron.Parser
	sweeper    app.Sweeper
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration
	loc        *time.Location
	entryID    cron.EntryID
}

func NewSweepScheduler(
	sweeper app.Sweeper,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 9 * * *" (9 AM daily)
	timeout time.Duration,
	loc *time.Location,
) *SweepScheduler {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &SweepScheduler{
		cronEngine: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		parser:   parser,
		sweeper:  sweeper,
		logger:   logger,
		cronSpec: cronSpec,
		timeout:  timeout,
		loc:      loc,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *SweepScheduler) Start() error {
	if _, err := s.parser.Parse(s.cronSpec); err != nil {
		return fmt.Errorf("invalid sweep cron spec %q: %w", s.cronSpec, err)
	}

	id, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for care sweep.")
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled care sweep ended with an error")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add care sweep cron job: %w", err)
	}
	s.entryID = id

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Sweep scheduler started.")
	return nil
}

// RunOnce runs one sweep now, bounded by the configured timeout.
func (s *SweepScheduler) RunOnce(ctx context.Context) (*app.SweepSummary, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.sweeper.RunSweep(ctx, time.Time{})
}

// NextRun is the next scheduled sweep, zero before Start.
func (s *SweepScheduler) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	e := s.cronEngine.Entry(s.entryID)
	if e.Schedule == nil {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(s.loc))
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped.")
}

// cronLogger adapts logrus to cron's logger interface.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
