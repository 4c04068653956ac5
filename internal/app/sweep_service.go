package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
)

const defaultCommitGrace = 30 * time.Second

// SweepSource is the bulk read side the sweep needs.
type SweepSource interface {
	ListActiveSubjects(ctx context.Context) ([]*care.Subject, error)
	ListActiveCycles(ctx context.Context, kind care.ActionKind) ([]*care.Cycle, error)
}

// SweepFailure is one subject/kind the sweep could not process. SubjectID is zero
// for failures that are not tied to a single subject (bulk reads, write chunks).
type SweepFailure struct {
	SubjectID int64
	Kind      care.ActionKind
	Err       error
}

func (f SweepFailure) Error() string {
	if f.SubjectID == 0 {
		return f.Err.Error()
	}
	return fmt.Sprintf("subject %d %s: %v", f.SubjectID, f.Kind, f.Err)
}

func (f SweepFailure) Unwrap() error { return f.Err }

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	At           time.Time
	Created      int
	ByCategory   map[notification.Category]int
	ByKind       map[notification.Kind]int
	Evaluated    int // cycles looked at
	Candidates   int // cycles that fell into a due category
	Deduplicated int // dropped by the guard
	Duplicates   int // dropped by the storage constraint
	Skipped      int // malformed or vanished subjects
	Failures     []SweepFailure
}

func newSweepSummary(at time.Time) *SweepSummary {
	s := &SweepSummary{
		At:         at,
		ByCategory: make(map[notification.Category]int, 3),
		ByKind:     make(map[notification.Kind]int),
	}
	for _, c := range notification.Categories() {
		s.ByCategory[c] = 0
	}
	return s
}

func (s *SweepSummary) fail(subjectID int64, kind care.ActionKind, err error) {
	s.Failures = append(s.Failures, SweepFailure{SubjectID: subjectID, Kind: kind, Err: err})
}

// Err joins every recorded failure.
func (s *SweepSummary) Err() error {
	errs := make([]error, 0, len(s.Failures))
	for _, f := range s.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// SweepService evaluates every active cycle at one instant and emits deduplicated
// due, overdue and reminder notifications. It has no schedule of its own.
type SweepService struct {
	source      SweepSource
	guard       *notification.Guard
	sink        *Sink
	loc         *time.Location
	log         *logrus.Entry
	clock       Clock
	newID       func() string
	commitGrace time.Duration
}

func NewSweepService(source SweepSource, guard *notification.Guard, sink *Sink, loc *time.Location, log *logrus.Entry) *SweepService {
	if loc == nil {
		loc = time.Local
	}
	return &SweepService{
		source:      source,
		guard:       guard,
		sink:        sink,
		loc:         loc,
		log:         log,
		clock:       time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		commitGrace: defaultCommitGrace,
	}
}

type sweepCandidate struct {
	subject     *care.Subject
	state       care.State
	category    notification.Category
	overdueDays int
}

// RunSweep evaluates all active subjects at now (wall clock when zero).
//
// Per-subject problems are recorded in the summary and never abort the pass. If
// ctx is cancelled mid-pass, evaluation stops, the candidates decided so far are
// still written under a short detached deadline, and ctx's error is returned
// alongside the summary. Running it again for the same day creates nothing new.
func (s *SweepService) RunSweep(ctx context.Context, now time.Time) (*SweepSummary, error) {
	if now.IsZero() {
		now = s.clock()
	}
	now = now.In(s.loc)
	summary := newSweepSummary(now)
	log := s.log.WithField("sweep_at", now.Format(time.RFC3339))
	log.Info("Starting care sweep")

	subjects, err := s.source.ListActiveSubjects(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list active subjects")
		return summary, fmt.Errorf("failed to list active subjects: %w", err)
	}
	byID := make(map[int64]*care.Subject, len(subjects))
	for _, sub := range subjects {
		byID[sub.ID] = sub
	}

	var batch []*notification.Notification
	interrupted := false

kinds:
	for _, kind := range care.AllActionKinds() {
		cycles, err := s.source.ListActiveCycles(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			log.WithField("kind", kind).WithError(err).Error("Failed to list active cycles")
			summary.fail(0, kind, fmt.Errorf("failed to list %s cycles: %w", kind, err))
			continue
		}

		for _, c := range cycles {
			if ctx.Err() != nil {
				interrupted = true
				break kinds
			}
			summary.Evaluated++

			cand, ok := s.evaluate(c, byID, now, summary, log)
			if !ok {
				continue
			}
			summary.Candidates++

			n := s.build(cand, now)
			allowed, err := s.guard.Allow(ctx, n, now)
			if err != nil {
				if ctx.Err() != nil {
					interrupted = true
					break kinds
				}
				// The storage constraint still catches a real repeat.
				log.WithFields(logrus.Fields{"subject_id": c.SubjectID, "kind": n.Kind}).
					WithError(err).Warn("Dedup lookup failed, keeping candidate")
				allowed = true
			}
			if !allowed {
				summary.Deduplicated++
				continue
			}
			batch = append(batch, n)
		}
	}

	writeCtx := ctx
	if interrupted {
		log.WithField("decided", len(batch)).Warn("Sweep interrupted, committing decided notifications")
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.commitGrace)
		defer cancel()
	}

	res := s.sink.Write(writeCtx, batch)
	for _, n := range res.Inserted {
		summary.Created++
		summary.ByKind[n.Kind]++
		if _, category, ok := n.Kind.CycleParts(); ok {
			summary.ByCategory[category]++
		}
	}
	summary.Duplicates = res.Duplicates
	for _, f := range res.Failures {
		summary.fail(0, "", f)
	}

	log.WithFields(logrus.Fields{
		"created":      summary.Created,
		"due_today":    summary.ByCategory[notification.CategoryDueToday],
		"overdue":      summary.ByCategory[notification.CategoryOverdue],
		"reminder":     summary.ByCategory[notification.CategoryReminder],
		"deduplicated": summary.Deduplicated,
		"duplicates":   summary.Duplicates,
		"failures":     len(summary.Failures),
	}).Info("Care sweep finished")

	if interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

// evaluate places one cycle in a due category. ok is false when the cycle needs
// no notification or could not be evaluated; the latter is recorded.
func (s *SweepService) evaluate(c *care.Cycle, subjects map[int64]*care.Subject, now time.Time, summary *SweepSummary, log *logrus.Entry) (sweepCandidate, bool) {
	fields := logrus.Fields{"subject_id": c.SubjectID, "kind": c.Kind}

	sub, ok := subjects[c.SubjectID]
	if !ok {
		log.WithFields(fields).Warn("Cycle references a subject outside the active set, skipping")
		summary.Skipped++
		summary.fail(c.SubjectID, c.Kind, care.ErrUnknownSubject)
		return sweepCandidate{}, false
	}

	// Stored instants come back in UTC; due dates are calendar arithmetic in the
	// sweep's location.
	local := *c
	if local.LastActionDate.Valid {
		local.LastActionDate.Time = local.LastActionDate.Time.In(s.loc)
	}
	state, err := care.Evaluate(&local, now)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Malformed cycle, skipping")
		summary.Skipped++
		summary.fail(c.SubjectID, c.Kind, err)
		return sweepCandidate{}, false
	}
	if !state.HasDueDate {
		return sweepCandidate{}, false
	}

	// The sweep runs once a day, so it buckets by calendar day: a cycle due at
	// 15:00 is due today for a 09:00 sweep.
	cand := sweepCandidate{subject: sub, state: state}
	days := care.CalendarDaysRemaining(state.NextDueDate, now)
	switch {
	case days < 0:
		cand.category = notification.CategoryOverdue
		cand.overdueDays = -days
	case days == 0:
		cand.category = notification.CategoryDueToday
	case days == 1:
		cand.category = notification.CategoryReminder
	default:
		return cand, false
	}
	return cand, true
}

func (s *SweepService) build(c sweepCandidate, now time.Time) *notification.Notification {
	kind, _ := notification.CycleKind(c.state.Kind, c.category)
	subjectID := nullInt64(c.subject.ID)
	r := notification.Render(kind, notification.CycleContext{
		SubjectName: c.subject.Name,
		Action:      c.state.Kind,
		IsOverdue:   c.category == notification.CategoryOverdue,
		OverdueDays: c.overdueDays,
		IsReminder:  c.category == notification.CategoryReminder,
	})
	return &notification.Notification{
		ID:          s.newID(),
		Kind:        kind,
		Title:       r.Title,
		Message:     r.Message,
		Link:        notification.LinkFor(kind, subjectID),
		RecipientID: c.subject.OwnerID,
		SubjectID:   subjectID,
		DedupDay:    notification.ScheduledDay(now),
		CreatedAt:   now,
	}
}
