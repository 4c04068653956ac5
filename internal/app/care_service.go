package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/care"
)

// Completion is the server-confirmed result of a completion action.
type Completion struct {
	SubjectID      int64
	Kind           care.ActionKind
	LastActionDate time.Time
	NextDueDate    time.Time
	State          care.State
}

// CareService is the server write path for completion actions.
type CareService struct {
	repo  care.Repository
	clock Clock
	log   *logrus.Entry
}

func NewCareService(repo care.Repository, log *logrus.Entry) *CareService {
	return &CareService{repo: repo, clock: time.Now, log: log}
}

// CompleteAction records that the action was done now and returns the reset cycle.
// It does not check how early the action is; confirming early completion is the
// caller's job.
func (s *CareService) CompleteAction(ctx context.Context, subjectID int64, kind care.ActionKind) (*Completion, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", care.ErrUnknownActionKind, kind)
	}

	sub, err := s.repo.GetSubjectByID(ctx, subjectID)
	if err != nil {
		return nil, s.wrapErr(err, "failed to load care subject")
	}
	if !sub.IsActive {
		return nil, care.ErrSubjectInactive
	}

	now := s.clock()
	cycle, err := s.repo.RecordAction(ctx, subjectID, kind, now)
	if err != nil {
		return nil, s.wrapErr(err, "failed to record care action")
	}

	state, err := care.Evaluate(cycle, now)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"kind":       kind,
		"next_due":   state.NextDueDate.Format(time.RFC3339),
	}).Info("Care action completed")

	return &Completion{
		SubjectID:      subjectID,
		Kind:           kind,
		LastActionDate: cycle.LastActionDate.Time,
		NextDueDate:    state.NextDueDate,
		State:          state,
	}, nil
}

// CycleState loads one cycle of a subject and evaluates it at the current instant.
func (s *CareService) CycleState(ctx context.Context, subjectID int64, kind care.ActionKind) (*care.Cycle, care.State, error) {
	cycles, err := s.repo.ListCyclesBySubject(ctx, subjectID)
	if err != nil {
		return nil, care.State{}, s.wrapErr(err, "failed to load care cycles")
	}
	for _, c := range cycles {
		if c.Kind == kind {
			st, err := care.Evaluate(c, s.clock())
			return c, st, err
		}
	}
	return nil, care.State{}, care.ErrCycleNotFound
}

// wrapErr passes domain sentinels through and marks everything else transient.
func (s *CareService) wrapErr(err error, msg string) error {
	switch {
	case errors.Is(err, care.ErrSubjectNotFound),
		errors.Is(err, care.ErrCycleNotFound),
		errors.Is(err, care.ErrInvalidInterval):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", msg, ErrTransientWrite, err)
	}
}
