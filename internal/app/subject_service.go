package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/owner"
)

// SubjectView is a subject together with the evaluated state of each cycle.
type SubjectView struct {
	Subject *care.Subject
	Cycles  []*care.Cycle
	States  []care.State
}

// SubjectService manages owners and their care subjects.
type SubjectService struct {
	ownerRepo owner.Repository
	careRepo  care.Repository
	clock     Clock
	log       *logrus.Entry
}

func NewSubjectService(or owner.Repository, cr care.Repository, log *logrus.Entry) *SubjectService {
	return &SubjectService{ownerRepo: or, careRepo: cr, clock: time.Now, log: log}
}

// RegisterOwner returns the owner for telegramID, creating it on first contact.
// created reports whether a new row was written.
func (s *SubjectService) RegisterOwner(ctx context.Context, telegramID int64, firstName, lastNameValue string) (o *owner.Owner, created bool, err error) {
	existing, err := s.ownerRepo.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, owner.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check existing owner: %w", err)
	}

	var lastName sql.NullString
	if lastNameValue != "" {
		lastName = sql.NullString{String: lastNameValue, Valid: true}
	}
	newOwner := &owner.Owner{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		IsActive:   true,
	}
	if err := s.ownerRepo.Create(ctx, newOwner); err != nil {
		if errors.Is(err, owner.ErrDuplicateTelegramID) { // lost a race with a concurrent /start
			existing, getErr := s.ownerRepo.GetByTelegramID(ctx, telegramID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to reload owner after duplicate: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create owner in repository: %w", err)
	}

	s.log.WithFields(logrus.Fields{"owner_id": newOwner.ID, "telegram_id": telegramID}).Info("Owner registered")
	return newOwner, true, nil
}

// OwnerByTelegramID resolves a chat user to a registered owner.
func (s *SubjectService) OwnerByTelegramID(ctx context.Context, telegramID int64) (*owner.Owner, error) {
	o, err := s.ownerRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, owner.ErrNotFound) {
			return nil, ErrOwnerNotRegistered
		}
		return nil, fmt.Errorf("failed to get owner by Telegram ID: %w", err)
	}
	return o, nil
}

// AddSubject creates a subject with one cycle per entry in intervals. The last
// action date of each cycle stays unknown until the first completion.
func (s *SubjectService) AddSubject(ctx context.Context, ownerID int64, name string, intervals map[care.ActionKind]int) (*care.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySubjectName
	}
	if len(intervals) == 0 {
		return nil, ErrNoCycles
	}

	for kind := range intervals {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %q", care.ErrUnknownActionKind, kind)
		}
	}

	cycles := make([]*care.Cycle, 0, len(intervals))
	for _, kind := range care.AllActionKinds() {
		days, ok := intervals[kind]
		if !ok {
			continue
		}
		if days <= 0 {
			return nil, fmt.Errorf("%s: %w: got %d", kind, care.ErrInvalidInterval, days)
		}
		cycles = append(cycles, &care.Cycle{Kind: kind, IntervalDays: days})
	}

	sub := &care.Subject{OwnerID: ownerID, Name: name, IsActive: true}
	if err := s.careRepo.CreateSubject(ctx, sub, cycles); err != nil {
		return nil, fmt.Errorf("failed to create care subject in repository: %w", err)
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "subject_id": sub.ID, "cycles": len(cycles)}).Info("Care subject added")
	return sub, nil
}

// OwnedSubject loads a subject and checks it belongs to ownerID.
func (s *SubjectService) OwnedSubject(ctx context.Context, ownerID, subjectID int64) (*care.Subject, error) {
	sub, err := s.careRepo.GetSubjectByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != ownerID {
		return nil, ErrSubjectNotOwned
	}
	return sub, nil
}

// DeactivateSubject hides a subject from sweeps. Subjects are never deleted.
func (s *SubjectService) DeactivateSubject(ctx context.Context, ownerID, subjectID int64) (*care.Subject, error) {
	sub, err := s.OwnedSubject(ctx, ownerID, subjectID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return sub, ErrSubjectAlreadyInactive
	}

	sub.IsActive = false
	if err := s.careRepo.UpdateSubject(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update care subject to inactive in repository: %w", err)
	}
	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "subject_id": subjectID}).Info("Care subject deactivated")
	return sub, nil
}

// UpdateInterval changes the cycle length. Non-positive values are rejected.
func (s *SubjectService) UpdateInterval(ctx context.Context, ownerID, subjectID int64, kind care.ActionKind, intervalDays int) (*care.Cycle, error) {
	if intervalDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", care.ErrInvalidInterval, intervalDays)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", care.ErrUnknownActionKind, kind)
	}
	if _, err := s.OwnedSubject(ctx, ownerID, subjectID); err != nil {
		return nil, err
	}
	return s.careRepo.UpdateInterval(ctx, subjectID, kind, intervalDays)
}

// ListSubjects returns the owner's active subjects with every cycle evaluated now.
func (s *SubjectService) ListSubjects(ctx context.Context, ownerID int64) ([]SubjectView, error) {
	subjects, err := s.careRepo.ListSubjectsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list care subjects: %w", err)
	}

	now := s.clock()
	views := make([]SubjectView, 0, len(subjects))
	for _, sub := range subjects {
		if !sub.IsActive {
			continue
		}
		cycles, err := s.careRepo.ListCyclesBySubject(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list cycles for subject %d: %w", sub.ID, err)
		}
		view := SubjectView{Subject: sub, Cycles: cycles}
		for _, c := range cycles {
			st, err := care.Evaluate(c, now)
			if err != nil {
				s.log.WithFields(logrus.Fields{"subject_id": sub.ID, "kind": c.Kind}).WithError(err).Warn("Malformed cycle in listing")
			}
			view.States = append(view.States, st)
		}
		views = append(views, view)
	}
	return views, nil
}
