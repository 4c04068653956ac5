package care

import (
	"context"
	"time"
)

// Repository defines persistence for care subjects and their cycles.
type Repository interface {
	// CreateSubject stores a subject together with its initial cycles in one transaction.
	CreateSubject(ctx context.Context, s *Subject, cycles []*Cycle) error
	GetSubjectByID(ctx context.Context, id int64) (*Subject, error)
	UpdateSubject(ctx context.Context, s *Subject) error // Name, IsActive
	ListActiveSubjects(ctx context.Context) ([]*Subject, error)
	ListSubjectsByOwner(ctx context.Context, ownerID int64) ([]*Subject, error)

	// ListActiveCycles is the sweep's bulk read: every cycle of the given kind that
	// belongs to an active subject.
	ListActiveCycles(ctx context.Context, kind ActionKind) ([]*Cycle, error)
	ListCyclesBySubject(ctx context.Context, subjectID int64) ([]*Cycle, error)
	// RecordAction sets last_action_date for the cycle and returns the updated row.
	RecordAction(ctx context.Context, subjectID int64, kind ActionKind, at time.Time) (*Cycle, error)
	UpdateInterval(ctx context.Context, subjectID int64, kind ActionKind, intervalDays int) (*Cycle, error)
}
