// Package client keeps the optimistic, user-facing view of care cycles in sync
// with the server while completion actions are in flight.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/care"
)

var (
	ErrActionInFlight = errors.New("an action for this subject is already in progress")
	// ErrActionNotYetDue is returned when the cycle is not due and the user has not
	// confirmed an early completion. No server call is made.
	ErrActionNotYetDue = errors.New("action is not due yet, confirmation required")
	ErrUnknownCycle    = errors.New("cycle is not tracked")
)

// Phase is the state of the most recent completion action on one cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Confirmed is what the server reports after a successful completion.
type Confirmed struct {
	LastActionDate time.Time
	NextDueDate    time.Time
}

// ActionAPI is the server completion endpoint.
type ActionAPI interface {
	CompleteAction(ctx context.Context, subjectID int64, kind care.ActionKind) (Confirmed, error)
}

// CycleView is the display state of one cycle.
type CycleView struct {
	SubjectID      int64
	Kind           care.ActionKind
	IntervalDays   int
	LastActionDate sql.NullTime
	HasDueDate     bool
	NextDueDate    time.Time
	DaysRemaining  int
	Progress       int
	Label          string
	Done           bool // icon shows the action as just completed
	Phase          Phase
}

// ViewFromState builds a view from a server-side evaluation.
func ViewFromState(subjectID int64, c *care.Cycle, st care.State) CycleView {
	return CycleView{
		SubjectID:      subjectID,
		Kind:           c.Kind,
		IntervalDays:   c.IntervalDays,
		LastActionDate: c.LastActionDate,
		HasDueDate:     st.HasDueDate,
		NextDueDate:    st.NextDueDate,
		DaysRemaining:  st.DaysRemaining,
		Progress:       st.Progress,
		Label:          st.Label,
	}
}

type key struct {
	subjectID int64
	kind      care.ActionKind
}

// Reconciler applies completion actions optimistically and rolls them back when
// the server call fails. Each (subject, kind) moves Idle → Pending → Committed or
// RolledBack; the pending set rejects a second action on the same pair while one
// is in flight. Different pairs never block each other.
type Reconciler struct {
	api   ActionAPI
	clock func() time.Time
	log   *logrus.Entry

	mu      sync.Mutex
	views   map[key]*CycleView
	pending map[key]struct{}
}

func NewReconciler(api ActionAPI, log *logrus.Entry) *Reconciler {
	return &Reconciler{
		api:     api,
		clock:   time.Now,
		log:     log,
		views:   make(map[key]*CycleView),
		pending: make(map[key]struct{}),
	}
}

// Track installs or refreshes the view for a cycle. It is ignored while an action
// on that cycle is pending and reports whether the view was stored.
func (r *Reconciler) Track(v CycleView) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{v.SubjectID, v.Kind}
	if _, busy := r.pending[k]; busy {
		return false
	}
	r.views[k] = &v
	return true
}

// View returns a copy of the current display state.
func (r *Reconciler) View(subjectID int64, kind care.ActionKind) (CycleView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[key{subjectID, kind}]
	if !ok {
		return CycleView{}, false
	}
	return *v, true
}

// InFlight reports whether an action on the cycle is pending.
func (r *Reconciler) InFlight(subjectID int64, kind care.ActionKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key{subjectID, kind}]
	return ok
}

// Complete runs one completion action. confirmEarly must be true to complete a
// cycle that still has days remaining. The returned view is the state after the
// action: server-confirmed on success, the pre-action snapshot on failure.
func (r *Reconciler) Complete(ctx context.Context, subjectID int64, kind care.ActionKind, confirmEarly bool) (CycleView, error) {
	k := key{subjectID, kind}
	fields := logrus.Fields{"subject_id": subjectID, "kind": kind}

	r.mu.Lock()
	if _, busy := r.pending[k]; busy {
		r.mu.Unlock()
		return CycleView{}, ErrActionInFlight
	}
	view, ok := r.views[k]
	if !ok {
		r.mu.Unlock()
		return CycleView{}, ErrUnknownCycle
	}
	if view.HasDueDate && view.DaysRemaining > 0 && !confirmEarly {
		current := *view
		r.mu.Unlock()
		return current, ErrActionNotYetDue
	}

	snapshot := *view
	r.applyOptimistic(view)
	r.pending[k] = struct{}{}
	r.mu.Unlock()

	confirmed, err := r.api.CompleteAction(ctx, subjectID, kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, k)

	if err != nil {
		snapshot.Phase = PhaseRolledBack
		r.views[k] = &snapshot
		r.log.WithFields(fields).WithError(err).Warn("Completion failed, optimistic state rolled back")
		return snapshot, fmt.Errorf("complete %s for subject %d: %w", kind, subjectID, err)
	}

	r.adopt(view, confirmed)
	r.log.WithFields(fields).Debug("Completion committed")
	return *view, nil
}

// applyOptimistic shows the action as done before the server answers.
func (r *Reconciler) applyOptimistic(v *CycleView) {
	now := r.clock()
	v.Phase = PhasePending
	v.Done = true
	v.LastActionDate = sql.NullTime{Time: now, Valid: true}
	next, ok, err := care.NextDueDate(v.LastActionDate, v.IntervalDays)
	if err != nil || !ok {
		v.Progress = 100
		return
	}
	v.HasDueDate = true
	v.NextDueDate = next
	v.DaysRemaining = care.DaysRemaining(next, now)
	v.Progress = care.ProgressPercentage(v.LastActionDate, next, now)
	v.Label = care.DisplayLabel(v.DaysRemaining)
}

// adopt replaces optimistic values with the server's.
func (r *Reconciler) adopt(v *CycleView, c Confirmed) {
	now := r.clock()
	v.Phase = PhaseCommitted
	v.Done = true
	v.LastActionDate = sql.NullTime{Time: c.LastActionDate, Valid: true}
	v.HasDueDate = true
	v.NextDueDate = c.NextDueDate
	v.DaysRemaining = care.DaysRemaining(c.NextDueDate, now)
	v.Progress = care.ProgressPercentage(v.LastActionDate, c.NextDueDate, now)
	v.Label = care.DisplayLabel(v.DaysRemaining)
}
