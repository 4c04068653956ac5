package client

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/infra/logger"
)

var now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when set, calls wait until it is closed
	entered chan struct{}
}

func (f *fakeAPI) CompleteAction(ctx context.Context, subjectID int64, kind care.ActionKind) (Confirmed, error) {
	f.mu.Lock()
	f.calls++
	block, entered, err := f.block, f.entered, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return Confirmed{}, err
	}
	return Confirmed{LastActionDate: now, NextDueDate: now.AddDate(0, 0, 7)}, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestReconciler(api ActionAPI) *Reconciler {
	r := NewReconciler(api, logger.Discard())
	r.clock = func() time.Time { return now }
	return r
}

func trackedView(subjectID int64, kind care.ActionKind, daysAgo, interval int) CycleView {
	c := &care.Cycle{
		SubjectID:      subjectID,
		Kind:           kind,
		IntervalDays:   interval,
		LastActionDate: sql.NullTime{Time: now.AddDate(0, 0, -daysAgo), Valid: true},
	}
	st, _ := care.Evaluate(c, now)
	return ViewFromState(subjectID, c, st)
}

func TestComplete_CommitsServerValues(t *testing.T) {
	api := &fakeAPI{}
	r := newTestReconciler(api)
	r.Track(trackedView(1, care.ActionWater, 9, 7))

	v, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, v.Phase)
	assert.True(t, v.Done)
	assert.True(t, v.NextDueDate.Equal(now.AddDate(0, 0, 7)))
	assert.Equal(t, 7, v.DaysRemaining)
	assert.Equal(t, 100, v.Progress)
	assert.Equal(t, "D-7", v.Label)
	assert.False(t, r.InFlight(1, care.ActionWater))
}

func TestComplete_EarlyCompletionNeedsConfirmation(t *testing.T) {
	api := &fakeAPI{}
	r := newTestReconciler(api)
	before := trackedView(1, care.ActionWater, 2, 7) // 5 days left
	r.Track(before)

	v, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	assert.ErrorIs(t, err, ErrActionNotYetDue)
	assert.Equal(t, before, v)
	assert.Zero(t, api.callCount(), "declined early completion never reaches the server")

	v, err = r.Complete(context.Background(), 1, care.ActionWater, true)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, v.Phase)
	assert.Equal(t, 1, api.callCount())
}

func TestComplete_UnknownLastActionNeedsNoConfirmation(t *testing.T) {
	r := newTestReconciler(&fakeAPI{})
	r.Track(CycleView{SubjectID: 1, Kind: care.ActionNutrient, IntervalDays: 30})

	v, err := r.Complete(context.Background(), 1, care.ActionNutrient, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, v.Phase)
}

func TestComplete_InterruptedNetworkRollsBack(t *testing.T) {
	// The server committed, but the response never arrived.
	api := &fakeAPI{err: context.DeadlineExceeded}
	r := newTestReconciler(api)
	before := trackedView(1, care.ActionWater, 8, 7)
	r.Track(before)

	v, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PhaseRolledBack, v.Phase)

	v.Phase = before.Phase
	assert.Equal(t, before, v, "state reverts to the pre-action snapshot")
	assert.False(t, r.InFlight(1, care.ActionWater))

	// Eligible for a retry.
	api.mu.Lock()
	api.err = nil
	api.mu.Unlock()
	v, err = r.Complete(context.Background(), 1, care.ActionWater, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, v.Phase)
}

func TestComplete_OptimisticStateWhilePending(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	r := newTestReconciler(api)
	r.Track(trackedView(1, care.ActionWater, 8, 7))

	done := make(chan error, 1)
	go func() {
		_, err := r.Complete(context.Background(), 1, care.ActionWater, false)
		done <- err
	}()
	<-api.entered

	v, ok := r.View(1, care.ActionWater)
	require.True(t, ok)
	assert.Equal(t, PhasePending, v.Phase)
	assert.True(t, v.Done)
	assert.Equal(t, 100, v.Progress)
	assert.True(t, r.InFlight(1, care.ActionWater))
	assert.False(t, r.Track(trackedView(1, care.ActionWater, 8, 7)), "refresh is ignored while pending")

	_, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	assert.ErrorIs(t, err, ErrActionInFlight)

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.callCount())
}

func TestComplete_PendingSetIsPerSubjectAndKind(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{}), entered: make(chan struct{}, 3)}
	r := newTestReconciler(api)
	r.Track(trackedView(1, care.ActionWater, 8, 7))
	r.Track(trackedView(1, care.ActionNutrient, 40, 30))
	r.Track(trackedView(2, care.ActionWater, 8, 7))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, k := range []struct {
		id   int64
		kind care.ActionKind
	}{{1, care.ActionWater}, {1, care.ActionNutrient}, {2, care.ActionWater}} {
		k := k
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Complete(context.Background(), k.id, k.kind, false)
			errs <- err
		}()
	}
	for i := 0; i < 3; i++ {
		<-api.entered
	}
	close(api.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, api.callCount())
}

func TestComplete_UntrackedCycle(t *testing.T) {
	r := newTestReconciler(&fakeAPI{})
	_, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	assert.ErrorIs(t, err, ErrUnknownCycle)
}

func TestComplete_ServerRejection(t *testing.T) {
	r := newTestReconciler(&fakeAPI{err: errors.New("subject inactive")})
	r.Track(trackedView(1, care.ActionWater, 8, 7))

	v, err := r.Complete(context.Background(), 1, care.ActionWater, false)
	assert.Error(t, err)
	assert.Equal(t, PhaseRolledBack, v.Phase)
	assert.False(t, v.Done)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "rolled_back", PhaseRolledBack.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
