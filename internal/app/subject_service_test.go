package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/infra/logger"
)

func newTestSubjectService(store *memStore) *SubjectService {
	s := NewSubjectService(store, store, logger.Discard())
	s.clock = fixedClock(day0)
	return s
}

func TestRegisterOwner_IsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestSubjectService(store)
	ctx := context.Background()

	o, created, err := svc.RegisterOwner(ctx, 555, "Mina", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, o.LastName.Valid)

	again, created, err := svc.RegisterOwner(ctx, 555, "Mina", "Park")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, o.ID, again.ID)

	_, err = svc.OwnerByTelegramID(ctx, 777)
	assert.ErrorIs(t, err, ErrOwnerNotRegistered)
}

func TestAddSubject_Validation(t *testing.T) {
	svc := newTestSubjectService(newMemStore())
	ctx := context.Background()

	_, err := svc.AddSubject(ctx, 1, "  ", map[care.ActionKind]int{care.ActionWater: 3})
	assert.ErrorIs(t, err, ErrEmptySubjectName)

	_, err = svc.AddSubject(ctx, 1, "Fern", nil)
	assert.ErrorIs(t, err, ErrNoCycles)

	_, err = svc.AddSubject(ctx, 1, "Fern", map[care.ActionKind]int{care.ActionWater: 0})
	assert.ErrorIs(t, err, care.ErrInvalidInterval)

	_, err = svc.AddSubject(ctx, 1, "Fern", map[care.ActionKind]int{"PRUNE": 3})
	assert.ErrorIs(t, err, care.ErrUnknownActionKind)
}

func TestSubjectLifecycle(t *testing.T) {
	store := newMemStore()
	svc := newTestSubjectService(store)
	ctx := context.Background()

	sub, err := svc.AddSubject(ctx, 1, " Fern ", map[care.ActionKind]int{care.ActionWater: 3, care.ActionNutrient: 30})
	require.NoError(t, err)
	assert.Equal(t, "Fern", sub.Name)

	views, err := svc.ListSubjects(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].States, 2)
	assert.Equal(t, care.StatusUnknown, views[0].States[0].Status)

	_, err = svc.UpdateInterval(ctx, 2, sub.ID, care.ActionWater, 5)
	assert.ErrorIs(t, err, ErrSubjectNotOwned)

	_, err = svc.UpdateInterval(ctx, 1, sub.ID, care.ActionWater, -2)
	assert.ErrorIs(t, err, care.ErrInvalidInterval)

	c, err := svc.UpdateInterval(ctx, 1, sub.ID, care.ActionWater, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.IntervalDays)

	_, err = svc.DeactivateSubject(ctx, 1, sub.ID)
	require.NoError(t, err)
	_, err = svc.DeactivateSubject(ctx, 1, sub.ID)
	assert.ErrorIs(t, err, ErrSubjectAlreadyInactive)

	views, err = svc.ListSubjects(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, views)
}
