package app

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/domain/owner"
	"care_reminder_bot/internal/infra/cache"
	"care_reminder_bot/internal/infra/database"
	"care_reminder_bot/internal/infra/logger"
)

// TestSweep_SQLite runs the sweep against the real schema, so the unique index is
// what stops repeats when the guard is bypassed by racing sweeps.
func TestSweep_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "care.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	owners := database.NewOwnerRepository(db)
	careRepo := database.NewCareRepository(db)
	notifs := database.NewNotificationRepository(db)

	o := &owner.Owner{TelegramID: 1, FirstName: "Mina", IsActive: true}
	require.NoError(t, owners.Create(ctx, o))
	require.NoError(t, careRepo.CreateSubject(ctx, &care.Subject{OwnerID: o.ID, Name: "A", IsActive: true}, []*care.Cycle{
		{Kind: care.ActionWater, IntervalDays: 7, LastActionDate: sql.NullTime{Time: day0.AddDate(0, 0, -7), Valid: true}},
	}))
	require.NoError(t, careRepo.CreateSubject(ctx, &care.Subject{OwnerID: o.ID, Name: "B", IsActive: true}, []*care.Cycle{
		{Kind: care.ActionWater, IntervalDays: 7, LastActionDate: sql.NullTime{Time: day0.AddDate(0, 0, -6), Valid: true}},
	}))

	c := cache.New(time.Hour)
	inbox := NewInboxService(notifs, c, logger.Discard())
	count, err := inbox.UnreadCount(ctx, o.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	sink := NewSink(notifs, c, 0, logger.Discard())
	newSweep := func() *SweepService {
		return NewSweepService(careRepo, notification.NewCalendarDayGuard(notifs, time.UTC), sink, time.UTC, logger.Discard())
	}

	const runs = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := newSweep().RunSweep(ctx, day0)
			assert.NoError(t, err)
			mu.Lock()
			total += s.Created
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, total)

	again, err := newSweep().RunSweep(ctx, day0)
	require.NoError(t, err)
	assert.Zero(t, again.Created)

	count, err = inbox.UnreadCount(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "sink invalidated the cached zero")
}
