package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/domain/owner"
)

// memStore is an in-memory stand-in for the SQL repositories. It enforces the
// same scheduled uniqueness key as the real schema.
type memStore struct {
	mu sync.Mutex

	owners        map[int64]*owner.Owner
	subjects      map[int64]*care.Subject
	cycles        map[int64][]*care.Cycle
	notifications []*notification.Notification
	nextID        int64

	// failure injection
	insertErr    error
	insertCalls  int
	failInsertOn int // 1-based call number that fails with insertErr, 0 = every call
	findErr      error
	cyclesErr    map[care.ActionKind]error
	recordErr    error
	afterFind    func()
}

func newMemStore() *memStore {
	return &memStore{
		owners:    make(map[int64]*owner.Owner),
		subjects:  make(map[int64]*care.Subject),
		cycles:    make(map[int64][]*care.Cycle),
		cyclesErr: make(map[care.ActionKind]error),
	}
}

func (m *memStore) addSubject(ownerID int64, name string, cycles ...*care.Cycle) *care.Subject {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &care.Subject{ID: m.nextID, OwnerID: ownerID, Name: name, IsActive: true}
	m.subjects[s.ID] = s
	for _, c := range cycles {
		c.SubjectID = s.ID
	}
	m.cycles[s.ID] = cycles
	return s
}

func lastAction(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

// --- owner.Repository

func (m *memStore) Create(_ context.Context, o *owner.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.owners {
		if existing.TelegramID == o.TelegramID {
			return owner.ErrDuplicateTelegramID
		}
	}
	m.nextID++
	o.ID = m.nextID
	cp := *o
	m.owners[o.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*owner.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, owner.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetByTelegramID(_ context.Context, telegramID int64) (*owner.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.owners {
		if o.TelegramID == telegramID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, owner.ErrNotFound
}

func (m *memStore) ListActive(_ context.Context) ([]*owner.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*owner.Owner
	for _, o := range m.owners {
		if o.IsActive {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- care.Repository

func (m *memStore) CreateSubject(_ context.Context, s *care.Subject, cycles []*care.Cycle) error {
	for _, c := range cycles {
		if c.IntervalDays <= 0 {
			return care.ErrInvalidInterval
		}
	}
	created := m.addSubject(s.OwnerID, s.Name, cycles...)
	s.ID = created.ID
	s.IsActive = created.IsActive
	return nil
}

func (m *memStore) GetSubjectByID(_ context.Context, id int64) (*care.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, care.ErrSubjectNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateSubject(_ context.Context, s *care.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[s.ID]; !ok {
		return care.ErrSubjectNotFound
	}
	cp := *s
	m.subjects[s.ID] = &cp
	return nil
}

func (m *memStore) ListActiveSubjects(_ context.Context) ([]*care.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*care.Subject
	for _, s := range m.subjects {
		if s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListSubjectsByOwner(_ context.Context, ownerID int64) ([]*care.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*care.Subject
	for _, s := range m.subjects {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListActiveCycles returns cycles whose subject is active, plus any cycle whose
// subject row is missing, so tests can simulate a subject vanishing mid-sweep.
func (m *memStore) ListActiveCycles(_ context.Context, kind care.ActionKind) ([]*care.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.cyclesErr[kind]; err != nil {
		return nil, err
	}
	var out []*care.Cycle
	for subjectID, cycles := range m.cycles {
		if s, ok := m.subjects[subjectID]; ok && !s.IsActive {
			continue
		}
		for _, c := range cycles {
			if c.Kind == kind {
				cp := *c
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (m *memStore) ListCyclesBySubject(_ context.Context, subjectID int64) ([]*care.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*care.Cycle
	for _, c := range m.cycles[subjectID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) findCycle(subjectID int64, kind care.ActionKind) (*care.Cycle, error) {
	for _, c := range m.cycles[subjectID] {
		if c.Kind == kind {
			return c, nil
		}
	}
	return nil, care.ErrCycleNotFound
}

func (m *memStore) RecordAction(_ context.Context, subjectID int64, kind care.ActionKind, at time.Time) (*care.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	c, err := m.findCycle(subjectID, kind)
	if err != nil {
		return nil, err
	}
	c.LastActionDate = lastAction(at)
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdateInterval(_ context.Context, subjectID int64, kind care.ActionKind, intervalDays int) (*care.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.findCycle(subjectID, kind)
	if err != nil {
		return nil, err
	}
	c.IntervalDays = intervalDays
	cp := *c
	return &cp, nil
}

// --- notification.Repository

func scheduledKey(n *notification.Notification) string {
	return fmt.Sprintf("%s|%v|%d|%s", n.Kind, n.SubjectID, n.RecipientID, n.DedupDay.String)
}

func (m *memStore) InsertNotifications(_ context.Context, batch []*notification.Notification) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil && (m.failInsertOn == 0 || m.failInsertOn == m.insertCalls) {
		return nil, m.insertErr
	}

	taken := make(map[string]bool)
	for _, n := range m.notifications {
		if n.DedupDay.Valid {
			taken[scheduledKey(n)] = true
		}
	}
	var inserted []*notification.Notification
	for _, n := range batch {
		if n.DedupDay.Valid {
			key := scheduledKey(n)
			if taken[key] {
				continue
			}
			taken[key] = true
		}
		cp := *n
		m.notifications = append(m.notifications, &cp)
		inserted = append(inserted, n)
	}
	return inserted, nil
}

func (m *memStore) FindRecentNotifications(_ context.Context, kind notification.Kind, subjectID sql.NullInt64, recipientID int64, since time.Time) ([]*notification.Notification, error) {
	m.mu.Lock()
	var out []*notification.Notification
	err := m.findErr
	if err == nil {
		for _, n := range m.notifications {
			if n.Kind == kind && n.SubjectID == subjectID && n.RecipientID == recipientID && !n.CreatedAt.Before(since) {
				out = append(out, n)
			}
		}
	}
	hook := m.afterFind
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, err
}

func (m *memStore) CountUnread(_ context.Context, recipientID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListUnread(_ context.Context, recipientID int64, limit int) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Notification
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.notifications[i]
		if n.RecipientID == recipientID && !n.IsRead {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, recipientID int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return notification.ErrNotFound
}

func (m *memStore) stored() []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*notification.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// recordingInvalidator counts invalidations per recipient.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls map[int64]int
	err   error
}

func newRecordingInvalidator() *recordingInvalidator {
	return &recordingInvalidator{calls: make(map[int64]int)}
}

func (r *recordingInvalidator) Invalidate(_ context.Context, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[recipientID]++
	return r.err
}

func (r *recordingInvalidator) count(recipientID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[recipientID]
}

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []*notification.Notification
}

func (d *recordingDeliverer) Deliver(_ context.Context, batch []*notification.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, batch...)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("n-%04d", n)
	}
}
