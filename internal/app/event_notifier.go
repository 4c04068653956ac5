package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/notification"
)

// Event is something a user did that may deserve a notification: a like, a
// comment, a follow, an upload result.
type Event struct {
	Kind        notification.Kind
	RecipientID int64
	ActorID     sql.NullInt64
	SubjectID   sql.NullInt64
	Context     notification.TemplateContext
}

// EventNotifier turns events into notifications, suppressing repeats of the same
// (kind, subject, recipient) inside a sliding window.
type EventNotifier struct {
	guard *notification.Guard
	sink  *Sink
	clock Clock
	newID func() string
	log   *logrus.Entry
}

func NewEventNotifier(guard *notification.Guard, sink *Sink, log *logrus.Entry) *EventNotifier {
	return &EventNotifier{
		guard: guard,
		sink:  sink,
		clock: time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
		log:   log,
	}
}

// Notify stores a notification for ev. It returns nil without error when the
// event is suppressed: the actor is the recipient, or a matching notification
// already exists inside the window.
func (e *EventNotifier) Notify(ctx context.Context, ev Event) (*notification.Notification, error) {
	if ev.Kind.IsCycle() {
		return nil, fmt.Errorf("%w: %s", ErrNotEventKind, ev.Kind)
	}
	fields := logrus.Fields{"kind": ev.Kind, "recipient_id": ev.RecipientID}
	if ev.ActorID.Valid && ev.ActorID.Int64 == ev.RecipientID {
		e.log.WithFields(fields).Debug("Skipping self notification")
		return nil, nil
	}

	now := e.clock()
	r := notification.Render(ev.Kind, ev.Context)
	n := &notification.Notification{
		ID:          e.newID(),
		Kind:        ev.Kind,
		Title:       r.Title,
		Message:     r.Message,
		Link:        notification.LinkFor(ev.Kind, ev.SubjectID),
		RecipientID: ev.RecipientID,
		ActorID:     ev.ActorID,
		SubjectID:   ev.SubjectID,
		CreatedAt:   now,
	}

	allowed, err := e.guard.Allow(ctx, n, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransientWrite, err)
	}
	if !allowed {
		e.log.WithFields(fields).Debug("Event notification suppressed inside dedup window")
		return nil, nil
	}

	res := e.sink.Write(ctx, []*notification.Notification{n})
	if err := res.Err(); err != nil {
		return nil, err
	}
	if len(res.Inserted) == 0 {
		return nil, nil
	}
	return res.Inserted[0], nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
