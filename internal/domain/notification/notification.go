package notification

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DayLayout formats the calendar day used by the scheduled uniqueness constraint.
const DayLayout = "2006-01-02"

var (
	// ErrDuplicateNotification is a uniqueness violation at insert time. The sink
	// treats it as "already notified"; it is never surfaced to callers.
	ErrDuplicateNotification = errors.New("duplicate notification")
	ErrNotFound              = errors.New("notification not found")
)

// Notification is a persisted, recipient-scoped message. Only IsRead changes after
// creation.
type Notification struct {
	ID          string
	Kind        Kind
	Title       string
	Message     string
	Link        string
	RecipientID int64
	ActorID     sql.NullInt64
	SubjectID   sql.NullInt64
	// DedupDay is set for scheduled notifications only; together with kind, subject
	// and recipient it forms the unique key enforced by storage.
	DedupDay  sql.NullString
	CreatedAt time.Time
	IsRead    bool
}

// ScheduledDay returns the DedupDay value for a scheduled notification created at t.
func ScheduledDay(t time.Time) sql.NullString {
	return sql.NullString{String: t.Format(DayLayout), Valid: true}
}

// LinkFor builds the in-app link a notification points at.
func LinkFor(kind Kind, subjectID sql.NullInt64) string {
	switch {
	case kind.IsCycle() && subjectID.Valid:
		return fmt.Sprintf("/subjects/%d", subjectID.Int64)
	case (kind == KindLike || kind == KindComment || kind == KindModerationStatus ||
		kind == KindUploadSuccess || kind == KindUploadFailure) && subjectID.Valid:
		return fmt.Sprintf("/content/%d", subjectID.Int64)
	case kind == KindNewFollower:
		return "/followers"
	case kind == KindLevelUp:
		return "/profile"
	default:
		return "/notifications"
	}
}
