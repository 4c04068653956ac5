// internal/domain/notification/repository.go
package notification

import (
	"context"
	"database/sql"
	"time"
)

// Finder is the read side the deduplication guard needs.
type Finder interface {
	FindRecentNotifications(ctx context.Context, kind Kind, subjectID sql.NullInt64, recipientID int64, since time.Time) ([]*Notification, error)
}

// Repository defines persistence for notifications.
type Repository interface {
	Finder

	// InsertNotifications writes the batch atomically. Rows that collide with the
	// scheduled uniqueness constraint are skipped, not failed; the returned slice
	// holds the rows that were actually inserted.
	InsertNotifications(ctx context.Context, batch []*Notification) ([]*Notification, error)

	CountUnread(ctx context.Context, recipientID int64) (int, error)
	ListUnread(ctx context.Context, recipientID int64, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID int64, id string) error
}
