package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"care_reminder_bot/internal/domain/notification"
)

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// columns differs per driver only in how dedup_day is read back: postgres stores
// a DATE, which would otherwise scan as a full timestamp string.
func (r *NotificationRepository) columns() string {
	day := "dedup_day"
	if r.db.Driver() == DriverPostgres {
		day = "to_char(dedup_day, 'YYYY-MM-DD')"
	}
	return `id, kind, title, message, link, recipient_id, actor_id, subject_id, ` + day + `, created_at, is_read`
}

func scanNotification(s scanner) (*notification.Notification, error) {
	n := &notification.Notification{}
	err := s.Scan(&n.ID, &n.Kind, &n.Title, &n.Message, &n.Link, &n.RecipientID,
		&n.ActorID, &n.SubjectID, &n.DedupDay, &n.CreatedAt, &n.IsRead)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return out, nil
}

// InsertNotifications writes the batch in a single transaction. Rows that hit the
// scheduled uniqueness key are skipped; everything else either commits together
// or not at all.
func (r *NotificationRepository) InsertNotifications(ctx context.Context, batch []*notification.Notification) ([]*notification.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for notification insert: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, r.db.Rebind(`INSERT INTO notifications
               (id, kind, title, message, link, recipient_id, actor_id, subject_id, dedup_day, created_at, is_read)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
               ON CONFLICT DO NOTHING`))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement for notification insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]*notification.Notification, 0, len(batch))
	for _, n := range batch {
		if n.ID == "" {
			n.ID = uuid.Must(uuid.NewV7()).String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		res, err := stmt.ExecContext(ctx, n.ID, n.Kind, n.Title, n.Message, n.Link, n.RecipientID,
			n.ActorID, n.SubjectID, n.DedupDay, utc(n.CreatedAt), n.IsRead)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("error inserting notification %s for recipient %d: %w", n.Kind, n.RecipientID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("error reading rows affected: %w", err)
		}
		if affected > 0 {
			inserted = append(inserted, n)
		}
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit notification batch: %w", err)
	}
	return inserted, nil
}

func (r *NotificationRepository) FindRecentNotifications(ctx context.Context, kind notification.Kind, subjectID sql.NullInt64, recipientID int64, since time.Time) ([]*notification.Notification, error) {
	query := `SELECT ` + r.columns() + ` FROM notifications WHERE kind = ? AND recipient_id = ? AND created_at >= ?`
	args := []any{kind, recipientID, utc(since)}
	if subjectID.Valid {
		query += ` AND subject_id = ?`
		args = append(args, subjectID.Int64)
	} else {
		query += ` AND subject_id IS NULL`
	}
	query += ` ORDER BY created_at DESC`
	return r.queryNotifications(ctx, query, args...)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?`)
	if err := r.db.QueryRowContext(ctx, query, recipientID, false).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting unread notifications for %d: %w", recipientID, err)
	}
	return count, nil
}

func (r *NotificationRepository) ListUnread(ctx context.Context, recipientID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.queryNotifications(ctx, `SELECT `+r.columns()+` FROM notifications
               WHERE recipient_id = ? AND is_read = ?
               ORDER BY created_at DESC, id DESC
               LIMIT ?`, recipientID, false, limit)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID int64, id string) error {
	query := r.db.Rebind(`UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_id = ?`)
	res, err := r.db.ExecContext(ctx, query, true, id, recipientID)
	if err != nil {
		return fmt.Errorf("error marking notification %s read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if affected == 0 {
		return notification.ErrNotFound
	}
	return nil
}
