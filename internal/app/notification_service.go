// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/notification"
)

const defaultInboxLimit = 10

// InboxCache is the per-recipient cache in front of unread reads.
type InboxCache interface {
	Invalidator
	Get(recipientID int64, key string) (any, bool)
	Set(recipientID int64, key string, value any)
}

// InboxService serves a recipient's unread notifications. Reads go through the
// cache; the Sink invalidates it after every write.
type InboxService struct {
	repo  notification.Repository
	cache InboxCache
	log   *logrus.Entry
}

func NewInboxService(repo notification.Repository, cache InboxCache, log *logrus.Entry) *InboxService {
	return &InboxService{repo: repo, cache: cache, log: log}
}

const unreadCountKey = "unread_count"

func unreadListKey(limit int) string { return fmt.Sprintf("unread_list:%d", limit) }

func (s *InboxService) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	if v, ok := s.cache.Get(recipientID, unreadCountKey); ok {
		if n, ok := v.(int); ok {
			return n, nil
		}
	}
	n, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	s.cache.Set(recipientID, unreadCountKey, n)
	return n, nil
}

// ListUnread returns up to limit unread notifications, newest first.
func (s *InboxService) ListUnread(ctx context.Context, recipientID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	key := unreadListKey(limit)
	if v, ok := s.cache.Get(recipientID, key); ok {
		if list, ok := v.([]*notification.Notification); ok {
			return list, nil
		}
	}
	list, err := s.repo.ListUnread(ctx, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	s.cache.Set(recipientID, key, list)
	return list, nil
}

// MarkRead flips one notification to read and drops the recipient's cached views.
func (s *InboxService) MarkRead(ctx context.Context, recipientID int64, id string) error {
	if err := s.repo.MarkRead(ctx, recipientID, id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTransientWrite, err)
	}
	if err := s.cache.Invalidate(ctx, recipientID); err != nil {
		s.log.WithField("recipient_id", recipientID).WithError(err).Warn("Cache invalidation after mark-read failed")
	}
	return nil
}
