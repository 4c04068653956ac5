package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/domain/owner"
)

// Sweeper runs one sweep on demand.
type Sweeper interface {
	RunSweep(ctx context.Context, now time.Time) (*SweepSummary, error)
}

// AdminService holds operations restricted to the configured admin account.
type AdminService struct {
	ownerRepo       owner.Repository
	sink            *Sink
	sweeper         Sweeper
	adminTelegramID int64
	clock           Clock
	newID           func() string
	log             *logrus.Entry
}

func NewAdminService(or owner.Repository, sink *Sink, sweeper Sweeper, adminID int64, log *logrus.Entry) *AdminService {
	return &AdminService{
		ownerRepo:       or,
		sink:            sink,
		sweeper:         sweeper,
		adminTelegramID: adminID,
		clock:           time.Now,
		newID:           func() string { return uuid.Must(uuid.NewV7()).String() },
		log:             log,
	}
}

func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// Broadcast sends an announcement to every active owner.
func (s *AdminService) Broadcast(ctx context.Context, performingAdminID int64, title, message string) (WriteResult, error) {
	if !s.IsAdmin(performingAdminID) {
		return WriteResult{}, ErrAdminNotAuthorized
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return WriteResult{}, fmt.Errorf("broadcast message must not be empty")
	}

	owners, err := s.ownerRepo.ListActive(ctx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to list active owners: %w", err)
	}

	now := s.clock()
	r := notification.Render(notification.KindBroadcast, notification.BroadcastContext{Title: title, Message: message})
	link := notification.LinkFor(notification.KindBroadcast, sql.NullInt64{})
	batch := make([]*notification.Notification, 0, len(owners))
	for _, o := range owners {
		batch = append(batch, &notification.Notification{
			ID:          s.newID(),
			Kind:        notification.KindBroadcast,
			Title:       r.Title,
			Message:     r.Message,
			Link:        link,
			RecipientID: o.ID,
			CreatedAt:   now,
		})
	}

	res := s.sink.Write(ctx, batch)
	s.log.WithFields(logrus.Fields{
		"recipients": len(owners),
		"inserted":   len(res.Inserted),
		"failures":   len(res.Failures),
	}).Info("Broadcast written")
	return res, res.Err()
}

// TriggerSweep runs a sweep immediately at the current instant.
func (s *AdminService) TriggerSweep(ctx context.Context, performingAdminID int64) (*SweepSummary, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.sweeper.RunSweep(ctx, s.clock())
}
