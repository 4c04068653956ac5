package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"care_reminder_bot/internal/domain/notification"
)

const (
	defaultInsertBatchSize  = 500
	defaultInvalidateFanOut = 8
)

// Inserter is the write side of notification storage.
type Inserter interface {
	InsertNotifications(ctx context.Context, batch []*notification.Notification) ([]*notification.Notification, error)
}

// Invalidator drops cached views scoped to one recipient.
type Invalidator interface {
	Invalidate(ctx context.Context, recipientID int64) error
}

// Deliverer pushes freshly stored notifications to an outside channel.
// Delivery is best-effort and never affects what was stored.
type Deliverer interface {
	Deliver(ctx context.Context, batch []*notification.Notification)
}

// WriteResult is the outcome of one Sink.Write call.
type WriteResult struct {
	Inserted   []*notification.Notification
	Duplicates int     // rows skipped by the storage uniqueness constraint
	Failures   []error // failed chunks, each wrapping ErrTransientWrite
}

// Err joins all chunk failures, nil when every chunk committed.
func (r WriteResult) Err() error {
	return errors.Join(r.Failures...)
}

// Sink persists notifications and then invalidates the recipients it touched.
type Sink struct {
	store       Inserter
	invalidator Invalidator
	deliverer   Deliverer
	batchSize   int
	fanOut      int
	log         *logrus.Entry
}

func NewSink(store Inserter, invalidator Invalidator, batchSize int, log *logrus.Entry) *Sink {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	return &Sink{
		store:       store,
		invalidator: invalidator,
		batchSize:   batchSize,
		fanOut:      defaultInvalidateFanOut,
		log:         log,
	}
}

// SetDeliverer attaches a push channel invoked after invalidation.
func (s *Sink) SetDeliverer(d Deliverer) {
	s.deliverer = d
}

// Write stores batch in chunks. Each chunk is atomic; a failed chunk is recorded
// and the remaining chunks are still attempted. Collisions with already stored
// notifications count as duplicates, not failures.
func (s *Sink) Write(ctx context.Context, batch []*notification.Notification) WriteResult {
	var res WriteResult
	if len(batch) == 0 {
		return res
	}

	for start := 0; start < len(batch); start += s.batchSize {
		end := min(start+s.batchSize, len(batch))
		chunk := batch[start:end]

		inserted, err := s.store.InsertNotifications(ctx, chunk)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"chunk_start": start,
				"chunk_size":  len(chunk),
			}).WithError(err).Error("Failed to persist notification chunk")
			res.Failures = append(res.Failures, fmt.Errorf("%w: rows %d-%d: %w", ErrTransientWrite, start, end-1, err))
			continue
		}
		res.Inserted = append(res.Inserted, inserted...)
		res.Duplicates += len(chunk) - len(inserted)
	}

	if len(res.Inserted) == 0 {
		return res
	}

	s.invalidate(ctx, res.Inserted)

	if s.deliverer != nil {
		s.deliverer.Deliver(ctx, res.Inserted)
	}
	return res
}

// invalidate runs after the write has committed. Failures are logged only:
// cached views also expire on their own.
func (s *Sink) invalidate(ctx context.Context, written []*notification.Notification) {
	if s.invalidator == nil {
		return
	}

	seen := make(map[int64]struct{}, len(written))
	var g errgroup.Group
	g.SetLimit(s.fanOut)
	for _, n := range written {
		recipientID := n.RecipientID
		if _, ok := seen[recipientID]; ok {
			continue
		}
		seen[recipientID] = struct{}{}
		g.Go(func() error {
			if err := s.invalidator.Invalidate(ctx, recipientID); err != nil {
				s.log.WithField("recipient_id", recipientID).WithError(err).Warn("Cache invalidation failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}
