package owner

import (
	"context"
)

// Repository defines the operations for persisting and retrieving owners.
type Repository interface {
	Create(ctx context.Context, o *Owner) error
	GetByID(ctx context.Context, id int64) (*Owner, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Owner, error)
	ListActive(ctx context.Context) ([]*Owner, error)
}
