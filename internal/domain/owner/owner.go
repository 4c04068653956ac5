package owner

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("owner not found")
	ErrDuplicateTelegramID = errors.New("owner with this Telegram ID already exists")
)

// Owner is the person who owns care subjects and receives their notifications.
// Recipient IDs on notifications are owner IDs.
type Owner struct {
	ID         int64
	TelegramID int64
	FirstName  string
	LastName   sql.NullString // optional
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName joins first and last name when the latter is known.
func (o *Owner) DisplayName() string {
	if o.LastName.Valid && o.LastName.String != "" {
		return o.FirstName + " " + o.LastName.String
	}
	return o.FirstName
}
