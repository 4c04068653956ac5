package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt" // For error wrapping
	"time"

	"care_reminder_bot/internal/domain/owner"
)

type OwnerRepository struct {
	db *DB
}

func NewOwnerRepository(db *DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

const ownerColumns = `id, telegram_id, first_name, last_name, is_active, created_at, updated_at`

func scanOwner(s scanner) (*owner.Owner, error) {
	o := &owner.Owner{}
	if err := s.Scan(&o.ID, &o.TelegramID, &o.FirstName, &o.LastName, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OwnerRepository) Create(ctx context.Context, o *owner.Owner) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO owners (telegram_id, first_name, last_name, is_active, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)
               RETURNING id`)
	err := r.db.QueryRowContext(ctx, query, o.TelegramID, o.FirstName, o.LastName, o.IsActive, utc(o.CreatedAt), utc(o.UpdatedAt)).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return owner.ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating owner: %w", err)
	}
	return nil
}

func (r *OwnerRepository) GetByID(ctx context.Context, id int64) (*owner.Owner, error) {
	query := r.db.Rebind(`SELECT ` + ownerColumns + ` FROM owners WHERE id = ?`)
	o, err := scanOwner(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, owner.ErrNotFound
		}
		return nil, fmt.Errorf("error getting owner by ID: %w", err)
	}
	return o, nil
}

func (r *OwnerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*owner.Owner, error) {
	query := r.db.Rebind(`SELECT ` + ownerColumns + ` FROM owners WHERE telegram_id = ?`)
	o, err := scanOwner(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, owner.ErrNotFound
		}
		return nil, fmt.Errorf("error getting owner by Telegram ID: %w", err)
	}
	return o, nil
}

func (r *OwnerRepository) ListActive(ctx context.Context) ([]*owner.Owner, error) {
	query := r.db.Rebind(`SELECT ` + ownerColumns + ` FROM owners WHERE is_active = ? ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("error listing active owners: %w", err)
	}
	defer rows.Close()

	owners := make([]*owner.Owner, 0)
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active owners: %w", err)
	}
	return owners, nil
}
