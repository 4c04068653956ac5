package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"care_reminder_bot/internal/domain/care"
)

// CareRepository persists care subjects and their cycles.
type CareRepository struct {
	db *DB
}

func NewCareRepository(db *DB) *CareRepository {
	return &CareRepository{db: db}
}

const (
	subjectColumns = `id, owner_id, name, is_active, created_at, updated_at`
	cycleColumns   = `subject_id, action_kind, interval_days, last_action_date, updated_at`
)

func scanSubject(s scanner) (*care.Subject, error) {
	sub := &care.Subject{}
	if err := s.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func scanCycle(s scanner) (*care.Cycle, error) {
	c := &care.Cycle{}
	if err := s.Scan(&c.SubjectID, &c.Kind, &c.IntervalDays, &c.LastActionDate, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateSubject inserts the subject and its cycles in one transaction.
func (r *CareRepository) CreateSubject(ctx context.Context, s *care.Subject, cycles []*care.Cycle) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for subject create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	err = txn.QueryRowContext(ctx, r.db.Rebind(`INSERT INTO care_subjects (owner_id, name, is_active, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?)
               RETURNING id`),
		s.OwnerID, s.Name, s.IsActive, utc(s.CreatedAt), utc(s.UpdatedAt)).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("error creating care subject: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, r.db.Rebind(`INSERT INTO care_cycles (subject_id, action_kind, interval_days, last_action_date, updated_at)
               VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement for cycle create: %w", err)
	}
	defer stmt.Close()

	for _, c := range cycles {
		if c.IntervalDays <= 0 {
			return fmt.Errorf("cycle %s: %w", c.Kind, care.ErrInvalidInterval)
		}
		c.SubjectID = s.ID
		c.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, c.SubjectID, c.Kind, c.IntervalDays, utcNull(c.LastActionDate), utc(c.UpdatedAt)); err != nil {
			return fmt.Errorf("error creating cycle %s for subject %d: %w", c.Kind, s.ID, err)
		}
	}

	return txn.Commit()
}

func (r *CareRepository) GetSubjectByID(ctx context.Context, id int64) (*care.Subject, error) {
	query := r.db.Rebind(`SELECT ` + subjectColumns + ` FROM care_subjects WHERE id = ?`)
	s, err := scanSubject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, care.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("error getting care subject by ID: %w", err)
	}
	return s, nil
}

func (r *CareRepository) UpdateSubject(ctx context.Context, s *care.Subject) error {
	s.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE care_subjects SET name = ?, is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, s.Name, s.IsActive, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("error updating care subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return care.ErrSubjectNotFound
	}
	return nil
}

func (r *CareRepository) listSubjects(ctx context.Context, query string, args ...any) ([]*care.Subject, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying care subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]*care.Subject, 0)
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning care subject row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating care subject rows: %w", err)
	}
	return subjects, nil
}

func (r *CareRepository) ListActiveSubjects(ctx context.Context) ([]*care.Subject, error) {
	return r.listSubjects(ctx, `SELECT `+subjectColumns+` FROM care_subjects WHERE is_active = ? ORDER BY id`, true)
}

func (r *CareRepository) ListSubjectsByOwner(ctx context.Context, ownerID int64) ([]*care.Subject, error) {
	return r.listSubjects(ctx, `SELECT `+subjectColumns+` FROM care_subjects WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *CareRepository) listCycles(ctx context.Context, query string, args ...any) ([]*care.Cycle, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying care cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]*care.Cycle, 0)
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning care cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating care cycle rows: %w", err)
	}
	return cycles, nil
}

func (r *CareRepository) ListActiveCycles(ctx context.Context, kind care.ActionKind) ([]*care.Cycle, error) {
	return r.listCycles(ctx, `SELECT c.subject_id, c.action_kind, c.interval_days, c.last_action_date, c.updated_at
               FROM care_cycles c
               JOIN care_subjects s ON s.id = c.subject_id
               WHERE s.is_active = ? AND c.action_kind = ?
               ORDER BY c.subject_id`, true, kind)
}

func (r *CareRepository) ListCyclesBySubject(ctx context.Context, subjectID int64) ([]*care.Cycle, error) {
	return r.listCycles(ctx, `SELECT `+cycleColumns+` FROM care_cycles WHERE subject_id = ? ORDER BY action_kind DESC`, subjectID)
}

func (r *CareRepository) RecordAction(ctx context.Context, subjectID int64, kind care.ActionKind, at time.Time) (*care.Cycle, error) {
	query := r.db.Rebind(`UPDATE care_cycles SET last_action_date = ?, updated_at = ?
               WHERE subject_id = ? AND action_kind = ?
               RETURNING ` + cycleColumns)
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, utc(at), time.Now().UTC(), subjectID, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, care.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error recording %s for subject %d: %w", kind, subjectID, err)
	}
	return c, nil
}

func (r *CareRepository) UpdateInterval(ctx context.Context, subjectID int64, kind care.ActionKind, intervalDays int) (*care.Cycle, error) {
	if intervalDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", care.ErrInvalidInterval, intervalDays)
	}
	query := r.db.Rebind(`UPDATE care_cycles SET interval_days = ?, updated_at = ?
               WHERE subject_id = ? AND action_kind = ?
               RETURNING ` + cycleColumns)
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, intervalDays, time.Now().UTC(), subjectID, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, care.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error updating interval for subject %d %s: %w", subjectID, kind, err)
	}
	return c, nil
}
