package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
)

type RegistrationRepository interface {
	// Register inserts reg. It returns common.ErrAlreadyRegistered when the
	// (user, contest) row exists and common.ErrContestFull when capacity is reached.
	Register(ctx context.Context, reg *model.Registration) error
	IsRegistered(ctx context.Context, userID, contestID string) (bool, error)
	ListParticipants(ctx context.Context, contestID string) ([]string, error)
}

type pgRegistrationRepository struct {
	db *sql.DB
}

func NewPgRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &pgRegistrationRepository{db: db}
}

func (r *pgRegistrationRepository) Register(ctx context.Context, reg *model.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgRegistrationRepository.Register begin: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the contest serializes capacity checks for it.
	var maxParticipants int
	err = tx.QueryRowContext(ctx, `SELECT max_participants FROM contests WHERE id = $1 FOR UPDATE`, reg.ContestID).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("contest %s: %w", reg.ContestID, common.ErrNotFound)
		}
		return fmt.Errorf("pgRegistrationRepository.Register lock contest: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contest_registrations WHERE user_id = $1 AND contest_id = $2)`,
		reg.UserID, reg.ContestID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("pgRegistrationRepository.Register exists: %w", err)
	}
	if exists {
		return common.ErrAlreadyRegistered
	}

	if maxParticipants > 0 {
		var count int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contest_registrations WHERE contest_id = $1`, reg.ContestID).Scan(&count)
		if err != nil {
			return fmt.Errorf("pgRegistrationRepository.Register count: %w", err)
		}
		if count >= maxParticipants {
			return common.ErrContestFull
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO contest_registrations (user_id, contest_id, registered_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, contest_id) DO NOTHING`,
		reg.UserID, reg.ContestID, reg.RegisteredAt)
	if err != nil {
		return fmt.Errorf("pgRegistrationRepository.Register insert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrAlreadyRegistered
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgRegistrationRepository.Register commit: %w", err)
	}
	return nil
}

func (r *pgRegistrationRepository) IsRegistered(ctx context.Context, userID, contestID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contest_registrations WHERE user_id = $1 AND contest_id = $2)`,
		userID, contestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgRegistrationRepository.IsRegistered: %w", err)
	}
	return exists, nil
}

func (r *pgRegistrationRepository) ListParticipants(ctx context.Context, contestID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM contest_registrations WHERE contest_id = $1 ORDER BY registered_at ASC, user_id ASC`, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgRegistrationRepository.ListParticipants query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgRegistrationRepository.ListParticipants scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgRegistrationRepository.ListParticipants rows.Err: %w", err)
	}
	return ids, nil
}
