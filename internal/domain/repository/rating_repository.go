package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
)

// RatingRepository stores the append-only rating history. There is no update
// or delete.
type RatingRepository interface {
	// InsertEntry returns common.ErrRatingAlreadyRecorded if (user, contest) exists.
	InsertEntry(ctx context.Context, e *model.RatingHistoryEntry) error
	FindEntry(ctx context.Context, userID, contestID string) (*model.RatingHistoryEntry, error)
	LatestEntry(ctx context.Context, userID string) (*model.RatingHistoryEntry, error)
	ListHistory(ctx context.Context, userID string) ([]model.RatingHistoryEntry, error)
}

type pgRatingRepository struct {
	db *sql.DB
}

func NewPgRatingRepository(db *sql.DB) RatingRepository {
	return &pgRatingRepository{db: db}
}

const ratingColumns = `id, user_id, contest_id, recorded_at, old_rating, new_rating, rating_change, rank, total_participants`

func scanRating(row rowScanner) (*model.RatingHistoryEntry, error) {
	e := &model.RatingHistoryEntry{}
	if err := row.Scan(&e.ID, &e.UserID, &e.ContestID, &e.Date, &e.OldRating, &e.NewRating,
		&e.RatingChange, &e.Rank, &e.TotalParticipants); err != nil {
		return nil, err
	}
	e.Date = e.Date.UTC()
	return e, nil
}

func (r *pgRatingRepository) InsertEntry(ctx context.Context, e *model.RatingHistoryEntry) error {
	query := `INSERT INTO rating_history (` + ratingColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.ContestID, e.Date, e.OldRating, e.NewRating,
		e.RatingChange, e.Rank, e.TotalParticipants)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrRatingAlreadyRecorded
		}
		return fmt.Errorf("pgRatingRepository.InsertEntry: %w", err)
	}
	return nil
}

func (r *pgRatingRepository) FindEntry(ctx context.Context, userID, contestID string) (*model.RatingHistoryEntry, error) {
	query := `SELECT ` + ratingColumns + ` FROM rating_history WHERE user_id = $1 AND contest_id = $2`
	e, err := scanRating(r.db.QueryRowContext(ctx, query, userID, contestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRatingRepository.FindEntry: %w", err)
	}
	return e, nil
}

func (r *pgRatingRepository) LatestEntry(ctx context.Context, userID string) (*model.RatingHistoryEntry, error) {
	query := `SELECT ` + ratingColumns + ` FROM rating_history WHERE user_id = $1
	          ORDER BY recorded_at DESC, seq DESC LIMIT 1`
	e, err := scanRating(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRatingRepository.LatestEntry: %w", err)
	}
	return e, nil
}

func (r *pgRatingRepository) ListHistory(ctx context.Context, userID string) ([]model.RatingHistoryEntry, error) {
	query := `SELECT ` + ratingColumns + ` FROM rating_history WHERE user_id = $1 ORDER BY recorded_at ASC, seq ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgRatingRepository.ListHistory query: %w", err)
	}
	defer rows.Close()

	history := []model.RatingHistoryEntry{}
	for rows.Next() {
		e, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("pgRatingRepository.ListHistory scan: %w", err)
		}
		history = append(history, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgRatingRepository.ListHistory rows.Err: %w", err)
	}
	return history, nil
}
