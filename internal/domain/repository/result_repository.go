package repository

import (
	"context"
	"database/sql"
	"fmt"
	"tle_zone_contest/internal/domain/model"
)

// ResultRepository holds the judge's per-problem verdicts for contests.
type ResultRepository interface {
	// UpsertProblemResults replaces the stored verdict for each
	// (user, contest, problem) in results.
	UpsertProblemResults(ctx context.Context, results []model.ProblemResult) error
	ListContestResults(ctx context.Context, contestID string) ([]model.ProblemResult, error)
	ListUserResults(ctx context.Context, userID, contestID string) ([]model.ProblemResult, error)
}

type pgResultRepository struct {
	db *sql.DB
}

func NewPgResultRepository(db *sql.DB) ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) UpsertProblemResults(ctx context.Context, results []model.ProblemResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgResultRepository.UpsertProblemResults begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO contest_problem_results
            (user_id, contest_id, problem_id, status, test_cases_passed, total_test_cases, marks_awarded, max_marks, runtime_ms, judged_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (user_id, contest_id, problem_id) DO UPDATE SET
            status = EXCLUDED.status,
            test_cases_passed = EXCLUDED.test_cases_passed,
            total_test_cases = EXCLUDED.total_test_cases,
            marks_awarded = EXCLUDED.marks_awarded,
            max_marks = EXCLUDED.max_marks,
            runtime_ms = EXCLUDED.runtime_ms,
            judged_at = EXCLUDED.judged_at`)
	if err != nil {
		return fmt.Errorf("pgResultRepository.UpsertProblemResults prepare: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		_, err := stmt.ExecContext(ctx, res.UserID, res.ContestID, res.ProblemID, res.Status, res.TestCasesPassed,
			res.TotalTestCases, res.MarksAwarded, res.MaxMarks, res.RuntimeMs, res.JudgedAt)
		if err != nil {
			return fmt.Errorf("pgResultRepository.UpsertProblemResults exec for %s/%s: %w", res.UserID, res.ProblemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgResultRepository.UpsertProblemResults commit: %w", err)
	}
	return nil
}

const resultColumns = `user_id, contest_id, problem_id, status, test_cases_passed, total_test_cases, marks_awarded, max_marks, runtime_ms, judged_at`

func (r *pgResultRepository) ListContestResults(ctx context.Context, contestID string) ([]model.ProblemResult, error) {
	query := `SELECT ` + resultColumns + ` FROM contest_problem_results WHERE contest_id = $1 ORDER BY user_id, problem_id`
	return r.list(ctx, "ListContestResults", query, contestID)
}

func (r *pgResultRepository) ListUserResults(ctx context.Context, userID, contestID string) ([]model.ProblemResult, error) {
	query := `SELECT ` + resultColumns + ` FROM contest_problem_results WHERE user_id = $1 AND contest_id = $2 ORDER BY problem_id`
	return r.list(ctx, "ListUserResults", query, userID, contestID)
}

func (r *pgResultRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]model.ProblemResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgResultRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	var results []model.ProblemResult
	for rows.Next() {
		var res model.ProblemResult
		if err := rows.Scan(&res.UserID, &res.ContestID, &res.ProblemID, &res.Status, &res.TestCasesPassed,
			&res.TotalTestCases, &res.MarksAwarded, &res.MaxMarks, &res.RuntimeMs, &res.JudgedAt); err != nil {
			return nil, fmt.Errorf("pgResultRepository.%s scan: %w", op, err)
		}
		res.JudgedAt = res.JudgedAt.UTC()
		results = append(results, res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgResultRepository.%s rows.Err: %w", op, err)
	}
	return results, nil
}
