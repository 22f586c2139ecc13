package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id              TEXT PRIMARY KEY,
        username        TEXT NOT NULL UNIQUE,
        email           TEXT NOT NULL UNIQUE,
        hashed_password TEXT NOT NULL,
        role            TEXT NOT NULL DEFAULT 'user',
        created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS contests (
        id               TEXT PRIMARY KEY,
        slug             TEXT NOT NULL UNIQUE,
        name             TEXT NOT NULL,
        description      TEXT NOT NULL DEFAULT '',
        start_time       TIMESTAMPTZ NOT NULL,
        end_time         TIMESTAMPTZ NOT NULL,
        max_participants INTEGER NOT NULL DEFAULT 0 CHECK (max_participants >= 0),
        is_public        BOOLEAN NOT NULL DEFAULT TRUE,
        created_by       TEXT REFERENCES users(id),
        created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
        CONSTRAINT contests_window CHECK (start_time < end_time)
    )`,
	`CREATE TABLE IF NOT EXISTS contest_problems (
        contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
        problem_id TEXT NOT NULL,
        marks      INTEGER NOT NULL CHECK (marks > 0),
        sort_order INTEGER NOT NULL,
        PRIMARY KEY (contest_id, problem_id)
    )`,
	`CREATE TABLE IF NOT EXISTS contest_registrations (
        user_id       TEXT NOT NULL,
        contest_id    TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
        registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (user_id, contest_id)
    )`,
	`CREATE INDEX IF NOT EXISTS contest_registrations_contest_idx ON contest_registrations (contest_id)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
        seq                BIGSERIAL,
        id                 TEXT PRIMARY KEY,
        user_id            TEXT NOT NULL,
        contest_id         TEXT NOT NULL REFERENCES contests(id),
        recorded_at        TIMESTAMPTZ NOT NULL,
        old_rating         INTEGER NOT NULL CHECK (old_rating >= 0),
        new_rating         INTEGER NOT NULL CHECK (new_rating >= 0),
        rating_change      INTEGER NOT NULL,
        rank               INTEGER NOT NULL CHECK (rank >= 1),
        total_participants INTEGER NOT NULL CHECK (total_participants >= rank),
        CONSTRAINT rating_history_once UNIQUE (user_id, contest_id),
        CONSTRAINT rating_history_change CHECK (rating_change = new_rating - old_rating)
    )`,
	`CREATE INDEX IF NOT EXISTS rating_history_user_idx ON rating_history (user_id, recorded_at, seq)`,
	`CREATE TABLE IF NOT EXISTS contest_problem_results (
        user_id           TEXT NOT NULL,
        contest_id        TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
        problem_id        TEXT NOT NULL,
        status            TEXT NOT NULL,
        test_cases_passed INTEGER NOT NULL DEFAULT 0,
        total_test_cases  INTEGER NOT NULL DEFAULT 0,
        marks_awarded     INTEGER NOT NULL DEFAULT 0,
        max_marks         INTEGER NOT NULL DEFAULT 0,
        runtime_ms        INTEGER NOT NULL DEFAULT 0,
        judged_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (user_id, contest_id, problem_id)
    )`,
}

// EnsureSchema creates the contest tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database.EnsureSchema statement %d: %w", i, err)
		}
	}
	return nil
}
