package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
)

// ContestFilter narrows ListContests to one view as of Now.
type ContestFilter struct {
	View           contest.ViewContext
	UserID         string // viewer; required for ViewMy
	Now            time.Time
	IncludePrivate bool
	Limit          int
	Offset         int
}

type ContestRepository interface {
	CreateContest(ctx context.Context, c *model.Contest) error
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error)
	ListContests(ctx context.Context, filter ContestFilter) ([]model.Contest, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) CreateContest(ctx context.Context, c *model.Contest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContestRepository.CreateContest begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO contests (id, slug, name, description, start_time, end_time, max_participants, is_public, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, c.ID, c.Slug, c.Name, c.Description, c.StartTime, c.EndTime,
		c.MaxParticipants, c.IsPublic, c.CreatedByID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}

	if len(c.Problems) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO contest_problems (contest_id, problem_id, marks, sort_order) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return fmt.Errorf("pgContestRepository.CreateContest prepare problems: %w", err)
		}
		defer stmt.Close()

		for i := range c.Problems {
			c.Problems[i].SortOrder = i + 1
			p := c.Problems[i]
			if _, err := stmt.ExecContext(ctx, c.ID, p.ProblemID, p.Marks, p.SortOrder); err != nil {
				if common.IsUniqueViolation(err) {
					return fmt.Errorf("problem %s listed twice: %w", p.ProblemID, common.ErrInvalidContestDefinition)
				}
				return fmt.Errorf("pgContestRepository.CreateContest exec for problem %s: %w", p.ProblemID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgContestRepository.CreateContest commit: %w", err)
	}
	return nil
}

const contestColumns = `c.id, c.slug, c.name, c.description, c.start_time, c.end_time,
               c.max_participants, c.is_public, c.created_by, c.created_at, c.updated_at,
               (SELECT COUNT(*) FROM contest_registrations r WHERE r.contest_id = c.id) AS participant_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContest(row rowScanner) (*model.Contest, error) {
	c := &model.Contest{}
	err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.StartTime, &c.EndTime,
		&c.MaxParticipants, &c.IsPublic, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt, &c.ParticipantCount)
	if err != nil {
		return nil, err
	}
	c.StartTime, c.EndTime = c.StartTime.UTC(), c.EndTime.UTC()
	return c, nil
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	return r.findOne(ctx, "c.id = $1", id, "FindContestByID")
}

func (r *pgContestRepository) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	return r.findOne(ctx, "c.slug = $1", slug, "FindContestBySlug")
}

func (r *pgContestRepository) findOne(ctx context.Context, where string, arg interface{}, op string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests c WHERE ` + where
	c, err := scanContest(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgContestRepository.%s: %w", op, err)
	}

	problems, err := r.problemsFor(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Problems = problems[c.ID]
	return c, nil
}

func (r *pgContestRepository) ListContests(ctx context.Context, f ContestFilter) ([]model.Contest, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + contestColumns + ` FROM contests c`)

	var conditions []string
	var args []interface{}
	argID := 1

	nextArg := func(v interface{}) string {
		args = append(args, v)
		placeholder := fmt.Sprintf("$%d", argID)
		argID++
		return placeholder
	}

	order := "c.start_time ASC"
	switch f.View {
	case contest.ViewCurrent:
		now := nextArg(f.Now)
		conditions = append(conditions, fmt.Sprintf("c.start_time <= %s AND c.end_time >= %s", now, now))
		order = "c.end_time ASC"
	case contest.ViewUpcoming:
		conditions = append(conditions, fmt.Sprintf("c.start_time > %s", nextArg(f.Now)))
	case contest.ViewPast:
		conditions = append(conditions, fmt.Sprintf("c.end_time < %s", nextArg(f.Now)))
		order = "c.end_time DESC"
	case contest.ViewMy:
		if f.UserID == "" {
			return nil, fmt.Errorf("my contests requires a user: %w", common.ErrUnauthorized)
		}
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM contest_registrations mr WHERE mr.contest_id = c.id AND mr.user_id = %s)", nextArg(f.UserID)))
		order = "c.start_time DESC"
	default:
		return nil, fmt.Errorf("unknown view %q: %w", f.View, common.ErrBadRequest)
	}

	if !f.IncludePrivate {
		if f.UserID != "" {
			conditions = append(conditions, fmt.Sprintf(
				"(c.is_public OR EXISTS (SELECT 1 FROM contest_registrations vr WHERE vr.contest_id = c.id AND vr.user_id = %s))", nextArg(f.UserID)))
		} else {
			conditions = append(conditions, "c.is_public")
		}
	}

	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY " + order + ", c.id")
	if f.Limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %s OFFSET %s", nextArg(f.Limit), nextArg(f.Offset)))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	var ids []string
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, *c)
		ids = append(ids, c.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests rows.Err: %w", err)
	}

	problems, err := r.problemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range contests {
		contests[i].Problems = problems[contests[i].ID]
	}
	return contests, nil
}

func (r *pgContestRepository) problemsFor(ctx context.Context, contestIDs []string) (map[string][]model.ContestProblem, error) {
	out := make(map[string][]model.ContestProblem, len(contestIDs))
	if len(contestIDs) == 0 {
		return out, nil
	}

	query := `SELECT contest_id, problem_id, marks, sort_order
	          FROM contest_problems WHERE contest_id = ANY($1) ORDER BY contest_id, sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, contestIDs)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.problemsFor query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var contestID string
		var p model.ContestProblem
		if err := rows.Scan(&contestID, &p.ProblemID, &p.Marks, &p.SortOrder); err != nil {
			return nil, fmt.Errorf("pgContestRepository.problemsFor scan: %w", err)
		}
		out[contestID] = append(out[contestID], p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.problemsFor rows.Err: %w", err)
	}
	return out, nil
}
