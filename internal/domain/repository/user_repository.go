package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Username, user.Email, user.HashedPassword, user.Role).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, "id", id)
}

// findBy looks a user up by one of the fixed, unique columns above.
func (r *pgUserRepository) findBy(ctx context.Context, column, value string) (*model.User, error) {
	query := `SELECT id, username, email, hashed_password, role, created_at, updated_at
	          FROM users WHERE ` + column + ` = $1`
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgUserRepository.FindBy %s: %w", column, err)
	}
	return user, nil
}
