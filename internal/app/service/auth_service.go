package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/common/security"
	"tle_zone_contest/internal/domain/model"
	"tle_zone_contest/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

const minPasswordLength = 8

type AuthService struct {
	userRepo  repository.UserRepository
	tokenAuth *jwtauth.JWTAuth
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokenAuth *jwtauth.JWTAuth, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, tokenAuth: tokenAuth, tokenTTL: tokenTTL, logger: logger}
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	LoginField string `json:"login_field"` // username or email
	Password   string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("username, email and password are required: %w", common.ErrBadRequest)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", common.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrValidation)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user signed up", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.LoginField == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	// Email first, then username.
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(req.LoginField))
	if errors.Is(err, common.ErrNotFound) {
		user, err = s.userRepo.FindByUsername(ctx, req.LoginField)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}
	return s.issue(user)
}

// EnsureAdmin creates an admin account unless the email is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, req SignupRequest) error {
	if _, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email))); err == nil {
		return nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("AuthService.EnsureAdmin lookup: %w", err)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.User{
		ID:             uuid.NewString(),
		Username:       strings.TrimSpace(req.Username),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		HashedPassword: hashedPassword,
		Role:           model.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info("admin account created", "user_id", admin.ID, "username", admin.Username)
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateTokenWith(s.tokenAuth, user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	out := *user
	out.HashedPassword = ""
	return &AuthResponse{User: &out, Token: token}, nil
}
