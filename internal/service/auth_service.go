package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/auth"
	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/repository"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// AuthService manages staff authentication and account lifecycle.
type AuthService struct {
	staff  repository.StaffRepository
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(staff repository.StaffRepository, tokens *auth.TokenManager, hasher *auth.PasswordHasher, logger *zap.Logger) *AuthService {
	return &AuthService{staff: staff, tokens: tokens, hasher: hasher, logger: logger}
}

// LoginResult carries the issued token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Staff     *domain.Staff
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if !s.hasher.Compare(staff.PasswordHash, password) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.Issue(staff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("staff login", zap.String("staff_id", staff.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Staff: staff}, nil
}

// Register creates a staff account with a hashed password.
func (s *AuthService) Register(ctx context.Context, staff *domain.Staff, password string) error {
	if strings.TrimSpace(staff.Name) == "" || strings.TrimSpace(staff.Email) == "" {
		return apperrors.NewValidationError("name and email are required", nil)
	}
	if len(password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	staff.Email = strings.TrimSpace(strings.ToLower(staff.Email))
	staff.PasswordHash = hash
	return s.staff.Create(ctx, staff)
}

// ChangePassword rotates a staff member's password after verifying the
// current one.
func (s *AuthService) ChangePassword(ctx context.Context, staffID, current, next string) error {
	if len(next) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(staff.PasswordHash, current) {
		return apperrors.NewUnauthorized("current password is incorrect")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	staff.PasswordHash = hash
	return s.staff.Update(ctx, staff)
}
