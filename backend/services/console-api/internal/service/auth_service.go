package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/password"
)

// AuthService authenticates console staff.
type AuthService struct {
	users     UserStore
	hasher    password.Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(users UserStore, hasher password.Hasher, tokenizer *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Login checks credentials of an active Backoffice or Operator account and issues a JWT.
// Every failure reads the same to the caller.
func (s *AuthService) Login(ctx context.Context, username, pass string) (string, *models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || pass == "" {
		return "", nil, apperr.Validation("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, invalidCredentials()
		}
		return "", nil, err
	}
	if !user.IsActive || user.Role == authz.RoleOwner {
		return "", nil, invalidCredentials()
	}
	if err := s.hasher.Compare(user.PasswordHash, pass); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", nil, invalidCredentials()
		}
		return "", nil, err
	}

	token, err := s.tokenizer.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return token, user, nil
}

// EnsureUser creates an account unless the username is already taken.
func (s *AuthService) EnsureUser(ctx context.Context, username, pass string, role authz.Role) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if existing, err := s.users.GetByUsername(ctx, username); err == nil {
		return existing, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user provisioned", zap.String("user_id", user.ID), zap.String("username", user.Username), zap.String("role", string(role)))
	return user, nil
}

func invalidCredentials() error {
	return apperr.Unauthenticated("invalid credentials")
}
