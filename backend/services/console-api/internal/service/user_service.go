package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/password"
)

// UserService administers Backoffice and Operator accounts.
type UserService struct {
	users  UserStore
	hasher password.Hasher
	logger *zap.Logger
}

// NewUserService builds UserService.
func NewUserService(users UserStore, hasher password.Hasher, logger *zap.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// List returns every console account.
func (s *UserService) List(ctx context.Context, actor authz.Principal) ([]models.User, error) {
	if !actor.Can(authz.ActionManageUsers, nil) {
		return nil, apperr.NotAuthorized()
	}
	return s.users.List(ctx)
}

// Create registers an account with a bcrypt hash of the given password. Accounts start
// active unless IsActive says otherwise.
func (s *UserService) Create(ctx context.Context, actor authz.Principal, in models.UserInput) (*models.User, error) {
	if !actor.Can(authz.ActionManageUsers, nil) {
		return nil, apperr.NotAuthorized()
	}
	in, err := normalizeUserInput(in)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperr.Validation("password is required")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.UserID),
	)
	return user, nil
}

// Update rewrites username and role. A non-empty Password replaces the hash and a non-nil
// IsActive sets activation. Callers cannot demote or deactivate themselves.
func (s *UserService) Update(ctx context.Context, actor authz.Principal, id string, in models.UserInput) (*models.User, error) {
	if !actor.Can(authz.ActionManageUsers, nil) {
		return nil, apperr.NotAuthorized()
	}
	in, err := normalizeUserInput(in)
	if err != nil {
		return nil, err
	}
	cur, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	active := cur.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	if id == actor.UserID && (in.Role != cur.Role || !active) {
		return nil, apperr.Conflict("you cannot demote or deactivate your own account")
	}

	next := *cur
	next.Username = in.Username
	next.Role = in.Role
	next.IsActive = active
	if in.Password != "" {
		if next.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, err
		}
	}
	updated, err := s.users.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated",
		zap.String("user_id", id),
		zap.String("role", string(updated.Role)),
		zap.Bool("is_active", updated.IsActive),
		zap.Bool("password_changed", in.Password != ""),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// SetActive toggles activation. Inactive accounts cannot log in and are not eligible operators.
func (s *UserService) SetActive(ctx context.Context, actor authz.Principal, id string, active bool) (*models.User, error) {
	if !actor.Can(authz.ActionManageUsers, nil) {
		return nil, apperr.NotAuthorized()
	}
	if !active && id == actor.UserID {
		return nil, apperr.Conflict("you cannot deactivate your own account")
	}
	updated, err := s.users.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user activation changed",
		zap.String("user_id", id),
		zap.Bool("is_active", active),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// Delete removes an account. Operators still assigned to a station must be unassigned first.
func (s *UserService) Delete(ctx context.Context, actor authz.Principal, id string) error {
	if !actor.Can(authz.ActionManageUsers, nil) {
		return apperr.NotAuthorized()
	}
	if id == actor.UserID {
		return apperr.Conflict("you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

// normalizeUserInput lower-cases the username and accepts the role in any case.
func normalizeUserInput(in models.UserInput) (models.UserInput, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	if role, ok := authz.ParseRole(string(in.Role)); ok {
		in.Role = role
	}
	if err := in.Validate(); err != nil {
		return in, apperr.Validation("%s", err.Error())
	}
	return in, nil
}
