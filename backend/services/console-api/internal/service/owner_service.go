package service

import (
	"context"
	"strings"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
)

// OwnerService exposes the EV owner read model to back-office staff.
type OwnerService struct {
	owners OwnerStore
}

// NewOwnerService builds OwnerService.
func NewOwnerService(owners OwnerStore) *OwnerService {
	return &OwnerService{owners: owners}
}

// Get returns the owner with nic.
func (s *OwnerService) Get(ctx context.Context, actor authz.Principal, nic string) (*models.Owner, error) {
	if !actor.Can(authz.ActionReadOwners, nil) {
		return nil, apperr.NotAuthorized()
	}
	nic = strings.TrimSpace(nic)
	if nic == "" {
		return nil, apperr.Validation("nic is required")
	}
	return s.owners.Get(ctx, nic)
}

// List returns every owner profile.
func (s *OwnerService) List(ctx context.Context, actor authz.Principal) ([]models.Owner, error) {
	if !actor.Can(authz.ActionReadOwners, nil) {
		return nil, apperr.NotAuthorized()
	}
	return s.owners.List(ctx)
}
