package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
)

// StationService is the station directory: capacity, activation and operator assignment.
type StationService struct {
	stations StationStore
	users    UserStore
	logger   *zap.Logger
}

// NewStationService builds StationService.
func NewStationService(stations StationStore, users UserStore, logger *zap.Logger) *StationService {
	return &StationService{stations: stations, users: users, logger: logger}
}

// List returns every station to Backoffice and only assigned stations to an Operator.
func (s *StationService) List(ctx context.Context, actor authz.Principal) ([]models.Station, error) {
	if !actor.CanAny(authz.ActionReadStation) {
		return nil, apperr.NotAuthorized()
	}
	all, err := s.stations.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Station, 0, len(all))
	for _, st := range all {
		if actor.Can(authz.ActionReadStation, st.OperatorUserIDs) {
			out = append(out, st)
		}
	}
	return out, nil
}

// Get returns a station visible to actor.
func (s *StationService) Get(ctx context.Context, actor authz.Principal, stationID string) (*models.Station, error) {
	return s.loadFor(ctx, actor, authz.ActionReadStation, stationID)
}

// Create registers a station.
func (s *StationService) Create(ctx context.Context, actor authz.Principal, station models.Station) (*models.Station, error) {
	if !actor.Can(authz.ActionManageStations, nil) {
		return nil, apperr.NotAuthorized()
	}
	station.StationID = strings.TrimSpace(station.StationID)
	if err := station.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	ids, err := s.eligible(ctx, station.OperatorUserIDs)
	if err != nil {
		return nil, err
	}
	station.OperatorUserIDs = ids
	if err := s.stations.Create(ctx, &station); err != nil {
		return nil, err
	}
	s.logger.Info("station created", zap.String("station_id", station.StationID), zap.String("actor_id", actor.UserID))
	return &station, nil
}

// Update rewrites descriptive attributes. Slots, activation and operators have their own operations.
func (s *StationService) Update(ctx context.Context, actor authz.Principal, station models.Station) (*models.Station, error) {
	if !actor.Can(authz.ActionManageStations, nil) {
		return nil, apperr.NotAuthorized()
	}
	if err := station.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	return s.stations.Update(ctx, &station)
}

// SetSlots records the operator-declared number of free slots.
func (s *StationService) SetSlots(ctx context.Context, actor authz.Principal, stationID string, slots int) (*models.Station, error) {
	if _, err := s.loadFor(ctx, actor, authz.ActionEditCapacity, stationID); err != nil {
		return nil, err
	}
	if slots < 0 {
		return nil, apperr.Validation("availableSlots must not be negative")
	}
	updated, err := s.stations.SetSlots(ctx, stationID, slots)
	if err != nil {
		return nil, err
	}
	s.logger.Info("station slots updated",
		zap.String("station_id", stationID),
		zap.Int("available_slots", slots),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// SetActive toggles activation. Deactivation fails with Conflict while bookings are open.
func (s *StationService) SetActive(ctx context.Context, actor authz.Principal, stationID string, active bool) (*models.Station, error) {
	if !actor.Can(authz.ActionManageStations, nil) {
		return nil, apperr.NotAuthorized()
	}
	updated, err := s.stations.SetActive(ctx, stationID, active)
	if err != nil {
		return nil, err
	}
	s.logger.Info("station activation changed",
		zap.String("station_id", stationID),
		zap.Bool("is_active", active),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// Delete removes a station no booking refers to. Stations with booking history are
// deactivated instead.
func (s *StationService) Delete(ctx context.Context, actor authz.Principal, stationID string) error {
	if !actor.Can(authz.ActionManageStations, nil) {
		return apperr.NotAuthorized()
	}
	if err := s.stations.Delete(ctx, stationID); err != nil {
		return err
	}
	s.logger.Info("station deleted", zap.String("station_id", stationID), zap.String("actor_id", actor.UserID))
	return nil
}

// AssignOperators replaces the station's operator set with the given eligible operators.
func (s *StationService) AssignOperators(ctx context.Context, actor authz.Principal, stationID string, userIDs []string) (*models.Station, error) {
	if !actor.Can(authz.ActionManageStations, nil) {
		return nil, apperr.NotAuthorized()
	}
	ids, err := s.eligible(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	updated, err := s.stations.SetOperators(ctx, stationID, ids)
	if err != nil {
		return nil, err
	}
	s.logger.Info("station operators assigned",
		zap.String("station_id", stationID),
		zap.Strings("operator_user_ids", ids),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// EligibleOperators lists active Operator accounts.
func (s *StationService) EligibleOperators(ctx context.Context, actor authz.Principal) ([]models.User, error) {
	if !actor.Can(authz.ActionManageStations, nil) {
		return nil, apperr.NotAuthorized()
	}
	return s.users.ListEligibleOperators(ctx)
}

// loadFor fetches a station after checking that actor may perform action on it. A missing
// station is reported as NotAuthorized to actors without global scope.
func (s *StationService) loadFor(ctx context.Context, actor authz.Principal, action authz.Action, stationID string) (*models.Station, error) {
	if !actor.CanAny(action) {
		return nil, apperr.NotAuthorized()
	}
	station, err := s.stations.Get(ctx, stationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) && authz.ScopeOf(actor.Role, action) != authz.Global {
			return nil, apperr.NotAuthorized()
		}
		return nil, err
	}
	if !actor.Can(action, station.OperatorUserIDs) {
		return nil, apperr.NotAuthorized()
	}
	return station, nil
}

// eligible trims and de-duplicates ids, rejecting any that is not an active Operator.
func (s *StationService) eligible(ctx context.Context, userIDs []string) ([]string, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return ids, nil
	}
	operators, err := s.users.ListEligibleOperators(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(operators))
	for _, u := range operators {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, apperr.Validation("user %s is not an active operator", id)
		}
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
