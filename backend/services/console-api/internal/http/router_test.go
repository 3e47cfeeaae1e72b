package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/http/handlers"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/password"
	"evconsole/backend/services/console-api/internal/repository/memory"
	"evconsole/backend/services/console-api/internal/service"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	auth    *service.AuthService
	tokens  *service.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	store := memory.New()
	tokens := service.NewTokenService("router-secret", time.Hour)
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	auth := service.NewAuthService(store.Users, hasher, tokens, logger)
	ctx := context.Background()

	for _, u := range []struct {
		name string
		role authz.Role
	}{{"admin", authz.RoleBackoffice}, {"olga", authz.RoleOperator}, {"oscar", authz.RoleOperator}} {
		if _, err := auth.EnsureUser(ctx, u.name, "pw", u.role); err != nil {
			t.Fatalf("ensure %s: %v", u.name, err)
		}
	}
	olga, _ := store.Users.GetByUsername(ctx, "olga")
	if err := store.Stations.Create(ctx, &models.Station{
		StationID: "S1", Name: "Colombo", Type: models.StationAC, IsActive: true,
		AvailableSlots: 3, OperatorUserIDs: []string{olga.ID},
	}); err != nil {
		t.Fatalf("seed station: %v", err)
	}
	store.Owners.Put(ctx, models.Owner{NIC: "991234567V", FirstName: "Nimal", IsActive: true})

	stations := service.NewStationService(store.Stations, store.Users, logger)
	bookings := service.NewBookingService(store.Bookings, store.Stations, logger)
	owners := service.NewOwnerService(store.Owners)
	users := service.NewUserService(store.Users, hasher, logger)

	h := NewRouter(RouterDeps{
		Login:         handlers.NewLoginHandler(auth, logger),
		Health:        handlers.NewHealthHandler(nil),
		Stations:      handlers.NewStationHandlers(stations, logger),
		Bookings:      handlers.NewBookingHandlers(bookings, logger),
		Users:         handlers.NewUserHandlers(users, logger),
		Owner:         handlers.NewOwnerHandler(owners, logger),
		Owners:        handlers.NewOwnerListHandler(owners, logger),
		Authenticator: tokens,
		Logger:        logger,
	})
	return &testAPI{t: t, handler: h, store: store, auth: auth, tokens: tokens}
}

func (a *testAPI) login(username string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": "pw"})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		a.t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if code == "" {
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != code {
		t.Fatalf("expected code %q, got %q", code, body.Code)
	}
}

func decodeBooking(t *testing.T, rec *httptest.ResponseRecorder) models.Booking {
	t.Helper()
	var b models.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	return b
}

func TestBookingFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin, olga, oscar := api.login("admin"), api.login("olga"), api.login("oscar")
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	rec := api.do(http.MethodPost, "/bookings", admin, map[string]interface{}{
		"ownerNic": "991234567V", "stationId": "S1",
		"startTimeUtc": start, "endTimeUtc": start.Add(time.Hour),
	})
	expect(t, rec, http.StatusCreated, "")
	created := decodeBooking(t, rec)
	base := "/bookings/" + created.ID

	expect(t, api.do(http.MethodPatch, base+"/approve", olga, map[string]bool{"approve": true}), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodPatch, base+"/approve", admin, map[string]string{"reason": "x"}), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodPatch, base+"/approve", admin, map[string]interface{}{"approve": true}), http.StatusOK, "")
	expect(t, api.do(http.MethodPatch, base+"/approve", admin, map[string]interface{}{"approve": true}), http.StatusConflict, "invalid_state_transition")

	expect(t, api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": "wrong"}), http.StatusUnprocessableEntity, "invalid_token")
	expect(t, api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": " " + created.QRCode + "\n"}), http.StatusUnprocessableEntity, "invalid_token")
	expect(t, api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": ""}), http.StatusUnprocessableEntity, "invalid_token")
	expect(t, api.do(http.MethodPatch, base+"/start", oscar, map[string]string{"qrCode": created.QRCode}), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodPatch, "/bookings/missing/start", oscar, map[string]string{"qrCode": created.QRCode}), http.StatusForbidden, "not_authorized")

	rec = api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": created.QRCode})
	expect(t, rec, http.StatusOK, "")
	if b := decodeBooking(t, rec); b.Status != models.BookingInProgress || b.QRCode != "" {
		t.Fatalf("unexpected start response %+v", b)
	}
	expect(t, api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": created.QRCode}), http.StatusOK, "")

	expect(t, api.do(http.MethodPatch, base+"/complete", olga, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodPatch, base+"/complete", olga, nil), http.StatusConflict, "invalid_state_transition")

	rec = api.do(http.MethodGet, "/bookings?status=Completed&stationId=S1", admin, nil)
	expect(t, rec, http.StatusOK, "")
	var list []models.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("filtered list: %v %s", err, rec.Body.String())
	}
	expect(t, api.do(http.MethodGet, "/bookings?status=Nope", admin, nil), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodGet, "/bookings", olga, nil), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodGet, "/bookings/station/S1", olga, nil), http.StatusOK, "")

	expect(t, api.do(http.MethodDelete, base, admin, nil), http.StatusNoContent, "")
	expect(t, api.do(http.MethodGet, base, admin, nil), http.StatusNotFound, "not_found")
}

func TestStationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin, olga, oscar := api.login("admin"), api.login("olga"), api.login("oscar")

	expect(t, api.do(http.MethodPatch, "/stations/S1/slots?availableSlots=-1", olga, nil), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodPatch, "/stations/S1/slots?availableSlots=abc", olga, nil), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodPatch, "/stations/S1/slots?availableSlots=0", oscar, nil), http.StatusForbidden, "not_authorized")
	rec := api.do(http.MethodPatch, "/stations/S1/slots?availableSlots=0", olga, nil)
	expect(t, rec, http.StatusOK, "")
	var st models.Station
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || st.AvailableSlots != 0 {
		t.Fatalf("slots response: %v %+v", err, st)
	}

	start := time.Now().UTC().Add(time.Hour)
	expect(t, api.do(http.MethodPost, "/bookings", admin, map[string]interface{}{
		"ownerNic": "991234567V", "stationId": "S1", "startTimeUtc": start, "endTimeUtc": start.Add(time.Hour),
	}), http.StatusCreated, "")
	expect(t, api.do(http.MethodPatch, "/stations/S1/status?isActive=false", olga, nil), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodPatch, "/stations/S1/status?isActive=false", admin, nil), http.StatusConflict, "conflict")
	expect(t, api.do(http.MethodPatch, "/stations/S1/status?isActive=maybe", admin, nil), http.StatusBadRequest, "validation_error")

	rec = api.do(http.MethodGet, "/stations", oscar, nil)
	expect(t, rec, http.StatusOK, "")
	var visible []models.Station
	if err := json.Unmarshal(rec.Body.Bytes(), &visible); err != nil || len(visible) != 0 {
		t.Fatalf("unassigned operator must see no stations: %s", rec.Body.String())
	}

	expect(t, api.do(http.MethodGet, "/users/operators", admin, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodGet, "/evowners/991234567V", admin, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodGet, "/evowners/991234567V", olga, nil), http.StatusForbidden, "not_authorized")
}

func (a *testAPI) book(token string) models.Booking {
	a.t.Helper()
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	rec := a.do(http.MethodPost, "/bookings", token, map[string]interface{}{
		"ownerNic": "991234567V", "stationId": "S1", "startTimeUtc": start, "endTimeUtc": start.Add(time.Hour),
	})
	expect(a.t, rec, http.StatusCreated, "")
	return decodeBooking(a.t, rec)
}

func TestQRCodeAndSessionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin, olga, oscar := api.login("admin"), api.login("olga"), api.login("oscar")
	created := api.book(admin)
	base := "/bookings/" + created.ID
	expect(t, api.do(http.MethodPatch, base+"/approve", admin, map[string]interface{}{"approve": true}), http.StatusOK, "")

	rec := api.do(http.MethodGet, base+"/qrcode", admin, nil)
	expect(t, rec, http.StatusOK, "")
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("qrcode body is not a PNG")
	}
	expect(t, api.do(http.MethodGet, base+"/qrcode", olga, nil), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodGet, "/bookings/missing/qrcode", admin, nil), http.StatusNotFound, "not_found")

	expect(t, api.do(http.MethodGet, base+"/session", olga, nil), http.StatusNotFound, "not_found")
	expect(t, api.do(http.MethodPatch, base+"/start", olga, map[string]string{"qrCode": created.QRCode}), http.StatusOK, "")

	// Without a session cache the session is rebuilt from the booking.
	rec = api.do(http.MethodGet, base+"/session", olga, nil)
	expect(t, rec, http.StatusOK, "")
	var session struct {
		BookingID string `json:"bookingId"`
		StationID string `json:"stationId"`
		OwnerNIC  string `json:"ownerNic"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.BookingID != created.ID || session.StationID != "S1" || session.OwnerNIC != "991234567V" {
		t.Fatalf("unexpected session %+v", session)
	}
	expect(t, api.do(http.MethodGet, base+"/session", admin, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodGet, base+"/session", oscar, nil), http.StatusForbidden, "not_authorized")
}

func TestUserAdministrationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin, olga := api.login("admin"), api.login("olga")
	newOperator := map[string]string{"username": "Nuwan", "password": "pw", "role": "Operator"}

	expect(t, api.do(http.MethodPost, "/users", olga, newOperator), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodPost, "/users", admin, map[string]string{"username": "x", "password": "pw", "role": "Owner"}), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodPost, "/users", admin, map[string]string{"username": "x", "passwordHash": "pw", "role": "Operator"}), http.StatusBadRequest, "validation_error")

	rec := api.do(http.MethodPost, "/users", admin, newOperator)
	expect(t, rec, http.StatusCreated, "")
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("user response leaks password material: %s", rec.Body.String())
	}
	var nuwan models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &nuwan); err != nil || nuwan.Username != "nuwan" || !nuwan.IsActive {
		t.Fatalf("decode user: %v %+v", err, nuwan)
	}
	expect(t, api.do(http.MethodPost, "/users", admin, newOperator), http.StatusConflict, "conflict")

	rec = api.do(http.MethodGet, "/users", admin, nil)
	expect(t, rec, http.StatusOK, "")
	var all []models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil || len(all) != 4 {
		t.Fatalf("list users: %v %s", err, rec.Body.String())
	}
	expect(t, api.do(http.MethodGet, "/users", olga, nil), http.StatusForbidden, "not_authorized")

	// The new operator can be assigned and run a session.
	expect(t, api.do(http.MethodPut, "/stations/S1/operators", admin, map[string][]string{"operatorUserIds": {nuwan.ID}}), http.StatusOK, "")
	operatorToken := api.login("nuwan")
	b := api.book(admin)
	expect(t, api.do(http.MethodPatch, "/bookings/"+b.ID+"/approve", admin, map[string]interface{}{"approve": true}), http.StatusOK, "")
	expect(t, api.do(http.MethodPatch, "/bookings/"+b.ID+"/start", operatorToken, map[string]string{"qrCode": b.QRCode}), http.StatusOK, "")
	expect(t, api.do(http.MethodPatch, "/bookings/"+b.ID+"/complete", operatorToken, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodPatch, "/stations/S1/slots?availableSlots=1", olga, nil), http.StatusForbidden, "not_authorized")

	rec = api.do(http.MethodPut, "/users/"+nuwan.ID, admin, map[string]string{"username": "nuwan.p", "role": "Operator"})
	expect(t, rec, http.StatusOK, "")
	expect(t, api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "nuwan.p", "password": "pw"}), http.StatusOK, "")

	expect(t, api.do(http.MethodPatch, "/users/"+nuwan.ID+"/status?isActive=maybe", admin, nil), http.StatusBadRequest, "validation_error")
	expect(t, api.do(http.MethodPatch, "/users/"+nuwan.ID+"/status?isActive=false", admin, nil), http.StatusOK, "")
	expect(t, api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "nuwan.p", "password": "pw"}), http.StatusUnauthorized, "unauthenticated")

	expect(t, api.do(http.MethodDelete, "/users/"+nuwan.ID, admin, nil), http.StatusConflict, "conflict")
	expect(t, api.do(http.MethodPut, "/stations/S1/operators", admin, map[string][]string{"operatorUserIds": {}}), http.StatusOK, "")
	expect(t, api.do(http.MethodDelete, "/users/"+nuwan.ID, admin, nil), http.StatusNoContent, "")
	expect(t, api.do(http.MethodDelete, "/users/"+nuwan.ID, admin, nil), http.StatusNotFound, "not_found")

	self, _ := api.store.Users.GetByUsername(context.Background(), "admin")
	expect(t, api.do(http.MethodPut, "/users/"+self.ID, admin, map[string]string{"username": "admin", "role": "Operator"}), http.StatusConflict, "conflict")
	expect(t, api.do(http.MethodDelete, "/users/"+self.ID, admin, nil), http.StatusConflict, "conflict")
}

func TestStationDeleteAndOwnerList(t *testing.T) {
	api := newTestAPI(t)
	admin, olga := api.login("admin"), api.login("olga")
	api.book(admin)

	expect(t, api.do(http.MethodDelete, "/stations/S1", olga, nil), http.StatusForbidden, "not_authorized")
	expect(t, api.do(http.MethodDelete, "/stations/S1", admin, nil), http.StatusConflict, "conflict")

	expect(t, api.do(http.MethodPost, "/stations", admin, map[string]interface{}{
		"stationId": "S9", "name": "Galle", "latitude": 6.03, "longitude": 80.2, "type": "DC",
	}), http.StatusCreated, "")
	expect(t, api.do(http.MethodDelete, "/stations/S9", admin, nil), http.StatusNoContent, "")
	expect(t, api.do(http.MethodGet, "/stations/S9", admin, nil), http.StatusNotFound, "not_found")

	rec := api.do(http.MethodGet, "/evowners", admin, nil)
	expect(t, rec, http.StatusOK, "")
	var owners []models.Owner
	if err := json.Unmarshal(rec.Body.Bytes(), &owners); err != nil || len(owners) != 1 || owners[0].NIC != "991234567V" {
		t.Fatalf("owner list: %v %s", err, rec.Body.String())
	}
	expect(t, api.do(http.MethodGet, "/evowners", olga, nil), http.StatusForbidden, "not_authorized")
}

func TestAuthenticationFailures(t *testing.T) {
	api := newTestAPI(t)

	expect(t, api.do(http.MethodGet, "/stations", "", nil), http.StatusUnauthorized, "unauthenticated")
	expect(t, api.do(http.MethodGet, "/stations", "garbage", nil), http.StatusUnauthorized, "unauthenticated")
	expect(t, api.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "bad"}), http.StatusUnauthorized, "unauthenticated")
	expect(t, api.do(http.MethodGet, "/health", "", nil), http.StatusOK, "")

	req := httptest.NewRequest(http.MethodGet, "/stations?token="+api.login("admin"), nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query token must only be honoured for websocket upgrades, got %d", rec.Code)
	}
}

func TestStatusMappingIsDistinct(t *testing.T) {
	seen := map[int]string{}
	for _, kind := range []string{"validation_error", "invalid_token", "not_authorized", "not_found", "unauthenticated"} {
		status := handlers.StatusFor(apperr.Kind(kind))
		if prev, dup := seen[status]; dup {
			t.Fatalf("%s and %s share status %d", prev, kind, status)
		}
		seen[status] = kind
	}
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/bookings/b1/approve", nil)
	req.Header.Set("Origin", "http://console.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing allow-origin header")
	}
}
