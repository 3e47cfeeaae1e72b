package httpserver

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/http/handlers"
	"evconsole/backend/services/console-api/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Login         http.HandlerFunc
	Health        http.HandlerFunc
	Metrics       http.Handler
	Stations      *handlers.StationHandlers
	Bookings      *handlers.BookingHandlers
	Users         *handlers.UserHandlers
	Owner         http.HandlerFunc
	Owners        http.HandlerFunc
	BookingFeed   http.HandlerFunc
	Authenticator middleware.Authenticator
	// AllowOrigin decides browser cross-origin access; nil allows every origin.
	AllowOrigin   func(origin string) bool
	Logger        *zap.Logger
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recover(deps.Logger), middleware.Observe(deps.Logger))

	r.HandleFunc("/health", deps.Health).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/auth/login", deps.Login).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(deps.Authenticator))

	st := deps.Stations
	api.HandleFunc("/stations", st.List).Methods(http.MethodGet)
	api.HandleFunc("/stations", st.Create).Methods(http.MethodPost)
	api.HandleFunc("/stations/{id}", st.Get).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}", st.Update).Methods(http.MethodPut)
	api.HandleFunc("/stations/{id}", st.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/stations/{id}/slots", st.SetSlots).Methods(http.MethodPatch)
	api.HandleFunc("/stations/{id}/status", st.SetStatus).Methods(http.MethodPatch)
	api.HandleFunc("/stations/{id}/operators", st.AssignOperators).Methods(http.MethodPut)
	api.HandleFunc("/users/operators", st.EligibleOperators).Methods(http.MethodGet)

	us := deps.Users
	api.HandleFunc("/users", us.List).Methods(http.MethodGet)
	api.HandleFunc("/users", us.Create).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", us.Update).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", us.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id}/status", us.SetStatus).Methods(http.MethodPatch)

	bk := deps.Bookings
	api.HandleFunc("/bookings", bk.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings", bk.Create).Methods(http.MethodPost)
	api.HandleFunc("/bookings/station/{id}", bk.ListByStation).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bk.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bk.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/bookings/{id}/qrcode", bk.QRCode).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/session", bk.Session).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/approve", bk.Decide).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/start", bk.Start).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/complete", bk.Complete).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/cancel", bk.Cancel).Methods(http.MethodPatch)

	api.HandleFunc("/evowners", deps.Owners).Methods(http.MethodGet)
	api.HandleFunc("/evowners/{nic}", deps.Owner).Methods(http.MethodGet)

	if deps.BookingFeed != nil {
		api.HandleFunc("/ws/bookings", deps.BookingFeed).Methods(http.MethodGet)
	}

	return cors(r, deps.AllowOrigin)
}

func cors(next http.Handler, allowOrigin func(string) bool) http.Handler {
	originOpt := gorillahandlers.AllowedOrigins([]string{"*"})
	if allowOrigin != nil {
		originOpt = gorillahandlers.AllowedOriginValidator(allowOrigin)
	}
	return gorillahandlers.CORS(
		originOpt,
		gorillahandlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.MaxAge(600),
	)(next)
}
