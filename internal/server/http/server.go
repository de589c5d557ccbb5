// Package httpserver exposes the userauth HTTP API.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/metrics"
	"github.com/and161185/userauth/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth     service.AuthService
	users    service.UserService
	tokens   TokenVerifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	health   func(context.Context) error
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics enables instrumentation and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics, s.gatherer = m, g }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

// New constructs a Server with injected services.
func New(auth service.AuthService, users service.UserService, tokens TokenVerifier, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{auth: auth, users: users, tokens: tokens, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(Instrument(s.metrics))

	r.HandleFunc("/", s.welcome).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer)).Methods(http.MethodGet)
	}
	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)

	p := r.NewRoute().Subrouter()
	p.Use(AuthGate(s.tokens))
	p.HandleFunc("/profile", s.profile).Methods(http.MethodGet)
	p.HandleFunc("/change-password", s.changePassword).Methods(http.MethodPost)
	p.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	p.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	p.HandleFunc("/users/{id}", s.updateUser).Methods(http.MethodPut)
	p.HandleFunc("/users/{id}", s.deleteUser).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return Recover(s.log)(Logging(s.log)(r))
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Welcome to the userauth API\n"))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Auth ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	u, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tok, u, err := s.auth.Login(r.Context(), in, clientIP(r))
	switch {
	case err == nil:
		s.metrics.Login(metrics.LoginSuccess)
		writeJSON(w, http.StatusOK, loginResponse{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, UserID: u.ID})
	case errors.Is(err, errs.ErrUnauthorized):
		s.metrics.Login(metrics.LoginInvalid)
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, errs.ErrRateLimited):
		s.metrics.Login(metrics.LoginRateLimited)
		writeError(w, r, s.log, err)
	default:
		s.metrics.Login(metrics.LoginError)
		writeError(w, r, s.log, err)
	}
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Hello, " + c.Name,
		"id":      c.UserID,
	})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}
	var in service.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), c.UserID, in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out, err := s.users.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var in service.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	u, err := s.users.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errs.NewValidation("id", "must be a UUID")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.NewValidation(key, "must be an integer")
	}
	return n, nil
}

// clientIP strips the port so throttling keys do not change per connection.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
