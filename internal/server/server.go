// Package server exposes the wizard, licensing, and account operations over
// an HTTP JSON API and enforces single-instance execution.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"artiquity/internal/auth"
	"artiquity/internal/campaign"
	"artiquity/internal/capsule"
	"artiquity/internal/config"
	"artiquity/internal/licensing"
	"artiquity/internal/logging"
	"artiquity/internal/notifications"
	"artiquity/internal/store"
	"artiquity/internal/trends"
)

// HealthCheck probes one model backend.
type HealthCheck func(ctx context.Context) error

// Services bundles the feature services the HTTP layer dispatches to.
type Services struct {
	Capsules  *capsule.Service
	Trends    *trends.Service
	Campaigns *campaign.Service
	Licensing *licensing.Service
	Auth      *auth.Service
	Notifier  notifications.Service
	Health    map[string]HealthCheck
}

// Server hosts the JSON API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	services Services
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock

	mux      *http.ServeMux
	listener net.Listener
	server   *http.Server
	running  atomic.Bool
}

// New constructs a server. The notifier defaults to a noop implementation.
func New(cfg *config.Config, st *store.Store, services Services, logger *slog.Logger) (*Server, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("server requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if services.Notifier == nil {
		services.Notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "artiquityd.lock")
	s := &Server{
		cfg:      cfg,
		store:    st,
		services: services,
		logger:   logging.WithComponent(logger, "api-server"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	s.mux = s.routes()
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/logout", s.protect(s.handleLogout))
	mux.HandleFunc("/api/auth/me", s.protect(s.handleMe))

	mux.HandleFunc("/api/projects", s.protect(s.handleProjects))
	mux.HandleFunc("/api/projects/", s.protect(s.handleProjectSubtree))

	mux.HandleFunc("/api/license/embed", s.protect(s.handleEmbed))
	mux.HandleFunc("/api/license/verify", s.protect(s.handleVerify))
	mux.HandleFunc("/api/licenses", s.protect(s.handleLicenses))

	mux.HandleFunc("/api/status", s.protect(s.handleStatus))
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// Handler returns the routing handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start acquires the instance lock and begins serving on the configured bind
// address. Serving stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another artiquity daemon instance is already running")
	}

	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.services.Auth != nil))
	return nil
}

// Stop shuts the server down and releases the instance lock.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	timeout := time.Duration(s.cfg.Workflow.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	s.running.Store(false)
	s.logger.Info("api server stopped")
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type contextKey string

const userContextKey contextKey = "artiquity-user"

// protect validates the bearer token when auth is enabled and stashes the
// account on the request context. With auth disabled requests pass through.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	if s.services.Auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.services.Auth.Validate(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

func (s *Server) currentUser(r *http.Request) *store.User {
	user, _ := r.Context().Value(userContextKey).(*store.User)
	return user
}

func (s *Server) ownerID(r *http.Request) int64 {
	if user := s.currentUser(r); user != nil {
		return user.ID
	}
	return 0
}

// loadProject fetches a project and enforces ownership when auth is enabled.
func (s *Server) loadProject(w http.ResponseWriter, r *http.Request, id string) *store.Project {
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "project not found")
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil
	}
	if owner := s.ownerID(r); owner != 0 && project.OwnerID != owner {
		s.writeError(w, http.StatusNotFound, "project not found")
		return nil
	}
	return project
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps storage sentinels onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
