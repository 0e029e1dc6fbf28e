package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"artiquity/internal/api"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.store.Summarize(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ServerStatus{
		Running:      s.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: s.store.Path(),
		LockFilePath: s.lockPath,
		AuthEnabled:  s.services.Auth != nil,
		Summary:      api.FromSummary(*summary),
	})
}

// handleHealth probes the configured model backends. It stays reachable
// without a token so monitors can hit it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := api.HealthResponse{Healthy: true, Services: map[string]string{}}
	for name, check := range s.services.Health {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			resp.Healthy = false
			resp.Services[name] = err.Error()
			continue
		}
		resp.Services[name] = "ok"
	}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
