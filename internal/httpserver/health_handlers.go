package httpserver

import (
	"net/http"
	"time"

	"github.com/TAO-07/no-one-answer/internal/health"
	"github.com/TAO-07/no-one-answer/internal/version"
)

// HandleHealth reports dependency health. Unhealthy answers 503, degraded 200.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, health.HealthStatus{
			Status:     health.StatusHealthy,
			Timestamp:  time.Now().UTC(),
			Version:    version.Info(),
			Components: []health.Component{},
		})
		return
	}
	status := s.health.Check(r.Context())
	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, status)
}
