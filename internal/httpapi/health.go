package httpapi

import (
	"net/http"
	"time"

	"github.com/keeper-security/ksm-profile/pkg/types"
)

// HealthCheck reports whether the profile's backend can be read
func (s *Server) HealthCheck() *types.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &types.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Profile:   s.profile.Name(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    []types.Check{},
	}

	// Check the backend by listing sections
	backendCheck := types.Check{Name: "backend", Status: "ok"}
	if s.profile.Name() == "" {
		backendCheck.Status = "failed"
		backendCheck.Error = "profile has no name"
		status.Status = "unhealthy"
	} else if sections, err := s.profile.SectionNames(); err != nil {
		backendCheck.Status = "failed"
		backendCheck.Error = err.Error()
		status.Status = "unhealthy"
	} else if sections == nil {
		backendCheck.Status = "warning"
		backendCheck.Error = "profile does not exist yet"
		status.Status = "degraded"
	}
	status.Checks = append(status.Checks, backendCheck)

	// Writes are refused once the profile is locked
	writableCheck := types.Check{Name: "writable", Status: "ok"}
	if s.profile.ReadOnly() {
		writableCheck.Status = "warning"
		writableCheck.Error = "profile is read-only"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	}
	status.Checks = append(status.Checks, writableCheck)

	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.HealthCheck()

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status)
}
