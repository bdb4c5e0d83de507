package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/logging"
	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/pkg/dataset"
	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/keeper-security/ksm-profile/pkg/types"
)

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

// statusFor maps an error to an HTTP status and a stable error code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, profile.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, profile.ErrInvalidArgument),
		errors.Is(err, storage.ErrNameNotRepresentable),
		errors.Is(err, dataset.ErrDuplicateName),
		errors.Is(err, dataset.ErrRowShape),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, storage.ErrLocked):
		return http.StatusServiceUnavailable, "locked"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError logs err and writes it as a JSON error body. Internal
// errors are not echoed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	logger := logging.FromContext(r.Context(), s.logger)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "method", r.Method, "error", err)
		message = "internal error"
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	}

	if s.audit != nil && status == http.StatusConflict {
		s.mu.Lock()
		name := s.profile.Name()
		s.mu.Unlock()
		event := audit.AccessEvent(r.URL.Path, r.Method, name, false, map[string]interface{}{
			"remote": r.RemoteAddr,
			"reason": err.Error(),
		})
		s.audit.LogWithCorrelation(event, middleware.GetReqID(r.Context()))
	}

	respondJSON(w, status, types.SafeError{Code: code, Message: message})
}
