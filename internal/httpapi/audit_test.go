package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

func TestAuditEventsCarryRequestID(t *testing.T) {
	logger, err := audit.NewLogger(audit.Config{FilePath: filepath.Join(t.TempDir(), "audit.log")})
	require.NoError(t, err)

	p := profile.New(storage.NewMemoryBackend(), profile.WithName("app"))
	require.NoError(t, p.SetValue("Window", "Width", 800))
	s := NewServer(p, WithAuditLogger(logger))

	send := func(method, path, body, requestID string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(middleware.RequestIDHeader, requestID)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/sections/Window", "", "read-1"))
	require.NoError(t, p.SetReadOnly(true))
	assert.Equal(t, http.StatusConflict,
		send(http.MethodPut, "/sections/Window/entries/Width", `{"value": 1}`, "write-1"))

	// Close flushes queued events
	require.NoError(t, logger.Close())

	reads, err := logger.Search(audit.Query{CorrelationID: "read-1"})
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.Equal(t, audit.EventAccess, reads[0].Type)
	assert.Equal(t, "app", reads[0].Profile)
	assert.Equal(t, "Window", reads[0].Details["resource"])

	denied, err := logger.Search(audit.Query{CorrelationID: "write-1"})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, audit.EventAccessDenied, denied[0].Type)
	assert.Equal(t, "DENIED", denied[0].Result)
}
