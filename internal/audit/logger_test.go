package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

func TestNewLogger(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "audit.log")

	config := Config{
		FilePath: logPath,
		MaxSize:  1024 * 1024, // 1MB
		MaxAge:   24 * time.Hour,
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}

	// Wait for startup event
	time.Sleep(100 * time.Millisecond)

	events := readEvents(t, logPath)
	if len(events) == 0 {
		t.Fatal("No startup event logged")
	}

	if events[0].Type != EventStartup {
		t.Errorf("Expected startup event, got %s", events[0].Type)
	}
}

func TestAttach(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	p := profile.New(storage.NewMemoryBackend(), profile.WithName("app"))
	logger.Attach(p)

	mustDo(t, p.SetValue("Window", "Width", 800))
	mustDo(t, p.SetValue("Database", "Password", "hunter2"))
	mustDo(t, p.RemoveEntry("Window", "Width"))
	mustDo(t, p.RemoveSection("Window"))
	mustDo(t, p.SetName("renamed"))
	mustDo(t, p.SetReadOnly(true))

	time.Sleep(100 * time.Millisecond)

	events := readEvents(t, logger.filepath)
	changes := filterEventsByType(events,
		EventValueSet, EventEntryRemove, EventSectionRemove, EventProfileRename, EventProfileLock)

	if len(changes) != 6 {
		t.Fatalf("Expected 6 change events, got %d", len(changes))
	}

	want := []EventType{
		EventValueSet, EventValueSet, EventEntryRemove, EventSectionRemove, EventProfileRename, EventProfileLock,
	}
	for i, event := range changes {
		if event.Type != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], event.Type)
		}
	}

	if changes[0].Profile != "app" || changes[0].Section != "Window" || changes[0].Entry != "Width" {
		t.Errorf("Unexpected change target: %+v", changes[0])
	}
	if changes[0].Value != "800" {
		t.Errorf("Expected value 800, got %q", changes[0].Value)
	}

	// Sensitive values never reach the log
	if changes[1].Value != MaskedValue {
		t.Errorf("Password should have been masked, got %q", changes[1].Value)
	}

	// A rename is reported under the new name
	if changes[4].Profile != "renamed" || changes[4].Value != "renamed" {
		t.Errorf("Unexpected rename event: %+v", changes[4])
	}
	if changes[5].Severity != SeverityWarning {
		t.Error("Locking a profile should have warning severity")
	}
}

func TestAttachSkipsCancelledChanges(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	p := profile.New(storage.NewMemoryBackend())
	p.OnChanging(func(_ *profile.Profile, e *profile.ChangingArgs) error {
		e.Cancel = e.Section() == "Locked"
		return nil
	})
	logger.Attach(p)

	mustDo(t, p.SetValue("Locked", "x", 1))
	mustDo(t, p.SetValue("Open", "x", 1))

	time.Sleep(100 * time.Millisecond)

	changes := filterEventsByType(readEvents(t, logger.filepath), EventValueSet)
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change event, got %d", len(changes))
	}
	if changes[0].Section != "Open" {
		t.Errorf("Expected the uncancelled change, got section %s", changes[0].Section)
	}
}

func TestLogAccess(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	logger.LogAccess("Window/Width", "read", "prod", true, map[string]interface{}{
		"remote": "127.0.0.1",
	})
	logger.LogAccess("Window/Width", "write", "prod", false, map[string]interface{}{
		"reason":  "profile is read-only",
		"api_key": "abc123",
	})

	time.Sleep(100 * time.Millisecond)

	events := readEvents(t, logger.filepath)
	accessEvents := filterEventsByType(events, EventAccess, EventAccessDenied)

	if len(accessEvents) != 2 {
		t.Fatalf("Expected 2 access events, got %d", len(accessEvents))
	}

	if accessEvents[0].Type != EventAccess {
		t.Error("First event should be allowed access")
	}
	if accessEvents[0].Details["resource"] != "Window/Width" {
		t.Error("Wrong resource in allowed access")
	}

	if accessEvents[1].Type != EventAccessDenied {
		t.Error("Second event should be denied access")
	}
	if accessEvents[1].Severity != SeverityWarning {
		t.Error("Denied access should have warning severity")
	}
	if accessEvents[1].Details["api_key"] != MaskedValue {
		t.Error("Sensitive details should be masked")
	}
}

func TestLogError(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	testErr := errors.New("test error occurred")
	logger.LogError("test-component", testErr, map[string]interface{}{
		"operation": "test-op",
	})

	time.Sleep(100 * time.Millisecond)

	errorEvents := filterEventsByType(readEvents(t, logger.filepath), EventError)
	if len(errorEvents) == 0 {
		t.Fatal("No error event found")
	}

	event := errorEvents[0]
	if event.Error != "test error occurred" {
		t.Errorf("Wrong error message: %s", event.Error)
	}
	if event.Source != "test-component" {
		t.Errorf("Wrong source: %s", event.Source)
	}
	if event.Severity != SeverityError {
		t.Error("Error event should have error severity")
	}
}

func TestLogWithCorrelation(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	correlationID := "test-correlation-123"
	logger.LogWithCorrelation(&AuditEvent{
		Type:     EventAccess,
		Severity: SeverityInfo,
		Source:   "test",
		Action:   "test-action",
		Result:   "SUCCESS",
	}, correlationID)

	time.Sleep(100 * time.Millisecond)

	accessEvents := filterEventsByType(readEvents(t, logger.filepath), EventAccess)
	if len(accessEvents) == 0 {
		t.Fatal("No access event found")
	}
	if accessEvents[0].CorrelationID != correlationID {
		t.Errorf("Wrong correlation ID: expected %s, got %s", correlationID, accessEvents[0].CorrelationID)
	}
}

func TestLogRotation(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "audit.log")

	logger, err := NewLogger(Config{
		FilePath: logPath,
		MaxSize:  100, // Very small size to trigger rotation
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	p := profile.New(storage.NewMemoryBackend())
	logger.Attach(p)
	for i := 0; i < 10; i++ {
		mustDo(t, p.SetValue("Section", fmt.Sprintf("entry%d", i), "some data to increase size"))
	}

	time.Sleep(500 * time.Millisecond)

	files, err := filepath.Glob(filepath.Join(tempDir, "audit.log.*"))
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) == 0 {
		t.Error("No rotated files found")
	}
}

func TestSearch(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	prod := profile.New(storage.NewMemoryBackend(), profile.WithName("prod"))
	dev := profile.New(storage.NewMemoryBackend(), profile.WithName("dev"))
	logger.Attach(prod)
	logger.Attach(dev)

	mustDo(t, prod.SetValue("Window", "Width", 800))
	mustDo(t, dev.SetValue("Window", "Width", 640))
	mustDo(t, prod.RemoveSection("Window"))
	logger.LogError("component1", errors.New("error1"), nil)

	time.Sleep(200 * time.Millisecond)

	results, err := logger.Search(Query{EventTypes: []EventType{EventValueSet}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 value events, got %d", len(results))
	}

	results, err = logger.Search(Query{Profiles: []string{"prod"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 events for prod, got %d", len(results))
	}

	results, err = logger.Search(Query{Sections: []string{"Window"}, Severities: []Severity{SeverityInfo}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 events for section Window, got %d", len(results))
	}

	results, err = logger.Search(Query{Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}

	results, err = logger.Search(Query{StartTime: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no future events, got %d", len(results))
	}
}

func TestConcurrentLogging(t *testing.T) {
	logger := setupTestLogger(t)
	defer logger.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			logger.LogAccess(fmt.Sprintf("Section%d", id), "read", "prod", true, nil)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	time.Sleep(200 * time.Millisecond)

	accessEvents := filterEventsByType(readEvents(t, logger.filepath), EventAccess)
	if len(accessEvents) != 10 {
		t.Errorf("Expected 10 access events, got %d", len(accessEvents))
	}
}

func TestGenerateEventID(t *testing.T) {
	id1 := generateEventID()
	id2 := generateEventID()

	if id1 == id2 {
		t.Error("Event IDs should be unique")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("Event ID should be a UUID: %v", err)
	}
}

// Helper functions

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func setupTestLogger(t *testing.T) *Logger {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test-audit.log")

	logger, err := NewLogger(Config{
		FilePath: logPath,
		MaxSize:  10 * 1024 * 1024, // 10MB
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}

	// Give logger time to initialize
	time.Sleep(50 * time.Millisecond)

	return logger
}

func readEvents(t *testing.T, path string) []*AuditEvent {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var events []*AuditEvent
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}

		var event AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Logf("Failed to parse event: %v", err)
			continue
		}
		events = append(events, &event)
	}

	return events
}

func filterEventsByType(events []*AuditEvent, types ...EventType) []*AuditEvent {
	typeMap := make(map[EventType]bool)
	for _, t := range types {
		typeMap[t] = true
	}

	var filtered []*AuditEvent
	for _, event := range events {
		if typeMap[event.Type] {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
