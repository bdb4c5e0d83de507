package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/keeper-security/ksm-profile/internal/validation"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// EventType represents the type of audit event
type EventType string

const (
	// Profile change events
	EventProfileRename EventType = "PROFILE_RENAME"
	EventProfileLock   EventType = "PROFILE_LOCK"
	EventValueSet      EventType = "VALUE_SET"
	EventEntryRemove   EventType = "ENTRY_REMOVE"
	EventSectionRemove EventType = "SECTION_REMOVE"
	EventProfileChange EventType = "PROFILE_CHANGE"

	// Access events
	EventAccess       EventType = "ACCESS"
	EventAccessDenied EventType = "ACCESS_DENIED"

	// System events
	EventStartup      EventType = "STARTUP"
	EventShutdown     EventType = "SHUTDOWN"
	EventError        EventType = "ERROR"
	EventConfigChange EventType = "CONFIG_CHANGE"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// MaskedValue replaces values of sensitive entries
const MaskedValue = "******"

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Type          EventType              `json:"type"`
	Severity      Severity               `json:"severity"`
	Source        string                 `json:"source"`
	Profile       string                 `json:"profile,omitempty"`
	Section       string                 `json:"section,omitempty"`
	Entry         string                 `json:"entry,omitempty"`
	Value         string                 `json:"value,omitempty"`
	Action        string                 `json:"action"`
	Result        string                 `json:"result"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Logger writes audit events as JSON lines from a background worker
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	filepath  string
	maxSize   int64
	maxAge    time.Duration
	encoder   *json.Encoder
	eventChan chan *AuditEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	log       *slog.Logger
}

// Config represents logger configuration
type Config struct {
	FilePath string
	MaxSize  int64         // Maximum file size in bytes
	MaxAge   time.Duration // Maximum age of rotated files
	Logger   *slog.Logger  // Reports failures to write the audit log itself
}

// NewLogger creates a new audit logger
func NewLogger(config Config) (*Logger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	logger := &Logger{
		file:      file,
		filepath:  config.FilePath,
		maxSize:   config.MaxSize,
		maxAge:    config.MaxAge,
		encoder:   json.NewEncoder(file),
		eventChan: make(chan *AuditEvent, 100),
		stopChan:  make(chan struct{}),
		log:       config.Logger,
	}
	if logger.log == nil {
		logger.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	logger.wg.Add(1)
	go logger.worker()

	logger.LogSystem(EventStartup, "Audit logger started", nil)

	return logger, nil
}

// Path returns the active log file
func (l *Logger) Path() string {
	return l.filepath
}

// Log queues an event for writing
func (l *Logger) Log(event *AuditEvent) {
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	case <-time.After(time.Second):
		l.log.Error("audit event dropped", "type", event.Type, "error", "queue full")
	}
}

// Attach records every committed change of p. Values of entries with
// sensitive names are masked.
func (l *Logger) Attach(p *profile.Profile) {
	p.OnChanged(func(p *profile.Profile, e profile.ChangedArgs) error {
		l.LogChange(p.Name(), e)
		return nil
	})
}

// LogChange logs one committed profile change
func (l *Logger) LogChange(profileName string, e profile.ChangedArgs) {
	event := &AuditEvent{
		Type:     eventTypeFor(e.ChangeType()),
		Severity: SeverityInfo,
		Source:   "profile",
		Profile:  profileName,
		Section:  e.Section(),
		Entry:    e.Entry(),
		Action:   e.ChangeType().String(),
		Result:   "SUCCESS",
	}

	if v := e.Value(); v != nil {
		if validation.IsSensitiveName(e.Entry()) {
			event.Value = MaskedValue
		} else {
			event.Value = cast.ToString(v)
		}
	}
	if e.ChangeType() == profile.ChangeReadOnly {
		event.Severity = SeverityWarning
	}

	l.Log(event)
}

// AccessEvent builds the event for a read or a refused request against a
// profile
func AccessEvent(resource, action, profileName string, allowed bool, details map[string]interface{}) *AuditEvent {
	eventType := EventAccess
	result := "ALLOWED"
	severity := SeverityInfo

	if !allowed {
		eventType = EventAccessDenied
		result = "DENIED"
		severity = SeverityWarning
	}

	return &AuditEvent{
		Type:     eventType,
		Severity: severity,
		Source:   "access",
		Profile:  profileName,
		Action:   action,
		Result:   result,
		Details:  sanitize(withResource(details, resource)),
	}
}

// LogAccess logs a read or a refused request against a profile
func (l *Logger) LogAccess(resource, action, profileName string, allowed bool, details map[string]interface{}) {
	l.Log(AccessEvent(resource, action, profileName, allowed, details))
}

// LogError logs an error event
func (l *Logger) LogError(source string, err error, details map[string]interface{}) {
	l.Log(&AuditEvent{
		Type:     EventError,
		Severity: SeverityError,
		Source:   source,
		Action:   "error",
		Result:   "ERROR",
		Error:    err.Error(),
		Details:  sanitize(details),
	})
}

// LogSystem logs a system event
func (l *Logger) LogSystem(eventType EventType, message string, details map[string]interface{}) {
	l.Log(&AuditEvent{
		Type:     eventType,
		Severity: SeverityInfo,
		Source:   "system",
		Action:   string(eventType),
		Result:   message,
		Details:  details,
	})
}

// LogWithCorrelation logs an event tagged with correlationID, such as the
// id of the HTTP request that caused it
func (l *Logger) LogWithCorrelation(event *AuditEvent, correlationID string) {
	event.CorrelationID = correlationID
	l.Log(event)
}

func (l *Logger) worker() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.eventChan:
			l.writeEvent(event)

		case <-ticker.C:
			l.performMaintenance()

		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeEvent(event *AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(event); err != nil {
		l.log.Error("failed to write audit event", "type", event.Type, "error", err)
	}

	if l.maxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() > l.maxSize {
			l.rotate()
		}
	}
}

// rotate moves the current file aside; callers hold l.mu
func (l *Logger) rotate() {
	_ = l.file.Close()

	timestamp := time.Now().Format("20060102-150405.000000000")
	rotatedPath := fmt.Sprintf("%s.%s", l.filepath, timestamp)
	if err := os.Rename(l.filepath, rotatedPath); err != nil {
		l.log.Warn("failed to rotate audit log", "path", l.filepath, "error", err)
	}

	file, err := os.OpenFile(l.filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.log.Error("failed to reopen audit log", "path", l.filepath, "error", err)
		return
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
}

// performMaintenance removes rotated files older than maxAge
func (l *Logger) performMaintenance() {
	if l.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(l.filepath)
	base := filepath.Base(l.filepath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-l.maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base || !strings.HasPrefix(name, base+".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				l.log.Warn("failed to remove old audit log", "file", name, "error", err)
			}
		}
	}
}

// Close flushes pending events and closes the file
func (l *Logger) Close() error {
	l.LogSystem(EventShutdown, "Audit logger shutting down", nil)

	close(l.stopChan)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

func generateEventID() string {
	return uuid.NewString()
}

func eventTypeFor(ct profile.ChangeType) EventType {
	switch ct {
	case profile.ChangeName:
		return EventProfileRename
	case profile.ChangeReadOnly:
		return EventProfileLock
	case profile.ChangeSetValue:
		return EventValueSet
	case profile.ChangeRemoveEntry:
		return EventEntryRemove
	case profile.ChangeRemoveSection:
		return EventSectionRemove
	default:
		return EventProfileChange
	}
}

func sanitize(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	clean := make(map[string]interface{}, len(details))
	for k, v := range details {
		if validation.IsSensitiveName(k) {
			clean[k] = MaskedValue
			continue
		}
		clean[k] = v
	}
	return clean
}

func withResource(details map[string]interface{}, resource string) map[string]interface{} {
	if resource == "" {
		return details
	}
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["resource"] = resource
	return out
}

// Query filters audit events
type Query struct {
	StartTime     time.Time
	EndTime       time.Time
	EventTypes    []EventType
	Severities    []Severity
	Profiles      []string
	Sections      []string
	CorrelationID string
	Limit         int
}

func (q Query) matches(event *AuditEvent) bool {
	switch {
	case !q.StartTime.IsZero() && event.Timestamp.Before(q.StartTime):
		return false
	case !q.EndTime.IsZero() && event.Timestamp.After(q.EndTime):
		return false
	case len(q.EventTypes) > 0 && !slices.Contains(q.EventTypes, event.Type):
		return false
	case len(q.Severities) > 0 && !slices.Contains(q.Severities, event.Severity):
		return false
	case len(q.Profiles) > 0 && !slices.Contains(q.Profiles, event.Profile):
		return false
	case len(q.Sections) > 0 && !slices.Contains(q.Sections, event.Section):
		return false
	case q.CorrelationID != "" && event.CorrelationID != q.CorrelationID:
		return false
	}
	return true
}

// Search scans the active log file for events matching query
func (l *Logger) Search(query Query) ([]*AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)

	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			break // EOF or a truncated line
		}
		if !query.matches(&event) {
			continue
		}

		events = append(events, &event)
		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}

	return events, nil
}
