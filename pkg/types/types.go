package types

import (
	"encoding/json"
	"time"
)

// ProfileInfo describes an open profile
type ProfileInfo struct {
	Name        string `json:"name"`
	DefaultName string `json:"default_name"`
	ReadOnly    bool   `json:"read_only"`
	Backend     string `json:"backend,omitempty"`
}

// SectionList lists the sections of a profile
type SectionList struct {
	Profile  string   `json:"profile"`
	Sections []string `json:"sections"`
}

// EntryValue is a single entry with its value and value type
type EntryValue struct {
	Section string `json:"section"`
	Entry   string `json:"entry"`
	Type    string `json:"type"`
	Value   any    `json:"value"`
}

// SectionEntries lists the entries of one section in order
type SectionEntries struct {
	Section string       `json:"section"`
	Entries []EntryValue `json:"entries"`
}

// SetValueRequest is the body of a value write. Type names the Go type
// the value is stored as (e.g. "int", "float64"); when empty the JSON
// type decides.
type SetValueRequest struct {
	Value json.RawMessage `json:"value"`
	Type  string          `json:"type,omitempty"`
}

// SafeError represents a safe error that can be exposed to clients
type SafeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Confirmation represents user confirmation settings
type Confirmation struct {
	BatchMode   bool          `json:"batch_mode"`
	AutoApprove bool          `json:"auto_approve"`
	Timeout     time.Duration `json:"timeout"`
	DefaultDeny bool          `json:"default_deny"`
}

// HealthStatus represents the health check result
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Profile   string    `json:"profile,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
