package ksm

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/validation"
	sm "github.com/keeper-security/secrets-manager-go/core"
)

// ErrRecordNotFound is returned when a record UID does not resolve
var ErrRecordNotFound = errors.New("record not found")

// requiredConfigFields must be present in every device configuration
var requiredConfigFields = []string{"clientId", "privateKey", "appKey"}

// Client reads and writes record notes through the Secrets Manager SDK.
// It satisfies storage.NotesStore.
type Client struct {
	sm        *sm.SecretsManager
	validator *validation.Validator
	logger    *slog.Logger
	audit     *audit.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the operational logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAuditLogger records vault reads and writes in the audit log
func WithAuditLogger(logger *audit.Logger) Option {
	return func(c *Client) {
		c.audit = logger
	}
}

// NewClient creates a client from a device configuration
func NewClient(config map[string]string, opts ...Option) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	storage := sm.NewMemoryKeyValueStorage(config)
	smClient := sm.NewSecretsManager(&sm.ClientOptions{Config: storage})
	if smClient == nil {
		return nil, errors.New("failed to create secrets manager client")
	}

	c := &Client{
		sm:        smClient,
		validator: validation.NewValidator(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitializeWithToken exchanges a one-time token for a device configuration
func InitializeWithToken(token string) (map[string]string, error) {
	validator := validation.NewValidator()
	if err := validator.ValidateToken(token); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	storage := sm.NewMemoryKeyValueStorage()
	client := sm.NewSecretsManager(&sm.ClientOptions{
		Token:  token,
		Config: storage,
	})
	if client == nil {
		return nil, errors.New("failed to create secrets manager client")
	}

	// The first request binds the token to this device
	if _, err := client.GetSecrets([]string{}); err != nil {
		return nil, fmt.Errorf("failed to initialize with token: %w", err)
	}

	config := make(map[string]string)
	storageData := storage.ReadStorage()
	for _, key := range append(requiredConfigFields, "hostname", "serverPublicKeyId") {
		if value, ok := storageData[key].(string); ok {
			config[key] = value
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("failed to retrieve configuration from token: %w", err)
	}
	return config, nil
}

// ParseConfig reads a device configuration given either as JSON or as
// the base64 form printed by the Keeper tooling.
func ParseConfig(data []byte) (map[string]string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("configuration is empty")
	}

	raw := []byte(trimmed)
	if !strings.HasPrefix(trimmed, "{") {
		decoded, err := base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("configuration is neither JSON nor base64: %w", err)
		}
		raw = decoded
	}

	var config map[string]string
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFile reads a device configuration file
func LoadConfigFile(path string) (map[string]string, error) {
	if err := validation.NewValidator().ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ReadNotes returns the notes of the record uid. It reports false if the
// record does not exist.
func (c *Client) ReadNotes(uid string) (string, bool, error) {
	record, err := c.record(uid)
	if errors.Is(err, ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	c.logAccess(uid, "read_notes")
	return record.Notes(), true, nil
}

// WriteNotes replaces the notes of the record uid
func (c *Client) WriteNotes(uid, notes string) error {
	record, err := c.record(uid)
	if err != nil {
		return err
	}

	record.SetNotes(notes)
	if err := c.sm.Save(record); err != nil {
		c.logError(err, "write_notes", uid)
		return fmt.Errorf("failed to save record: %w", err)
	}

	c.logAccess(uid, "write_notes")
	return nil
}

// TestConnection checks that the configuration is accepted by the vault
func (c *Client) TestConnection() error {
	if _, err := c.sm.GetSecrets([]string{}); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (c *Client) record(uid string) (*sm.Record, error) {
	if err := c.validator.ValidateUID(uid); err != nil {
		return nil, fmt.Errorf("invalid UID: %w", err)
	}

	records, err := c.sm.GetSecrets([]string{uid})
	if err != nil {
		c.logError(err, "get_record", uid)
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, uid)
	}

	// Shortcuts resolve to the same record more than once; any copy will do
	return records[0], nil
}

func validateConfig(config map[string]string) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}
	for _, field := range requiredConfigFields {
		if config[field] == "" {
			return fmt.Errorf("missing required field: %s", field)
		}
	}
	return nil
}

func (c *Client) logAccess(uid, action string) {
	c.logger.Debug("vault record accessed", "uid", uid, "action", action)
	if c.audit != nil {
		c.audit.LogAccess(uid, action, uid, true, nil)
	}
}

func (c *Client) logError(err error, operation, uid string) {
	c.logger.Error("vault operation failed", "operation", operation, "uid", uid, "error", err)
	if c.audit != nil {
		c.audit.LogError("ksm", err, map[string]interface{}{
			"operation": operation,
			"uid":       uid,
		})
	}
}
