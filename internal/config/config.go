package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/keeper-security/ksm-profile/pkg/types"
)

// ErrConfigNotFound is returned when the config file is not found by Load.
var ErrConfigNotFound = errors.New("configuration file not found")

// EnvPrefix prefixes every environment override, e.g. KSM_PROFILE_LOGGING_LEVEL.
const EnvPrefix = "KSM_PROFILE"

// Config represents the application configuration
type Config struct {
	Profile  ProfileConfig  `mapstructure:"profile"`
	Security SecurityConfig `mapstructure:"security"`
	Keeper   KeeperConfig   `mapstructure:"keeper"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ProfileConfig selects the backend and the profile inside it
type ProfileConfig struct {
	Backend string `mapstructure:"backend"`
	Name    string `mapstructure:"name"`
	DataDir string `mapstructure:"data_dir"`
}

// SecurityConfig represents security settings
type SecurityConfig struct {
	MasterPasswordEnv   string        `mapstructure:"master_password_env"`
	BatchMode           bool          `mapstructure:"batch_mode"`
	AutoApprove         bool          `mapstructure:"auto_approve"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
}

// KeeperConfig configures the vault-backed profile store
type KeeperConfig struct {
	ConfigFile string `mapstructure:"config_file"`
	RecordUID  string `mapstructure:"record_uid"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	RateLimit int    `mapstructure:"rate_limit"` // requests per minute, 0 disables
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AuditFile string `mapstructure:"audit_file"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{
			Backend: "ini",
			DataDir: filepath.Join(getConfigDir(), "profiles"),
		},
		Security: SecurityConfig{
			MasterPasswordEnv:   EnvPrefix + "_MASTER_PASSWORD",
			ConfirmationTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Settings flattens c into viper keys. It drives defaults, Save and
// "config show".
func (c *Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"profile.backend":               c.Profile.Backend,
		"profile.name":                  c.Profile.Name,
		"profile.data_dir":              c.Profile.DataDir,
		"security.master_password_env":  c.Security.MasterPasswordEnv,
		"security.batch_mode":           c.Security.BatchMode,
		"security.auto_approve":         c.Security.AutoApprove,
		"security.confirmation_timeout": c.Security.ConfirmationTimeout.String(),
		"keeper.config_file":            c.Keeper.ConfigFile,
		"keeper.record_uid":             c.Keeper.RecordUID,
		"server.addr":                   c.Server.Addr,
		"server.rate_limit":             c.Server.RateLimit,
		"logging.level":                 c.Logging.Level,
		"logging.format":                c.Logging.Format,
		"logging.audit_file":            c.Logging.AuditFile,
		"metrics.enabled":               c.Metrics.Enabled,
	}
}

// newViper returns a viper instance seeded with defaults and environment
// overrides. Defaults must be registered for AutomaticEnv to reach Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range DefaultConfig().Settings() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases
	_ = v.BindEnv("profile.backend", EnvPrefix+"_BACKEND")
	_ = v.BindEnv("profile.name", EnvPrefix+"_NAME")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("security.batch_mode", EnvPrefix+"_BATCH_MODE")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// Load loads configuration from file, applying environment overrides
func Load(configFile string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}
	v.SetConfigFile(configFile)

	// Check existence first; viper only reports ConfigFileNotFoundError
	// when searching config paths.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, ErrConfigNotFound
	}

	if err := v.ReadInConfig(); err != nil {
		var vfnfError viper.ConfigFileNotFoundError
		if errors.As(err, &vfnfError) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file content: %w", err)
	}

	return unmarshal(v)
}

// LoadEnv builds a configuration from defaults and environment overrides
// only, for runs without a config file.
func LoadEnv() (*Config, error) {
	return unmarshal(newViper())
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are ignored and variables that are already set
// are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(configFile string) error {
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	for key, value := range c.Settings() {
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(configFile, 0600)
}

// SaveDefault saves configuration to the default location
func (c *Config) SaveDefault() error {
	return c.Save("")
}

// MasterPassword returns the password that seals JSON profiles. The
// environment variable named by security.master_password_env wins over a
// Docker secret; an empty result means profiles are stored in the clear.
func (c *Config) MasterPassword() string {
	if name := strings.TrimSpace(c.Security.MasterPasswordEnv); name != "" {
		if password := os.Getenv(name); password != "" {
			return password
		}
	}
	if password, err := LoadMasterPasswordFromSecret(DockerSecretsPath); err == nil {
		return password
	}
	return ""
}

// Confirmation returns the prompt settings for destructive CLI commands
func (c *Config) Confirmation() types.Confirmation {
	return types.Confirmation{
		BatchMode:   c.Security.BatchMode,
		AutoApprove: c.Security.AutoApprove,
		Timeout:     c.Security.ConfirmationTimeout,
	}
}

// getConfigDir returns the configuration directory
func getConfigDir() string {
	if configDir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); configDir != "" {
		return configDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory with absolute path
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".keeper", "ksm-profile")
	}

	return filepath.Join(homeDir, ".keeper", "ksm-profile")
}

// GetConfigDir returns the configuration directory (exported)
func GetConfigDir() string {
	return getConfigDir()
}

// EnsureConfigDir ensures the configuration directory exists
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// LoadOrCreate loads existing config or creates a new one
func LoadOrCreate(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg = DefaultConfig()
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}
	if errSave := cfg.Save(configFile); errSave != nil {
		return nil, fmt.Errorf("failed to save default config to %s: %w", configFile, errSave)
	}
	return cfg, nil
}
