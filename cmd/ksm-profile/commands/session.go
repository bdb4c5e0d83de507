package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/config"
	"github.com/keeper-security/ksm-profile/internal/ksm"
	"github.com/keeper-security/ksm-profile/internal/logging"
	"github.com/keeper-security/ksm-profile/internal/metrics"
	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// session is an opened profile with its logging, audit and metrics wired
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	kind     storage.Kind
	profile  *profile.Profile
	audit    *audit.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	closers  []func() error
}

// loadConfig resolves the configuration: .env, config file (optional),
// environment, then command line flags.
func (a *app) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(a.configFile)
	if errors.Is(err, config.ErrConfigNotFound) {
		if a.configFile != "" {
			return nil, fmt.Errorf("config file %s: %w", a.configFile, err)
		}
		cfg, err = config.LoadEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.IsRunningInDocker() {
		config.ApplyDockerDefaults(cfg)
	}

	if a.backend != "" {
		cfg.Profile.Backend = a.backend
	}
	if a.name != "" {
		cfg.Profile.Name = a.name
	}
	if a.dataDir != "" {
		cfg.Profile.DataDir = a.dataDir
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// open loads the configuration and opens the selected profile
func (a *app) open(cmd *cobra.Command) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		logger:   logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format),
		kind:     storage.Kind(cfg.Profile.Backend),
		registry: prometheus.NewRegistry(),
	}
	s.metrics = metrics.New(s.registry)

	if cfg.Logging.AuditFile != "" {
		s.audit, err = audit.NewLogger(audit.Config{
			FilePath: cfg.Logging.AuditFile,
			MaxSize:  100 * 1024 * 1024,   // 100MB in bytes
			MaxAge:   30 * 24 * time.Hour, // 30 days
			Logger:   s.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		s.closers = append(s.closers, s.audit.Close)
	}

	backend, err := s.openBackend()
	if err != nil {
		s.Close()
		return nil, err
	}
	if c, ok := backend.(io.Closer); ok {
		s.closers = append(s.closers, c.Close)
	}

	opts := []profile.Option{profile.WithLogger(s.logger)}
	if cfg.Profile.Name != "" {
		opts = append(opts, profile.WithName(cfg.Profile.Name))
	}
	s.profile = profile.New(backend, opts...)

	s.metrics.Attach(s.profile)
	if s.audit != nil {
		s.audit.Attach(s.profile)
	}

	s.logger.Debug("profile opened", "backend", s.kind, "name", s.profile.Name())
	return s, nil
}

func (s *session) openBackend() (profile.Backend, error) {
	opts := storage.Options{
		Kind:           s.kind,
		DataDir:        s.cfg.Profile.DataDir,
		MasterPassword: s.cfg.MasterPassword(),
		DefaultUID:     s.cfg.Keeper.RecordUID,
		Logger:         s.logger,
	}

	if s.kind == storage.KindKeeper {
		client, err := s.openVault()
		if err != nil {
			return nil, err
		}
		opts.Notes = client
	}

	return storage.Open(opts)
}

// openVault connects to Keeper Secrets Manager. The device configuration
// comes from keeper.config_file, a Docker secret or KSM_CONFIG_BASE64, in
// that order.
func (s *session) openVault() (*ksm.Client, error) {
	ksmConfig, err := s.vaultConfig()
	if err != nil {
		return nil, err
	}

	clientOpts := []ksm.Option{ksm.WithLogger(s.logger)}
	if s.audit != nil {
		clientOpts = append(clientOpts, ksm.WithAuditLogger(s.audit))
	}
	client, err := ksm.NewClient(ksmConfig, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Keeper: %w", err)
	}
	if err := client.TestConnection(); err != nil {
		return nil, err
	}
	s.logger.Debug("connected to Keeper")
	return client, nil
}

func (s *session) vaultConfig() (map[string]string, error) {
	if path := s.cfg.Keeper.ConfigFile; path != "" {
		return ksm.LoadConfigFile(path)
	}

	if secret, err := config.LoadDockerSecrets(config.DockerSecretsPath); err == nil {
		if secret.Token != "" {
			return ksm.InitializeWithToken(secret.Token)
		}
		return ksm.ParseConfig(secret.Config)
	}

	if encoded := os.Getenv("KSM_CONFIG_BASE64"); encoded != "" {
		return ksm.ParseConfig([]byte(encoded))
	}

	return nil, errors.New("keeper backend needs keeper.config_file, a ksm_config secret or KSM_CONFIG_BASE64")
}

// Close releases the backend and flushes the audit log
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

// openPath opens a standalone profile stored at path, choosing the backend
// from the file extension. SQLite files hold the default profile key.
func openPath(path, masterPassword string, logger *slog.Logger) (*profile.Profile, func(), error) {
	kind, err := storage.KindFromPath(path)
	if err != nil {
		return nil, nil, err
	}

	if kind == storage.KindSQLite {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		backend, err := storage.NewSQLiteBackend(path, storage.WithSQLiteLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = backend.Close() }
		return profile.New(backend, profile.WithLogger(logger)), closeFn, nil
	}

	codec, err := storage.CodecFor(kind, masterPassword)
	if err != nil {
		return nil, nil, err
	}
	backend := storage.NewFileBackend(codec)
	return profile.New(backend, profile.WithName(path), profile.WithLogger(logger)), func() {}, nil
}
