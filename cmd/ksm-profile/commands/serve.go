package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the profile over HTTP",
		Long: `Serve the profile as a small JSON API.

Sections, entries and the data set export are available under /sections
and /dataset. Prometheus metrics are served on /metrics unless
metrics.enabled is false.

Examples:
  # Serve the default INI profile on the configured address
  ksm-profile serve

  # Serve a SQLite profile on all interfaces
  ksm-profile serve --backend sqlite --addr 0.0.0.0:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if addr == "" {
				addr = s.cfg.Server.Addr
			}

			opts := []httpapi.Option{
				httpapi.WithLogger(s.logger),
				httpapi.WithBackendKind(string(s.kind)),
				httpapi.WithRateLimit(s.cfg.Server.RateLimit),
			}
			if s.audit != nil {
				opts = append(opts, httpapi.WithAuditLogger(s.audit))
			}
			if s.cfg.Metrics.Enabled {
				opts = append(opts, httpapi.WithMetrics(s.metrics, s.registry))
			}
			server := httpapi.NewServer(s.profile, opts...)

			// Set up signal handling for graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if s.audit != nil {
				s.audit.LogSystem(audit.EventStartup, "Profile server started", map[string]interface{}{
					"addr":    addr,
					"profile": s.profile.Name(),
					"backend": string(s.kind),
				})
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			s.logger.Info("shutting down profile server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			if s.audit != nil {
				s.audit.LogSystem(audit.EventShutdown, "Profile server stopped", nil)
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
