package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/logging"
)

func newAuditCmd(a *app) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	auditCmd.AddCommand(newAuditSearchCmd(a))
	return auditCmd
}

func newAuditSearchCmd(a *app) *cobra.Command {
	var (
		eventTypes []string
		severities []string
		profiles   []string
		sections   []string
		requestID  string
		since      time.Duration
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the audit log",
		Long: `Search the active audit log file set by logging.audit_file.

Filters of the same kind match any of their values; different filters must
all match. --request-id finds the events recorded for one HTTP request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Logging.AuditFile == "" {
				return errors.New("no audit log configured (set logging.audit_file)")
			}

			logger, err := audit.NewLogger(audit.Config{
				FilePath: cfg.Logging.AuditFile,
				Logger:   logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format),
			})
			if err != nil {
				return fmt.Errorf("failed to open audit log: %w", err)
			}
			defer logger.Close()

			query := audit.Query{
				Profiles:      profiles,
				Sections:      sections,
				CorrelationID: requestID,
				Limit:         limit,
			}
			for _, t := range eventTypes {
				query.EventTypes = append(query.EventTypes, audit.EventType(strings.ToUpper(t)))
			}
			for _, s := range severities {
				query.Severities = append(query.Severities, audit.Severity(strings.ToUpper(s)))
			}
			if since > 0 {
				query.StartTime = time.Now().Add(-since)
			}

			events, err := logger.Search(query)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No matching events in %s\n", logger.Path())
				return nil
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, e := range events {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(out, "%s %-14s %-8s %s\n",
					e.Timestamp.Format(time.RFC3339), e.Type, e.Result, eventTarget(e))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&eventTypes, "type", nil, "event types, e.g. VALUE_SET,ACCESS_DENIED")
	flags.StringSliceVar(&severities, "severity", nil, "severities, e.g. WARNING,ERROR")
	flags.StringSliceVar(&profiles, "profile", nil, "profile names")
	flags.StringSliceVar(&sections, "section", nil, "section names")
	flags.StringVar(&requestID, "request-id", "", "HTTP request id")
	flags.DurationVar(&since, "since", 0, "only events newer than this, e.g. 24h")
	flags.IntVar(&limit, "limit", 0, "maximum number of events (0 for all)")
	flags.BoolVar(&asJSON, "json", false, "print events as JSON lines")
	return cmd
}

// eventTarget renders what an event touched: profile, section and entry
func eventTarget(e *audit.AuditEvent) string {
	parts := []string{e.Profile}
	if e.Section != "" {
		parts = append(parts, e.Section)
	}
	if e.Entry != "" {
		parts = append(parts, e.Entry)
	}
	target := strings.Join(parts, " ")
	if e.Value != "" {
		target += " = " + e.Value
	}
	return strings.TrimSpace(target)
}
