package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/internal/watch"
	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print changes to a file-backed profile as they happen",
		Long: `Watch the profile file and print every added, removed or modified
value each time the file is saved. Only file backends can be watched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			switch s.kind {
			case storage.KindIni, storage.KindYAML, storage.KindTOML, storage.KindJSON:
			default:
				return fmt.Errorf("%w: cannot watch a %q profile", storage.ErrUnsupportedBackend, s.kind)
			}

			previous, err := s.profile.DataSet()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := watch.New(s.profile.Name(), func() {
				current, err := s.profile.DataSet()
				if err != nil {
					s.logger.Warn("failed to reload profile", "error", err)
					return
				}
				printChanges(out, dataset.Diff(previous, current))
				previous = current
			}, watch.WithLogger(s.logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", s.profile.Name())
			return w.Run(ctx)
		},
	}
}

func printChanges(w io.Writer, changes []dataset.Change) {
	for _, c := range changes {
		switch c.Kind {
		case dataset.Added:
			fmt.Fprintf(w, "+ %s/%s = %v\n", c.Table, c.Column, c.New)
		case dataset.Removed:
			fmt.Fprintf(w, "- %s/%s (was %v)\n", c.Table, c.Column, c.Old)
		case dataset.Modified:
			fmt.Fprintf(w, "~ %s/%s: %v -> %v\n", c.Table, c.Column, c.Old, c.New)
		}
	}
}
