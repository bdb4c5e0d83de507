package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/logging"
	"github.com/keeper-security/ksm-profile/internal/ui"
	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
		table  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the profile as a data set",
		Long: `Export every section of the profile as a data set table.

JSON output is the document accepted by "import". CSV output writes one
table (--table) or every table separated by a blank line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			ds, err := s.profile.DataSet()
			s.metrics.ObserveExport(start)
			if err != nil {
				return err
			}
			if ds == nil {
				return fmt.Errorf("profile %s does not exist", s.profile.Name())
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304 - path chosen by the user
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			return writeDataSet(w, ds, format, table)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json, csv)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&table, "table", "", "CSV only: export a single table")
	return cmd
}

func writeDataSet(w io.Writer, ds *dataset.DataSet, format, table string) error {
	switch format {
	case "json":
		return dataset.Encode(w, ds)
	case "csv":
		if table != "" {
			t := ds.Table(table)
			if t == nil {
				return fmt.Errorf("table %q not found", table)
			}
			return dataset.WriteCSV(w, t)
		}
		for i, t := range ds.Tables() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := dataset.WriteCSV(w, t); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func newImportCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a data set into the profile",
		Long: `Write the first row of every table of a JSON data set into the profile.
Tables become sections and columns become entries. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readDataSet(cmd, args[0])
			if err != nil {
				return err
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			items := make([]string, 0, len(ds.Tables()))
			for _, t := range ds.Tables() {
				items = append(items, fmt.Sprintf("%s (%d entries)", t.Name(), len(t.Columns())))
			}
			if len(items) == 0 {
				return fmt.Errorf("data set %q has no tables", ds.Name())
			}

			confirmation := s.cfg.Confirmation()
			if yes {
				confirmation.AutoApprove = true
			}
			confirmer := ui.NewConfirmerWithIO(confirmation, cmd.InOrStdin(), cmd.ErrOrStderr())
			result := confirmer.ConfirmBatchOperation(cmd.Context(), "import into "+s.profile.Name(), items)
			if result.Error != nil {
				return result.Error
			}
			if !result.Approved {
				return fmt.Errorf("import: %w", errCancelled)
			}

			start := time.Now()
			err = s.profile.SetDataSet(ds)
			s.metrics.ObserveImport(start)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func readDataSet(cmd *cobra.Command, path string) (*dataset.DataSet, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path) // #nosec G304 - path chosen by the user
		if err != nil {
			return nil, fmt.Errorf("failed to open data set: %w", err)
		}
		defer f.Close()
		r = f
	}

	ds, err := dataset.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data set: %w", err)
	}
	return ds, nil
}

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Copy a profile between storage formats",
		Long: `Copy every section and entry from SRC to DST. The format of each side is
chosen by its extension: .ini, .yaml, .toml, .json, .db or .sqlite.

Examples:
  ksm-profile convert settings.ini settings.toml
  ksm-profile convert settings.yaml vault.json   # sealed when a master password is set`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			password := cfg.MasterPassword()
			logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			src, closeSrc, err := openPath(args[0], password, logger)
			if err != nil {
				return err
			}
			defer closeSrc()

			dst, closeDst, err := openPath(args[1], password, logger)
			if err != nil {
				return err
			}
			defer closeDst()

			ds, err := src.DataSet()
			if err != nil {
				return err
			}
			if ds == nil {
				return fmt.Errorf("profile %s does not exist", args[0])
			}
			if err := dst.SetDataSet(ds); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Converted %d sections from %s to %s\n", len(ds.Tables()), args[0], args[1])
			return nil
		},
	}
}
