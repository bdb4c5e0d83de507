package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/storage"
)

// app carries the global flags shared by every command
type app struct {
	configFile string
	backend    string
	name       string
	dataDir    string
	verbose    bool
}

// NewRootCmd builds the command tree
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ksm-profile",
		Short: "Inspect and edit settings profiles",
		Long: `ksm-profile reads and writes named settings profiles made of sections,
entries and values.

A profile can live in an INI, YAML, TOML or JSON file, in a SQLite database,
or in the notes of a Keeper Secrets Manager record.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	kinds := make([]string, 0, len(storage.Kinds()))
	for _, k := range storage.Kinds() {
		kinds = append(kinds, string(k))
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is ~/.keeper/ksm-profile/config.yaml)")
	flags.StringVar(&a.backend, "backend", "", fmt.Sprintf("profile backend (%s)", strings.Join(kinds, ", ")))
	flags.StringVar(&a.name, "name", "", "profile name: a file path, database key or record UID")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory for file and SQLite profiles")
	flags.BoolVar(&a.verbose, "verbose", false, "verbose output")

	rootCmd.AddCommand(
		newProfilesCmd(a),
		newSectionsCmd(a),
		newEntriesCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newRmCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newConvertCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
		newAuditCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}
