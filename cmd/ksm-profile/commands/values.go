package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keeper-security/ksm-profile/internal/storage"
	"github.com/keeper-security/ksm-profile/internal/ui"
	"github.com/keeper-security/ksm-profile/pkg/dataset"
	"github.com/keeper-security/ksm-profile/pkg/profile"
)

// errCancelled reports a change vetoed at the confirmation prompt
var errCancelled = errors.New("operation cancelled")

func newSectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the sections of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			sections, err := s.profile.SectionNames()
			if err != nil {
				return err
			}
			if sections == nil {
				return fmt.Errorf("profile %s does not exist", s.profile.Name())
			}
			for _, section := range sections {
				fmt.Fprintln(cmd.OutOrStdout(), section)
			}
			return nil
		},
	}
}

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles held by the backend",
		Long: `List the profiles held by the backend.

Only backends that keep several profiles in one store, such as sqlite,
can list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			lister, ok := s.profile.Backend().(storage.Lister)
			if !ok {
				return fmt.Errorf("%w: the %s backend cannot list profiles", storage.ErrUnsupportedBackend, s.kind)
			}
			names, err := lister.Profiles()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newEntriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entries SECTION",
		Short: "List the entries of a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.profile.EntryNames(args[0])
			if err != nil {
				return err
			}
			if entries == nil {
				return fmt.Errorf("section %q not found", args[0])
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "get SECTION ENTRY",
		Short: "Print the value of an entry",
		Long: `Print the value of an entry.

With --type the value is coerced to a primitive type; values that cannot be
converted print as the zero value of that type.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			section, entry := args[0], args[1]
			found, err := s.profile.HasEntry(section, entry)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("entry %s/%s not found", section, entry)
			}

			value, err := typedValue(s.profile, section, entry, typeName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "coerce the value (bool, int, int64, uint, float64, ...)")
	return cmd
}

// typedValue reads entry through the typed accessor named by typeName.
// An empty name returns the stored value unchanged.
func typedValue(p profile.ReadOnlyProfile, section, entry, typeName string) (any, error) {
	switch typeName {
	case "":
		return p.Value(section, entry)
	case "string":
		v, err := p.Value(section, entry)
		if err != nil || v == nil {
			return "", err
		}
		return fmt.Sprint(v), nil
	case "bool":
		return profile.GetValue[bool](p, section, entry)
	case "int":
		return profile.GetValue[int](p, section, entry)
	case "int8":
		return profile.GetValue[int8](p, section, entry)
	case "int16":
		return profile.GetValue[int16](p, section, entry)
	case "int32":
		return profile.GetValue[int32](p, section, entry)
	case "int64":
		return profile.GetValue[int64](p, section, entry)
	case "uint":
		return profile.GetValue[uint](p, section, entry)
	case "uint8":
		return profile.GetValue[uint8](p, section, entry)
	case "uint16":
		return profile.GetValue[uint16](p, section, entry)
	case "uint32":
		return profile.GetValue[uint32](p, section, entry)
	case "uint64":
		return profile.GetValue[uint64](p, section, entry)
	case "float32":
		return profile.GetValue[float32](p, section, entry)
	case "float64":
		return profile.GetValue[float64](p, section, entry)
	default:
		return nil, fmt.Errorf("unsupported type %q", typeName)
	}
}

func newSetCmd(a *app) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "set SECTION ENTRY VALUE",
		Short: "Write the value of an entry",
		Long: `Write the value of an entry, creating the section if needed.

The value is stored as a string unless --type names another primitive type.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := dataset.TypeByName(typeName)
			if typ == nil {
				return fmt.Errorf("unsupported type %q", typeName)
			}
			value, err := dataset.Convert(args[2], typ)
			if err != nil {
				return fmt.Errorf("cannot convert %q to %s: %w", args[2], typeName, err)
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.profile.SetValue(args[0], args[1], value)
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "string", "value type (bool, int, int64, uint, float64, string, ...)")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm SECTION [ENTRY]",
		Short: "Remove an entry or a whole section",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			confirmation := s.cfg.Confirmation()
			if yes {
				confirmation.AutoApprove = true
			}
			confirmer := ui.NewConfirmerWithIO(confirmation, cmd.InOrStdin(), cmd.ErrOrStderr())

			cancelled := false
			s.profile.OnChanging(s.metrics.CountCancels(func(_ *profile.Profile, e *profile.ChangingArgs) error {
				kind, target := "section", e.Section()
				if e.ChangeType() == profile.ChangeRemoveEntry {
					kind, target = "entry", e.Section()+"/"+e.Entry()
				}
				result := confirmer.ConfirmRemoval(cmd.Context(), kind, target)
				if result.Error != nil {
					return result.Error
				}
				if !result.Approved {
					e.Cancel = true
					cancelled = true
				}
				return nil
			}))

			if len(args) == 2 {
				err = s.profile.RemoveEntry(args[0], args[1])
			} else {
				err = s.profile.RemoveSection(args[0])
			}
			if err != nil {
				return err
			}
			if cancelled {
				return fmt.Errorf("remove %s: %w", strings.Join(args, "/"), errCancelled)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
