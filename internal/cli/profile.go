package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/profile"
)

// NewProfileCommand groups the profile subcommands.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create, inspect, and migrate the owning profile",
	}
	cmd.AddCommand(newProfileInitCommand(rootOpts))
	cmd.AddCommand(newProfileShowCommand(rootOpts))
	cmd.AddCommand(newProfileMigrateCommand(rootOpts))
	return cmd
}

func newProfileInitCommand(rootOpts *RootOptions) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a profile topic",
		Long: `Create a fresh profile topic on the ledger and write its initial record.

The printed topic id is what every other command's --profile flag expects.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()

			id, err := s.store.CreateTopic(ctx, "Waypost Profile", "Waypost: create profile", true)
			if err != nil {
				return WrapExitError(ExitFailure, "create profile topic", err)
			}
			prof := profile.NewStore(s.store, id, s.log)
			if err := prof.Save(ctx, profile.Record{DisplayName: displayName}); err != nil {
				return WrapExitError(ExitFailure, "write initial profile record", err)
			}

			if rootOpts.Format == "json" {
				return s.out.Success(map[string]string{"profile": string(id)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile topic created: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "initial display name")
	return cmd
}

func newProfileShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the profile record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			prof, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			rec, err := prof.Load(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "load profile", err)
			}

			if rootOpts.Format == "json" {
				return s.out.Success(rec)
			}
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newProfileMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy another profile's lists onto this profile",
		Long: `Copy every list of the --from profile onto fresh topics owned by the
--profile profile. List contents are moved wholesale; the destination
profile's back-references are linked as each list lands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()

			dst, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			src := profile.NewStore(s.store, ledger.TopicID(from), s.log)
			srcRec, err := src.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "load source profile", err)
			}

			if err := profile.Migrate(ctx, s.store, s.cache, srcRec, dst, s.log); err != nil {
				return WrapExitError(ExitFailure, "migrate profile lists", err)
			}

			if rootOpts.Format == "json" {
				rec, err := dst.Load(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "load migrated profile", err)
				}
				return s.out.Success(rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated lists from %s to %s\n", from, rootOpts.Profile)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source profile topic id (required)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
