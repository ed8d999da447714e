package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/list"
)

// NewListsCommand groups the list subcommands.
func NewListsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Inspect and mutate the profile's list topics",
	}
	cmd.AddCommand(newListsShowCommand(rootOpts))
	cmd.AddCommand(newListsAddCommand(rootOpts))
	cmd.AddCommand(newListsRemoveCommand(rootOpts))
	cmd.AddCommand(newListsUpdateCommand(rootOpts))
	return cmd
}

func newListsShowCommand(rootOpts *RootOptions) *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print a list topic's contents",
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

			kind, err := list.ParseKind(kindName)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown --kind", err)
			}
			prof, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			rec, err := prof.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "load profile", err)
			}

			topicID := rec.ListTopic(kind)
			coord := list.NewCoordinator(s.store, s.cache, kind, topicID, list.WithLogger(s.log))
			if err := coord.Load(ctx, topicID); err != nil {
				return WrapExitError(ExitFailure, "load list", err)
			}
			items := coord.State().Items

			if rootOpts.Format == "json" {
				return s.out.Success(map[string]interface{}{
					"kind":  kind.String(),
					"topic": string(topicID),
					"items": items,
				})
			}
			if topicID.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no list topic yet\n", kind)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d item(s)\n", kind, topicID, len(items))
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s\n", it.Name, it.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "Channels", "list kind")
	return cmd
}

func newListsAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		kindName    string
		id          string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an entry to a list topic",
		Long: `Add an entry referencing an existing topic id into a list. Following
lists are maintained this way: the referenced channel or group was
published by someone else, so only the list write happens here. The list
topic is lazily created and linked into the profile on first use; adding
an id that is already present succeeds without a write.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()

			kind, err := list.ParseKind(kindName)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown --kind", err)
			}
			prof, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			rec, err := prof.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "load profile", err)
			}

			topicID := rec.ListTopic(kind)
			coord := list.NewCoordinator(s.store, s.cache, kind, topicID,
				list.WithLogger(s.log),
				list.WithBackRefUpdater(prof.Updater()),
				list.WithPropagationWait(0),
			)
			res, err := coord.AddItem(ctx, list.Item{
				Name:        args[0],
				ID:          ledger.TopicID(id),
				Description: description,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "add list item", err)
			}

			if rootOpts.Format == "json" {
				return s.out.Success(map[string]interface{}{
					"kind":    kind.String(),
					"topic":   string(res.TopicID),
					"created": res.CreatedTopic,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q to %s (%s)\n", args[0], kind, res.TopicID)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "FollowingChannels", "list kind")
	cmd.Flags().StringVar(&id, "id", "", "referenced topic id (required)")
	cmd.Flags().StringVar(&description, "description", "", "entry description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListsRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "remove <topic-id>",
		Short: "Remove an entry from a list topic",
		Long: `Remove the entry referencing the given topic id. Removing an id that is
not present succeeds without a write.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()

			kind, err := list.ParseKind(kindName)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown --kind", err)
			}
			prof, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			rec, err := prof.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "load profile", err)
			}

			topicID := rec.ListTopic(kind)
			coord := list.NewCoordinator(s.store, s.cache, kind, topicID, list.WithLogger(s.log))
			if !topicID.Empty() {
				if err := coord.Load(ctx, topicID); err != nil {
					return WrapExitError(ExitFailure, "load list", err)
				}
			}
			if err := coord.RemoveItem(ctx, ledger.TopicID(args[0])); err != nil {
				return WrapExitError(ExitFailure, "remove list item", err)
			}

			if rootOpts.Format == "json" {
				return s.out.Success(map[string]string{"kind": kind.String(), "removed": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[0], kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "Channels", "list kind")
	return cmd
}

func newListsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		kindName    string
		name        string
		description string
		media       string
	)

	cmd := &cobra.Command{
		Use:   "update <topic-id>",
		Short: "Update an entry in a list topic",
		Long: `Update fields of the entry referencing the given topic id. Only flags
that are set change the entry; updating an id that is not present fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()

			kind, err := list.ParseKind(kindName)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown --kind", err)
			}
			prof, err := s.profileStore(rootOpts)
			if err != nil {
				return err
			}
			rec, err := prof.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "load profile", err)
			}

			var patch list.Patch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("media") {
				patch.Media = &media
			}

			topicID := rec.ListTopic(kind)
			coord := list.NewCoordinator(s.store, s.cache, kind, topicID, list.WithLogger(s.log))
			if !topicID.Empty() {
				if err := coord.Load(ctx, topicID); err != nil {
					return WrapExitError(ExitFailure, "load list", err)
				}
			}
			if err := coord.UpdateItem(ctx, ledger.TopicID(args[0]), patch); err != nil {
				return WrapExitError(ExitFailure, "update list item", err)
			}

			if rootOpts.Format == "json" {
				return s.out.Success(map[string]string{"kind": kind.String(), "updated": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s in %s\n", args[0], kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "Channels", "list kind")
	cmd.Flags().StringVar(&name, "name", "", "new entry name")
	cmd.Flags().StringVar(&description, "description", "", "new entry description")
	cmd.Flags().StringVar(&media, "media", "", "new entry media reference")
	return cmd
}
