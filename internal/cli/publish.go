package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/waypost-app/pubflow/internal/list"
	"github.com/waypost-app/pubflow/internal/publish"
	"github.com/waypost-app/pubflow/internal/safeop"
	"github.com/waypost-app/pubflow/internal/workflow"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	Kind        string
	Description string
	Media       string
}

// publishResult is the JSON payload of a completed publish.
type publishResult struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	PrimaryTopic string `json:"primary_topic"`
	ListTopic    string `json:"list_topic"`
	AssetRef     string `json:"asset_ref,omitempty"`
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <name>",
		Short: "Publish a channel or group",
		Long: `Publish a new channel or group: create its topic, upload the optional
artwork, announce it, and fold it into the profile's list topic, creating
and linking that topic on first use.

Steps run with auto-progress on. A failed step halts the flow with exit
code 1; everything that landed before the failure stays durable on the
ledger.

Example:
  pubflow publish "News" --db waypost.db --profile 0.0.1001 --kind Channels
  pubflow publish "Chess Club" --db waypost.db --profile 0.0.1001 --kind Groups --media cover.png`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "Channels", "list kind: Channels or Groups")
	cmd.Flags().StringVar(&opts.Description, "description", "", "content description")
	cmd.Flags().StringVar(&opts.Media, "media", "", "path to an artwork file to attach")

	return cmd
}

func runPublish(opts *PublishOptions, name string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := cmd.Context()

	kind, err := list.ParseKind(opts.Kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown --kind", err)
	}

	prof, err := s.profileStore(opts.RootOptions)
	if err != nil {
		return err
	}
	rec, err := prof.Load(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "load profile", err)
	}

	draft := publish.Draft{Kind: kind, Name: name, Description: opts.Description}
	if opts.Media != "" {
		data, err := os.ReadFile(opts.Media)
		if err != nil {
			return WrapExitError(ExitCommandError, "read media file", err)
		}
		draft.Media = data
		draft.MediaName = filepath.Base(opts.Media)
	}

	// The local ledger reads its own writes; no mirror propagation to wait out.
	listTopic := rec.ListTopic(kind)
	coord := list.NewCoordinator(s.store, s.cache, kind, listTopic,
		list.WithLogger(s.log),
		list.WithPropagationWait(0),
	)
	if !listTopic.Empty() {
		if err := coord.Load(ctx, listTopic); err != nil {
			return WrapExitError(ExitFailure, "load existing list", err)
		}
	}

	runner := safeop.New()
	runner.SetLogger(s.log)
	runner.OnTransient = func(msg string) { s.out.VerboseLog("warning: %s", msg) }

	prev := map[workflow.StepName]workflow.Status{}
	flow, err := publish.New(publish.Config{
		Client:      s.store,
		Binary:      s.store,
		Coordinator: coord,
		LinkProfile: prof.Updater(),
		Signer:      operatorSigner(opts.Account),
		Draft:       draft,
		Runner:      runner,
		Scheduler:   workflow.ImmediateScheduler{},
		OnChange: func(p workflow.Plan) {
			for _, st := range p {
				if prev[st.Name] != st.Status {
					prev[st.Name] = st.Status
					s.out.Step(st)
				}
			}
		},
		OnNotice: func(msg string) { s.out.VerboseLog("%s", msg) },
		Logger:   s.log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "assemble publish flow", err)
	}

	eng := flow.Engine()
	eng.ToggleAutoProgress(true)
	eng.Start()
	if err := eng.Drain(ctx); err != nil {
		return WrapExitError(ExitFailure, "publish interrupted", err)
	}

	plan := eng.Plan()
	if !plan.Complete() {
		for _, st := range plan {
			if st.Status == workflow.StatusError {
				details := map[string]string{"step": string(st.Name), "message": st.Message}
				if err := s.out.Error("PUBLISH_HALTED", "publish halted on step "+string(st.Name), details); err != nil {
					return err
				}
				return WrapExitError(ExitFailure, fmt.Sprintf("step %s failed: %s", st.Name, st.Message), nil)
			}
		}
		return WrapExitError(ExitFailure, "publish did not complete", nil)
	}

	res := flow.Result()
	out := publishResult{
		Kind:         kind.String(),
		Name:         name,
		PrimaryTopic: string(res.PrimaryTopic),
		ListTopic:    string(res.ListTopic),
		AssetRef:     string(res.AssetRef),
	}
	if opts.Format == "json" {
		return s.out.Success(out)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s %q\n  topic: %s\n  list:  %s\n", kind, name, res.PrimaryTopic, res.ListTopic)
	if res.AssetRef != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  asset: %s\n", res.AssetRef)
	}
	return nil
}
