package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/list"
	"github.com/waypost-app/pubflow/internal/profile"
	"github.com/waypost-app/pubflow/internal/store"
)

// operatorSigner is the CLI's ledger.Signer: the locally configured operator
// account authorizes every write.
type operatorSigner string

// AccountID implements ledger.Signer.
func (s operatorSigner) AccountID() string { return string(s) }

// session bundles the per-invocation collaborators every command needs.
type session struct {
	store *store.Store
	cache *list.Cache
	log   *slog.Logger
	out   *OutputFormatter
}

// openSession validates global flags, opens the ledger database, and wires
// logging per the verbose flag.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	if opts.Database == "" {
		return nil, WrapExitError(ExitCommandError, "--db is required", nil)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger database", err)
	}

	return &session{
		store: st,
		cache: list.NewCache(list.DefaultCacheTTL),
		log:   log,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("closing ledger database", "err", err)
	}
}

// profileStore binds the --profile topic. Commands that read or mutate lists
// need it to resolve the profile's back-references.
func (s *session) profileStore(opts *RootOptions) (*profile.Store, error) {
	if opts.Profile == "" {
		return nil, WrapExitError(ExitCommandError, "--profile is required (run 'pubflow profile init' first)", nil)
	}
	return profile.NewStore(s.store, ledger.TopicID(opts.Profile), s.log), nil
}
