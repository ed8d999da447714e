package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// NewTopicsCommand groups the topic inspection subcommands.
func NewTopicsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Inspect raw ledger topics",
	}
	cmd.AddCommand(newTopicsShowCommand(rootOpts))
	return cmd
}

type topicMessage struct {
	Seq     int64  `json:"seq"`
	Memo    string `json:"memo,omitempty"`
	Payload string `json:"payload"`
}

func newTopicsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <topic-id>",
		Short: "Dump every message of a topic",
		Long: `Print a topic's full message history in sequence order. List and profile
topics treat the latest message as the whole current state; the history
shows each prior snapshot.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			msgs, err := s.store.Messages(cmd.Context(), ledger.TopicID(args[0]))
			if err != nil {
				return WrapExitError(ExitFailure, "read topic messages", err)
			}

			if rootOpts.Format == "json" {
				out := make([]topicMessage, len(msgs))
				for i, m := range msgs {
					out[i] = topicMessage{Seq: m.SequenceNumber, Memo: m.Memo, Payload: string(m.Payload)}
				}
				return s.out.Success(map[string]interface{}{"topic": args[0], "messages": out})
			}

			if len(msgs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "topic %s has no messages\n", args[0])
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d  [%s]\n  %s\n", m.SequenceNumber, m.Memo, m.Payload)
			}
			return nil
		},
	}
}
