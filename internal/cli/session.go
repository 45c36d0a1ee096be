package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSessionCmd создаёт группу команд для управления сессиями.
func NewSessionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	cmd.AddCommand(
		newSessionListCmd(clientFn, outputFn),
		newSessionShowCmd(clientFn, outputFn),
		newSessionLogCmd(clientFn, outputFn),
		newSessionStopCmd(clientFn, outputFn),
	)

	return cmd
}

func newSessionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var botID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListSessions(ListSessionsOpts{
				BotID:  botID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out.Sessions(sessions)
			return nil
		},
	}

	cmd.Flags().StringVar(&botID, "bot", "", "Filter by bot ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active/completed/dropped/handed_off)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit number of results")

	return cmd
}

func newSessionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sess, err := client.GetSession(args[0])
			if err != nil {
				return err
			}

			out.Session(sess)
			return nil
		},
	}
}

func newSessionLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "log SESSION_ID",
		Short: "Show session interaction log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ins, err := client.ListInteractions(args[0])
			if err != nil {
				return err
			}

			out.Interactions(ins)
			return nil
		},
	}
}

func newSessionStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Force-close a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sess, err := client.StopSession(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Session stopped: %s (status: %s)", sess.ID, sess.Status))
			return nil
		},
	}
}
