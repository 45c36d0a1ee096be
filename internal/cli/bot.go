package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBotCmd создаёт группу команд для управления ботами.
func NewBotCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage bots",
	}

	cmd.AddCommand(
		newBotListCmd(clientFn, outputFn),
		newBotShowCmd(clientFn, outputFn),
		newBotEnableCmd(clientFn, outputFn),
		newBotDisableCmd(clientFn, outputFn),
	)

	return cmd
}

func newBotListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bots, err := client.ListBots()
			if err != nil {
				return err
			}

			out.Bots(bots)
			return nil
		},
	}
}

func newBotShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show bot details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bot, err := client.GetBot(args[0])
			if err != nil {
				return err
			}

			out.Bot(bot)
			return nil
		},
	}
}

func newBotEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bot, err := client.SetBotEnabled(args[0], true)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Bot enabled: %s", bot.ID))
			return nil
		},
	}
}

func newBotDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bot, err := client.SetBotEnabled(args[0], false)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Bot disabled: %s", bot.ID))
			return nil
		},
	}
}
