package cli

import (
	"github.com/spf13/cobra"
)

// NewStatsCmd создаёт группу команд статистики ботов.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Bot analytics",
	}

	cmd.AddCommand(
		newStatsCompletionCmd(clientFn, outputFn),
		newStatsDropoffsCmd(clientFn, outputFn),
		newStatsEngagementCmd(clientFn, outputFn),
		newStatsDailyCmd(clientFn, outputFn),
	)

	return cmd
}

// statsFlags вешает общие флаги окна на команду статистики.
func statsFlags(cmd *cobra.Command, opts *StatsOpts) {
	cmd.Flags().StringVar(&opts.From, "from", "", "Window start (RFC3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Window end (RFC3339)")
}

func newStatsCompletionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts StatsOpts

	cmd := &cobra.Command{
		Use:   "completion BOT_ID",
		Short: "Show completion rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.GetCompletionRate(args[0], opts)
			if err != nil {
				return err
			}

			out.Completion(resp)
			return nil
		},
	}

	statsFlags(cmd, &opts)
	return cmd
}

func newStatsDropoffsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts StatsOpts

	cmd := &cobra.Command{
		Use:   "dropoffs BOT_ID",
		Short: "Show top drop-off points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetDropOffPoints(args[0], opts)
			if err != nil {
				return err
			}

			out.NodeStats(stats)
			return nil
		},
	}

	statsFlags(cmd, &opts)
	cmd.Flags().IntVar(&opts.Top, "top", 0, "Number of top points (default 10)")
	return cmd
}

func newStatsEngagementCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts StatsOpts

	cmd := &cobra.Command{
		Use:   "engagement BOT_ID",
		Short: "Show node traffic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetNodeEngagement(args[0], opts)
			if err != nil {
				return err
			}

			out.NodeStats(stats)
			return nil
		},
	}

	statsFlags(cmd, &opts)
	return cmd
}

func newStatsDailyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts StatsOpts

	cmd := &cobra.Command{
		Use:   "daily BOT_ID",
		Short: "Show sessions by day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			days, err := client.GetSessionsByDay(args[0], opts)
			if err != nil {
				return err
			}

			out.DayStats(days)
			return nil
		},
	}

	statsFlags(cmd, &opts)
	return cmd
}
