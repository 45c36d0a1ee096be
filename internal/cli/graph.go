package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewGraphCmd создаёт группу команд для работы с графами.
func NewGraphCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Work with flow graphs",
	}

	cmd.AddCommand(newGraphValidateCmd(clientFn, outputFn))

	return cmd
}

func newGraphValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a graph JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read graph file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("graph file is not valid JSON")
			}

			resp, err := client.ValidateGraph(data)
			if err != nil {
				return err
			}

			if !resp.Valid {
				out.Error(fmt.Sprintf("graph is invalid: %s", resp.Error))
				os.Exit(1)
			}

			out.Success(fmt.Sprintf("Graph is valid (%d nodes)", resp.Nodes))
			return nil
		},
	}
}
