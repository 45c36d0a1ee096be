// Botflow CLI — инструмент командной строки для управления
// ботами, сессиями и аналитикой через HTTP API.
//
// Использование:
//
//	botflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	bot      Управление ботами
//	session  Управление сессиями
//	stats    Аналитика ботов
//	graph    Валидация графов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Botflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "botflow",
		Short:         "Botflow CLI — conversation flow platform tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewBotCmd(clientFn, outputFn),
		cli.NewSessionCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
		cli.NewGraphCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
