package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roasbeef/tdcore/internal/baselib/log"
	"github.com/roasbeef/tdcore/internal/client"
)

// outputFormat controls how responses print: "text" (human readable) or
// "json" (raw object JSON), matching the teacher CLI's --format flag.
var outputFormat string

// logDir, when non-empty, enables the rotating file log sink alongside the
// console, matching the teacher daemon's --logdir flag.
var logDir string

// logFile is the open rotator closed by PersistentPostRun once the command
// finishes, so log lines from the run are flushed before exit.
var logFile io.Closer

var rootCmd = &cobra.Command{
	Use:   "tdcorectl",
	Short: "Debug CLI for the tdcore client façade",
	Long: `tdcorectl drives internal/client.Manager directly for local
debugging: run a synchronous request through execute, or open a short-lived
client instance to send a request and print every response and update it
produces before closing.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logDir == "" {
			return nil
		}

		closer, err := log.InitFileLogging(log.DefaultFileConfig(logDir))
		if err != nil {
			return fmt.Errorf("initializing file logging: %w", err)
		}
		logFile = closer

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile == nil {
			return nil
		}
		return logFile.Close()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text",
		"Output format: text, json")
	rootCmd.PersistentFlags().StringVar(&logDir, "logdir", "",
		"Directory for rotating log files; empty disables file logging")

	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(sendCmd)
}

func newManager() *client.Manager {
	return client.NewManager()
}
