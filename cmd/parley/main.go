// Command parley is the Parley chat tool: host a session, join one, or
// run a headless server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/pkg/logging"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "Small-group chat sessions over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Setup(logging.Options{Level: logLevel, Format: logFormat})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newServeCmd(), newHostCmd(), newJoinCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
