// Package main provides the entry point for the codepulse server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codepulse/cmd/codepulse/commands"
	"github.com/Sumatoshi-tech/codepulse/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codepulse",
		Short: "CodePulse - realtime code analysis server",
		Long: `CodePulse analyzes source code over a realtime WebSocket protocol.

Commands:
  serve     Start the analysis server
  status    Query a running server's status`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "codepulse %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
