// Package commands provides the CLI commands for geminiassist.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "3.0.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "geminiassist",
	Short: "Gemini coding assistant MCP server",
	Long: `geminiassist exposes Gemini as a consultation tool for other AI agents
over the Model Context Protocol, with session management, file attachments
and context persistence across follow-up questions.

Run 'geminiassist serve' to start the server on stdio.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env files are not an error.
		_ = godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("geminiassist %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
