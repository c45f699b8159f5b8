// Command chatctl is an operator tool for the support chat: it can ask the
// answer service a question, list quick questions, and inspect or clear a
// persisted session log.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"saathi-backend/internal/logging"
)

func main() {
	logging.Setup(envOr("LOG_LEVEL", "warn"), "console")

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatctl",
		Short:        "Operate the Swasth Saathi support chat",
		SilenceUsage: true,
	}

	root.AddCommand(
		newAskCommand(),
		newQuickQuestionsCommand(),
		newTranscriptCommand(),
		newResetCommand(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
