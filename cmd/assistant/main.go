// Package main is the console front end of the recall assistant.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ownerID  string
	noStream bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Conversational assistant with per-user fact memory",
	Long: `assistant answers questions with a language model and decides per turn
whether the facts it has stored about you are needed. Facts are mined from
the conversation only when you ask for it with /extract.`,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "List the facts stored for a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFacts(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ownerID, "user", "u", "", "owner id of the user (required)")
	_ = rootCmd.MarkPersistentFlagRequired("user")
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Print replies only when complete")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(factsCmd)
}

func main() {
	ctx, stop := notifyContext()
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
