package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root clipcheck command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clipcheck",
		Short: "Video-editing agent evaluation harness",
		Long: `clipcheck evaluates AI agents that edit video projects through tool calls.
It runs declarative scenarios against fixture-backed project data and checks
tool usage, final state, agent behavior, and reference tags in responses.`,
	}

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewViewCmd())
	rootCmd.AddCommand(NewServeToolsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
