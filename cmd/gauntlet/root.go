// Package main provides the entry point for the gauntlet CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for gauntlet.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gauntlet",
		Short: "Autonomous solver for linked quiz-page challenges",
		Long: `Gauntlet renders quiz pages in a headless browser, resolves each page's
question through a chain of extraction strategies (tabular files, audio
instructions, document text, language models), submits the answer, and
follows the next URL until the chain ends or the session deadline is hit.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (overrides environment)")

	cmd.AddCommand(NewSolveCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
