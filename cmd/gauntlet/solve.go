package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/solver"
	"github.com/spf13/cobra"
)

// NewSolveCmd creates the solve command.
func NewSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve [start-url]",
		Short: "Solve a quiz-page chain starting from a URL",
		Long: `Solve opens a headless browser at the given URL and drives the full
task loop: resolve each page's answer, submit it with the given
credentials, and follow next URLs until the chain ends, the session
deadline passes, or the task ceiling is reached.

Examples:
  # Solve a chain with explicit credentials
  gauntlet solve --email you@example.com --secret s3cret https://host/task/1`,
		Args: cobra.ExactArgs(1),
		RunE: runSolve,
	}

	cmd.Flags().String("email", "", "Email presented in submissions (required)")
	cmd.Flags().String("secret", "", "Secret presented in submissions (required)")
	cmd.Flags().Bool("vote", false, "Race primary and secondary providers for free-text answers")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	secret, _ := cmd.Flags().GetString("secret")
	vote, _ := cmd.Flags().GetBool("vote")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := browser.NewManager()
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() { _ = manager.Shutdown() }()

	runner := newSessionRunner(cfg, manager, vote)
	task := &solver.Task{
		URL:       args[0],
		Email:     email,
		Secret:    secret,
		StartedAt: time.Now(),
	}

	report := runner.Run(ctx, task)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tasks attempted: %d\n", report.TasksAttempted)
	fmt.Fprintf(out, "correct:         %d\n", report.Correct)
	for i, entry := range report.History.Entries() {
		mark := "✗"
		if entry.Correct {
			mark = "✓"
		}
		fmt.Fprintf(out, "  %2d %s %v (%s)\n", i+1, mark, entry.Answer, entry.URL)
	}
	return nil
}
