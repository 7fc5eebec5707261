package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door for solve requests",
		Long: `Serve starts the HTTP server that accepts solve requests. Each accepted
request runs a full solve session in the background against its own
browser tab.

Requests are authenticated against the shared secret (GAUNTLET_SECRET or
the config file's shared_secret).

Examples:
  # Listen on the configured address
  gauntlet serve

  # Race providers in free-text mode
  gauntlet serve --vote`,
		RunE: runServe,
	}

	cmd.Flags().Bool("vote", false, "Race primary and secondary providers for free-text answers")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.SharedSecret == "" {
		return errors.New("a shared secret is required to serve (set GAUNTLET_SECRET)")
	}
	vote, _ := cmd.Flags().GetBool("vote")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := browser.NewManager()
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() { _ = manager.Shutdown() }()

	runner := newSessionRunner(cfg, manager, vote)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(cfg.SharedSecret, runner),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
