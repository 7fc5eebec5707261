package main

import (
	"context"
	"fmt"

	"github.com/entrhq/gauntlet/pkg/browser"
	"github.com/entrhq/gauntlet/pkg/config"
	"github.com/entrhq/gauntlet/pkg/fetch"
	"github.com/entrhq/gauntlet/pkg/llm"
	"github.com/entrhq/gauntlet/pkg/llm/openai"
	"github.com/entrhq/gauntlet/pkg/solver"
	"github.com/spf13/cobra"
)

// loadConfig resolves configuration from the environment, then overlays the
// optional --config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()

	path, err := cmd.Flags().GetString("config")
	if err == nil && path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sessionRunner wires one browser tab, resolver, and driver per session. A
// single tab is opened per run and reused across every task of that run.
type sessionRunner struct {
	cfg     *config.Config
	manager *browser.Manager
	vote    bool
}

func newSessionRunner(cfg *config.Config, manager *browser.Manager, vote bool) *sessionRunner {
	return &sessionRunner{cfg: cfg, manager: manager, vote: vote}
}

// buildChain assembles the reasoning provider chain: primary first, then
// secondary. Unconfigured providers are skipped.
func (r *sessionRunner) buildChain() *llm.Chain {
	var providers []llm.Provider
	for _, pc := range []struct {
		name string
		conf config.ProviderConfig
	}{
		{"primary", r.cfg.Primary},
		{"secondary", r.cfg.Secondary},
	} {
		if !pc.conf.Configured() {
			continue
		}
		opts := []openai.ProviderOption{openai.WithName(pc.name)}
		if pc.conf.Model != "" {
			opts = append(opts, openai.WithModel(pc.conf.Model))
		}
		if pc.conf.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.conf.BaseURL))
		}
		p, err := openai.NewProvider(pc.conf.APIKey, opts...)
		if err != nil {
			continue
		}
		providers = append(providers, p)
	}
	return llm.NewChain(providers...)
}

func (r *sessionRunner) buildTranscriber() *openai.TranscriberChain {
	var opts []openai.TranscriberOption
	if r.cfg.Transcription.Model != "" {
		opts = append(opts, openai.WithTranscriberModel(r.cfg.Transcription.Model))
	}
	if r.cfg.Transcription.BaseURL != "" {
		opts = append(opts, openai.WithTranscriberBaseURL(r.cfg.Transcription.BaseURL))
	}
	return openai.NewTranscriberChain(openai.NewTranscriber(r.cfg.Transcription.APIKey, opts...))
}

// Run executes one solve session: open a tab, drive the task loop, release
// the tab. The driver owns the tab for the session lifetime.
func (r *sessionRunner) Run(ctx context.Context, task *solver.Task) *solver.SessionReport {
	tab, err := r.manager.NewTab(browser.TabOptions{
		Headless:          r.cfg.Browser.Headless,
		NavigationTimeout: r.cfg.Browser.NavigationTimeout,
	})
	if err != nil {
		return &solver.SessionReport{
			FinalState: solver.StateTerminated,
			History:    &solver.TaskHistory{},
		}
	}

	files := fetch.NewClient(
		fetch.WithMaxBytes(r.cfg.Download.MaxBytes),
		fetch.WithTimeout(r.cfg.Download.Timeout),
		fetch.WithRetries(r.cfg.Download.Retries),
	)

	resolver := solver.NewResolver(
		r.buildChain(),
		r.buildTranscriber(),
		files,
		solver.WithRenderer(tab),
		solver.WithVote(r.vote),
	)

	driver := solver.NewDriver(tab, resolver, solver.NewHTTPSubmitter(nil),
		solver.WithTaskCeiling(r.cfg.Session.TaskCeiling),
		solver.WithRetryCeiling(r.cfg.Session.RetryCeiling),
		solver.WithDeadline(r.cfg.Session.Deadline, r.cfg.Session.Grace),
		solver.WithTabRelease(tab.Close),
	)

	return driver.Run(ctx, task)
}
