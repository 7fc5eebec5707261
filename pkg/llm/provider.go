// Package llm provides abstractions for reasoning-provider integration.
//
// Providers handle API communication with LLM services and return plain
// completion text. This keeps providers focused on transport concerns; the
// solver layer owns prompting, answer parsing, and fallback policy.
//
// Example usage:
//
//	provider, err := openai.NewProvider(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chain := llm.NewChain(provider)
//	answer, err := chain.Ask(ctx, "You are a solver.", "What is 2+2?")
package llm

import (
	"context"
	"errors"
)

// ErrAllProvidersFailed is returned when every provider in a chain has been
// tried, with retries, and none produced a completion.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Provider is a single reasoning endpoint.
//
// Implementations should be safe for sequential reuse across many calls; the
// chain does not recreate providers between attempts.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Complete sends a system and user prompt and returns the full response
	// text. It returns an error for transport failures, non-2xx responses,
	// and empty completions.
	Complete(ctx context.Context, system, user string) (string, error)
}
