package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAttemptsPerProvider is how many times each provider is tried
	// before the chain moves on to the next one.
	DefaultAttemptsPerProvider = 2

	// DefaultRetryDelay is the fixed delay between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Chain iterates an ordered list of providers until one succeeds. Each
// provider gets a fixed number of attempts with a fixed inter-attempt delay;
// when the list is exhausted the chain reports ErrAllProvidersFailed.
type Chain struct {
	providers []Provider
	attempts  int
	delay     time.Duration
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithAttempts sets the per-provider attempt count.
func WithAttempts(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) ChainOption {
	return func(c *Chain) {
		c.delay = d
	}
}

// NewChain creates a provider chain. Providers are tried in the given order;
// nil entries are skipped so callers can pass optional providers directly.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{
		attempts: DefaultAttemptsPerProvider,
		delay:    DefaultRetryDelay,
	}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// NewChainWith creates a chain with options applied.
func NewChainWith(providers []Provider, opts ...ChainOption) *Chain {
	c := NewChain(providers...)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Empty reports whether the chain has no providers.
func (c *Chain) Empty() bool {
	return len(c.providers) == 0
}

// Ask tries each provider in order until one returns a non-empty completion.
func (c *Chain) Ask(ctx context.Context, system, user string) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrAllProvidersFailed
	}

	var errs []string
	for _, p := range c.providers {
		for attempt := 1; attempt <= c.attempts; attempt++ {
			text, err := p.Complete(ctx, system, user)
			if err == nil && strings.TrimSpace(text) != "" {
				return text, nil
			}
			if err == nil {
				err = fmt.Errorf("empty completion")
			}
			errs = append(errs, fmt.Sprintf("%s attempt %d: %v", p.Name(), attempt, err))

			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(errs, "; "))
			}
			if attempt < c.attempts {
				select {
				case <-time.After(c.delay):
				case <-ctx.Done():
					return "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(errs, "; "))
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(errs, "; "))
}

// Vote runs up to two providers concurrently and prefers results by fixed
// provider priority, not by completion order: if the first provider succeeds
// its answer wins even when the second finished earlier. This is the optional
// multi-provider vote mode; with fewer than two providers it degrades to Ask.
func (c *Chain) Vote(ctx context.Context, system, user string) (string, error) {
	if len(c.providers) < 2 {
		return c.Ask(ctx, system, user)
	}

	results := make([]string, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		i := i
		p := c.providers[i]
		g.Go(func() error {
			text, err := p.Complete(gctx, system, user)
			if err != nil {
				// A single provider failing must not cancel the group.
				return nil
			}
			results[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	for _, text := range results {
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", ErrAllProvidersFailed
}
