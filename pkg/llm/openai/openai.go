// Package openai provides an OpenAI-compatible reasoning provider.
//
// The provider speaks to any chat-completions endpoint that follows the
// OpenAI wire format (OpenAI, Azure, Groq, local gateways). Requests are sent
// over raw HTTP rather than a generated client, which gives better
// compatibility with near-OpenAI APIs that deviate slightly from the spec.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultRequestTimeout = 60 * time.Second
)

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	name       string
	apiKey     string
	baseURL    string
	model      string
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithName sets the provider name used in logs and errors.
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		p.name = name
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates a new OpenAI-compatible provider with the given API key.
//
// If apiKey is empty, it falls back to the OPENAI_API_KEY environment
// variable. If no base URL is provided via WithBaseURL, OPENAI_BASE_URL is
// consulted before the default.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		name:       "openai",
		model:      "gpt-4o",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	return p, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the model name being used.
func (p *Provider) Model() string {
	return p.model
}

// Complete sends a system and user prompt and returns the full completion.
func (p *Provider) Complete(ctx context.Context, system, user string) (string, error) {
	messages := buildMessages(system, user)

	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return "", fmt.Errorf("API request failed with status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

// buildMessages converts prompts to OpenAI's ChatCompletionMessageParamUnion
// format, which marshals to the wire shape every compatible API accepts.
func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))
	return messages
}
