package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Transcriber uploads audio bytes to an OpenAI-compatible transcription
// endpoint (Whisper wire format) and returns the transcript text.
//
// An unconfigured transcriber (empty API key) is valid: Transcribe returns
// ("", nil), which downstream treats as "no audio instruction available"
// rather than a failure.
type Transcriber struct {
	httpClient *http.Client
	name       string
	apiKey     string
	baseURL    string
	model      string
}

// TranscriberOption configures a Transcriber.
type TranscriberOption func(*Transcriber)

// WithTranscriberModel sets the transcription model.
func WithTranscriberModel(model string) TranscriberOption {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithTranscriberBaseURL sets a custom base URL.
func WithTranscriberBaseURL(baseURL string) TranscriberOption {
	return func(t *Transcriber) {
		t.baseURL = baseURL
	}
}

// WithTranscriberName sets the name used in logs and errors.
func WithTranscriberName(name string) TranscriberOption {
	return func(t *Transcriber) {
		t.name = name
	}
}

// WithTranscriberHTTPClient overrides the HTTP client, mainly for tests.
func WithTranscriberHTTPClient(client *http.Client) TranscriberOption {
	return func(t *Transcriber) {
		t.httpClient = client
	}
}

// NewTranscriber creates a transcription provider. Unlike NewProvider an
// empty API key is not an error; it yields a declining transcriber.
func NewTranscriber(apiKey string, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		name:       "openai-whisper",
		model:      "whisper-1",
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transcriber name.
func (t *Transcriber) Name() string {
	return t.name
}

// Configured reports whether this transcriber can be called at all.
func (t *Transcriber) Configured() bool {
	return t.apiKey != ""
}

// Transcribe uploads audio and returns the transcript. It returns ("", nil)
// when the transcriber is unconfigured, and an error for transport or API
// failures so a chain can try the next provider.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	if !t.Configured() {
		return "", nil
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}
	if fileName == "" {
		fileName = "audio.mp3"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio payload: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	url := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription request failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return result.Text, nil
}

// TranscriberChain tries transcribers in fixed priority order. It returns
// ("", nil) when every provider declines or is unconfigured; transcription is
// best-effort and its absence is never fatal.
type TranscriberChain struct {
	transcribers []*Transcriber
}

// NewTranscriberChain creates a chain, skipping nil entries.
func NewTranscriberChain(transcribers ...*Transcriber) *TranscriberChain {
	c := &TranscriberChain{}
	for _, t := range transcribers {
		if t != nil {
			c.transcribers = append(c.transcribers, t)
		}
	}
	return c
}

// Transcribe tries each configured transcriber until one returns text.
func (c *TranscriberChain) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	for _, t := range c.transcribers {
		if !t.Configured() {
			continue
		}
		text, err := t.Transcribe(ctx, audio, fileName)
		if err == nil && text != "" {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", nil
		}
		// Best effort: keep going on per-provider failure.
		_ = err
	}
	return "", nil
}
