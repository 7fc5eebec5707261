package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	assert.Error(t, err)
}

func TestNewProviderOptions(t *testing.T) {
	p, err := NewProvider("sk-test",
		WithModel("gpt-4o-mini"),
		WithBaseURL("http://localhost:9"),
		WithName("primary"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", p.Model())
	assert.Equal(t, "primary", p.Name())
	assert.Equal(t, "http://localhost:9", p.baseURL)
}

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/chat/completions", r.URL.Path)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "the answer is 130"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL), WithModel("gpt-4o"))
	require.NoError(t, err)

	got, err := p.Complete(context.Background(), "solver system prompt", "what is the sum?")
	require.NoError(t, err)
	assert.Equal(t, "the answer is 130", got)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])

	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestCompleteNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clue.mp3", header.Filename)

		w.Write([]byte(`{"text":"sum values below 30064"}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("sk-test", WithTranscriberBaseURL(srv.URL))
	got, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "clue.mp3")
	require.NoError(t, err)
	assert.Equal(t, "sum values below 30064", got)
}

func TestTranscribeUnconfiguredReturnsNoSignal(t *testing.T) {
	tr := NewTranscriber("")
	got, err := tr.Transcribe(context.Background(), []byte("audio"), "a.mp3")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestTranscriberChainFallsThrough(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"count rows above ten"}`))
	}))
	defer good.Close()

	chain := NewTranscriberChain(
		NewTranscriber("sk-a", WithTranscriberBaseURL(bad.URL)),
		NewTranscriber(""), // unconfigured, skipped
		NewTranscriber("sk-b", WithTranscriberBaseURL(good.URL)),
	)

	got, err := chain.Transcribe(context.Background(), []byte("audio"), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "count rows above ten", got)
}

func TestTranscriberChainAllDeclineIsNotAnError(t *testing.T) {
	chain := NewTranscriberChain(NewTranscriber(""), nil)
	got, err := chain.Transcribe(context.Background(), []byte("audio"), "a.wav")
	assert.NoError(t, err)
	assert.Empty(t, got)
}
