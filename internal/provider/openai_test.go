package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

func fastRetries(t *testing.T) {
	t.Helper()
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = prev })
}

func TestOpenAI_ChatSendsOpenRouterHeaders(t *testing.T) {
	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://stadthirsch.ch", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "StadtHirsch KI-Briefing", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hallo!"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{
		Name:        "openrouter",
		APIKey:      "sk-or-test",
		APIBase:     srv.URL + "/",
		Model:       "moonshotai/kimi-k2.5",
		Temperature: 0.7,
		MaxTokens:   2000,
		Referer:     "https://stadthirsch.ch",
		Title:       "StadtHirsch KI-Briefing",
		Logger:      testLogger(),
	})

	resp, err := p.Chat(context.Background(), domain.ChatRequest{Messages: []domain.Message{
		{Role: "system", Content: "Du bist Stratege."},
		{Role: "user", Content: "Hallo"},
	}})
	require.NoError(t, err)

	assert.Equal(t, "Hallo!", resp.Content)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "moonshotai/kimi-k2.5", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	assert.Len(t, got.Messages, 2)
	assert.False(t, got.Stream)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	fastRetries(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	resp, err := p.Chat(context.Background(), domain.ChatRequest{Messages: []domain.Message{{Role: "user", Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAI_ClientErrorNotRetried(t *testing.T) {
	fastRetries(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_EmptyCompletionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
}

func TestOpenAI_MissingKeyFailsFast(t *testing.T) {
	p := NewOpenAI(OpenAIConfig{APIBase: "http://127.0.0.1:1", Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	assert.True(t, errors.Is(err, errMissingAPIKey))
	assert.Error(t, p.Healthy(context.Background()))
}

func TestOpenAI_DeadlineStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	start := time.Now()
	_, err := p.Chat(ctx, domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
