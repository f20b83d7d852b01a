package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

func TestBuildGeminiRequest_MapsRoles(t *testing.T) {
	req := buildGeminiRequest(domain.ChatRequest{Messages: []domain.Message{
		{Role: "system", Content: "Regel 1"},
		{Role: "user", Content: "Hallo"},
		{Role: "assistant", Content: "Hi"},
		{Role: "system", Content: "Regel 2"},
	}}, 0.7, 2000)

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "Regel 1\n\nRegel 2", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, 2000, req.GenerationConfig.MaxOutputTokens)
}

func TestBuildGeminiRequest_NoSystemNoConfig(t *testing.T) {
	req := buildGeminiRequest(domain.ChatRequest{Messages: []domain.Message{{Role: "user", Content: "x"}}}, 0, 0)
	assert.Nil(t, req.SystemInstruction)
	assert.Nil(t, req.GenerationConfig)
}

func TestGemini_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body gemRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Contents, 1)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Guten "},{"text":"Tag"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2,"totalTokenCount":6}}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "g-key", APIBase: srv.URL, Logger: testLogger()})
	resp, err := g.Chat(context.Background(), domain.ChatRequest{Messages: []domain.Message{{Role: "user", Content: "Hallo"}}})
	require.NoError(t, err)

	assert.Equal(t, "Guten Tag", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, domain.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}, resp.Usage)
}

func TestGemini_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "g-key", APIBase: srv.URL, Logger: testLogger()})
	_, err := g.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
}
