package channel

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/agent"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/metrics"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/research"
)

type stubProvider struct{ reply string }

func (p stubProvider) Name() string                  { return "stub" }
func (p stubProvider) Models() []string              { return nil }
func (p stubProvider) Healthy(context.Context) error { return nil }
func (p stubProvider) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{Content: p.reply, Provider: "stub"}, nil
}

type pageFetcher string

func (f pageFetcher) Fetch(context.Context, string) (string, error) { return string(f), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWeb(t *testing.T, apiKey string) (*Web, *bus.EventBus) {
	t.Helper()
	events := bus.NewEventBus(testLogger())
	svc := agent.NewService(agent.ServiceConfig{
		Provider:  stubProvider{reply: "Erzähl mir mehr!"},
		Events:    events,
		AITimeout: time.Second,
		Logger:    testLogger(),
	})
	cfg := config.Defaults()
	cfg.Providers["openrouter"] = config.ProviderConfig{Enabled: true, Kind: "openai", APIKey: "sk-or-very-secret-key"}
	w := NewWeb(WebConfig{
		APIKey:     apiKey,
		Service:    svc,
		Researcher: research.New(research.Config{Fetcher: pageFetcher("<title>Hirsch</title>"), Logger: testLogger()}),
		Events:     events,
		Agency:     "StadtHirsch",
		Config:     cfg,
		Metrics:    metrics.Collector.Handler(),
		Logger:     testLogger(),
	})
	return w, events
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestWeb_ChatFlow(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	rec := do(t, h, http.MethodPost, "/api/chat", `{"conversationKey":"web:abc","message":"Wir brauchen ein neues Logo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode(t, rec)
	assert.Equal(t, "web:abc", reply["conversationKey"])
	assert.Equal(t, "Erzähl mir mehr!", reply["agentReply"])
	assert.Equal(t, "- Projekttyp: logo", reply["briefingSummary"])
	assert.Equal(t, "logo", reply["caseId"])
	assert.Equal(t, false, reply["degraded"])

	rec = do(t, h, http.MethodGet, "/api/conversations/web:abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "- Projekttyp: logo", got["summary"])
	assert.Equal(t, false, got["complete"])

	rec = do(t, h, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["conversations"], 1)

	rec = do(t, h, http.MethodPost, "/api/conversations/web:abc/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/conversations/web:abc/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/conversations", "")
	assert.Empty(t, decode(t, rec)["conversations"])
}

func TestWeb_ChatGeneratesKey(t *testing.T) {
	w, _ := newTestWeb(t, "")
	rec := do(t, w.Handler(), http.MethodPost, "/api/chat", `{"message":"Hallo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["conversationKey"].(string), "web:project_"))
}

func TestWeb_BadRequests(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"invalid json", http.MethodPost, "/api/chat", `{`, http.StatusBadRequest},
		{"empty message", http.MethodPost, "/api/chat", `{"message":"  "}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/conversations?limit=x", "", http.StatusBadRequest},
		{"unknown conversation", http.MethodGet, "/api/conversations/web:none", "", http.StatusNotFound},
		{"unknown export", http.MethodGet, "/api/conversations/web:none/export", "", http.StatusNotFound},
		{"bad format", http.MethodGet, "/api/conversations/web:none/export?format=pdf", "", http.StatusBadRequest},
		{"bad research url", http.MethodPost, "/api/research", `{"url":"ftp://x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestWeb_Export(t *testing.T) {
	w, events := newTestWeb(t, "")
	h := w.Handler()
	do(t, h, http.MethodPost, "/api/chat", `{"conversationKey":"web:x","message":"Ein Logo in Blau"}`)

	rec := do(t, h, http.MethodGet, "/api/conversations/web:x/export?format=md&client=Caf%C3%A9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Briefing_Café_")
	assert.Contains(t, rec.Body.String(), "- Farben: blau")

	rec = do(t, h, http.MethodGet, "/api/conversations/web:x/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	assert.NoError(t, err)

	assert.Len(t, events.Replay(bus.EventExportCreated, time.Time{}), 2)
}

func TestWeb_Research(t *testing.T) {
	w, _ := newTestWeb(t, "")
	rec := do(t, w.Handler(), http.MethodPost, "/api/research", `{"url":"https://hirsch.ch"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := decode(t, rec)["analysis"].(map[string]any)
	assert.Equal(t, "Hirsch", analysis["title"])
}

func TestWeb_CasesAndConfig(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	rec := do(t, h, http.MethodGet, "/api/cases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["cases"], 5)

	rec = do(t, h, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-or-very-secret-key")
}

func TestWeb_APIKey(t *testing.T) {
	w, _ := newTestWeb(t, "s3cret")
	h := w.Handler()

	rec := do(t, h, http.MethodGet, "/api/cases", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cases", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cases", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "").Code, "status is public")
}

func TestWeb_StatusAndMetrics(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	rec := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stadthirsch_llm_requests_total")
}

func TestWeb_Strategies(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	rec := do(t, h, http.MethodGet, "/api/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode(t, rec)
	assert.Len(t, all["goalTemplates"], 4)
	assert.NotEmpty(t, all["goalCriteria"])
	total := len(all["strategies"].([]any))

	rec = do(t, h, http.MethodGet, "/api/strategies?case=logo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	logo := decode(t, rec)
	assert.Equal(t, "logo", logo["case"])
	ids := make([]string, 0)
	for _, st := range logo["strategies"].([]any) {
		ids = append(ids, st.(map[string]any)["id"].(string))
	}
	assert.Equal(t, []string{"ohne_worte", "drehung_180", "vereinfachung", "symbol"}, ids)
	assert.Less(t, len(ids), total)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/strategies?case=podcast", "").Code)
}

func TestWeb_Goal(t *testing.T) {
	w, events := newTestWeb(t, "")
	h := w.Handler()

	rec := do(t, h, http.MethodPost, "/api/strategies/goal", `{"product":"Kaffee","benefit":"fair gehandelt","tone":"provocative"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "Erzähl mir mehr!", out["goalFormulation"])
	assert.Len(t, out["templatesUsed"], 4)
	assert.Len(t, events.Replay(bus.EventGoalFormulated, time.Time{}), 1)

	rec = do(t, h, http.MethodPost, "/api/strategies/goal", `{"product":"Kaffee"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func postAudio(t *testing.T, h http.Handler, field string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "memo.webm")
	require.NoError(t, err)
	_, err = fw.Write(audio)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWeb_Transcribe(t *testing.T) {
	w, _ := newTestWeb(t, "")
	tr := &fakeTranscriber{text: "Wir brauchen ein neues Logo"}
	w.transcriber = tr
	h := w.Handler()

	rec := postAudio(t, h, "audio", []byte("OggS-data"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "Wir brauchen ein neues Logo", out["text"])
	assert.Equal(t, "de", out["language"])
	assert.Nil(t, out["simulated"])
	assert.Equal(t, "OggS-data", tr.audio)

	assert.Equal(t, http.StatusBadRequest, postAudio(t, h, "file", []byte("x")).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/transcribe", "").Code)
}

func TestWeb_TranscribeFallsBackToSimulatedText(t *testing.T) {
	w, _ := newTestWeb(t, "")
	h := w.Handler()

	out := decode(t, postAudio(t, h, "audio", []byte("OggS")))
	assert.Equal(t, simulatedTranscript, out["text"])
	assert.Equal(t, true, out["simulated"])

	w.transcriber = &fakeTranscriber{err: errors.New("whisper: status 503")}
	rec := postAudio(t, h, "audio", []byte("OggS"))
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.Equal(t, simulatedTranscript, out["text"])
	assert.Contains(t, out["error"], "503")

	w.transcriber = &fakeTranscriber{err: domain.ErrMalformedInput}
	assert.Equal(t, http.StatusBadRequest, postAudio(t, h, "audio", []byte("")).Code)
}
