package channel

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/agent"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/config"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/export"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/research"
)

const (
	maxBodySize       = 1 << 20
	maxAudioSize      = 25 << 20
	defaultListLimit  = 50
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

const simulatedTranscript = "Dies ist eine simulierte Transkription. Für echte Spracherkennung bitte OpenAI API Key konfigurieren."

// Web serves the briefing JSON API. Unlike the chat channels it answers
// synchronously instead of going through the message bus.
type Web struct {
	host    string
	port    int
	apiKey  string
	version string

	service     *agent.Service
	researcher  *research.Researcher
	transcriber domain.Transcriber
	events      *bus.EventBus
	agency      string
	metrics     http.Handler
	metricsAt   string

	cfg   *config.Config
	cfgMu sync.RWMutex

	server *http.Server
	logger *slog.Logger
}

// WebConfig holds the dependencies of the web channel.
type WebConfig struct {
	Host        string
	Port        int
	APIKey      string // bearer token for /api routes; empty disables auth
	Version     string
	Service     *agent.Service
	Researcher  *research.Researcher // nil disables POST /api/research
	Transcriber domain.Transcriber   // nil answers /api/transcribe with a simulated text
	Events      *bus.EventBus
	Agency      string
	Config      *config.Config // served sanitized on GET /api/config
	Metrics     http.Handler   // nil disables the metrics endpoint
	MetricsAt   string         // default /metrics
	Logger      *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.MetricsAt == "" {
		cfg.MetricsAt = "/metrics"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Web{
		host:        cfg.Host,
		port:        cfg.Port,
		apiKey:      cfg.APIKey,
		version:     cfg.Version,
		service:     cfg.Service,
		researcher:  cfg.Researcher,
		transcriber: cfg.Transcriber,
		events:      cfg.Events,
		agency:      cfg.Agency,
		metrics:     cfg.Metrics,
		metricsAt:   cfg.MetricsAt,
		cfg:         cfg.Config,
		logger:      cfg.Logger,
	}
}

func (w *Web) Name() string { return "web" }

// Handler returns the HTTP routes of the API.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", w.requireKey(w.handleChat))
	mux.HandleFunc("GET /api/conversations", w.requireKey(w.handleList))
	mux.HandleFunc("GET /api/conversations/{key}", w.requireKey(w.handleGet))
	mux.HandleFunc("POST /api/conversations/{key}/reset", w.requireKey(w.handleReset))
	mux.HandleFunc("POST /api/conversations/{key}/confirm", w.requireKey(w.handleConfirm))
	mux.HandleFunc("GET /api/conversations/{key}/export", w.requireKey(w.handleExport))
	mux.HandleFunc("POST /api/research", w.requireKey(w.handleResearch))
	mux.HandleFunc("GET /api/cases", w.requireKey(w.handleCases))
	mux.HandleFunc("GET /api/strategies", w.requireKey(w.handleStrategies))
	mux.HandleFunc("POST /api/strategies/goal", w.requireKey(w.handleGoal))
	mux.HandleFunc("POST /api/transcribe", w.requireKey(w.handleTranscribe))
	mux.HandleFunc("GET /api/config", w.requireKey(w.handleConfig))
	mux.HandleFunc("GET /status", w.handleStatus)
	if w.metrics != nil {
		mux.Handle("GET "+w.metricsAt, w.metrics)
	}
	return mux
}

// Start serves the API until ctx is cancelled. The bus is not used.
func (w *Web) Start(ctx context.Context, _ domain.MessageBus) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	w.logger.Info("web api started", "addr", "http://"+addr, "auth", w.apiKey != "")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// Send is a no-op: web clients receive replies in the HTTP response.
func (w *Web) Send(_ context.Context, chatID string, _ string) error {
	w.logger.Debug("web channel has no push delivery", "chat", chatID)
	return nil
}

func (w *Web) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if w.apiKey == "" {
			next(rw, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(w.apiKey)) != 1 {
			rw.Header().Set("WWW-Authenticate", `Bearer realm="stadthirsch"`)
			writeError(rw, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(rw, r)
	}
}

type chatRequest struct {
	ConversationKey string `json:"conversationKey"`
	Message         string `json:"message"`
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	key := req.ConversationKey
	if key == "" {
		key = "web:" + briefing.NewKey()
	}

	reply, err := w.service.PostUserMessage(r.Context(), key, req.Message)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, reply)
}

func (w *Web) handleList(rw http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(rw, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := w.service.List(r.Context(), limit)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	if list == nil {
		list = []domain.ConversationSummary{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"conversations": list})
}

func (w *Web) handleGet(rw http.ResponseWriter, r *http.Request) {
	mem, err := w.service.Snapshot(r.Context(), r.PathValue("key"))
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"conversationKey": r.PathValue("key"),
		"memory":          mem,
		"summary":         briefing.FormatBriefing(mem.Briefing),
		"complete":        briefing.Complete(briefing.Progress{Confidence: mem.Confidence, MissingFields: mem.MissingFields}),
	})
}

func (w *Web) handleReset(rw http.ResponseWriter, r *http.Request) {
	w.service.Reset(r.Context(), r.PathValue("key"))
	writeJSON(rw, http.StatusOK, map[string]string{"status": "reset"})
}

func (w *Web) handleConfirm(rw http.ResponseWriter, r *http.Request) {
	if err := w.service.Confirm(r.Context(), r.PathValue("key")); err != nil {
		writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (w *Web) handleExport(rw http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	mem, err := w.service.Snapshot(r.Context(), key)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	opts := export.Options{
		Client:  r.URL.Query().Get("client"),
		Agency:  w.agency,
		Catalog: w.service.Catalog(),
		WithLog: r.URL.Query().Get("log") != "false",
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, mem, opts); err != nil {
		w.logger.Error("export failed", "conversation", key, "err", err)
		writeError(rw, http.StatusInternalServerError, "failed to generate document")
		return
	}

	if w.events != nil {
		w.events.Emit(bus.Event{Type: bus.EventExportCreated, Source: "web", Key: key, Payload: map[string]any{"format": string(format)}})
	}
	rw.Header().Set("Content-Type", format.ContentType())
	rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(opts, string(format))))
	_, _ = rw.Write(buf.Bytes())
}

type researchRequest struct {
	URL             string `json:"url"`
	ConversationKey string `json:"conversationKey"`
}

func (w *Web) handleResearch(rw http.ResponseWriter, r *http.Request) {
	if w.researcher == nil {
		writeError(rw, http.StatusServiceUnavailable, "research disabled")
		return
	}
	var req researchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := w.researcher.RunFor(r.Context(), req.ConversationKey, req.URL)
	switch {
	case errors.Is(err, research.ErrInvalidURL):
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(rw, http.StatusBadGateway, "failed to analyze website: "+err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, rep)
}

func (w *Web) handleCases(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"cases": w.service.Catalog().List()})
}

// handleStrategies lists the creative strategies, narrowed to a case when
// ?case= is given.
func (w *Web) handleStrategies(rw http.ResponseWriter, r *http.Request) {
	caseID := r.URL.Query().Get("case")
	if caseID == "" {
		writeJSON(rw, http.StatusOK, map[string]any{
			"strategies":    cases.Strategies(),
			"goalTemplates": cases.GoalTemplates(),
			"goalCriteria":  cases.GoalCriteria,
		})
		return
	}
	if _, ok := w.service.Catalog().Get(caseID); !ok {
		writeError(rw, http.StatusNotFound, fmt.Sprintf("unknown case %q", caseID))
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"case":       caseID,
		"strategies": w.service.Catalog().StrategiesFor(caseID),
	})
}

func (w *Web) handleGoal(rw http.ResponseWriter, r *http.Request) {
	var req agent.GoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	goal, err := w.service.FormulateGoal(r.Context(), req)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, goal)
}

type transcribeResponse struct {
	Text      string  `json:"text"`
	Language  string  `json:"language,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Simulated bool    `json:"simulated,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// handleTranscribe turns the multipart field "audio" into text. Without a
// working transcriber it still answers 200 with a simulated transcript so
// the voice input of the frontend keeps working in demos.
func (w *Web) handleTranscribe(rw http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(rw, r.Body, maxAudioSize+1<<20)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(rw, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	if w.transcriber == nil {
		writeJSON(rw, http.StatusOK, transcribeResponse{Text: simulatedTranscript, Simulated: true})
		return
	}
	tr, err := w.transcriber.Transcribe(r.Context(), file, header.Filename)
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		writeError(rw, http.StatusBadRequest, err.Error())
	case err != nil:
		w.logger.Warn("transcription failed", "file", header.Filename, "err", err)
		writeJSON(rw, http.StatusOK, transcribeResponse{Text: simulatedTranscript, Simulated: true, Error: err.Error()})
	default:
		writeJSON(rw, http.StatusOK, transcribeResponse{Text: tr.Text, Language: tr.Language, Duration: tr.Duration})
	}
}

func (w *Web) handleConfig(rw http.ResponseWriter, _ *http.Request) {
	w.cfgMu.RLock()
	cfg := w.cfg
	w.cfgMu.RUnlock()

	if cfg == nil {
		writeError(rw, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	writeJSON(rw, http.StatusOK, config.Sanitize(cfg))
}

func (w *Web) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       w.version,
		"conversations": w.service.Sessions().Len(),
		"time":          time.Now().Format(time.RFC3339),
	})
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeServiceError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		writeError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(rw, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBriefingIncomplete):
		writeError(rw, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		writeError(rw, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrAITimeout):
		writeError(rw, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrAIUnavailable):
		writeError(rw, http.StatusBadGateway, err.Error())
	default:
		writeError(rw, http.StatusInternalServerError, err.Error())
	}
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
