package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Gemini implements domain.Provider for the Google Generative Language
// generateContent API.
type Gemini struct {
	name        string
	apiKey      string
	apiBase     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *slog.Logger
}

type GeminiConfig struct {
	Name        string
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
	Logger      *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Client == nil {
		cfg.Client = PooledClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{
		name:        cfg.Name,
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      cfg.Client,
		logger:      cfg.Logger.With("provider", cfg.Name),
	}
}

func (g *Gemini) Name() string     { return g.name }
func (g *Gemini) Models() []string { return []string{g.model} }

func (g *Gemini) Healthy(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("%s: %w", g.name, errMissingAPIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/models/"+g.model, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s not reachable: %w", g.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", g.name, resp.StatusCode)
	}
	return nil
}

type gemContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []gemPart `json:"parts"`
}

type gemPart struct {
	Text string `json:"text"`
}

type gemGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type gemRequest struct {
	Contents          []gemContent         `json:"contents"`
	SystemInstruction *gemContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *gemGenerationConfig `json:"generationConfig,omitempty"`
}

type gemResponse struct {
	Candidates []struct {
		Content      gemContent `json:"content"`
		FinishReason string     `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// buildGeminiRequest moves system messages into systemInstruction and maps
// the assistant role to "model".
func buildGeminiRequest(req domain.ChatRequest, temperature float64, maxTokens int) gemRequest {
	var out gemRequest
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			out.Contents = append(out.Contents, gemContent{Role: "model", Parts: []gemPart{{Text: m.Content}}})
		default:
			out.Contents = append(out.Contents, gemContent{Role: "user", Parts: []gemPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &gemContent{Parts: []gemPart{{Text: strings.Join(system, "\n\n")}}}
	}

	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if temperature > 0 || maxTokens > 0 {
		gc := &gemGenerationConfig{MaxOutputTokens: maxTokens}
		if temperature > 0 {
			gc.Temperature = &temperature
		}
		out.GenerationConfig = gc
	}
	return out
}

func (g *Gemini) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", g.name, errMissingAPIKey)
	}
	model := req.Model
	if model == "" {
		model = g.model
	}

	jsonBody, err := json.Marshal(buildGeminiRequest(req, g.temperature, g.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", g.apiBase, model)

	start := time.Now()
	resp, err := doWithRetry(ctx, g.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
		return httpReq, nil
	}, g.logger)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", g.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s %d: %s", g.name, resp.StatusCode, string(respBody))
	}

	var gr gemResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%s decode: %w", g.name, err)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("%s: no candidates", g.name)
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: empty completion (finish reason %s)", g.name, gr.Candidates[0].FinishReason)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("chat completed", "model", model, "latency_ms", latency, "tokens", gr.UsageMetadata.TotalTokenCount)
	return &domain.ChatResponse{
		Content:      text,
		FinishReason: strings.ToLower(gr.Candidates[0].FinishReason),
		Usage: domain.Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		},
		LatencyMs: latency,
		Provider:  g.name,
	}, nil
}
