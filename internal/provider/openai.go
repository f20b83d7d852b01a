package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

var errMissingAPIKey = errors.New("api key not configured")

// OpenAI implements domain.Provider for OpenAI-compatible chat completion
// APIs. OpenRouter is the default deployment.
type OpenAI struct {
	name        string
	apiKey      string
	apiBase     string
	model       string
	temperature float64
	maxTokens   int
	referer     string
	title       string
	client      *http.Client
	logger      *slog.Logger
}

type OpenAIConfig struct {
	Name        string
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Referer     string // HTTP-Referer header
	Title       string // X-Title header
	Client      *http.Client
	Logger      *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "moonshotai/kimi-k2.5"
	}
	if cfg.Client == nil {
		cfg.Client = PooledClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		name:        cfg.Name,
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		referer:     cfg.Referer,
		title:       cfg.Title,
		client:      cfg.Client,
		logger:      cfg.Logger.With("provider", cfg.Name),
	}
}

func (o *OpenAI) Name() string     { return o.name }
func (o *OpenAI) Models() []string { return []string{o.model} }

func (o *OpenAI) Healthy(ctx context.Context) error {
	if o.apiKey == "" {
		return fmt.Errorf("%s: %w", o.name, errMissingAPIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	o.setHeaders(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s not reachable: %w", o.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: invalid API key", o.name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", o.name, resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice   `json:"choices"`
	Usage   domain.Usage  `json:"usage"`
	Error   *oaiErrorBody `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiErrorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (o *OpenAI) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.referer != "" {
		req.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		req.Header.Set("X-Title", o.title)
	}
}

func (o *OpenAI) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", o.name, errMissingAPIKey)
	}
	model := req.Model
	if model == "" {
		model = o.model
	}

	msgs := make([]oaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, oaiMessage{Role: m.Role, Content: m.Content})
	}

	body := oaiRequest{Model: model, Messages: msgs}
	body.MaxTokens = o.maxTokens
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	temp := o.temperature
	if req.Temperature > 0 {
		temp = req.Temperature
	}
	if temp > 0 {
		body.Temperature = &temp
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, o.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		o.setHeaders(httpReq)
		return httpReq, nil
	}, o.logger)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s %d: %s", o.name, resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("%s decode: %w", o.name, err)
	}
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("%s: %s", o.name, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 || strings.TrimSpace(oaiResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%s: empty completion", o.name)
	}

	choice := oaiResp.Choices[0]
	latency := time.Since(start).Milliseconds()
	o.logger.Debug("chat completed", "model", model, "latency_ms", latency, "tokens", oaiResp.Usage.TotalTokens)
	return &domain.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        oaiResp.Usage,
		LatencyMs:    latency,
		Provider:     o.name,
	}, nil
}
