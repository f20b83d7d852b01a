package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// maxAudioSize caps uploads at the 25 MB the transcription API accepts.
const maxAudioSize = 25 << 20

type WhisperConfig struct {
	APIBase  string // OpenAI-compatible base, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Language string // ISO-639-1; briefings are held in German
	Client   *http.Client
	Logger   *slog.Logger
}

// Whisper implements domain.Transcriber against the /audio/transcriptions
// endpoint of OpenAI-compatible APIs.
type Whisper struct {
	apiBase  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	logger   *slog.Logger
}

func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Language == "" {
		cfg.Language = "de"
	}
	if cfg.Client == nil {
		cfg.Client = PooledClient(2 * time.Minute)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Whisper{
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client:   cfg.Client,
		logger:   cfg.Logger.With("provider", "whisper"),
	}
}

// Transcribe uploads audio as filename, whose extension tells the API the
// container format (webm, ogg, mp3).
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (*domain.Transcription, error) {
	if w.apiKey == "" {
		return nil, errMissingAPIKey
	}
	data, err := io.ReadAll(io.LimitReader(audio, maxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", domain.ErrMalformedInput)
	}
	if len(data) > maxAudioSize {
		return nil, fmt.Errorf("%w: audio exceeds %d bytes", domain.ErrMalformedInput, maxAudioSize)
	}

	newReq := func() (*http.Request, error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		for k, v := range map[string]string{"model": w.model, "language": w.language, "response_format": "json"} {
			if err := mw.WriteField(k, v); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiBase+"/audio/transcriptions", &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
		return req, nil
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, w.client, newReq, w.logger)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("whisper: %w", &statusError{status: resp.StatusCode, body: string(body)})
	}

	var out domain.Transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	if out.Language == "" {
		out.Language = w.language
	}
	w.logger.Info("transcription complete", "chars", len(out.Text), "latency", time.Since(start))
	return &out, nil
}
