package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// FailoverProvider asks its providers in order and answers with the first
// reply. An empty chain fails every call with domain.ErrAIUnavailable, which
// is how a deployment without API keys ends up on the rule-based replies.
type FailoverProvider struct {
	chain  []domain.Provider
	logger *slog.Logger
}

func NewFailoverProvider(chain []domain.Provider, logger *slog.Logger) *FailoverProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverProvider{chain: chain, logger: logger}
}

// Name lists the chain, e.g. "failover(openrouter→gemini)".
func (fp *FailoverProvider) Name() string {
	var b strings.Builder
	b.WriteString("failover(")
	for i, p := range fp.chain {
		if i > 0 {
			b.WriteString("→")
		}
		b.WriteString(p.Name())
	}
	b.WriteString(")")
	return b.String()
}

func (fp *FailoverProvider) Len() int { return len(fp.chain) }

// Models returns the distinct models of the chain in chain order.
func (fp *FailoverProvider) Models() []string {
	var models []string
	for _, p := range fp.chain {
		for _, m := range p.Models() {
			if !slices.Contains(models, m) {
				models = append(models, m)
			}
		}
	}
	return models
}

// Healthy reports success when any provider of the chain is reachable.
func (fp *FailoverProvider) Healthy(ctx context.Context) error {
	var errs []error
	for _, p := range fp.chain {
		err := p.Healthy(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return fmt.Errorf("%w: no healthy provider: %w", domain.ErrAIUnavailable, errors.Join(errs...))
}

// Chat stops at the first reply. Once ctx is done no further provider is
// tried and the context error is returned as is.
func (fp *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(fp.chain) == 0 {
		return nil, fmt.Errorf("%w: no provider configured", domain.ErrAIUnavailable)
	}
	failures := make([]error, 0, len(fp.chain))
	for pos, p := range fp.chain {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := p.Chat(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fp.logger.Warn("provider failed", "provider", p.Name(), "position", pos+1, "err", err)
			failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if resp.Provider == "" {
			resp.Provider = p.Name()
		}
		if pos > 0 {
			fp.logger.Info("answered by fallback provider", "provider", p.Name(), "position", pos+1)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%w: every provider failed: %w", domain.ErrAIUnavailable, errors.Join(failures...))
}
