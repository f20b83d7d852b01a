package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// GoalRequest asks for the single-minded goal question of a campaign.
type GoalRequest struct {
	ConversationKey string `json:"conversationKey"`
	Product         string `json:"product"`
	Benefit         string `json:"benefit"`
	Tone            string `json:"tone"` // "standard" when empty
}

type Goal struct {
	Formulation string               `json:"goalFormulation"`
	Templates   []cases.GoalTemplate `json:"templatesUsed"`
	Provider    string               `json:"provider,omitempty"`
}

// FormulateGoal has the LLM phrase the goal of a campaign as one question.
// It fails with domain.ErrMalformedInput for a missing product or benefit
// and with domain.ErrAIUnavailable when no provider answers; there is no
// fallback text.
func (s *Service) FormulateGoal(ctx context.Context, req GoalRequest) (*Goal, error) {
	req.Product, req.Benefit = strings.TrimSpace(req.Product), strings.TrimSpace(req.Benefit)
	if req.Product == "" || req.Benefit == "" {
		return nil, fmt.Errorf("%w: product and benefit are required", domain.ErrMalformedInput)
	}
	if req.Tone == "" {
		req.Tone = "standard"
	}
	key := req.ConversationKey
	if key == "" {
		key = "goal"
	}
	text, resp, err := s.chat(ctx, key, []domain.Message{{Role: "user", Content: goalPrompt(req)}})
	if err != nil {
		return nil, err
	}
	s.emit(bus.EventGoalFormulated, key, map[string]any{"tone": req.Tone})
	return &Goal{Formulation: strings.TrimSpace(text), Templates: cases.GoalTemplates(), Provider: resp.Provider}, nil
}

func goalPrompt(req GoalRequest) string {
	var sb strings.Builder
	sb.WriteString("Erstelle eine prägnante Zielformulierung (Single-Minded-Proposition) für folgendes Produkt:\n\n")
	fmt.Fprintf(&sb, "Produkt: %s\nHauptbenefit: %s\nTonalität: %s\n\n", req.Product, req.Benefit, req.Tone)
	sb.WriteString("Kriterien für die Zielformulierung:\n")
	for i, c := range cases.GoalCriteria {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}
	for _, t := range cases.GoalTemplates() {
		if t.Type == req.Tone {
			fmt.Fprintf(&sb, "\nMuster: %s\nBeispiel: %s\n", t.Template, t.Example)
		}
	}
	sb.WriteString("\nGib nur die Zielformulierung zurück, keine Erklärungen.")
	return sb.String()
}
