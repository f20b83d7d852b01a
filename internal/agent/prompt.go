package agent

import (
	"fmt"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// CompletionMarker is the phrase the model is told to use once the
// briefing is complete.
const CompletionMarker = "✅ Briefing vollständig! Ich starte jetzt die Agenten..."

const basePrompt = `Du bist ein erfahrener KI-Stratege bei der StadtHirsch KI-Agentur, einer vollautomatisierten Werbe- und Grafikagentur.

DEINE AUFGABE:
Führe ein professionelles Briefing-Gespräch mit dem Kunden. Sammle alle notwendigen Informationen für die 4 Agenten (Research, Creative, Production, Delivery).

WICHTIGE REGELN:
1. Beziehe dich auf ALLE bisherigen Nachrichten im Gespräch
2. Stelle GEZIELTE Nachfragen zu den fehlenden Informationen, höchstens zwei pro Antwort
3. Achte besonders auf: Projekttyp, Branche, Zielgruppe, Stil, Farben, Zeitrahmen
4. Bei Vollständigkeit ab 80%: Fasse das Briefing zusammen und bitte um Bestätigung
5. Sei professionell, freundlich und präzise. Antworte auf Deutsch.`

// PromptBuilder turns the conversation projection into LLM messages.
type PromptBuilder struct {
	catalog *cases.Catalog
}

// NewPromptBuilder uses catalog to resolve case questions; nil disables them.
func NewPromptBuilder(catalog *cases.Catalog) *PromptBuilder {
	return &PromptBuilder{catalog: catalog}
}

// SystemPrompt renders the strategist instructions for the current state.
func (p *PromptBuilder) SystemPrompt(ac briefing.AIContext) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	missing := "nichts"
	if len(ac.MissingFields) > 0 {
		missing = briefing.FormatMissing(ac.MissingFields)
	}
	fmt.Fprintf(&sb, "\n\nKONTEXT:\n- Phase: %s\n- Bisher erfasst:\n%s\n- Fehlend: %s\n- Vollständigkeit: %d%%\n",
		ac.Stage, indent(ac.BriefingSummary), missing, ac.Percent())

	if p.catalog != nil && ac.CaseID != "" {
		if c, ok := p.catalog.Get(ac.CaseID); ok {
			fmt.Fprintf(&sb, "\nFALL: %s (%s)\nLeitfragen für diesen Fall:\n", c.Name, c.Description)
			for _, q := range c.Questions {
				fmt.Fprintf(&sb, "- %s\n", q)
			}
		}
	}

	if ac.Stage == domain.StageDeepDive || ac.Stage == domain.StageExploring {
		st := cases.StrategyFor(ac.MessageCount)
		if p.catalog != nil && ac.CaseID != "" {
			st = cases.Pick(p.catalog.StrategiesFor(ac.CaseID), ac.MessageCount)
		}
		fmt.Fprintf(&sb, "\nDENKSTRATEGIE \"%s\": %s\nMögliche Impulse:\n", st.Name, st.Description)
		for _, q := range st.Questions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}

	fmt.Fprintf(&sb, "\nWenn das Briefing vollständig ist, sage:\n\"%s\"", CompletionMarker)
	return sb.String()
}

// Build returns the system prompt followed by the recent history.
func (p *PromptBuilder) Build(ac briefing.AIContext) []domain.Message {
	msgs := make([]domain.Message, 0, len(ac.RecentMessages)+1)
	msgs = append(msgs, domain.Message{Role: "system", Content: p.SystemPrompt(ac)})
	for _, m := range ac.RecentMessages {
		switch m.Role {
		case domain.RoleUser:
			msgs = append(msgs, domain.Message{Role: "user", Content: m.Content})
		case domain.RoleAgent:
			msgs = append(msgs, domain.Message{Role: "assistant", Content: m.Content})
		}
	}
	return msgs
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if !strings.HasPrefix(l, "- ") {
			l = "- " + l
		}
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
