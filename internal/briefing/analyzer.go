package briefing

import "github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"

// ConfirmationThreshold is the confidence at which a briefing may be confirmed.
const ConfirmationThreshold = 0.8

// Progress is the derived state of a conversation.
type Progress struct {
	Stage         domain.Stage
	MissingFields []domain.Field
	Confidence    float64
}

// Analyze derives stage, missing fields and confidence. It depends only on
// its argument.
func Analyze(mem domain.ConversationMemory) Progress {
	missing := MissingFields(mem.Briefing)
	conf := Confidence(mem.Briefing)
	return Progress{
		Stage:         stageFor(len(mem.Messages), missing, conf, mem.Confirmed),
		MissingFields: missing,
		Confidence:    conf,
	}
}

// MissingFields returns the unfilled checklist fields in checklist order.
func MissingFields(b domain.BriefingContext) []domain.Field {
	missing := []domain.Field{}
	for _, f := range domain.ChecklistFields {
		if !b.IsSet(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Confidence is the filled fraction of the checklist.
func Confidence(b domain.BriefingContext) float64 {
	filled := 0
	for _, f := range domain.ChecklistFields {
		if b.IsSet(f) {
			filled++
		}
	}
	return float64(filled) / float64(len(domain.ChecklistFields))
}

// Complete is the single definition of a finished briefing.
func Complete(p Progress) bool {
	return p.Confidence >= ConfirmationThreshold && len(p.MissingFields) == 0
}

// stageFor derives the stage from the message count first; a client
// confirmation only turns a finished briefing past the opening turns into
// complete.
func stageFor(messages int, missing []domain.Field, conf float64, confirmed bool) domain.Stage {
	switch {
	case messages == 0:
		return domain.StageInitial
	case messages <= 2:
		return domain.StageExploring
	case len(missing) > 0:
		return domain.StageDeepDive
	case confirmed:
		return domain.StageComplete
	case conf >= ConfirmationThreshold:
		return domain.StageConfirmation
	default:
		return domain.StageComplete
	}
}
