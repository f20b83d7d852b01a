package briefing

import (
	"fmt"
	"math"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// EmptyBriefingText is the summary shown before anything was captured.
const EmptyBriefingText = "Noch keine Informationen erfasst"

// AIContext is the read-only projection handed to prompt construction.
type AIContext struct {
	RecentMessages  []domain.ConversationMessage `json:"recentMessages"`
	BriefingSummary string                       `json:"briefingSummary"`
	Stage           domain.Stage                 `json:"stage"`
	MissingFields   []domain.Field               `json:"missingFields"`
	Confidence      float64                      `json:"confidence"`
	MessageCount    int                          `json:"messageCount"`
	CaseID          string                       `json:"caseId,omitempty"`
}

// Percent returns the confidence as a whole percentage.
func (c AIContext) Percent() int {
	return int(math.Round(c.Confidence * 100))
}

var fieldLabels = map[domain.Field]string{
	domain.FieldProjectType:         "Projekttyp",
	domain.FieldIndustry:            "Branche",
	domain.FieldTargetAudience:      "Zielgruppe",
	domain.FieldStyle:               "Stil",
	domain.FieldColors:              "Farben",
	domain.FieldBudget:              "Budget",
	domain.FieldTimeline:            "Zeitrahmen",
	domain.FieldCompetitors:         "Wettbewerber",
	domain.FieldLikes:               "Gefällt",
	domain.FieldDislikes:            "Gefällt nicht",
	domain.FieldUniqueSellingPoints: "Alleinstellungsmerkmale",
	domain.FieldAdditionalInfo:      "Weitere Infos",
}

// FieldLabel returns the German display label of f.
func FieldLabel(f domain.Field) string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// FieldValue renders a field for display, joining lists with ", ".
func FieldValue(b domain.BriefingContext, f domain.Field) string {
	if f.IsList() {
		return strings.Join(b.List(f), ", ")
	}
	return b.Scalar(f)
}

// FormatBriefing renders the filled fields as a bullet list.
func FormatBriefing(b domain.BriefingContext) string {
	var sb strings.Builder
	for _, f := range domain.BriefingFields {
		if !b.IsSet(f) {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", FieldLabel(f), FieldValue(b, f))
	}
	if sb.Len() == 0 {
		return EmptyBriefingText
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatMissing renders missing fields as a comma separated label list.
func FormatMissing(fields []domain.Field) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = FieldLabel(f)
	}
	return strings.Join(labels, ", ")
}

// FormatHistory renders messages as a KUNDE/KI transcript, one blank line
// between turns. Every turn not written by the client counts as KI.
func FormatHistory(msgs []domain.ConversationMessage) string {
	turns := make([]string, len(msgs))
	for i, m := range msgs {
		label := "KI: "
		if m.Role == domain.RoleUser {
			label = "KUNDE: "
		}
		turns[i] = label + m.Content
	}
	return strings.Join(turns, "\n\n")
}
