package domain

import (
	"slices"
	"time"
)

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// ProjectType is the coarse kind of deliverable the client asks for.
type ProjectType string

const (
	ProjectLogo     ProjectType = "logo"
	ProjectSocial   ProjectType = "social"
	ProjectBranding ProjectType = "branding"
	ProjectVideo    ProjectType = "video"
	ProjectOther    ProjectType = "other"
)

// Stage is the coarse progress label of a briefing conversation.
type Stage string

const (
	StageInitial      Stage = "initial"
	StageExploring    Stage = "exploring"
	StageDeepDive     Stage = "deep_dive"
	StageConfirmation Stage = "confirmation"
	StageComplete     Stage = "complete"
)

// Field names a briefing attribute. The names double as JSON keys.
type Field string

const (
	FieldProjectType         Field = "projectType"
	FieldIndustry            Field = "industry"
	FieldTargetAudience      Field = "targetAudience"
	FieldStyle               Field = "style"
	FieldColors              Field = "colors"
	FieldBudget              Field = "budget"
	FieldTimeline            Field = "timeline"
	FieldCompetitors         Field = "competitors"
	FieldLikes               Field = "likes"
	FieldDislikes            Field = "dislikes"
	FieldUniqueSellingPoints Field = "uniqueSellingPoints"
	FieldAdditionalInfo      Field = "additionalInfo"
)

// ChecklistFields are the fields a briefing needs before it counts as complete.
var ChecklistFields = []Field{
	FieldProjectType,
	FieldIndustry,
	FieldTargetAudience,
	FieldStyle,
	FieldTimeline,
}

// BriefingFields lists every briefing field in display order.
var BriefingFields = []Field{
	FieldProjectType,
	FieldIndustry,
	FieldTargetAudience,
	FieldStyle,
	FieldColors,
	FieldBudget,
	FieldTimeline,
	FieldCompetitors,
	FieldLikes,
	FieldDislikes,
	FieldUniqueSellingPoints,
	FieldAdditionalInfo,
}

// IsList reports whether f holds an accumulating list value.
func (f Field) IsList() bool {
	switch f {
	case FieldColors, FieldCompetitors, FieldLikes, FieldDislikes, FieldUniqueSellingPoints:
		return true
	}
	return false
}

// ConversationMessage is a single immutable turn of a briefing conversation.
type ConversationMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Time returns the message timestamp as time.Time.
func (m ConversationMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// BriefingContext is the sparse record of project requirements.
// A zero value (empty string, nil slice) means the field is unset.
type BriefingContext struct {
	ProjectType         ProjectType `json:"projectType,omitempty"`
	Industry            string      `json:"industry,omitempty"`
	TargetAudience      string      `json:"targetAudience,omitempty"`
	Style               string      `json:"style,omitempty"`
	Colors              []string    `json:"colors,omitempty"`
	Budget              string      `json:"budget,omitempty"`
	Timeline            string      `json:"timeline,omitempty"`
	Competitors         []string    `json:"competitors,omitempty"`
	Likes               []string    `json:"likes,omitempty"`
	Dislikes            []string    `json:"dislikes,omitempty"`
	UniqueSellingPoints []string    `json:"uniqueSellingPoints,omitempty"`
	AdditionalInfo      string      `json:"additionalInfo,omitempty"`
}

// Scalar returns the value of a scalar field, or "" for list fields.
func (b BriefingContext) Scalar(f Field) string {
	switch f {
	case FieldProjectType:
		return string(b.ProjectType)
	case FieldIndustry:
		return b.Industry
	case FieldTargetAudience:
		return b.TargetAudience
	case FieldStyle:
		return b.Style
	case FieldBudget:
		return b.Budget
	case FieldTimeline:
		return b.Timeline
	case FieldAdditionalInfo:
		return b.AdditionalInfo
	}
	return ""
}

// List returns the value of a list field, or nil for scalar fields.
func (b BriefingContext) List(f Field) []string {
	switch f {
	case FieldColors:
		return b.Colors
	case FieldCompetitors:
		return b.Competitors
	case FieldLikes:
		return b.Likes
	case FieldDislikes:
		return b.Dislikes
	case FieldUniqueSellingPoints:
		return b.UniqueSellingPoints
	}
	return nil
}

// IsSet reports whether f holds a non-empty scalar or a non-empty list.
func (b BriefingContext) IsSet(f Field) bool {
	if f.IsList() {
		return len(b.List(f)) > 0
	}
	return b.Scalar(f) != ""
}

// IsEmpty reports whether no field at all is set.
func (b BriefingContext) IsEmpty() bool {
	for _, f := range BriefingFields {
		if b.IsSet(f) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can never alias the owner's slices.
func (b BriefingContext) Clone() BriefingContext {
	out := b
	out.Colors = slices.Clone(b.Colors)
	out.Competitors = slices.Clone(b.Competitors)
	out.Likes = slices.Clone(b.Likes)
	out.Dislikes = slices.Clone(b.Dislikes)
	out.UniqueSellingPoints = slices.Clone(b.UniqueSellingPoints)
	return out
}

// ConversationMemory is the aggregate root of one briefing conversation.
type ConversationMemory struct {
	Messages      []ConversationMessage `json:"messages"`
	Briefing      BriefingContext       `json:"briefing"`
	Stage         Stage                 `json:"stage"`
	MissingFields []Field               `json:"missingFields"`
	Confidence    float64               `json:"confidence"`
	CaseID        string                `json:"caseId,omitempty"`
	Confirmed     bool                  `json:"confirmed,omitempty"`
	LastUpdated   int64                 `json:"lastUpdated"` // unix milliseconds
}

// NewConversationMemory returns the canonical empty memory.
func NewConversationMemory(now time.Time) ConversationMemory {
	return ConversationMemory{
		Messages:      []ConversationMessage{},
		Stage:         StageInitial,
		MissingFields: slices.Clone(ChecklistFields),
		Confidence:    0,
		LastUpdated:   now.UnixMilli(),
	}
}

// Clone returns a deep copy of the memory.
func (m ConversationMemory) Clone() ConversationMemory {
	out := m
	out.Messages = slices.Clone(m.Messages)
	if out.Messages == nil {
		out.Messages = []ConversationMessage{}
	}
	out.Briefing = m.Briefing.Clone()
	out.MissingFields = slices.Clone(m.MissingFields)
	if out.MissingFields == nil {
		out.MissingFields = []Field{}
	}
	return out
}

// ConversationSummary is a lightweight listing entry for stored conversations.
type ConversationSummary struct {
	Key          string    `json:"key"`
	Stage        Stage     `json:"stage"`
	Confidence   float64   `json:"confidence"`
	CaseID       string    `json:"caseId,omitempty"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
