// Package briefing holds the briefing core: rule-based field extraction,
// progress analysis and the per-conversation memory.
package briefing

import (
	"slices"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// DefaultMaxColors caps the accumulated color list.
const DefaultMaxColors = 6

// Update is the partial briefing derived from one message. Scalar fields
// are only present when they were unset; list fields hold only new values.
type Update struct {
	domain.BriefingContext
}

// Empty reports whether the message produced no field updates.
func (u Update) Empty() bool {
	return u.IsEmpty()
}

// Fields returns the fields carried by the update in display order.
func (u Update) Fields() []domain.Field {
	var out []domain.Field
	for _, f := range domain.BriefingFields {
		if u.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}

// Extractor applies an ordered rule table to user messages.
type Extractor struct {
	rules     []Rule
	maxColors int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) ExtractorOption {
	return func(e *Extractor) { e.rules = rules }
}

// WithMaxColors overrides DefaultMaxColors. Values below 1 are ignored.
func WithMaxColors(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxColors = n
		}
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{rules: DefaultRules(), maxColors: DefaultMaxColors}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract runs the default rule table.
func Extract(message string, current domain.BriefingContext) Update {
	return defaultExtractor.Extract(message, current)
}

// Extract derives field updates from a single message. Scalar fields that
// are already set in current are never touched. It never fails; a message
// without matches yields an empty Update.
func (e *Extractor) Extract(message string, current domain.BriefingContext) Update {
	var u Update
	if strings.TrimSpace(message) == "" {
		return u
	}
	msg := NewMessage(message)
	for _, r := range e.rules {
		if !r.Field.IsList() && (current.IsSet(r.Field) || u.IsSet(r.Field)) {
			continue
		}
		values := r.Match(msg)
		if len(values) == 0 {
			continue
		}
		if r.Field.IsList() {
			existing := append(slices.Clone(current.List(r.Field)), u.List(r.Field)...)
			fresh := newValues(existing, values)
			if r.Field == domain.FieldColors {
				room := max(e.maxColors-len(existing), 0)
				fresh = fresh[:min(len(fresh), room)]
			}
			setList(&u.BriefingContext, r.Field, append(u.List(r.Field), fresh...))
			continue
		}
		setScalar(&u.BriefingContext, r.Field, values[0])
	}
	return u
}

// Merge applies u to current: unset scalars are filled, lists are unioned.
// The result never aliases current's slices.
func Merge(current domain.BriefingContext, u Update) domain.BriefingContext {
	out := current.Clone()
	for _, f := range domain.BriefingFields {
		if !u.IsSet(f) {
			continue
		}
		if f.IsList() {
			setList(&out, f, append(out.List(f), newValues(out.List(f), u.List(f))...))
			continue
		}
		if !out.IsSet(f) {
			setScalar(&out, f, u.Scalar(f))
		}
	}
	return out
}

// newValues returns the entries of values missing from existing, compared
// case-insensitively, in their original order.
func newValues(existing, values []string) []string {
	seen := make(map[string]bool, len(existing)+len(values))
	for _, v := range existing {
		seen[strings.ToLower(v)] = true
	}
	var out []string
	for _, v := range values {
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func setScalar(b *domain.BriefingContext, f domain.Field, v string) {
	switch f {
	case domain.FieldProjectType:
		b.ProjectType = domain.ProjectType(v)
	case domain.FieldIndustry:
		b.Industry = v
	case domain.FieldTargetAudience:
		b.TargetAudience = v
	case domain.FieldStyle:
		b.Style = v
	case domain.FieldBudget:
		b.Budget = v
	case domain.FieldTimeline:
		b.Timeline = v
	case domain.FieldAdditionalInfo:
		b.AdditionalInfo = v
	}
}

func setList(b *domain.BriefingContext, f domain.Field, v []string) {
	if len(v) == 0 {
		v = nil
	}
	switch f {
	case domain.FieldColors:
		b.Colors = v
	case domain.FieldCompetitors:
		b.Competitors = v
	case domain.FieldLikes:
		b.Likes = v
	case domain.FieldDislikes:
		b.Dislikes = v
	case domain.FieldUniqueSellingPoints:
		b.UniqueSellingPoints = v
	}
}
