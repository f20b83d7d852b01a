// Package cases holds the briefing case catalog and the keyword based case
// detector that picks question templates for a conversation.
package cases

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Case is one briefing case: a project classification with the questions
// the strategist asks first and the document template it exports to.
type Case struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Questions   []string `yaml:"questions" json:"questions"`
	Template    string   `yaml:"template" json:"template"`
	Strategies  []string `yaml:"strategies" json:"strategies,omitempty"` // thinking strategy IDs; empty allows all
}

// Catalog is an ordered case table. Detection walks it in order.
type Catalog struct {
	mu       sync.RWMutex
	cases    []Case
	keywords map[string][]string // lowercase keywords by case ID
	logger   *slog.Logger
}

func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{keywords: make(map[string][]string), logger: logger}
}

// DefaultCatalog returns a catalog holding the built-in cases.
func DefaultCatalog(logger *slog.Logger) *Catalog {
	c := NewCatalog(logger)
	for _, cs := range builtinCases {
		c.register(cs)
	}
	return c
}

// Register adds a case, replacing one with the same ID in place.
func (c *Catalog) Register(cs Case) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.register(cs) {
		c.logger.Info("case updated", "id", cs.ID)
		return
	}
	c.logger.Info("case registered", "id", cs.ID)
}

// register must be called with c.mu held. It reports whether cs replaced
// an existing case.
func (c *Catalog) register(cs Case) bool {
	kws := make([]string, 0, len(cs.Keywords))
	for _, kw := range cs.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			kws = append(kws, kw)
		}
	}
	c.keywords[cs.ID] = kws

	for i := range c.cases {
		if c.cases[i].ID == cs.ID {
			c.cases[i] = cs
			return true
		}
	}
	c.cases = append(c.cases, cs)
	return false
}

// Merge registers every case in order.
func (c *Catalog) Merge(extra []Case) {
	for _, cs := range extra {
		c.Register(cs)
	}
}

// Detect returns the ID of the first case with a keyword contained in
// message, compared case-insensitively.
func (c *Catalog) Detect(message string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(message)
	for _, cs := range c.cases {
		for _, kw := range c.keywords[cs.ID] {
			if strings.Contains(lower, kw) {
				return cs.ID, true
			}
		}
	}
	return "", false
}

// Get returns the case with the given ID.
func (c *Catalog) Get(id string) (Case, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cs := range c.cases {
		if cs.ID == id {
			return cs, true
		}
	}
	return Case{}, false
}

// List returns all cases in detection order.
func (c *Catalog) List() []Case {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.cases)
}

var defaultCatalog = DefaultCatalog(slog.New(slog.DiscardHandler))

// Detect runs the built-in catalog.
func Detect(message string) (string, bool) {
	return defaultCatalog.Detect(message)
}

// StrategiesFor returns the thinking strategies suited to a case. Unknown
// cases and cases without a selection get the whole catalog.
func (c *Catalog) StrategiesFor(caseID string) []Strategy {
	cs, ok := c.Get(caseID)
	if !ok {
		return Strategies()
	}
	if out := StrategiesByID(cs.Strategies); len(out) > 0 {
		return out
	}
	return Strategies()
}

var builtinCases = []Case{
	{
		ID:          "ci",
		Name:        "Corporate Identity & Branding",
		Description: "Entwicklung oder Überarbeitung der gesamten Markenidentität",
		Keywords:    []string{"ci", "corporate identity", "branding", "markenführung", "corporate design", "markenidentität"},
		Questions: []string{
			"Existiert bereits eine Website oder bestehende Markenmaterialien?",
			"Handelt es sich um eine Neuentwicklung oder ein Redesign?",
			"Welche Markenwerte sollen kommuniziert werden?",
			"Gibt es bestehende Logo-Elemente, die erhalten bleiben sollen?",
			"Welche Touchpoints sind besonders wichtig? (Website, Print, Social Media, Events)",
		},
		Template:   "ci_template",
		Strategies: []string{"symbol", "metapher", "uebertreibung", "perspektivwechsel"},
	},
	{
		ID:          "logo",
		Name:        "Logo-Entwicklung",
		Description: "Neuentwicklung, Redesign oder Evolution des Logos",
		Keywords:    []string{"logo", "wortmarke", "bildmarke", "signet", "markenzeichen", "redesign"},
		Questions: []string{
			"Ist dies eine Neuentwicklung oder ein Redesign?",
			"Gibt es eine bestehende Website, die berücksichtigt werden muss?",
			"Welche Logo-Varianten werden benötigt? (Standard, Negativ, App-Icon, etc.)",
			"Welche Mindestgrössen sind wichtig?",
			"Gibt es gestalterische No-Gos?",
		},
		Template:   "logo_template",
		Strategies: []string{"ohne_worte", "symbol", "drehung_180", "vereinfachung"},
	},
	{
		ID:          "bildwelt",
		Name:        "Bildwelt-Entwicklung",
		Description: "Entwicklung einer konsistenten visuellen Bildsprache",
		Keywords:    []string{"bildwelt", "fotografie", "bildsprache", "visual identity", "imagery", "fotokonzept"},
		Questions: []string{
			"Existiert bereits eine Website mit bestehenden Bildern?",
			"Sollen bestehende Bilder weiterverwendet oder ersetzt werden?",
			"Welcher Bildtyp passt zur Marke? (Fotografie, Illustration, 3D, Hybrid)",
			"Welche Stimmung soll vermittelt werden?",
			"Werden die Bilder primär digital oder in Print verwendet?",
		},
		Template:   "bildwelt_template",
		Strategies: []string{"sinneskanaele", "perspektivwechsel", "zeitlinie", "geschichten"},
	},
	{
		ID:          "piktogramme",
		Name:        "Piktogramm-Systeme",
		Description: "Entwicklung konsistenter Icon- und Piktogramm-Sets",
		Keywords:    []string{"piktogramme", "icons", "icon-system", "ui-icons", "leitsystem", "piktogrammsystem"},
		Questions: []string{
			"Wo werden die Piktogramme eingesetzt? (Website, App, Leitsystem, Print)",
			"Gibt es bereits bestehende Icons, die angepasst werden müssen?",
			"Welche Strichstärke und Formensprache ist gewünscht?",
			"Wie klein müssen die Icons funktionieren?",
			"Sind Animationen geplant?",
		},
		Template:   "piktogramme_template",
		Strategies: []string{"symbol", "vereinfachung", "ohne_worte"},
	},
	{
		ID:          "social",
		Name:        "Social Media Content",
		Description: "Content-Strategie und Erstellung von Social-Media-Beiträgen",
		Keywords:    []string{"social media", "content", "instagram", "linkedin", "posts", "content-strategie"},
		Questions: []string{
			"Auf welchen Plattformen soll die Kampagne laufen?",
			"Was ist das Hauptziel? (Reichweite, Engagement, Leads, Verkauf)",
			"Gibt es bestehende Social-Media-Kanäle?",
			"Wie oft sollen Beiträge veröffentlicht werden?",
			"Gibt es bereits bestehende Bildmaterialien?",
		},
		Template:   "social_template",
		Strategies: []string{"geschichten", "provokation", "doppeldeutig", "reframing"},
	},
}
