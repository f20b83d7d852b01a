package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/cases"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

const noData = "Keine Daten vorhanden."

// Options controls document rendering.
type Options struct {
	Client      string         // "Unbekannter Kunde" when empty
	Agency      string         // "StadtHirsch" when empty
	Catalog     *cases.Catalog // resolves the case name
	WithLog     bool           // append the conversation transcript
	Insights    []string       // extra notes, for example website research
	Now         time.Time      // generation time, time.Now when zero
	GeneratedBy string
}

func (o Options) withDefaults() Options {
	if o.Client == "" {
		o.Client = "Unbekannter Kunde"
	}
	if o.Agency == "" {
		o.Agency = "StadtHirsch"
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.GeneratedBy == "" {
		o.GeneratedBy = o.Agency + " KI-Briefing-System"
	}
	return o
}

// Document is the format independent content of a strategic briefing.
type Document struct {
	Title       string
	Client      string
	Agency      string
	ProjectType string
	Sections    []Section
	Footer      string
}

// Section is one numbered chapter. Paragraphs come before bullets.
type Section struct {
	Heading    string
	Paragraphs []string
	Bullets    []string
	Checkboxes []string
}

var projectTypeNames = map[domain.ProjectType]string{
	domain.ProjectLogo:     "Logo-Entwicklung",
	domain.ProjectSocial:   "Social Media Content",
	domain.ProjectBranding: "Corporate Identity & Branding",
	domain.ProjectVideo:    "Video",
	domain.ProjectOther:    "Sonstiges",
}

// Build assembles the briefing document from a conversation memory.
func Build(mem domain.ConversationMemory, opts Options) Document {
	opts = opts.withDefaults()
	b := mem.Briefing

	var found *cases.Case
	if opts.Catalog != nil && mem.CaseID != "" {
		if c, ok := opts.Catalog.Get(mem.CaseID); ok {
			found = &c
		}
	}

	doc := Document{
		Title:       "STRATEGISCHES BRIEFING",
		Client:      opts.Client,
		Agency:      opts.Agency,
		ProjectType: projectTypeName(b.ProjectType, found),
		Footer:      fmt.Sprintf("Generiert am %s durch %s", opts.Now.Format("02.01.2006"), opts.GeneratedBy),
	}

	add := func(heading string, s Section) {
		s.Heading = fmt.Sprintf("%d. %s", len(doc.Sections)+1, heading)
		doc.Sections = append(doc.Sections, s)
	}

	summary := []string{"Dieses strategische Briefing wurde auf Basis eines interaktiven Gesprächs erstellt."}
	summary = append(summary, fmt.Sprintf("Stand: %s, Vollständigkeit %d%%, %d Nachrichten.",
		stageName(mem.Stage, mem.Confirmed), int(mem.Confidence*100+0.5), len(mem.Messages)))
	if len(mem.MissingFields) > 0 {
		summary = append(summary, "Noch offen: "+briefing.FormatMissing(mem.MissingFields)+".")
	}
	add("ZUSAMMENFASSUNG", Section{Paragraphs: summary})

	var overview []string
	for _, f := range domain.BriefingFields {
		if b.IsSet(f) {
			overview = append(overview, briefing.FieldLabel(f)+": "+briefing.FieldValue(b, f))
		}
	}
	add("BRIEFING-ÜBERSICHT", orNoData(Section{Bullets: overview}))

	add("ZIELGRUPPE", orNoData(Section{Bullets: nonEmpty(b.TargetAudience)}))
	add("WETTBEWERBSANALYSE", orNoData(Section{Bullets: b.Competitors}))

	var design []string
	for _, f := range []domain.Field{domain.FieldStyle, domain.FieldColors, domain.FieldLikes, domain.FieldDislikes} {
		if b.IsSet(f) {
			design = append(design, briefing.FieldLabel(f)+": "+briefing.FieldValue(b, f))
		}
	}
	add("GESTALTUNG", orNoData(Section{Bullets: design}))

	var plan []string
	if b.Timeline != "" {
		plan = append(plan, "Zeitrahmen: "+b.Timeline)
	}
	if b.Budget != "" {
		plan = append(plan, "Budget: "+b.Budget)
	}
	add("ZEITRAHMEN & BUDGET", orNoData(Section{Bullets: plan}))

	add("USP-EXTRAKTION", orNoData(Section{Bullets: b.UniqueSellingPoints}))

	if len(opts.Insights) > 0 || b.AdditionalInfo != "" {
		add("RECHERCHE & HINWEISE", Section{Bullets: append(nonEmpty(b.AdditionalInfo), opts.Insights...)})
	}

	add("ASSET-ROADMAP", Section{
		Paragraphs: []string{"Basierend auf dem Briefing werden folgende Assets empfohlen:"},
		Checkboxes: assetRoadmap(mem.CaseID),
	})
	add("QUALITÄTS-CHECKLISTE", Section{Checkboxes: qualityChecklist(mem.CaseID)})

	if opts.WithLog && len(mem.Messages) > 0 {
		add("GESPRÄCHSVERLAUF", Section{Paragraphs: strings.Split(briefing.FormatHistory(mem.Messages), "\n\n")})
	}
	return doc
}

func projectTypeName(pt domain.ProjectType, c *cases.Case) string {
	if c != nil {
		return c.Name
	}
	if n, ok := projectTypeNames[pt]; ok {
		return n
	}
	return "Unbestimmt"
}

func stageName(s domain.Stage, confirmed bool) string {
	switch {
	case confirmed:
		return "bestätigt"
	case s == domain.StageConfirmation:
		return "bereit zur Bestätigung"
	case s == domain.StageInitial:
		return "nicht begonnen"
	default:
		return "in Arbeit"
	}
}

func orNoData(s Section) Section {
	if len(s.Paragraphs) == 0 && len(s.Bullets) == 0 {
		s.Paragraphs = []string{noData}
	}
	return s
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// FileName returns a download name such as Briefing_Cafe_Hirsch_20260102.docx.
func FileName(opts Options, ext string) string {
	opts = opts.withDefaults()
	name := strings.Join(strings.Fields(opts.Client), "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf("Briefing_%s_%s.%s", name, opts.Now.Format("20060102-150405"), strings.TrimPrefix(ext, "."))
}
