package briefing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

func TestExtract_LogoForStartup(t *testing.T) {
	u := Extract("Wir brauchen ein neues Logo für unser Tech-Startup", domain.BriefingContext{})

	assert.Equal(t, domain.ProjectLogo, u.ProjectType)
	assert.Empty(t, u.Industry, "Tech-Startup is not an industry keyword")
	assert.Equal(t, []domain.Field{domain.FieldProjectType}, u.Fields())

	b := Merge(domain.BriefingContext{}, u)
	assert.InDelta(t, 0.2, Confidence(b), 1e-9)
}

func TestExtract_FirstWriterWins(t *testing.T) {
	current := domain.BriefingContext{ProjectType: domain.ProjectLogo}
	u := Extract("Eigentlich meinten wir Social Media", current)

	assert.True(t, u.Empty())
	assert.Equal(t, domain.ProjectLogo, Merge(current, u).ProjectType)
}

func TestExtract_ScalarsNeverOverwritten(t *testing.T) {
	full := domain.BriefingContext{
		ProjectType:    domain.ProjectVideo,
		Industry:       "bank",
		TargetAudience: "Studierende",
		Style:          "klassisch",
		Budget:         "10k",
		Timeline:       "1 Tag",
		AdditionalInfo: "keine",
	}
	msgs := []string{
		"Wir brauchen ein Logo für unser Yoga Studio",
		"Zielgruppe: Familien mit Kindern. Modern und verspielt bitte.",
		"Budget ca. 5000 Euro, in 3 Wochen, dringend",
		"Außerdem wichtig ist uns Nachhaltigkeit",
	}
	for _, msg := range msgs {
		u := Extract(msg, full)
		for _, f := range domain.BriefingFields {
			if f.IsList() {
				continue
			}
			assert.Empty(t, u.Scalar(f), "field %s updated by %q", f, msg)
		}
	}
}

func TestExtract_ColorsSkipNegated(t *testing.T) {
	u := Extract("Ich mag Blau und Grün, aber kein Rot", domain.BriefingContext{})
	assert.Equal(t, []string{"blau", "grün"}, u.Colors)
}

func TestExtract_ColorsInflectedAndShaded(t *testing.T) {
	u := Extract("Gerne dunkelblaue Akzente mit gelben Details", domain.BriefingContext{})
	assert.Equal(t, []string{"blau", "gelb"}, u.Colors)
}

func TestExtract_ColorsOnlyNewValues(t *testing.T) {
	current := domain.BriefingContext{Colors: []string{"blau"}}
	u := Extract("Blau und Schwarz", current)
	assert.Equal(t, []string{"schwarz"}, u.Colors)
	assert.Equal(t, []string{"blau", "schwarz"}, Merge(current, u).Colors)
}

func TestExtract_ColorsCapped(t *testing.T) {
	e := NewExtractor(WithMaxColors(3))
	u := e.Extract("Blau, Grün, Rot, Orange und Gelb", domain.BriefingContext{Colors: []string{"schwarz"}})
	assert.Equal(t, []string{"blau", "grün"}, u.Colors)

	u = Extract("blau grün rot orange gelb lila rosa", domain.BriefingContext{})
	assert.Len(t, u.Colors, DefaultMaxColors)
}

func TestExtract_IndustryWholeToken(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Wir betreiben ein Café in Zürich", "café"},
		{"Wir sind ein Fitness Studio", "fitness"},
		{"Ein Logo mit klarer Schrift", ""},
		{"Unser E-Commerce Shop verkauft Tee", "e-commerce"},
		{"Wir machen Software für Banken", "software"},
	}
	for _, tt := range tests {
		u := Extract(tt.msg, domain.BriefingContext{})
		assert.Equal(t, tt.want, u.Industry, tt.msg)
	}
}

func TestExtract_ProjectTypeOrder(t *testing.T) {
	tests := []struct {
		msg  string
		want domain.ProjectType
	}{
		{"Ein Instagram Post und ein Logo", domain.ProjectLogo},
		{"Wir planen eine LinkedIn Kampagne", domain.ProjectSocial},
		{"Es geht um unser Branding", domain.ProjectBranding},
		{"Ein kurzer Werbespot", domain.ProjectVideo},
		{"Hallo zusammen", ""},
	}
	for _, tt := range tests {
		u := Extract(tt.msg, domain.BriefingContext{})
		assert.Equal(t, tt.want, u.ProjectType, tt.msg)
	}
}

func TestExtract_Style(t *testing.T) {
	assert.Equal(t, "modern", Extract("Es soll modern und schlicht wirken", domain.BriefingContext{}).Style)
	assert.Equal(t, "minimalistisch", Extract("Bitte schlicht und reduziert", domain.BriefingContext{}).Style)
	assert.Equal(t, "professionell", Extract("Seriös muss es sein", domain.BriefingContext{}).Style)
}

func TestExtract_TargetAudienceSentence(t *testing.T) {
	u := Extract("Hallo! Unsere Zielgruppe sind junge Familien. Wir mögen Holz.", domain.BriefingContext{})
	assert.Equal(t, "Unsere Zielgruppe sind junge Familien", u.TargetAudience)
}

func TestExtract_Timeline(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Wir brauchen das Logo in 3 Wochen", "3 Wochen"},
		{"In 2 Monaten, aber es ist dringend", "2 Monaten"},
		{"Das ist leider dringend", "dringend"},
		{"Innerhalb von zwei Wochen wäre super", "zwei Wochen"},
		{"Fertig bis Ende März", "bis Ende März"},
		{"Kein Zeitdruck", ""},
		{"Das alte Logo ist langweilig", ""},
		{"Die Website lädt schnelle Bilder", ""},
		{"Die Website lädt schnell", ""},
		{"Der Termin muss schnell stehen", "schnell"},
		{"Bitte so schnell wie möglich", "so schnell wie möglich"},
		{"Wir brauchen das ASAP", "ASAP"},
	}
	for _, tt := range tests {
		u := Extract(tt.msg, domain.BriefingContext{})
		assert.Equal(t, tt.want, u.Timeline, tt.msg)
	}
}

func TestExtract_UrgencyWordsDoNotFillTimeline(t *testing.T) {
	u := Extract("Das alte Logo ist langweilig", domain.BriefingContext{})
	assert.Empty(t, u.Timeline)
	assert.Equal(t, []domain.Field{domain.FieldProjectType}, u.Fields())

	b := Merge(domain.BriefingContext{}, u)
	assert.InDelta(t, 0.2, Confidence(b), 1e-9)
}

func TestExtract_Competitors(t *testing.T) {
	u := Extract("Unsere Konkurrenten sind Migros, Coop und Aldi.", domain.BriefingContext{})
	assert.Equal(t, []string{"Migros", "Coop", "Aldi"}, u.Competitors)

	u = Extract("Wir haben viel Konkurrenz.", domain.BriefingContext{})
	assert.Empty(t, u.Competitors)
}

func TestExtract_LikesAndDislikes(t *testing.T) {
	u := Extract("Mir gefällt der Stil von Apple. Verspielte Designs gefallen mir nicht.", domain.BriefingContext{})
	assert.Equal(t, []string{"der Stil von Apple"}, u.Likes)
	assert.Equal(t, []string{"Verspielte Designs gefallen mir nicht"}, u.Dislikes)

	u = Extract("Das mag ich nicht", domain.BriefingContext{})
	assert.Empty(t, u.Likes)
	assert.Equal(t, []string{"Das mag ich nicht"}, u.Dislikes)

	u = Extract("Ich mag keine Pastellfarben", domain.BriefingContext{})
	assert.Empty(t, u.Likes)
	assert.Equal(t, []string{"Pastellfarben"}, u.Dislikes)
}

func TestExtract_BudgetAndUSP(t *testing.T) {
	u := Extract("Unser Budget liegt bei CHF 5'000. Einzigartig ist unser Service rund um die Uhr.", domain.BriefingContext{})
	assert.Equal(t, "CHF 5'000", u.Budget)
	assert.Equal(t, []string{"ist unser Service rund um die Uhr"}, u.UniqueSellingPoints)

	u = Extract("Das Budget ist noch offen", domain.BriefingContext{})
	assert.Equal(t, "Das Budget ist noch offen", u.Budget)
}

func TestExtract_NoMatchIsEmpty(t *testing.T) {
	for _, msg := range []string{"", "   ", "Hallo", "Danke schön"} {
		u := Extract(msg, domain.BriefingContext{})
		assert.True(t, u.Empty(), "%q", msg)
		assert.Empty(t, u.Fields())
	}
}

func TestMerge_ListsAccumulate(t *testing.T) {
	b := domain.BriefingContext{}
	msgs := []string{
		"Ich mag Blau",
		"Mir gefällt Holz",
		"Grün wäre auch schön",
		"Ich mag Blau",
		"Mir gefällt Beton",
	}
	prevColors, prevLikes := 0, 0
	for _, msg := range msgs {
		b = Merge(b, Extract(msg, b))
		require.GreaterOrEqual(t, len(b.Colors), prevColors)
		require.GreaterOrEqual(t, len(b.Likes), prevLikes)
		prevColors, prevLikes = len(b.Colors), len(b.Likes)
	}
	assert.Equal(t, []string{"blau", "grün"}, b.Colors)
	assert.Equal(t, []string{"Blau", "Holz", "Beton"}, b.Likes)
}

func TestMerge_DoesNotAlias(t *testing.T) {
	current := domain.BriefingContext{Likes: []string{"a"}}
	out := Merge(current, Update{domain.BriefingContext{Likes: []string{"b"}}})
	out.Likes[0] = "changed"
	assert.Equal(t, "a", current.Likes[0])
}

func TestWithRules_CustomTable(t *testing.T) {
	e := NewExtractor(WithRules([]Rule{
		{Field: domain.FieldIndustry, Match: TokenKeywords([]string{"brauerei"})},
	}))
	u := e.Extract("Wir sind eine Brauerei mit Logo", domain.BriefingContext{})
	assert.Equal(t, "brauerei", u.Industry)
	assert.Empty(t, u.ProjectType)
}
