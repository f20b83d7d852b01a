package cases

import "slices"

// StrategyCategory groups thinking strategies.
type StrategyCategory string

const (
	CategoryVisual     StrategyCategory = "visual"
	CategoryVerbal     StrategyCategory = "verbal"
	CategoryConceptual StrategyCategory = "conceptual"
	CategoryStructural StrategyCategory = "structural"
)

// Strategy is a creative thinking strategy with its guiding questions.
type Strategy struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    StrategyCategory `json:"category"`
	Questions   []string         `json:"questions"`
}

// Strategies returns the read-only strategy catalog.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// StrategyFor picks a strategy by turn number, cycling through the catalog.
func StrategyFor(turn int) Strategy {
	return Pick(strategies, turn)
}

// Pick cycles through list by turn number. list must not be empty.
func Pick(list []Strategy, turn int) Strategy {
	if turn < 0 {
		turn = -turn
	}
	return list[turn%len(list)]
}

// StrategiesByID returns the catalog strategies named in ids, in catalog
// order. Unknown IDs are ignored; an empty ids selects every strategy.
func StrategiesByID(ids []string) []Strategy {
	if len(ids) == 0 {
		return Strategies()
	}
	var out []Strategy
	for _, st := range strategies {
		if slices.Contains(ids, st.ID) {
			out = append(out, st)
		}
	}
	return out
}

// GoalTemplate is a pattern for the single-minded goal question of a campaign.
type GoalTemplate struct {
	Type     string `json:"type"`
	Template string `json:"template"`
	Example  string `json:"example"`
}

// GoalTemplates returns the goal formulation patterns.
func GoalTemplates() []GoalTemplate {
	return slices.Clone(goalTemplates)
}

var goalTemplates = []GoalTemplate{
	{
		Type:     "standard",
		Template: "Wie können wir in einer Kampagne vermitteln, dass [PRODUKT] [EIGENSCHAFT] bietet?",
		Example:  "Wie können wir vermitteln, dass das neue Objektiv das robusteste ist?",
	},
	{
		Type:     "benefit_focused",
		Template: "Wie können wir darstellen, dass [PRODUKT] [KONKRETEN BENEFIT] bietet?",
		Example:  "Wie können wir darstellen, dass das Objektiv die höchste Stossfestigkeit bietet?",
	},
	{
		Type:     "provocative",
		Template: "Wie können wir auf provokante Weise darstellen, dass [PRODUKT] [BENEFIT] bietet?",
		Example:  "Wie können wir provokant zeigen, dass das Objektiv stossfest ist?",
	},
	{
		Type:     "medium_focused",
		Template: "Wie könnte [MEDIUM] für den Empfänger erlebbar machen, dass [PRODUKT] [BENEFIT] bietet?",
		Example:  "Wie könnte ein Direct Mail erlebbar machen, dass das Objektiv stossfest ist?",
	},
}

// GoalCriteria are the rules a goal formulation has to meet.
var GoalCriteria = []string{
	"Eine klare Aussage (Single-Minded-Proposition)",
	"Kein \"und\" verwenden",
	"Als Frage formulieren: \"Wie können wir...\"",
	"Kurz und verständlich, auch für 12-Jährige",
	"Keine Fremdwörter oder Fachbegriffe",
}

var strategies = []Strategy{
	{
		ID: "ohne_worte", Name: "Ohne Worte", Category: CategoryVisual,
		Description: "Produktvorteil rein visuell darstellen",
		Questions: []string{
			"Wie lässt sich der Produktvorteil ohne Worte darstellen?",
			"Wie kann ein einziges Bild den Benefit darstellen?",
		},
	},
	{
		ID: "kombinieren", Name: "Kombinieren und Verbinden", Category: CategoryConceptual,
		Description: "Elemente verbinden für neue Perspektiven",
		Questions: []string{
			"Womit kann man das Produkt kombinieren, um den USP deutlicher zu kommunizieren?",
			"Wie lassen sich Problem und Lösung verknüpfen?",
		},
	},
	{
		ID: "vergleich", Name: "Vergleichende Gegenüberstellung", Category: CategoryVisual,
		Description: "Vorher/Nachher oder Kontraste nutzen",
		Questions: []string{
			"Welcher Vorher/Nachher-Vergleich könnte den Nutzen unterstreichen?",
			"Womit kann man das Produkt vergleichen?",
		},
	},
	{
		ID: "uebertreibung", Name: "Übertreibung", Category: CategoryVisual,
		Description: "Produkteigenschaften ins Extrem steigern",
		Questions: []string{
			"Was könnte man übertreiben: Grösser? Länger? Schwerer?",
			"Was könnte man extrem reduzieren: Kompakter? Leichter?",
		},
	},
	{
		ID: "drehung_180", Name: "Drehung um 180 Grad", Category: CategoryConceptual,
		Description: "Gewohntes ins Gegenteil verkehren",
		Questions: []string{
			"Den Produktvorteil ins Gegenteil verkehren?",
			"Die Rollen vertauschen?",
		},
	},
	{
		ID: "metapher", Name: "Metapher und Analogie", Category: CategoryConceptual,
		Description: "Vergleiche aus Natur und Technik",
		Questions: []string{
			"Welche Metapher aus Natur und Technik passt: Unser Produkt ist so wie...?",
			"Welche Parallelen lassen sich ziehen?",
		},
	},
	{
		ID: "perspektivwechsel", Name: "Perspektivwechsel", Category: CategoryConceptual,
		Description: "Andere Blickwinkel einnehmen",
		Questions: []string{
			"Wie sieht das Produkt aus der Sicht eines Kindes aus?",
			"Aus der Sicht des Produkts selbst?",
		},
	},
	{
		ID: "zeitlinie", Name: "Wirkung der Zeit", Category: CategoryStructural,
		Description: "Lebenszyklus des Produkts nutzen",
		Questions: []string{
			"Wie wird das Produkt die Zukunft verändern?",
			"Wie wurde das Problem früher gelöst?",
		},
	},
	{
		ID: "sinneskanaele", Name: "Sinneskanäle", Category: CategoryConceptual,
		Description: "Andere Sinne als Sehen nutzen",
		Questions: []string{
			"Wie könnte man es hörbar machen?",
			"Wie könnte es spürbar werden?",
		},
	},
	{
		ID: "geschichten", Name: "Geschichten ums Produkt", Category: CategoryConceptual,
		Description: "Alltagssituationen dramatisieren",
		Questions: []string{
			"In welcher Geschichte wird das Produkt zum Helden?",
			"Welcher Stil passt: Thriller, Komödie, Drama?",
		},
	},
	{
		ID: "provokation", Name: "Provokation und Schock", Category: CategoryVerbal,
		Description: "Aufmerksamkeit durch Tabubruch",
		Questions: []string{
			"Was wurde noch nie gezeigt?",
			"Was würde sich keiner trauen zu sagen?",
		},
	},
	{
		ID: "doppeldeutig", Name: "Doppeldeutig", Category: CategoryVerbal,
		Description: "Wortspiele und Mehrdeutigkeiten",
		Questions: []string{
			"Welche doppeldeutigen Wortspiele stecken im Produkt?",
			"Sprachliche Doppeldeutigkeiten in Claims?",
		},
	},
	{
		ID: "reframing", Name: "Reframing", Category: CategoryConceptual,
		Description: "Rahmen wechseln für neue Bedeutung",
		Questions: []string{
			"Wo bekommen scheinbar negative Aspekte positive Bedeutung?",
			"Welcher Kontext überrascht oder verblüfft?",
		},
	},
	{
		ID: "woertlich_nehmen", Name: "Nimm's wörtlich", Category: CategoryVerbal,
		Description: "Redewendungen buchstäblich umsetzen",
		Questions: []string{
			"Welche Redewendungen können wörtlich genommen werden?",
			"Welche Metaphern lassen sich buchstäblich in Bilder wandeln?",
		},
	},
	{
		ID: "vereinfachung", Name: "Vereinfachung", Category: CategoryVisual,
		Description: "Auf das Wesentliche reduzieren",
		Questions: []string{
			"Was bleibt übrig, wenn man alles Unnötige weglässt?",
			"Mit wie wenigen Elementen ist die Botschaft noch erkennbar?",
		},
	},
	{
		ID: "symbol", Name: "Symbole und Zeichen", Category: CategoryVisual,
		Description: "Visuelle Zeichensprache nutzen",
		Questions: []string{
			"Welche Symbole oder Zeichen vereinfachen die Darstellung?",
			"Gibt es Zeichen, die durch Abwandlung neue Bedeutung erhalten?",
		},
	},
}
