package export

var assetRoadmaps = map[string][]string{
	"ci": {
		"Logo-Varianten (Standard, Negativ, Schwarz-Weiss)",
		"Farbdefinitionsdokument (Primär- und Sekundärfarben)",
		"Typografie-Richtlinien",
		"Anwendungsbeispiele (Briefpapier, Visitenkarten)",
		"Icon-System (falls benötigt)",
		"Fotografie-Richtlinien",
	},
	"logo": {
		"Logo-Entwürfe (3-5 Varianten)",
		"Logo-Abwandlungen (für verschiedene Medien)",
		"Schutzzonen-Definition",
		"Mindestgrössen-Definition",
		"Anwendungsbeispiele",
		"Styleguide-Auszug",
	},
	"bildwelt": {
		"Moodboards (3-5 Richtungen)",
		"Beispielbilder pro Kategorie",
		"Fotografie-Richtlinien",
		"Bildbearbeitungs-Vorgaben",
		"Lizenz-Empfehlungen",
	},
	"piktogramme": {
		"Icon-Set (20-50 Icons)",
		"Grid-System-Dokumentation",
		"Strichstärken-Definition",
		"Farb-Anwendung",
		"Animations-Vorgaben (falls relevant)",
	},
	"social": {
		"Content-Kalender (2-4 Wochen)",
		"Post-Templates (3-5 Varianten)",
		"Story-Templates",
		"Hashtag-Strategie",
		"Caption-Vorlagen",
	},
}

var qualityChecklists = map[string][]string{
	"ci": {
		"Logo funktioniert in Schwarz-Weiss",
		"Farben haben ausreichend Kontrast (WCAG 4.5:1)",
		"Typografie ist lizenziert",
		"Alle Touchpoints berücksichtigt",
		"Markenwerte sind konsistent umgesetzt",
	},
	"logo": {
		"Logo ist in klein (16px Favicon) erkennbar",
		"Schutzzone wird eingehalten",
		"Alle Varianten vorhanden (Standard, Negativ, Monochrom)",
		"Keine Verzerrung oder Effekte",
		"Dateiformate: SVG, PNG, PDF vorhanden",
	},
	"bildwelt": {
		"Stimmung ist konsistent",
		"Farben passen zur Marken-CI",
		"Lizenzen sind geklärt",
		"Diversity ist abgebildet",
		"Bilder funktionieren mit Text-Overlay",
	},
	"piktogramme": {
		"Icons sind bei 16px noch erkennbar",
		"Strichstärke ist konsistent",
		"Grid-System eingehalten",
		"Alle Icons haben gleichen visuellen Schwerpunkt",
		"Dark-Mode-Varianten vorhanden",
	},
	"social": {
		"Texte sind kurz und pointiert",
		"CTAs sind klar",
		"Hashtags sind recherchiert",
		"Bildformate passen zu Plattformen",
		"Redaktionsplan ist realistisch",
	},
}

// Unknown or missing cases fall back to the CI lists.
func assetRoadmap(caseID string) []string {
	if items, ok := assetRoadmaps[caseID]; ok {
		return items
	}
	return assetRoadmaps["ci"]
}

func qualityChecklist(caseID string) []string {
	if items, ok := qualityChecklists[caseID]; ok {
		return items
	}
	return qualityChecklists["ci"]
}
