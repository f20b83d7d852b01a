package research

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePage = `<!doctype html>
<html><head>
<title>  Café Hirsch | Zürich </title>
<meta content="Kaffee &amp; Kuchen seit 1920" name="description">
<meta name='keywords' content='café, kuchen , , zürich'>
<style>body { color: #1A2B3C; background: #ffffff; }</style>
</head>
<body>
<header><img class="site-logo" src="/img/header.png"></header>
<main>
  <h1>Willkommen</h1>
  <p>Frisch   gebrühter Kaffee.</p>
  <script>var c = "#000000";</script>
</main>
<img src="a.jpg"><IMG src="b.jpg">
<div style="border-color:#1a2b3c"></div>
</body></html>`

func TestAnalyze_SamplePage(t *testing.T) {
	a := Analyze(samplePage)

	assert.Equal(t, "Café Hirsch | Zürich", a.Title)
	assert.Equal(t, "Kaffee & Kuchen seit 1920", a.Description)
	assert.Equal(t, []string{"café", "kuchen", "zürich"}, a.Keywords)
	assert.Equal(t, "Willkommen Frisch gebrühter Kaffee.", a.ContentPreview)
	assert.Equal(t, []string{"#1a2b3c", "#ffffff", "#000000"}, a.Colors)
	assert.Equal(t, 3, a.ImageCount)
	assert.True(t, a.HasLogo)
}

func TestAnalyze_BodyFallbackAndLimits(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `<span style="color:#%06x">`, i+1)
		sb.WriteString(strings.Repeat("wort ", 30))
		sb.WriteString("</span>")
	}
	sb.WriteString("</body></html>")

	a := Analyze(sb.String())
	assert.Len(t, a.Colors, maxColors)
	assert.Equal(t, "#000001", a.Colors[0])
	assert.Len(t, []rune(a.ContentPreview), maxPreview)
	assert.True(t, strings.HasPrefix(a.ContentPreview, "wort wort"))
	assert.False(t, a.HasLogo)
	assert.Zero(t, a.ImageCount)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := Analyze("")
	assert.Empty(t, a.Title)
	assert.Empty(t, a.ContentPreview)
	assert.NotNil(t, a.Keywords)
	assert.NotNil(t, a.Colors)
}

func TestAnalyze_OpenGraphDescription(t *testing.T) {
	a := Analyze(`<meta property="og:description" content="Bauen mit Holz">`)
	assert.Equal(t, "Bauen mit Holz", a.Description)
}

func TestAnalyze_NestedContainer(t *testing.T) {
	a := Analyze(`<body><nav>Menü</nav><div class="page content"><div class="hero">Willkommen</div>` +
		`<p>Wir sind eine Yoga-Schule in Bern.</p></div><footer>Impressum</footer></body>`)
	assert.Equal(t, "Willkommen Wir sind eine Yoga-Schule in Bern.", a.ContentPreview)
}

func TestAnalyze_MainWithNestedBlocks(t *testing.T) {
	a := Analyze(`<main><section><div><h2>Kurse</h2></div><div>Hatha &amp; Yin</div></section>` +
		`<style>.x{}</style><noscript>Bitte JavaScript aktivieren</noscript><p>Ab 25 CHF</p></main>`)
	assert.Equal(t, "Kurse Hatha & Yin Ab 25 CHF", a.ContentPreview)
}

func TestAnalyze_EntitiesDecodedOnce(t *testing.T) {
	a := Analyze(`<title>A &amp;amp; B</title><meta name="description" content="S&amp;P">`)
	assert.Equal(t, "A &amp; B", a.Title)
	assert.Equal(t, "S&P", a.Description)
}

func TestAnalyze_LogoHints(t *testing.T) {
	assert.True(t, Analyze(`<img src="/assets/brand-mark.svg">`).HasLogo)
	assert.True(t, Analyze(`<a id="Logo" href="/">Home</a>`).HasLogo)
	assert.False(t, Analyze(`<img src="/assets/team.jpg" alt="Team">`).HasLogo)
}

func TestAnalysis_Insights(t *testing.T) {
	a := Analysis{
		Title:       "Hirsch",
		Description: "Agentur",
		Colors:      []string{"#111111", "#222222", "#333333", "#444444", "#555555", "#666666"},
		ImageCount:  4,
	}
	got := a.Insights("https://hirsch.ch")
	assert.Equal(t, []string{
		"Website-Analyse: Hirsch. Agentur",
		"Website: https://hirsch.ch. Farben: #111111, #222222, #333333, #444444, #555555. Bilder: 4",
	}, got)
}
