package cases

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		msg    string
		want   string
		wantOK bool
	}{
		{"Wir brauchen eine neue Corporate Identity", "ci", true},
		{"Ein LOGO Redesign bitte", "logo", true},
		{"Wir suchen eine Bildsprache für die Website", "bildwelt", true},
		{"Ein Leitsystem für das Spital", "piktogramme", true},
		{"Mehr Posts auf Instagram", "social", true},
		{"Hallo, wie geht es?", "", false},
		// "ci" is a literal substring of "social", and ci comes first.
		{"Social Media Kampagne", "ci", true},
	}
	for _, tt := range tests {
		got, ok := Detect(tt.msg)
		assert.Equal(t, tt.wantOK, ok, tt.msg)
		assert.Equal(t, tt.want, got, tt.msg)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	first, _ := Detect("Logo und Branding")
	for i := 0; i < 10; i++ {
		got, _ := Detect("Logo und Branding")
		assert.Equal(t, first, got)
	}
	assert.Equal(t, "ci", first, "table order decides, not position in the message")
}

func TestCatalog_RegisterReplacesInPlace(t *testing.T) {
	c := DefaultCatalog(nil)
	c.Register(Case{ID: "logo", Name: "Logo neu", Keywords: []string{"Wappen"}})

	list := c.List()
	require.Len(t, list, 5)
	assert.Equal(t, "logo", list[1].ID)
	assert.Equal(t, "Logo neu", list[1].Name)

	id, ok := c.Detect("Ein neues wappen")
	assert.True(t, ok)
	assert.Equal(t, "logo", id)

	_, ok = c.Detect("Nur ein Signet")
	assert.False(t, ok, "old keywords are gone")
}

func TestCatalog_MergeAppends(t *testing.T) {
	c := DefaultCatalog(nil)
	c.Merge([]Case{{ID: "verpackung", Keywords: []string{"verpackung", "packaging"}}})

	id, ok := c.Detect("Wir brauchen ein Packaging")
	assert.True(t, ok)
	assert.Equal(t, "verpackung", id)

	cs, ok := c.Get("verpackung")
	require.True(t, ok)
	assert.Equal(t, []string{"verpackung", "packaging"}, cs.Keywords)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("messe.yaml", `
name: Messestand
description: Gestaltung eines Messeauftritts
keywords: [messe, messestand]
questions:
  - Welche Messe?
  - Wie gross ist die Fläche?
template: messe_template
`)
	write("broken.yml", "keywords: [unclosed")
	write("notes.txt", "ignored")

	got, err := LoadFromDirectory(dir, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "messe", got[0].ID)
	assert.Equal(t, "Messestand", got[0].Name)
	assert.Equal(t, []string{"Welche Messe?", "Wie gross ist die Fläche?"}, got[0].Questions)
}

func TestLoadFromDirectory_Missing(t *testing.T) {
	got, err := LoadFromDirectory(filepath.Join(t.TempDir(), "none"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStrategyFor_Cycles(t *testing.T) {
	all := Strategies()
	require.NotEmpty(t, all)
	assert.Equal(t, all[0].ID, StrategyFor(0).ID)
	assert.Equal(t, all[0].ID, StrategyFor(len(all)).ID)
	assert.Equal(t, all[1].ID, StrategyFor(-1).ID)
}

func TestCatalog_StrategiesFor(t *testing.T) {
	c := DefaultCatalog(nil)
	ids := func(list []Strategy) []string {
		var out []string
		for _, st := range list {
			out = append(out, st.ID)
		}
		return out
	}

	assert.Equal(t, []string{"uebertreibung", "metapher", "perspektivwechsel", "symbol"}, ids(c.StrategiesFor("ci")))
	assert.Equal(t, []string{"ohne_worte", "drehung_180", "vereinfachung", "symbol"}, ids(c.StrategiesFor("logo")))
	assert.Equal(t, []string{"geschichten", "provokation", "doppeldeutig", "reframing"}, ids(c.StrategiesFor("social")))
	assert.Len(t, c.StrategiesFor("unbekannt"), len(Strategies()))

	c.Register(Case{ID: "flyer", Keywords: []string{"flyer"}, Strategies: []string{"gibt_es_nicht"}})
	assert.Len(t, c.StrategiesFor("flyer"), len(Strategies()), "no known strategy falls back to all")
}

func TestGoalTemplates(t *testing.T) {
	tpl := GoalTemplates()
	require.Len(t, tpl, 4)
	assert.Equal(t, "standard", tpl[0].Type)
	tpl[0].Type = "changed"
	assert.Equal(t, "standard", GoalTemplates()[0].Type)
}

func TestLoadCases_FS(t *testing.T) {
	fsys := fstest.MapFS{
		"a_flyer.YML":  {Data: []byte("id: flyer\nname: Flyer\nkeywords: [flyer]\n")},
		"b_empty.yaml": {Data: []byte("")},
		"sub/x.yaml":   {Data: []byte("name: nested\n")},
	}
	got, err := loadCases(fsys, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, got, 1, "empty files and subdirectories are skipped")
	assert.Equal(t, "flyer", got[0].ID)
}
