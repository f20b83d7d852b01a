package research

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxPreview = 2000
	maxColors  = 10
)

// Analysis is what a client website tells us about the brand.
type Analysis struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Keywords       []string `json:"keywords"`
	ContentPreview string   `json:"contentPreview"`
	Colors         []string `json:"colors"` // lower case #rrggbb, first seen first
	ImageCount     int      `json:"imageCount"`
	HasLogo        bool     `json:"hasLogo"`
}

var (
	reColor = regexp.MustCompile(`#[0-9a-fA-F]{6}\b`)
	reSpace = regexp.MustCompile(`\s+`)

	reLogoFile = regexp.MustCompile(`(?i)(logo|brand).*\.(png|jpe?g|svg|gif|webp)`)
)

// contentContainers are tried in order; the first one holding text wins.
var contentContainers = []func(*html.Node) bool{
	isElement(atom.Main),
	isElement(atom.Article),
	func(n *html.Node) bool {
		return n.Type == html.ElementNode && (hasClass(n, "content") || attr(n, "id") == "content")
	},
	isElement(atom.Body),
}

// Analyze extracts title, meta data, visible text, colors and logo hints
// from raw HTML. It never fails; missing parts stay empty.
func Analyze(page string) Analysis {
	a := Analysis{
		Keywords: []string{},
		Colors:   []string{},
	}

	// Colors live in style attributes, style sheets and inline scripts
	// alike, so they are taken from the raw page.
	seen := make(map[string]bool)
	for _, c := range reColor.FindAllString(page, -1) {
		c = strings.ToLower(c)
		if seen[c] {
			continue
		}
		seen[c] = true
		a.Colors = append(a.Colors, c)
		if len(a.Colors) == maxColors {
			break
		}
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return a
	}

	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Title:
			if a.Title == "" {
				a.Title = clean(text(n))
			}
		case atom.Meta:
			readMeta(&a, n)
		case atom.Img:
			a.ImageCount++
		}
		if !a.HasLogo && looksLikeLogo(n) {
			a.HasLogo = true
		}
	}

	for _, match := range contentContainers {
		if c := find(doc, match); c != nil {
			if t := truncateRunes(clean(text(c)), maxPreview); t != "" {
				a.ContentPreview = t
				break
			}
		}
	}
	return a
}

func readMeta(a *Analysis, n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	if name == "" {
		name = strings.ToLower(attr(n, "property"))
	}
	switch name {
	case "description", "og:description":
		if a.Description == "" {
			a.Description = clean(attr(n, "content"))
		}
	case "keywords":
		if len(a.Keywords) == 0 {
			for _, k := range strings.Split(attr(n, "content"), ",") {
				if k = clean(k); k != "" {
					a.Keywords = append(a.Keywords, k)
				}
			}
		}
	}
}

func looksLikeLogo(n *html.Node) bool {
	for _, at := range n.Attr {
		switch at.Key {
		case "class", "id":
			if strings.Contains(strings.ToLower(at.Val), "logo") {
				return true
			}
		case "src", "href", "srcset", "alt":
			if reLogoFile.MatchString(at.Val) {
				return true
			}
		}
	}
	return false
}

// find returns the first node in document order that matches.
func find(root *html.Node, match func(*html.Node) bool) *html.Node {
	for n := range root.Descendants() {
		if match(n) {
			return n
		}
	}
	return nil
}

// text joins the text nodes below n, leaving out scripts and styles.
func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case n.Type == html.ElementNode && skipText(n.DataAtom):
			return
		}
		for c := range n.ChildNodes() {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func skipText(a atom.Atom) bool {
	return a == atom.Script || a == atom.Style || a == atom.Noscript || a == atom.Template
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == a }
}

func attr(n *html.Node, key string) string {
	for _, at := range n.Attr {
		if at.Key == key {
			return at.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

// clean collapses whitespace. The parser has already decoded entities.
func clean(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Insights renders the analysis as the two short notes stored with a
// briefing: brand values and touchpoints.
func (a Analysis) Insights(url string) []string {
	brand := truncateRunes(strings.TrimSpace("Website-Analyse: "+a.Title+". "+a.Description), 500)
	colors := a.Colors
	if len(colors) > 5 {
		colors = colors[:5]
	}
	touch := "Website: " + url + ". Farben: " + strings.Join(colors, ", ") + ". Bilder: " + strconv.Itoa(a.ImageCount)
	return []string{brand, touch}
}
