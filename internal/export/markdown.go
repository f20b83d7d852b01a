package export

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

var markdownTmpl = template.Must(template.New("briefing.md").Funcs(template.FuncMap{
	"md": escapeMarkdown,
}).Parse(`# {{.Title}}

**Kunde:** {{md .Client}}  
**Agentur:** {{md .Agency}}  
**Projekttyp:** {{md .ProjectType}}
{{range .Sections}}
## {{.Heading}}
{{range .Paragraphs}}
{{md .}}
{{end}}{{if .Bullets}}
{{range .Bullets}}- {{md .}}
{{end}}{{end}}{{if .Checkboxes}}
{{range .Checkboxes}}- [ ] {{md .}}
{{end}}{{end}}{{end}}
---

_{{.Footer}}_
`))

// Markdown writes the briefing of mem as a Markdown document.
func Markdown(w io.Writer, mem domain.ConversationMemory, opts Options) error {
	return RenderMarkdown(w, Build(mem, opts))
}

// RenderMarkdown writes an assembled document as Markdown.
func RenderMarkdown(w io.Writer, doc Document) error {
	if err := markdownTmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
