package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/stypes"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// ContentTypeDOCX is the MIME type of the generated Word documents.
const ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Paragraph styles of the default godocx template.
const (
	styleBullet = "ListBullet"
	styleList   = "List"
)

var coreTmpl = template.Must(template.New("core.xml").Funcs(template.FuncMap{"x": xmlText}).Parse(
	`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>{{x .Doc.Title}} {{x .Doc.Client}}</dc:title>
<dc:creator>{{x .Doc.Agency}}</dc:creator>
<dc:description>{{x .Doc.Footer}}</dc:description>
<dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created>
<dcterms:modified xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:modified>
</cp:coreProperties>`))

// DOCX writes the briefing of mem as a Word document.
func DOCX(w io.Writer, mem domain.ConversationMemory, opts Options) error {
	opts = opts.withDefaults()
	return RenderDOCX(w, Build(mem, opts), opts.Now)
}

// RenderDOCX writes an assembled document as a Word package built on the
// default godocx template.
func RenderDOCX(w io.Writer, doc Document, created time.Time) error {
	rd, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("docx template: %w", err)
	}

	if _, err := heading(rd, doc.Title, 0); err != nil {
		return err
	}
	client, err := heading(rd, doc.Client, 1)
	if err != nil {
		return err
	}
	client.Justification(stypes.JustificationCenter)
	rd.AddParagraph("Agentur: " + doc.Agency).Justification(stypes.JustificationCenter)
	rd.AddParagraph("Projekttyp: " + doc.ProjectType).Justification(stypes.JustificationCenter)

	for _, s := range doc.Sections {
		if _, err := heading(rd, s.Heading, 1); err != nil {
			return err
		}
		for _, p := range s.Paragraphs {
			rd.AddParagraph(p)
		}
		for _, b := range s.Bullets {
			rd.AddParagraph(b).Style(styleBullet)
		}
		for _, c := range s.Checkboxes {
			p := rd.AddEmptyParagraph()
			p.Style(styleList)
			p.AddText("☐ ").Bold(true)
			p.AddText(c)
		}
	}

	footer := rd.AddEmptyParagraph()
	footer.Justification(stypes.JustificationCenter)
	footer.AddText(doc.Footer).Italic(true)

	var core bytes.Buffer
	if err := coreTmpl.Execute(&core, map[string]any{
		"Doc":     doc,
		"Created": created.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("render core.xml: %w", err)
	}
	rd.FileMap.Store("docProps/core.xml", core.Bytes())

	if err := rd.Write(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func heading(rd *docx.RootDoc, text string, level uint) (*docx.Paragraph, error) {
	p, err := rd.AddHeading(text, level)
	if err != nil {
		return nil, fmt.Errorf("docx heading %q: %w", text, err)
	}
	return p, nil
}

func xmlText(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
