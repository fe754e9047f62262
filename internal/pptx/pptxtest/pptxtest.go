// Package pptxtest builds small PPTX packages for tests.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"testing"
)

// Shape describes one p:sp. Each paragraph is a list of run texts; a nil
// run list produces an empty a:p.
type Shape struct {
	Name        string
	Placeholder string
	Paragraphs  [][]string
}

// Slide describes one slide. Pictures adds that many p:pic elements after the
// shapes; Table adds a graphic frame with a one-cell table holding the text.
type Slide struct {
	Shapes   []Shape
	Pictures int
	Table    string
	Notes    []string
}

// Deck is a whole presentation. Order, when set, lists 1-based slide file
// numbers in presentation order, e.g. {2, 1} shows slide2.xml first.
type Deck struct {
	Slides []Slide
	Order  []int
}

// Text is a one-slide, one-shape, one-paragraph deck.
func Text(s string) Deck {
	return Deck{Slides: []Slide{{Shapes: []Shape{{Name: "TextBox 1", Paragraphs: [][]string{{s}}}}}}}
}

// Bytes renders the deck as a PPTX package.
func (d Deck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct{ name, body string }{
		{"[Content_Types].xml", d.contentTypes()},
		{"_rels/.rels", rootRels},
		{"ppt/presentation.xml", d.presentation()},
		{"ppt/_rels/presentation.xml.rels", d.presentationRels()},
	}
	for i, s := range d.Slides {
		n := i + 1
		files = append(files, struct{ name, body string }{fmt.Sprintf("ppt/slides/slide%d.xml", n), slideXML(s)})
		if len(s.Notes) > 0 {
			files = append(files,
				struct{ name, body string }{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), fmt.Sprintf(slideRels, n)},
				struct{ name, body string }{fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n), notesXML(s.Notes)},
			)
		}
	}

	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the deck to path and fails the test on error.
func (d Deck) Write(t testing.TB, path string) {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatalf("build deck: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
}

func (d Deck) order() []int {
	if len(d.Order) > 0 {
		return d.Order
	}
	order := make([]int, len(d.Slides))
	for i := range order {
		order[i] = i + 1
	}
	return order
}

func (d Deck) contentTypes() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	for i := range d.Slides {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func (d Deck) presentation() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:presentation xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:sldIdLst>`)
	for i, n := range d.order() {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, n+1)
	}
	b.WriteString(`</p:sldIdLst><p:sldSz cx="9144000" cy="6858000"/></p:presentation>`)
	return b.String()
}

func (d Deck) presentationRels() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	for i := range d.Slides {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+2, i+1)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func slideXML(s Slide) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sld xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
	id := 2
	for _, sh := range s.Shapes {
		writeShape(&b, id, sh)
		id++
	}
	for i := 0; i < s.Pictures; i++ {
		fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`+
			`<p:blipFill><a:blip r:embed="rId9"/></p:blipFill><p:spPr/></p:pic>`, id, i+1)
		id++
	}
	if s.Table != "" {
		fmt.Fprintf(&b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table 1"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`+
			`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl><a:tr h="370840"><a:tc>`+
			`<a:txBody><a:bodyPr/><a:p><a:r><a:t>%s</a:t></a:r></a:p></a:txBody></a:tc></a:tr></a:tbl></a:graphicData></a:graphic></p:graphicFrame>`,
			id, escape(s.Table))
	}
	b.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func notesXML(paragraphs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:notes xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:cSld><p:spTree>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Slide Image Placeholder 1"/><p:cNvSpPr/><p:nvPr><p:ph type="sldImg"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>`)
	runs := make([][]string, len(paragraphs))
	for i, p := range paragraphs {
		runs[i] = []string{p}
	}
	writeShape(&b, 3, Shape{Name: "Notes Placeholder 2", Placeholder: "body", Paragraphs: runs})
	b.WriteString(`</p:spTree></p:cSld></p:notes>`)
	return b.String()
}

func writeShape(b *strings.Builder, id int, sh Shape) {
	ph := ""
	if sh.Placeholder != "" {
		ph = fmt.Sprintf(`<p:ph type="%s"/>`, sh.Placeholder)
	}
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr>%s</p:nvPr></p:nvSpPr><p:spPr/>`,
		id, escape(sh.Name), ph)
	b.WriteString(`<p:txBody><a:bodyPr wrap="square"/><a:lstStyle/>`)
	for _, para := range sh.Paragraphs {
		b.WriteString(`<a:p>`)
		for _, r := range para {
			fmt.Fprintf(b, `<a:r><a:rPr lang="en-US" sz="1800" dirty="0"/><a:t>%s</a:t></a:r>`, escape(r))
		}
		b.WriteString(`<a:endParaRPr lang="en-US"/></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp>`)
}

func escape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

const (
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"

	rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>` +
		`</Relationships>`

	slideRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide%d.xml"/>` +
		`</Relationships>`
)
