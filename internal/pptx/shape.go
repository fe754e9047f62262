package pptx

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"
)

// part is a parsed slide or notes XML part. The raw bytes are never modified;
// edited run text is spliced in when the part is rendered.
type part struct {
	name   string
	data   []byte
	shapes []*Shape
	runs   []*Run
}

// Shape is a p:sp element owning a text body.
type Shape struct {
	ID   int
	Name string
	// Kind is title, body or other, derived from the placeholder type.
	Kind string
	// Notes is set for shapes that live on a speaker notes page.
	Notes      bool
	Paragraphs []*Paragraph
}

// Paragraph is an a:p element holding at least one text run.
type Paragraph struct {
	Runs []*Run
}

func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.text)
	}
	return b.String()
}

// Run is an a:r element and the byte location of its a:t content.
type Run struct {
	text     string
	original string

	// elemStart is the offset of '<' of the a:t start tag, contentStart the
	// offset right after its '>' and contentEnd the offset of '<' of the end
	// tag. A self-closing a:t has contentStart == contentEnd.
	elemStart    int
	contentStart int
	contentEnd   int
	selfClosing  bool
	tagName      string
}

func (r *Run) Text() string {
	return r.text
}

func (r *Run) changed() bool {
	return r.text != r.original
}

// parsePart walks the XML of a slide or notes part and records every p:sp
// text body. Pictures, graphic frames (tables, charts) and connectors carry no
// p:sp text body and are skipped.
func parsePart(name string, data []byte) (*part, error) {
	pt := &part{name: name, data: data}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		shape      *Shape
		inTxBody   bool
		para       *Paragraph
		run        *Run
		inText     bool
		textBuf    strings.Builder
		runHasText bool
	)

	for {
		before := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "sp":
				shape = &Shape{Kind: normalizePlaceholder("")}

			case "cNvPr":
				if shape != nil && shape.Name == "" {
					for _, a := range el.Attr {
						switch a.Name.Local {
						case "id":
							shape.ID, _ = strconv.Atoi(a.Value)
						case "name":
							shape.Name = a.Value
						}
					}
				}

			case "ph":
				if shape != nil {
					phType := ""
					for _, a := range el.Attr {
						if a.Name.Local == "type" {
							phType = a.Value
						}
					}
					shape.Kind = normalizePlaceholder(phType)
				}

			case "txBody":
				if shape != nil {
					inTxBody = true
				}

			case "p":
				if inTxBody {
					para = &Paragraph{}
				}

			case "r":
				if para != nil {
					run = &Run{}
					runHasText = false
				}

			case "t":
				if run != nil {
					start := int(dec.InputOffset())
					run.elemStart = before
					run.contentStart = start
					run.tagName = rawTagName(data, before)
					run.selfClosing = bytes.HasSuffix(data[:start], []byte("/>"))
					inText = true
					textBuf.Reset()
				}
			}

		case xml.CharData:
			if inText {
				textBuf.Write(el)
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				if inText {
					if run.selfClosing {
						run.contentEnd = run.contentStart
					} else {
						run.contentEnd = before
					}
					run.text = textBuf.String()
					run.original = run.text
					runHasText = true
					inText = false
				}

			case "r":
				if run != nil && para != nil && runHasText {
					para.Runs = append(para.Runs, run)
					pt.runs = append(pt.runs, run)
				}
				run = nil

			case "p":
				if para != nil && shape != nil && len(para.Runs) > 0 {
					shape.Paragraphs = append(shape.Paragraphs, para)
				}
				para = nil

			case "txBody":
				inTxBody = false

			case "sp":
				if shape != nil && len(shape.Paragraphs) > 0 {
					pt.shapes = append(pt.shapes, shape)
				}
				shape = nil
				inTxBody = false
			}
		}
	}

	return pt, nil
}

// rawTagName returns the qualified name of the element starting at offset,
// e.g. "a:t".
func rawTagName(data []byte, offset int) string {
	rest := data[offset+1:]
	end := bytes.IndexAny(rest, " \t\r\n/>")
	if end < 0 {
		return "a:t"
	}
	return string(rest[:end])
}

// render returns the part bytes with every changed run spliced in.
func (pt *part) render() []byte {
	var changed []*Run
	for _, r := range pt.runs {
		if r.changed() {
			changed = append(changed, r)
		}
	}
	if len(changed) == 0 {
		return pt.data
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].elemStart < changed[j].elemStart })

	var out bytes.Buffer
	out.Grow(len(pt.data) + 256)
	pos := 0
	for _, r := range changed {
		if r.selfClosing {
			out.Write(pt.data[pos:r.elemStart])
			out.WriteString("<" + r.tagName + ">")
			xml.EscapeText(&out, []byte(r.text))
			out.WriteString("</" + r.tagName + ">")
		} else {
			out.Write(pt.data[pos:r.contentStart])
			xml.EscapeText(&out, []byte(r.text))
		}
		pos = r.contentEnd
	}
	out.Write(pt.data[pos:])
	return out.Bytes()
}

func normalizePlaceholder(ph string) string {
	switch ph {
	case "title", "ctrTitle":
		return "title"
	case "body", "subTitle":
		return "body"
	default:
		return "other"
	}
}
