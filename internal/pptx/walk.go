package pptx

import (
	"fmt"
	"iter"
	"strings"
)

// Granularity selects what a TextUnit covers.
type Granularity int

const (
	// ByParagraph yields one unit per a:p holding at least one run.
	ByParagraph Granularity = iota
	// ByRun yields one unit per a:r.
	ByRun
)

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paragraph":
		return ByParagraph, nil
	case "run":
		return ByRun, nil
	default:
		return ByParagraph, fmt.Errorf("unknown granularity %q (want paragraph or run)", s)
	}
}

func (g Granularity) String() string {
	if g == ByRun {
		return "run"
	}
	return "paragraph"
}

// WalkOptions tunes Walk.
type WalkOptions struct {
	Granularity Granularity
	// IncludeNotes walks each slide's speaker notes after its shapes.
	IncludeNotes bool
}

// TextUnit is one editable piece of slide text: a whole paragraph, or a
// single run of it.
type TextUnit struct {
	// Slide is the 1-based slide number the unit belongs to.
	Slide int
	// Index is the unit's position within its shape, counting blank
	// paragraphs or runs that Walk skips.
	Index int

	shape *Shape
	para  *Paragraph
	run   *Run
}

// Shape is the shape containing the unit.
func (u *TextUnit) Shape() *Shape {
	return u.shape
}

func (u *TextUnit) Text() string {
	if u.run != nil {
		return u.run.Text()
	}
	return u.para.Text()
}

// SetText replaces the unit's text. For a multi-run paragraph the whole text
// goes into the first run, keeping its formatting, and the remaining runs are
// emptied.
func (u *TextUnit) SetText(s string) {
	if u.run != nil {
		u.run.text = s
		return
	}
	for i, r := range u.para.Runs {
		if i == 0 {
			r.text = s
		} else {
			r.text = ""
		}
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Walk yields the presentation's text units in slide order, then shape order,
// then paragraph (or run) order. Shapes without a text body never appear, and
// neither do units whose text is empty or whitespace only.
func Walk(p *Presentation, opts WalkOptions) iter.Seq[*TextUnit] {
	return func(yield func(*TextUnit) bool) {
		for _, slide := range p.Slides {
			shapes := slide.Shapes()
			if opts.IncludeNotes {
				shapes = append(shapes[:len(shapes):len(shapes)], slide.NotesShapes()...)
			}
			for _, sh := range shapes {
				idx := 0
				for _, para := range sh.Paragraphs {
					if opts.Granularity == ByRun {
						for _, r := range para.Runs {
							u := &TextUnit{Slide: slide.Number, Index: idx, shape: sh, para: para, run: r}
							idx++
							if blank(u.Text()) {
								continue
							}
							if !yield(u) {
								return
							}
						}
						continue
					}
					u := &TextUnit{Slide: slide.Number, Index: idx, shape: sh, para: para}
					idx++
					if blank(u.Text()) {
						continue
					}
					if !yield(u) {
						return
					}
				}
			}
		}
	}
}
