package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPresentation is returned when the input is not a readable PPTX package.
	ErrInvalidPresentation = errors.New("invalid presentation")
	// ErrWriteFailed is returned when the edited presentation cannot be written.
	ErrWriteFailed = errors.New("write failed")
)

const (
	presentationPart = "ppt/presentation.xml"
	relTypeSlide     = "/slide"
	relTypeNotes     = "/notesSlide"
)

// Presentation is an opened PPTX package held fully in memory.
type Presentation struct {
	Path   string
	Slides []*Slide

	entries []*entry
}

type entry struct {
	header zip.FileHeader
	data   []byte
	part   *part
}

// Slide is one slide of the deck with its optional speaker notes.
type Slide struct {
	// Number is the 1-based position in presentation order.
	Number int
	// Part is the zip part name, e.g. ppt/slides/slide3.xml.
	Part string

	content *part
	notes   *part
}

// Shapes returns the text-capable shapes of the slide in document order.
func (s *Slide) Shapes() []*Shape {
	return s.content.shapes
}

// NotesShapes returns the shapes of the slide's notes page, if it has one.
func (s *Slide) NotesShapes() []*Shape {
	if s.notes == nil {
		return nil
	}
	return s.notes.shapes
}

// Open reads a PPTX file into memory. The file is closed before Open returns.
func Open(pptxPath string) (*Presentation, error) {
	data, err := os.ReadFile(pptxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pptxPath, err)
	}
	p, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(pptxPath), err)
	}
	p.Path = pptxPath
	return p, nil
}

// Read loads a PPTX package from r.
func Read(r io.ReaderAt, size int64) (*Presentation, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPresentation, err)
	}

	p := &Presentation{}
	byName := make(map[string]*entry, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidPresentation, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidPresentation, f.Name, err)
		}
		e := &entry{header: f.FileHeader, data: data}
		p.entries = append(p.entries, e)
		byName[f.Name] = e
	}

	if _, ok := byName[presentationPart]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPresentation, presentationPart)
	}

	for i, name := range slideOrder(byName) {
		e, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing slide part %s", ErrInvalidPresentation, name)
		}
		content, err := parsePart(name, e.data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidPresentation, name, err)
		}
		e.part = content

		slide := &Slide{Number: i + 1, Part: name, content: content}

		if notesName := relatedPart(byName, name, relTypeNotes); notesName != "" {
			if ne, ok := byName[notesName]; ok {
				notes, err := parsePart(notesName, ne.data)
				if err != nil {
					return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidPresentation, notesName, err)
				}
				for _, sh := range notes.shapes {
					sh.Notes = true
				}
				ne.part = notes
				slide.notes = notes
			}
		}
		p.Slides = append(p.Slides, slide)
	}

	return p, nil
}

// slideOrder returns slide part names in presentation order. When
// presentation.xml carries no usable sldIdLst the slide parts are ordered by
// their numeric suffix.
func slideOrder(byName map[string]*entry) []string {
	rels := readRels(byName, presentationPart)
	ids, err := slideRelIDs(byName[presentationPart].data)
	if err == nil && len(ids) > 0 {
		var names []string
		for _, id := range ids {
			if target, ok := rels[id]; ok && strings.HasSuffix(target.typ, relTypeSlide) {
				names = append(names, target.path)
			}
		}
		if len(names) == len(ids) {
			return names
		}
	}

	type numbered struct {
		num  int
		name string
	}
	var found []numbered
	for name := range byName {
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(path.Base(name), "slide"), ".xml")
		num, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		found = append(found, numbered{num, name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

func slideRelIDs(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var ids []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if el, ok := tok.(xml.StartElement); ok && el.Name.Local == "sldId" {
			for _, a := range el.Attr {
				if a.Name.Local == "id" && a.Name.Space != "" {
					ids = append(ids, a.Value)
				}
			}
		}
	}
	return ids, nil
}

type relTarget struct {
	typ  string
	path string
}

// readRels parses the relationship part belonging to partName, e.g.
// ppt/slides/_rels/slide1.xml.rels for ppt/slides/slide1.xml. Targets are
// resolved to absolute part names.
func readRels(byName map[string]*entry, partName string) map[string]relTarget {
	dir := path.Dir(partName)
	relPath := path.Join(dir, "_rels", path.Base(partName)+".rels")
	e, ok := byName[relPath]
	if !ok {
		return nil
	}

	rels := make(map[string]relTarget)
	dec := xml.NewDecoder(bytes.NewReader(e.data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "Relationship" {
			continue
		}
		var id, target, rType, mode string
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			case "Type":
				rType = a.Value
			case "TargetMode":
				mode = a.Value
			}
		}
		if id == "" || mode == "External" {
			continue
		}
		resolved := strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(target, "/") {
			resolved = path.Clean(path.Join(dir, target))
		}
		rels[id] = relTarget{typ: rType, path: resolved}
	}
	return rels
}

func relatedPart(byName map[string]*entry, partName, typeSuffix string) string {
	for _, rel := range readRels(byName, partName) {
		if strings.HasSuffix(rel.typ, typeSuffix) {
			return rel.path
		}
	}
	return ""
}
