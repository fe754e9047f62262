// Package report builds a before/after review of an edit run.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gnemet/SlideEdit/internal/editor"
	"github.com/russross/blackfriday/v2"
)

// Report collects changes as an editor.Recorder.
type Report struct {
	Source string
	Mode   string
	DryRun bool

	mu      sync.Mutex
	changes []editor.Change
}

func New(source, mode string, dryRun bool) *Report {
	return &Report{Source: source, Mode: mode, DryRun: dryRun}
}

func (r *Report) Record(_ context.Context, c editor.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

// Markdown renders one table per slide, in the order changes were recorded.
func (r *Report) Markdown() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", filepath.Base(r.Source), r.Mode)
	if r.DryRun {
		b.WriteString("_Dry run: proposed edits were not applied._\n\n")
	}
	if len(r.changes) == 0 {
		b.WriteString("No text was edited.\n")
		return b.String()
	}

	slide := 0
	for _, c := range r.changes {
		if c.Slide != slide {
			slide = c.Slide
			fmt.Fprintf(&b, "\n## Slide %d\n\n", slide)
			b.WriteString("| Shape | Original | Proposed |\n")
			b.WriteString("| --- | --- | --- |\n")
		}
		shape := c.ShapeName
		if c.Notes {
			shape += " (notes)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(shape), cell(c.Original), cell(c.Proposed))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"~", `\~`,
	"[", `\[`,
	"]", `\]`,
)

// cell makes text safe for a single Markdown table cell and keeps slide text
// literal: no emphasis, code spans, links or strikethrough.
func cell(s string) string {
	s = markdownEscaper.Replace(s)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "|", "&#124;")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

const pageHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; vertical-align: top; text-align: left; }
</style>
</head>
<body>
`

// HTML returns a standalone page.
func (r *Report) HTML() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, pageHead, html.EscapeString(filepath.Base(r.Source)+" "+r.Mode))
	buf.Write(blackfriday.Run([]byte(r.Markdown())))
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}

// Path is <dir>/<stem>_<mode>_report.html next to the source.
func Path(source, mode string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + "_" + mode + "_report.html"
}

func (r *Report) WriteFile() (string, error) {
	path := Path(r.Source, r.Mode)
	if err := os.WriteFile(path, r.HTML(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
