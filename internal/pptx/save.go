package pptx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteTo writes the presentation as a PPTX package. Parts keep their
// original order and compression method; only edited run text differs from
// the source.
func (p *Presentation) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, e := range p.entries {
		hdr := &zip.FileHeader{
			Name:     e.header.Name,
			Comment:  e.header.Comment,
			Method:   e.header.Method,
			Modified: e.header.Modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return cw.n, fmt.Errorf("create %s: %w", e.header.Name, err)
		}
		data := e.data
		if e.part != nil {
			data = e.part.render()
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, fmt.Errorf("write %s: %w", e.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("finalize archive: %w", err)
	}
	return cw.n, nil
}

// Save writes the presentation to target with mode 0644 through a temporary
// file in the same directory, so a failed write never leaves a truncated file
// behind.
func (p *Presentation) Save(target string) error {
	return p.save(target, 0o644)
}

func (p *Presentation) save(target string, perm os.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".slideedit-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := p.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, target, err)
	}
	return nil
}

// SuffixedPath inserts _<suffix> before the extension of originalPath:
// deck.pptx with suffix shorten becomes deck_shorten.pptx in the same
// directory.
func SuffixedPath(originalPath, suffix string) string {
	ext := filepath.Ext(originalPath)
	stem := strings.TrimSuffix(originalPath, ext)
	return stem + "_" + suffix + ext
}

// SaveWithSuffix writes p next to originalPath under SuffixedPath and returns
// the new path. The new file gets the original's permissions. The original
// file is never opened for writing.
func SaveWithSuffix(p *Presentation, originalPath, suffix string) (string, error) {
	if suffix == "" {
		return "", fmt.Errorf("%w: empty suffix would overwrite %s", ErrWriteFailed, originalPath)
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(originalPath); err == nil {
		perm = info.Mode().Perm()
	}
	newPath := SuffixedPath(originalPath, suffix)
	if err := p.save(newPath, perm); err != nil {
		return "", err
	}
	return newPath, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}
