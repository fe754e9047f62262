package observer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gnemet/SlideEdit/internal/editor"
)

// Handler edits one presentation and returns the path it was saved to. An
// empty path means nothing was written (dry run).
type Handler func(ctx context.Context, path string) (string, error)

type Observer struct {
	stage    string
	debounce time.Duration
	handle   Handler
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]string // checksum -> path

	// started is closed once the watcher is registered and the initial
	// scan has finished.
	started chan struct{}
}

func NewObserver(stage string, debounce time.Duration, handle Handler, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		stage:    stage,
		debounce: debounce,
		handle:   handle,
		logger:   logger,
		seen:     map[string]string{},
		started:  make(chan struct{}),
	}
}

// Start blocks until ctx is done or the watcher is closed.
func (o *Observer) Start(ctx context.Context) error {
	if o.stage == "" {
		return fmt.Errorf("watch directory not configured (WATCH_DIR)")
	}
	if err := os.MkdirAll(o.stage, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(o.stage); err != nil {
		return err
	}
	o.logger.Info("watching for presentations", "dir", o.stage)

	o.scanDirectory(ctx)
	close(o.started)

	deb := newDebouncer(o.debounce, ctx.Done())
	defer deb.stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !Candidate(event.Name) {
				continue
			}
			o.logger.Debug("detected change", "file", event.Name)
			// Wait for the writer to finish before touching the file.
			deb.touch(event.Name)

		case t := <-deb.ready:
			if !deb.accept(t) {
				continue
			}
			o.processFile(ctx, t.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

type tick struct {
	path string
	gen  int
}

type pendingFile struct {
	timer *time.Timer
	gen   int
}

// debouncer delivers a path on ready once no touch for it has happened for
// delay. touch and accept must be called from one goroutine.
type debouncer struct {
	delay   time.Duration
	done    <-chan struct{}
	ready   chan tick
	pending map[string]*pendingFile
}

func newDebouncer(delay time.Duration, done <-chan struct{}) *debouncer {
	return &debouncer{
		delay:   delay,
		done:    done,
		ready:   make(chan tick),
		pending: map[string]*pendingFile{},
	}
}

func (d *debouncer) touch(path string) {
	p, ok := d.pending[path]
	if !ok {
		p = &pendingFile{}
		d.pending[path] = p
	} else {
		p.timer.Stop()
	}
	// A timer that already fired may still be blocked on ready; bumping the
	// generation makes accept drop its tick.
	p.gen++
	t := tick{path: path, gen: p.gen}
	p.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- t:
		case <-d.done:
		}
	})
}

// accept reports whether t is the latest tick for its path and, if so,
// forgets the path.
func (d *debouncer) accept(t tick) bool {
	p, ok := d.pending[t.path]
	if !ok || p.gen != t.gen {
		return false
	}
	delete(d.pending, t.path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}

func (o *Observer) scanDirectory(ctx context.Context) {
	files, err := os.ReadDir(o.stage)
	if err != nil {
		o.logger.Warn("failed to scan directory", "dir", o.stage, "error", err)
		return
	}

	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(o.stage, f.Name())
		if !f.IsDir() && Candidate(path) {
			o.processFile(ctx, path)
		}
	}
}

func (o *Observer) processFile(ctx context.Context, path string) {
	filename := filepath.Base(path)

	checksum, err := fileChecksum(path)
	if err != nil {
		// Removed or still locked; a later event will bring it back.
		o.logger.Debug("skipping unreadable file", "file", filename, "error", err)
		return
	}
	if prev, dup := o.checkSeen(checksum); dup {
		o.logger.Info("already processed, skipping", "file", filename, "same_as", filepath.Base(prev))
		return
	}

	o.logger.Info("processing", "file", filename)
	start := time.Now()
	out, err := o.handle(ctx, path)
	if err != nil {
		o.logger.Error("failed to process", "file", filename, "error", err)
		return
	}
	o.markSeen(checksum, path)

	if out == "" {
		o.logger.Info("processed without saving", "file", filename, "took", time.Since(start))
		return
	}
	if sum, err := fileChecksum(out); err == nil {
		o.markSeen(sum, out)
	}
	o.logger.Info("saved", "file", filename, "output", out, "took", time.Since(start))
}

func (o *Observer) checkSeen(sum string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, ok := o.seen[sum]
	return prev, ok
}

func (o *Observer) markSeen(sum, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen[sum] = path
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Candidate reports whether path looks like a presentation to edit: a .pptx
// that is neither a lock or temp file nor an earlier output of any mode.
func Candidate(path string) bool {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".pptx") {
		return false
	}
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	stem := strings.ToLower(strings.TrimSuffix(name, ext))
	for _, mode := range editor.Modes() {
		if strings.HasSuffix(stem, "_"+mode) {
			return false
		}
	}
	return true
}
