package observer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

func TestCandidate(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/in/deck.pptx", true},
		{"/in/Deck.PPTX", true},
		{"/in/deck.ppt", false},
		{"/in/notes.txt", false},
		{"/in/~$deck.pptx", false},
		{"/in/.slideedit-123.tmp", false},
		{"/in/.hidden.pptx", false},
		{"/in/deck_shorten.pptx", false},
		{"/in/deck_Formalize.pptx", false},
		{"/in/deck_simplify.pptx", false},
		{"/in/short.pptx", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			testboil.FailTestIfDiff(t, Candidate(tt.path), tt.want)
		})
	}
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []string
	out   string
	hit   chan string
}

func (r *recordingHandler) handle(_ context.Context, path string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, filepath.Base(path))
	r.mu.Unlock()
	out := ""
	if r.out != "" {
		out = filepath.Join(filepath.Dir(path), r.out)
		if err := os.WriteFile(out, []byte("output of "+path), 0o644); err != nil {
			return "", err
		}
	}
	if r.hit != nil {
		r.hit <- path
	}
	return out, nil
}

func (r *recordingHandler) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitialScanSkipsDuplicatesAndOutputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pptx"), "same bytes")
	writeFile(t, filepath.Join(dir, "b.pptx"), "same bytes")
	writeFile(t, filepath.Join(dir, "c_shorten.pptx"), "old output")
	writeFile(t, filepath.Join(dir, "~$a.pptx"), "lock")
	writeFile(t, filepath.Join(dir, "readme.md"), "hi")

	rec := &recordingHandler{}
	o := NewObserver(dir, 10*time.Millisecond, rec.handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Start(ctx) }()

	select {
	case <-o.started:
	case <-time.After(5 * time.Second):
		t.Fatal("observer did not start")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := rec.names()
	if len(got) != 1 || got[0] != "a.pptx" {
		t.Fatalf("handled %v, want [a.pptx]", got)
	}
}

func TestWatchProcessesNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingHandler{out: "new_shorten.pptx", hit: make(chan string, 4)}
	o := NewObserver(dir, 20*time.Millisecond, rec.handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Start(ctx)

	select {
	case <-o.started:
	case <-time.After(5 * time.Second):
		t.Fatal("observer did not start")
	}

	writeFile(t, filepath.Join(dir, "new.pptx"), "fresh deck")

	select {
	case path := <-rec.hit:
		if !strings.HasSuffix(path, "new.pptx") {
			t.Errorf("handled %s", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new file was not processed")
	}

	// Rewriting with identical content is not processed again.
	writeFile(t, filepath.Join(dir, "new.pptx"), "fresh deck")
	select {
	case path := <-rec.hit:
		t.Fatalf("processed duplicate %s", path)
	case <-time.After(200 * time.Millisecond):
	}
	testboil.FailTestIfDiff(t, len(rec.names()), 1)
}

func receiveTick(t *testing.T, d *debouncer) tick {
	t.Helper()
	select {
	case tk := <-d.ready:
		return tk
	case <-time.After(5 * time.Second):
		t.Fatal("no tick delivered")
	}
	return tick{}
}

func TestDebouncerDropsStaleTick(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	d := newDebouncer(5*time.Millisecond, done)
	defer d.stop()

	d.touch("deck.pptx")
	stale := receiveTick(t, d)

	// The first timer has fired but its tick was not accepted yet when the
	// file changed again.
	d.touch("deck.pptx")
	testboil.FailTestIfDiff(t, d.accept(stale), false)

	fresh := receiveTick(t, d)
	testboil.FailTestIfDiff(t, d.accept(fresh), true)
	// Each settled change is accepted exactly once.
	testboil.FailTestIfDiff(t, d.accept(fresh), false)
}

func TestDebouncerCoalescesTouches(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	d := newDebouncer(50*time.Millisecond, done)
	defer d.stop()

	for range 5 {
		d.touch("deck.pptx")
	}
	accepted := 0
	deadline := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case tk := <-d.ready:
			if d.accept(tk) {
				accepted++
			}
		case <-deadline:
			break loop
		}
	}
	testboil.FailTestIfDiff(t, accepted, 1)
}

func TestStartWithoutStage(t *testing.T) {
	o := NewObserver("", time.Second, func(context.Context, string) (string, error) { return "", nil }, nil)
	if err := o.Start(context.Background()); err == nil {
		t.Error("expected error for missing watch directory")
	}
}
