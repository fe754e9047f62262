package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
	"github.com/gnemet/SlideEdit/internal/pptx"
	"github.com/gnemet/SlideEdit/internal/pptx/pptxtest"
)

const (
	meetingText = "Meeting scheduled for Monday at 9am regarding budget review and quarterly planning."
	meetingStub = "Meeting Monday 9am: budget, planning."
)

var envKeys = []string{
	"MODEL_DRIVER", "LOCAL_LLM_ENDPOINT", "MODEL_NAME", "API_KEY", "REQUEST_TIMEOUT",
	"DEFAULT_MODE", "UNIT_GRANULARITY", "INCLUDE_NOTES", "DB_URL",
	"WATCH_DIR", "WATCH_OUTPUT_DIR", "WATCH_DEBOUNCE", "DEBUG",
}

// stubModel answers every request with reply and counts the hits.
type stubModel struct {
	*httptest.Server
	hits   atomic.Int32
	inputs chan string
}

func newStubModel(t *testing.T, status int, reply string) *stubModel {
	t.Helper()
	s := &stubModel{inputs: make(chan string, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		select {
		case s.inputs <- req.Input:
		default:
		}
		if status != http.StatusOK {
			http.Error(w, "model unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{{"content": "  " + reply + "  "}},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

// setup writes a .env pointing at endpoint and returns its path.
func setup(t *testing.T, endpoint string, extra ...string) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	lines := append([]string{
		"LOCAL_LLM_ENDPOINT=" + endpoint,
		"MODEL_NAME=test-model",
	}, extra...)
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return envPath
}

func writeDeck(t *testing.T, d pptxtest.Deck) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.pptx")
	d.Write(t, path)
	return path
}

func unitTexts(t *testing.T, path string) []string {
	t.Helper()
	p, err := pptx.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for u := range pptx.Walk(p, pptx.WalkOptions{}) {
		out = append(out, u.Text())
	}
	return out
}

func TestMissingConfigExitsWithoutNetwork(t *testing.T) {
	model := newStubModel(t, http.StatusOK, "unused")
	setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))

	var stdout bytes.Buffer
	code := run([]string{"--env", filepath.Join(t.TempDir(), ".env"), deck}, &stdout)
	testboil.FailTestIfDiff(t, code, 1)
	testboil.FailTestIfDiff(t, model.hits.Load(), int32(0))
}

func TestMissingEndpointExits(t *testing.T) {
	envPath := setup(t, "")
	deck := writeDeck(t, pptxtest.Text(meetingText))
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, deck}, &bytes.Buffer{}), 1)
}

func TestProcessShortenEndToEnd(t *testing.T) {
	model := newStubModel(t, http.StatusOK, meetingStub)
	envPath := setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))
	before, err := os.ReadFile(deck)
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	code := run([]string{"--env", envPath, deck}, &stdout)
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	want := filepath.Join(filepath.Dir(deck), "meeting_shorten.pptx")
	testboil.AssertStringContains(t, stdout.String(), "Saved updated presentation to: "+want)

	got := unitTexts(t, want)
	if len(got) != 1 || got[0] != meetingStub {
		t.Fatalf("output units: %q", got)
	}

	after, err := os.ReadFile(deck)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("original file was modified")
	}
	testboil.FailTestIfDiff(t, unitTexts(t, deck)[0], meetingText)

	testboil.FailTestIfDiff(t, model.hits.Load(), int32(1))
	input := <-model.inputs
	testboil.AssertStringContains(t, input, "Shorten the text")
	testboil.AssertStringContains(t, input, "Return ONLY the revised text")
	if !strings.HasSuffix(input, meetingText) {
		t.Errorf("prompt does not end with the slide text: %q", input)
	}
}

func TestProcessDefaultModeFromEnv(t *testing.T) {
	model := newStubModel(t, http.StatusOK, "plain words")
	envPath := setup(t, model.URL, "DEFAULT_MODE=simplify")
	deck := writeDeck(t, pptxtest.Text(meetingText))

	var stdout bytes.Buffer
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, deck}, &stdout), 0)
	testboil.AssertStringContains(t, stdout.String(), "meeting_simplify.pptx")

	// --mode wins over DEFAULT_MODE.
	stdout.Reset()
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, "--mode", "Formalize", deck}, &stdout), 0)
	testboil.AssertStringContains(t, stdout.String(), "meeting_formalize.pptx")
}

func TestProcessDryRun(t *testing.T) {
	model := newStubModel(t, http.StatusOK, meetingStub)
	envPath := setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))

	var stdout bytes.Buffer
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, "--dry-run", deck}, &stdout), 0)
	testboil.AssertStringContains(t, stdout.String(), "Dry run complete. No file was saved.")
	testboil.FailTestIfDiff(t, model.hits.Load(), int32(1))

	if _, err := os.Stat(filepath.Join(filepath.Dir(deck), "meeting_shorten.pptx")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote an output file: %v", err)
	}
}

func TestProcessWithReport(t *testing.T) {
	model := newStubModel(t, http.StatusOK, meetingStub)
	envPath := setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))

	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, "--report", deck}, &bytes.Buffer{}), 0)

	b, err := os.ReadFile(filepath.Join(filepath.Dir(deck), "meeting_shorten_report.html"))
	if err != nil {
		t.Fatal(err)
	}
	testboil.AssertStringContains(t, string(b), meetingStub)
}

func TestProcessArgumentErrors(t *testing.T) {
	model := newStubModel(t, http.StatusOK, meetingStub)
	envPath := setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))

	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"--env", envPath}},
		{"path does not exist", []string{"--env", envPath, filepath.Join(t.TempDir(), "nope.pptx")}},
		{"unknown mode", []string{"--env", envPath, "--mode", "bogus", deck}},
		{"unknown action", []string{"--env", envPath, "--action", "explode", deck}},
		{"unknown flag", []string{"--env", envPath, "--frobnicate", deck}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testboil.FailTestIfDiff(t, run(tt.args, &bytes.Buffer{}), 1)
		})
	}
	testboil.FailTestIfDiff(t, model.hits.Load(), int32(0))
}

func TestProcessModelFailure(t *testing.T) {
	model := newStubModel(t, http.StatusServiceUnavailable, "")
	envPath := setup(t, model.URL)
	deck := writeDeck(t, pptxtest.Text(meetingText))

	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, deck}, &bytes.Buffer{}), 1)
	testboil.FailTestIfDiff(t, model.hits.Load(), int32(1))
	if _, err := os.Stat(filepath.Join(filepath.Dir(deck), "meeting_shorten.pptx")); !os.IsNotExist(err) {
		t.Error("output written despite model failure")
	}
}

func TestTestAPI(t *testing.T) {
	model := newStubModel(t, http.StatusOK, "API OK")
	envPath := setup(t, model.URL)

	var stdout bytes.Buffer
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, "--action", "testapi"}, &stdout), 0)
	testboil.FailTestIfDiff(t, stdout.String(), "API response: API OK\n")

	input := <-model.inputs
	if !strings.HasPrefix(input, "You are a test agent.") || !strings.HasSuffix(input, "Say 'API OK'.") {
		t.Errorf("unexpected prompt %q", input)
	}
}

func TestTestAPIFailure(t *testing.T) {
	model := newStubModel(t, http.StatusInternalServerError, "")
	envPath := setup(t, model.URL)
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, "--action", "testapi"}, &bytes.Buffer{}), 1)
}

func TestMockDriverNeedsNoEndpoint(t *testing.T) {
	envPath := setup(t, "", "MODEL_DRIVER=mock")
	deck := writeDeck(t, pptxtest.Text(meetingText))

	var stdout bytes.Buffer
	testboil.FailTestIfDiff(t, run([]string{"--env", envPath, deck}, &stdout), 0)
	out := filepath.Join(filepath.Dir(deck), "meeting_shorten.pptx")
	testboil.AssertStringContains(t, stdout.String(), out)
	testboil.FailTestIfDiff(t, fmt.Sprint(unitTexts(t, out)), fmt.Sprint([]string{meetingText}))
}
