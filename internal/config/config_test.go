package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, m := range mappings {
		t.Setenv(m.env, "")
		os.Unsetenv(m.env)
	}
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), ".env"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("want ErrConfigMissing, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "LOCAL_LLM_ENDPOINT=http://localhost:1234/api/v1/chat\nMODEL_NAME=qwen2.5-7b\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	testboil.FailTestIfDiff(t, cfg.Model.Endpoint, "http://localhost:1234/api/v1/chat")
	testboil.FailTestIfDiff(t, cfg.Model.Name, "qwen2.5-7b")
	testboil.FailTestIfDiff(t, cfg.Model.Driver, DriverLocal)
	testboil.FailTestIfDiff(t, cfg.Model.APIKey, "")
	testboil.FailTestIfDiff(t, cfg.Model.Timeout, time.Duration(0))
	testboil.FailTestIfDiff(t, cfg.Edit.DefaultMode, "shorten")
	testboil.FailTestIfDiff(t, cfg.Edit.Granularity, "paragraph")
	testboil.FailTestIfDiff(t, cfg.Watch.Debounce, 2*time.Second)
	testboil.FailTestIfDiff(t, cfg.EnvPath, path)

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadAllKeys(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, `LOCAL_LLM_ENDPOINT=http://llm:1234/v1
MODEL_NAME=llama
API_KEY=sk-local-secret
DEFAULT_MODE=formalize
MODEL_DRIVER=openai
REQUEST_TIMEOUT=90s
UNIT_GRANULARITY=run
INCLUDE_NOTES=true
WATCH_DIR=/srv/stage
WATCH_DEBOUNCE=500ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, cfg.Model.APIKey, "sk-local-secret")
	testboil.FailTestIfDiff(t, cfg.Model.Driver, DriverOpenAI)
	testboil.FailTestIfDiff(t, cfg.Model.Timeout, 90*time.Second)
	testboil.FailTestIfDiff(t, cfg.Edit.DefaultMode, "formalize")
	testboil.FailTestIfDiff(t, cfg.Edit.Granularity, "run")
	testboil.FailTestIfDiff(t, cfg.Edit.IncludeNotes, true)
	testboil.FailTestIfDiff(t, cfg.Watch.Stage, "/srv/stage")
	testboil.FailTestIfDiff(t, cfg.Watch.Debounce, 500*time.Millisecond)
}

func TestLoadEnvironmentWins(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "LOCAL_LLM_ENDPOINT=http://from-file\nMODEL_NAME=file-model\n")
	t.Setenv("MODEL_NAME", "env-model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, cfg.Model.Name, "env-model")
	testboil.FailTestIfDiff(t, cfg.Model.Endpoint, "http://from-file")
}

func TestLoadConfigYAML(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "LOCAL_LLM_ENDPOINT=http://from-file\nMODEL_NAME=file-model\n")
	yaml := "model:\n  name: yaml-model\nedit:\n  default_mode: simplify\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, cfg.Model.Name, "yaml-model")
	testboil.FailTestIfDiff(t, cfg.Edit.DefaultMode, "simplify")
	testboil.FailTestIfDiff(t, cfg.Model.Endpoint, "http://from-file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		model   ModelConfig
		wantErr error
	}{
		{"local ok", ModelConfig{Driver: DriverLocal, Endpoint: "http://x", Name: "m"}, nil},
		{"local no endpoint", ModelConfig{Driver: DriverLocal, Name: "m"}, ErrConfigMissing},
		{"local no model", ModelConfig{Driver: DriverLocal, Endpoint: "http://x"}, ErrConfigMissing},
		{"openai no endpoint", ModelConfig{Driver: DriverOpenAI, Name: "m"}, ErrConfigMissing},
		{"gemini no key", ModelConfig{Driver: DriverGemini, Name: "gemini-2.0-flash"}, ErrConfigMissing},
		{"gemini ok", ModelConfig{Driver: DriverGemini, Name: "gemini-2.0-flash", APIKey: "k"}, nil},
		{"mock needs nothing", ModelConfig{Driver: DriverMock}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Model: tc.model}
			err := cfg.Validate()
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}

	if err := (&Config{Model: ModelConfig{Driver: "carrier-pigeon"}}).Validate(); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{Model: ModelConfig{APIKey: "sk-1234567890abcd"}, Database: DatabaseConfig{URL: "postgres://u:p@h/db"}}
	r := cfg.Redacted()
	testboil.FailTestIfDiff(t, r.Model.APIKey, "sk-1...abcd")
	testboil.FailTestIfDiff(t, r.Database.URL, "***")
	testboil.FailTestIfDiff(t, cfg.Model.APIKey, "sk-1234567890abcd")
}
