package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfigMissing is returned when the .env file or a required key is absent.
var ErrConfigMissing = errors.New("configuration missing")

const (
	DriverLocal  = "local"
	DriverOpenAI = "openai"
	DriverGemini = "gemini"
	DriverMock   = "mock"
)

type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	Edit     EditConfig     `mapstructure:"edit"`
	Database DatabaseConfig `mapstructure:"database"`
	Watch    WatchConfig    `mapstructure:"watch"`

	// EnvPath is the .env file the configuration was loaded from.
	EnvPath string `mapstructure:"-"`
	// Debug is set from --debug or a truthy DEBUG variable by the caller.
	Debug bool `mapstructure:"-"`
}

type ModelConfig struct {
	Driver   string        `mapstructure:"driver"` // local, openai, gemini, mock
	Endpoint string        `mapstructure:"endpoint"`
	Name     string        `mapstructure:"name"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type EditConfig struct {
	DefaultMode  string `mapstructure:"default_mode"`
	Granularity  string `mapstructure:"granularity"`
	IncludeNotes bool   `mapstructure:"include_notes"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type WatchConfig struct {
	Stage    string        `mapstructure:"stage"`
	Output   string        `mapstructure:"output"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// mappings ties config keys to the variable names used in .env files and the
// process environment.
var mappings = []struct {
	key, env string
}{
	{"model.driver", "MODEL_DRIVER"},
	{"model.endpoint", "LOCAL_LLM_ENDPOINT"},
	{"model.name", "MODEL_NAME"},
	{"model.api_key", "API_KEY"},
	{"model.timeout", "REQUEST_TIMEOUT"},

	{"edit.default_mode", "DEFAULT_MODE"},
	{"edit.granularity", "UNIT_GRANULARITY"},
	{"edit.include_notes", "INCLUDE_NOTES"},

	{"database.url", "DB_URL"},

	{"watch.stage", "WATCH_DIR"},
	{"watch.output", "WATCH_OUTPUT_DIR"},
	{"watch.debounce", "WATCH_DEBOUNCE"},
}

// DefaultEnvPath is the .env in the parent of the directory holding the
// running executable.
func DefaultEnvPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(filepath.Dir(exe)), ".env"), nil
}

// Load reads envPath and builds the configuration. Values from the process
// environment win over an optional config.yaml next to the .env, which wins
// over the .env itself. The process environment is not modified.
func Load(envPath string) (*Config, error) {
	if _, err := os.Stat(envPath); err != nil {
		return nil, fmt.Errorf("%w: no .env found at %s", ErrConfigMissing, envPath)
	}
	fileValues, err := godotenv.Read(envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", envPath, err)
	}

	v := viper.New()

	v.SetDefault("model.driver", DriverLocal)
	v.SetDefault("model.timeout", "0s")
	v.SetDefault("edit.default_mode", "shorten")
	v.SetDefault("edit.granularity", "paragraph")
	v.SetDefault("edit.include_notes", false)
	v.SetDefault("watch.debounce", "2s")

	for _, m := range mappings {
		if val, ok := fileValues[m.env]; ok && val != "" {
			v.SetDefault(m.key, val)
		}
		v.BindEnv(m.key, m.env)
	}

	yamlPath := filepath.Join(filepath.Dir(envPath), "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.EnvPath = envPath

	return &cfg, nil
}

// Validate checks that the keys the selected driver needs are present.
func (c *Config) Validate() error {
	switch c.Model.Driver {
	case DriverLocal, DriverOpenAI:
		if c.Model.Endpoint == "" {
			return fmt.Errorf("%w: LOCAL_LLM_ENDPOINT not found in environment", ErrConfigMissing)
		}
	case DriverGemini:
		if c.Model.APIKey == "" {
			return fmt.Errorf("%w: API_KEY is required for the gemini driver", ErrConfigMissing)
		}
	case DriverMock:
		return nil
	default:
		return fmt.Errorf("unknown MODEL_DRIVER %q", c.Model.Driver)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("%w: MODEL_NAME not found in environment", ErrConfigMissing)
	}
	return nil
}

// Redacted returns a copy safe to print in debug output.
func (c *Config) Redacted() Config {
	r := *c
	if key := r.Model.APIKey; len(key) > 8 {
		r.Model.APIKey = key[:4] + "..." + key[len(key)-4:]
	} else if key != "" {
		r.Model.APIKey = "***"
	}
	if r.Database.URL != "" {
		r.Database.URL = "***"
	}
	return r
}
