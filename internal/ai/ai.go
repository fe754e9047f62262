package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gnemet/SlideEdit/internal/config"
)

var (
	// ErrRequestFailed marks a non-success HTTP status from the model server.
	ErrRequestFailed = errors.New("request failed")
	// ErrMalformedResponse marks a reply that does not carry generated text
	// where the server contract says it should.
	ErrMalformedResponse = errors.New("malformed response")
)

// Instruction is appended to every system prompt before the slide text.
const Instruction = "Here is slide text from a PowerPoint presentation. " +
	"Return ONLY the revised text, no commentary."

// RequestError carries the status and body of a failed model call.
type RequestError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: request failed with status %d: %s", e.Provider, e.StatusCode, body)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// BuildPrompt joins the system prompt, the fixed instruction and the text into
// the single prompt string sent to single-input endpoints.
func BuildPrompt(systemPrompt, text string) string {
	return systemPrompt + "\n\n" + Instruction + "\n\n" + text
}

type driver interface {
	complete(ctx context.Context, systemPrompt, text string) (string, error)
}

// Client sends rewrite requests to the configured model driver.
type Client struct {
	Provider string
	Model    string

	driver driver
}

// NewClient builds a client for cfg.Model.Driver. The HTTP client timeout is
// cfg.Model.Timeout; zero leaves requests unbounded so slow local models are
// never cut off.
func NewClient(cfg *config.Config) (*Client, error) {
	m := cfg.Model
	httpClient := &http.Client{Timeout: m.Timeout}

	c := &Client{Provider: m.Driver, Model: m.Name}
	switch m.Driver {
	case config.DriverLocal, "":
		c.Provider = config.DriverLocal
		c.driver = &localDriver{
			endpoint: m.Endpoint,
			model:    m.Name,
			apiKey:   m.APIKey,
			client:   httpClient,
			debug:    cfg.Debug,
		}
	case config.DriverOpenAI:
		c.driver = newOpenAIDriver(m, httpClient)
	case config.DriverGemini:
		if m.APIKey == "" {
			return nil, fmt.Errorf("%w: API_KEY is required for the gemini driver", config.ErrConfigMissing)
		}
		c.driver = &geminiDriver{endpoint: m.Endpoint, model: m.Name, apiKey: m.APIKey, timeout: m.Timeout}
	case config.DriverMock:
		c.driver = mockDriver{}
	default:
		return nil, fmt.Errorf("unknown model driver %q", m.Driver)
	}
	return c, nil
}

// Complete asks the model to rewrite text according to systemPrompt and
// returns the generated text trimmed of surrounding whitespace.
func (c *Client) Complete(ctx context.Context, systemPrompt, text string) (string, error) {
	out, err := c.driver.complete(ctx, systemPrompt, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
