package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
)

// localDriver speaks the single-input contract of LM Studio style servers:
// POST {"model", "input"} and read output[-1].content.
type localDriver struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	debug    bool
}

type localRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type localResponse struct {
	Output *[]localOutput `json:"output"`
}

type localOutput struct {
	Content json.RawMessage `json:"content"`
}

type localContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (l *localDriver) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	payload := localRequest{Model: l.model, Input: BuildPrompt(systemPrompt, text)}
	if l.debug {
		ancli.Noticef("local request to %s: %v\n", l.endpoint, debug.IndentedJsonFmt(payload))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("local: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("local: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("local: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{Provider: "local", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return parseLocalResponse(respBody)
}

// parseLocalResponse extracts the content of the last element of output.
// content is normally a string; a list of {type, text} parts is joined.
func parseLocalResponse(body []byte) (string, error) {
	var lr localResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("local: %w: %v", ErrMalformedResponse, err)
	}
	if lr.Output == nil {
		return "", fmt.Errorf("local: %w: missing output", ErrMalformedResponse)
	}
	out := *lr.Output
	if len(out) == 0 {
		return "", fmt.Errorf("local: %w: empty output", ErrMalformedResponse)
	}
	raw := out[len(out)-1].Content
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("local: %w: last output has no content", ErrMalformedResponse)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var parts []localContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("local: %w: content is neither text nor parts", ErrMalformedResponse)
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
