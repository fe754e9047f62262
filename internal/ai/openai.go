package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gnemet/SlideEdit/internal/config"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIDriver targets OpenAI-compatible chat completion servers (LM Studio's
// /v1, llama-server, OpenAI itself).
type openAIDriver struct {
	model string
	opts  []option.RequestOption
}

func newOpenAIDriver(m config.ModelConfig, httpClient *http.Client) *openAIDriver {
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if m.APIKey != "" {
		opts = append(opts, option.WithAPIKey(m.APIKey))
	}
	if m.Endpoint != "" {
		base := m.Endpoint
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &openAIDriver{model: m.Name, opts: opts}
}

func (o *openAIDriver) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	client := openai.NewClient(o.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Instruction + "\n\n" + text),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &RequestError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("openai: request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: empty choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
