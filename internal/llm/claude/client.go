// Package claude is a thin single-turn wrapper around the Anthropic SDK.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// Request is one single-turn completion.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completion is the text of a response plus accounting.
type Completion struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client sends single-turn prompts to the Messages API.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a new Claude client. Extra options (base URL, HTTP client,
// retries) are passed through to the SDK.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		sdk:   anthropic.NewClient(all...),
		model: model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends req and returns the concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("claude: empty prompt")
	}
	if req.MaxTokens <= 0 {
		return nil, fmt.Errorf("claude: max tokens must be positive, got %d", req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude: messages.new: %w", err)
	}
	return fromSDKResponse(msg), nil
}

func fromSDKResponse(msg *anthropic.Message) *Completion {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return &Completion{
		Text:         strings.Join(parts, "\n\n"),
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
}
