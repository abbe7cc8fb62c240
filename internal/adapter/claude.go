package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mlorentedev/reworder/internal/progress"
)

// ClaudeAdapter connects to the Anthropic Messages API.
type ClaudeAdapter struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (c *ClaudeAdapter) Name() string     { return "Claude" }
func (c *ClaudeAdapter) Provider() string { return "claude" }

func (c *ClaudeAdapter) Available() bool {
	return c.APIKey != ""
}

func (c *ClaudeAdapter) client() anthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	return anthropic.NewClient(opts...)
}

func (c *ClaudeAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("claude: load: %w", ErrNoAPIKey)
	}

	emit(report, progress.Text("Contacting Anthropic API"))
	client := c.client()
	info, err := client.Models.Get(ctx, desc.ID, anthropic.ModelGetParams{})
	if err != nil {
		return nil, fmt.Errorf("claude: get model %q: %w", desc.ID, err)
	}
	if desc.Name == "" || desc.Name == desc.ID {
		desc.Name = info.DisplayName
	}
	emit(report, progress.Report{Progress: 0.9, Text: info.DisplayName + " available"})

	desc.Convention = ConventionChat
	return &claudeEngine{client: &client, desc: desc}, nil
}

type claudeEngine struct {
	client *anthropic.Client
	desc   ModelDescriptor
}

func (e *claudeEngine) Model() ModelDescriptor { return e.desc }
func (e *claudeEngine) Convention() Convention { return ConventionChat }

func (e *claudeEngine) Generate(ctx context.Context, req Request) (Result, error) {
	system, user := systemAndUser(req.Messages)

	maxTokens := int64(req.Sampling.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(ChatSampling.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.desc.ID),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	// The Messages API rejects temperature and top_p together on newer models.
	if req.Sampling.DoSample {
		params.Temperature = anthropic.Float(req.Sampling.Temperature)
	} else {
		params.Temperature = anthropic.Float(0)
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude: messages: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("claude: empty response content")
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.AsText().Text)
		}
	}
	return ChatReply{Content: strings.TrimSpace(result.String())}, nil
}
