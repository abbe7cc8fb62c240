package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mlorentedev/reworder/internal/progress"
)

// OpenAIAdapter talks to OpenAI or any server exposing the same /v1 API
// (vLLM, LM Studio, llama-server in OpenAI mode).
type OpenAIAdapter struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (o *OpenAIAdapter) Name() string     { return "OpenAI" }
func (o *OpenAIAdapter) Provider() string { return "openai" }

// Available reports whether a key is set. A custom base URL is enough for
// local OpenAI-compatible servers that ignore the key.
func (o *OpenAIAdapter) Available() bool {
	return o.APIKey != "" || o.BaseURL != ""
}

func (o *OpenAIAdapter) client() openai.Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey("none"))
	}
	if o.BaseURL != "" {
		// The SDK joins relative paths, so the base must end in a slash.
		opts = append(opts, option.WithBaseURL(strings.TrimRight(o.BaseURL, "/")+"/"))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAIAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	if !o.Available() {
		return nil, fmt.Errorf("openai: load: %w", ErrNoAPIKey)
	}

	emit(report, progress.Text("Contacting OpenAI API"))
	client := o.client()
	m, err := client.Models.Get(ctx, desc.ID)
	if err != nil {
		return nil, fmt.Errorf("openai: get model %q: %w", desc.ID, err)
	}
	emit(report, progress.Report{Progress: 0.9, Text: "Model " + m.ID + " available"})

	desc.Convention = ConventionChat
	return &openAIEngine{client: &client, desc: desc}, nil
}

// Models pages through /v1/models.
func (o *OpenAIAdapter) Models(ctx context.Context) ([]ModelDescriptor, error) {
	client := o.client()
	iter := client.Models.ListAutoPaging(ctx)

	var out []ModelDescriptor
	for iter.Next() {
		m := iter.Current()
		out = append(out, ModelDescriptor{
			ID:         m.ID,
			Name:       "OpenAI (" + m.ID + ")",
			Provider:   o.Provider(),
			Convention: ConventionChat,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}
	return out, nil
}

type openAIEngine struct {
	client *openai.Client
	desc   ModelDescriptor
}

func (e *openAIEngine) Model() ModelDescriptor { return e.desc }
func (e *openAIEngine) Convention() Convention { return ConventionChat }

func (e *openAIEngine) Generate(ctx context.Context, req Request) (Result, error) {
	system, user := systemAndUser(req.Messages)

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	params := openai.ChatCompletionNewParams{
		Model:    e.desc.ID,
		Messages: messages,
	}
	if req.Sampling.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Sampling.MaxTokens))
	}
	if req.Sampling.DoSample {
		params.Temperature = openai.Float(req.Sampling.Temperature)
		params.TopP = openai.Float(req.Sampling.TopP)
	} else {
		params.Temperature = openai.Float(0)
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response choices")
	}
	return ChatReply{Content: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}
