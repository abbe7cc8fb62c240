package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/mlorentedev/reworder/internal/progress"
)

// GeminiAdapter connects to the Gemini API through the genai SDK.
type GeminiAdapter struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (g *GeminiAdapter) Name() string     { return "Gemini" }
func (g *GeminiAdapter) Provider() string { return "gemini" }

func (g *GeminiAdapter) Available() bool {
	return g.APIKey != ""
}

// Load creates the client lazily; genai.NewClient validates configuration
// but performs no network call, so the model lookup doubles as a key check.
func (g *GeminiAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	if g.APIKey == "" {
		return nil, fmt.Errorf("gemini: load: %w", ErrNoAPIKey)
	}

	cfg := &genai.ClientConfig{
		APIKey:     g.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.HTTPClient,
	}
	if g.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
	}

	emit(report, progress.Text("Contacting Gemini API"))
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	m, err := client.Models.Get(ctx, desc.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: get model %q: %w", desc.ID, err)
	}
	label := m.DisplayName
	if label == "" {
		label = desc.ID
	}
	emit(report, progress.Report{Progress: 0.9, Text: label + " available"})

	desc.Convention = ConventionChat
	return &geminiEngine{client: client, desc: desc}, nil
}

type geminiEngine struct {
	client *genai.Client
	desc   ModelDescriptor
}

func (e *geminiEngine) Model() ModelDescriptor { return e.desc }
func (e *geminiEngine) Convention() Convention { return ConventionChat }

func (e *geminiEngine) Generate(ctx context.Context, req Request) (Result, error) {
	system, user := systemAndUser(req.Messages)

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.Sampling.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.Sampling.DoSample {
		config.Temperature = genai.Ptr(float32(req.Sampling.Temperature))
		config.TopP = genai.Ptr(float32(req.Sampling.TopP))
	} else {
		config.Temperature = genai.Ptr[float32](0)
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: user}},
	}}

	resp, err := e.client.Models.GenerateContent(ctx, e.desc.ID, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: empty response candidates")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			result.WriteString(part.Text)
		}
	}
	return ChatReply{Content: strings.TrimSpace(result.String())}, nil
}
