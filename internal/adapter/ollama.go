package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

// OllamaAdapter connects to a local Ollama instance. Loading pulls the model
// through /api/pull; generation uses /api/generate (raw) or /api/chat.
type OllamaAdapter struct {
	BaseURL string
	Client  *http.Client
	// Convention applies to discovered models that do not declare one.
	Convention Convention
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict    int     `json:"num_predict,omitempty"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

type ollamaGenerateRequest struct {
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt"`
	Raw       bool          `json:"raw"`
	Stream    bool          `json:"stream"`
	Options   ollamaOptions `json:"options"`
	KeepAlive *int          `json:"keep_alive,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaPullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type ollamaPullEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (o *OllamaAdapter) Name() string     { return "Ollama" }
func (o *OllamaAdapter) Provider() string { return "ollama" }

func (o *OllamaAdapter) url(path string) string {
	return strings.TrimRight(o.BaseURL, "/") + path
}

// Load pulls desc (by its weights reference when set, else its ID) and
// reports each stream event. Events with byte counts become progress.Report.
func (o *OllamaAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	name := desc.Weights
	if name == "" {
		name = desc.ID
	}

	body, err := json.Marshal(ollamaPullRequest{Model: name, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal pull: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url("/api/pull"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: pull: unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	succeeded := false
	for {
		var ev ollamaPullEvent
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("ollama: decode pull event: %w", err)
		}
		if ev.Error != "" {
			return nil, fmt.Errorf("ollama: pull %s: %s", name, ev.Error)
		}
		if ev.Total > 0 {
			emit(report, progress.Report{Progress: float64(ev.Completed) / float64(ev.Total), Text: ev.Status})
		} else {
			emit(report, progress.Text(ev.Status))
		}
		if ev.Status == "success" {
			succeeded = true
		}
	}
	if !succeeded {
		return nil, fmt.Errorf("ollama: pull %s: stream ended without success", name)
	}

	if desc.Convention == "" {
		desc.Convention = ParseConvention(string(o.Convention), ConventionChat)
	}
	return &ollamaEngine{adapter: o, desc: desc, model: name}, nil
}

// Models lists the locally available models from /api/tags.
func (o *OllamaAdapter) Models(ctx context.Context) ([]ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: create tags request: %w", err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: tags: unexpected status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}

	conv := ParseConvention(string(o.Convention), ConventionChat)
	out := make([]ModelDescriptor, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, ModelDescriptor{
			ID:         m.Name,
			Name:       "Ollama (" + m.Name + ")",
			Provider:   o.Provider(),
			Convention: conv,
		})
	}
	return out, nil
}

func (o *OllamaAdapter) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url("/"), nil)
	if err != nil {
		return false
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaEngine struct {
	adapter *OllamaAdapter
	desc    ModelDescriptor
	model   string
}

func (e *ollamaEngine) Model() ModelDescriptor { return e.desc }
func (e *ollamaEngine) Convention() Convention { return e.desc.Convention }

func (e *ollamaEngine) Generate(ctx context.Context, req Request) (Result, error) {
	opts := ollamaSamplingOptions(req.Sampling)
	if e.desc.Convention == ConventionPrompt {
		var out ollamaGenerateResponse
		err := e.post(ctx, "/api/generate", ollamaGenerateRequest{
			Model:   e.model,
			Prompt:  req.Prompt,
			Raw:     true,
			Stream:  false,
			Options: opts,
		}, &out)
		if err != nil {
			return nil, err
		}
		return Completion{Generated: out.Response}, nil
	}

	var out ollamaChatResponse
	err := e.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    e.model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   false,
		Options:  opts,
	}, &out)
	if err != nil {
		return nil, err
	}
	return ChatReply{Content: strings.TrimSpace(out.Message.Content)}, nil
}

// Close asks the server to unload the model now rather than after its
// keep-alive window.
func (e *ollamaEngine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unload := 0
	var out ollamaGenerateResponse
	if err := e.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:     e.model,
		KeepAlive: &unload,
	}, &out); err != nil {
		return fmt.Errorf("ollama: unload %s: %w", e.model, err)
	}
	return nil
}

func (e *ollamaEngine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.adapter.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.adapter.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}

func ollamaSamplingOptions(s Sampling) ollamaOptions {
	opts := ollamaOptions{
		NumPredict:    s.MaxTokens,
		Temperature:   s.Temperature,
		TopP:          s.TopP,
		RepeatPenalty: s.RepetitionPenalty,
	}
	if !s.DoSample {
		opts.Temperature = 0
	}
	return opts
}

func toOllamaMessages(msgs []prompt.Message) []ollamaMessage {
	out := make([]ollamaMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
