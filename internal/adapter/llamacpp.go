package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

const llamaCppDefaultPoll = 500 * time.Millisecond

// LlamaCppAdapter connects to llama-server. Loading waits for /health to turn
// 200; generation uses /completion (raw) or the OpenAI-compatible /v1/chat/completions.
type LlamaCppAdapter struct {
	BaseURL string
	Client  *http.Client
	// PollInterval spaces /health probes while the server loads its weights.
	PollInterval time.Duration
	Convention   Convention
}

type llamaCppMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llamaCppChatRequest struct {
	Model       string            `json:"model"`
	Messages    []llamaCppMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p,omitempty"`
}

type llamaCppChoice struct {
	Message llamaCppMessage `json:"message"`
}

type llamaCppChatResponse struct {
	Choices []llamaCppChoice `json:"choices"`
}

type llamaCppCompletionRequest struct {
	Prompt        string  `json:"prompt"`
	NPredict      int     `json:"n_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type llamaCppCompletionResponse struct {
	Content string `json:"content"`
}

type llamaCppHealth struct {
	Status string `json:"status"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

type llamaCppModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (l *LlamaCppAdapter) Name() string     { return "llama.cpp" }
func (l *LlamaCppAdapter) Provider() string { return "llamacpp" }

func (l *LlamaCppAdapter) url(path string) string {
	return strings.TrimRight(l.BaseURL, "/") + path
}

// Load blocks until llama-server reports healthy. A 503 means the weights are
// still loading and is reported as text; any transport error fails at once.
func (l *LlamaCppAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	interval := l.PollInterval
	if interval <= 0 {
		interval = llamaCppDefaultPoll
	}

	for {
		code, msg, err := l.health(ctx)
		if err != nil {
			return nil, fmt.Errorf("llamacpp: health: %w", err)
		}
		if code == http.StatusOK {
			break
		}
		if code != http.StatusServiceUnavailable {
			return nil, fmt.Errorf("llamacpp: health: unexpected status %d", code)
		}
		if msg == "" {
			msg = "Loading model"
		}
		emit(report, progress.Text(msg))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llamacpp: wait for model: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	emit(report, progress.Report{Progress: 0.9, Text: "llama-server ready"})
	if desc.Convention == "" {
		desc.Convention = ParseConvention(string(l.Convention), ConventionChat)
	}
	return &llamaCppEngine{adapter: l, desc: desc}, nil
}

func (l *LlamaCppAdapter) health(ctx context.Context) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url("/health"), nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var h llamaCppHealth
	_ = json.NewDecoder(resp.Body).Decode(&h)
	return resp.StatusCode, h.Error.Message, nil
}

// Models lists the model alias(es) llama-server exposes on /v1/models.
func (l *LlamaCppAdapter) Models(ctx context.Context) ([]ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: create models request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llamacpp: models: unexpected status %d", resp.StatusCode)
	}

	var list llamaCppModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("llamacpp: decode models: %w", err)
	}

	conv := ParseConvention(string(l.Convention), ConventionChat)
	out := make([]ModelDescriptor, 0, len(list.Data))
	for _, m := range list.Data {
		out = append(out, ModelDescriptor{
			ID:         m.ID,
			Name:       "llama.cpp (" + m.ID + ")",
			Provider:   l.Provider(),
			Convention: conv,
		})
	}
	return out, nil
}

func (l *LlamaCppAdapter) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	code, _, err := l.health(ctx)
	return err == nil && code == http.StatusOK
}

type llamaCppEngine struct {
	adapter *LlamaCppAdapter
	desc    ModelDescriptor
}

func (e *llamaCppEngine) Model() ModelDescriptor { return e.desc }
func (e *llamaCppEngine) Convention() Convention { return e.desc.Convention }

func (e *llamaCppEngine) Generate(ctx context.Context, req Request) (Result, error) {
	temp := req.Sampling.Temperature
	if !req.Sampling.DoSample {
		temp = 0
	}

	if e.desc.Convention == ConventionPrompt {
		var out llamaCppCompletionResponse
		err := e.post(ctx, "/completion", llamaCppCompletionRequest{
			Prompt:        req.Prompt,
			NPredict:      req.Sampling.MaxTokens,
			Temperature:   temp,
			TopP:          req.Sampling.TopP,
			RepeatPenalty: req.Sampling.RepetitionPenalty,
		}, &out)
		if err != nil {
			return nil, err
		}
		return Completion{Generated: out.Content}, nil
	}

	var out llamaCppChatResponse
	err := e.post(ctx, "/v1/chat/completions", llamaCppChatRequest{
		Model:       e.desc.ID,
		Messages:    toLlamaCppMessages(req.Messages),
		MaxTokens:   req.Sampling.MaxTokens,
		Temperature: temp,
		TopP:        req.Sampling.TopP,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("llamacpp: empty response choices")
	}
	return ChatReply{Content: strings.TrimSpace(out.Choices[0].Message.Content)}, nil
}

func (e *llamaCppEngine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("llamacpp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.adapter.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llamacpp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.adapter.Client.Do(req)
	if err != nil {
		return fmt.Errorf("llamacpp: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llamacpp: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llamacpp: decode response: %w", err)
	}
	return nil
}

func toLlamaCppMessages(msgs []prompt.Message) []llamaCppMessage {
	out := make([]llamaCppMessage, len(msgs))
	for i, m := range msgs {
		out[i] = llamaCppMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
