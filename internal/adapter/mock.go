package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

// MockAdapter simulates a runtime with a configurable delay.
// Used for development and testing without a real LLM backend.
type MockAdapter struct {
	Delay time.Duration
	// LoadErr, when set, makes every Load fail with it.
	LoadErr error
	// GenerateErr, when set, makes every Generate fail with it.
	GenerateErr error
}

func (m *MockAdapter) Name() string     { return "Mock" }
func (m *MockAdapter) Provider() string { return "mock" }
func (m *MockAdapter) Available() bool  { return true }

func (m *MockAdapter) Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error) {
	emit(report, progress.Text("Loading mock runtime…"))
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.LoadErr != nil {
		return nil, fmt.Errorf("mock: load %s: %w", desc.ID, m.LoadErr)
	}
	emit(report, progress.Report{Progress: 0.9, Text: "Mock weights ready"})
	if desc.Convention == "" {
		desc.Convention = ConventionChat
	}
	return &mockEngine{adapter: m, desc: desc}, nil
}

func (m *MockAdapter) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mock: %w", ctx.Err())
	}
}

type mockEngine struct {
	adapter *MockAdapter
	desc    ModelDescriptor
}

func (e *mockEngine) Model() ModelDescriptor { return e.desc }
func (e *mockEngine) Convention() Convention { return e.desc.Convention }

// Generate capitalizes the sentence. Raw prompts are echoed back the way
// text-generation pipelines return the prompt together with the continuation.
func (e *mockEngine) Generate(ctx context.Context, req Request) (Result, error) {
	if err := e.adapter.wait(ctx); err != nil {
		return nil, err
	}
	if e.adapter.GenerateErr != nil {
		return nil, fmt.Errorf("mock: generate: %w", e.adapter.GenerateErr)
	}
	if e.desc.Convention == ConventionPrompt {
		return Completion{Generated: req.Prompt + " " + capitalize(sentenceFromPrompt(req.Prompt))}, nil
	}
	_, user := systemAndUser(req.Messages)
	return ChatReply{Content: capitalize(user)}, nil
}

func sentenceFromPrompt(p string) string {
	body := strings.TrimSuffix(p, "\n"+prompt.Delimiter)
	if _, after, ok := strings.Cut(body, ": "); ok {
		return after
	}
	return body
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 0 && s[0] >= 'a' && s[0] <= 'z' {
		s = strings.ToUpper(s[:1]) + s[1:]
	}
	return s
}
