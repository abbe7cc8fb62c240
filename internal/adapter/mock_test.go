package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

func TestMockAdapterGenerateChat(t *testing.T) {
	m := &MockAdapter{}
	eng, err := m.Load(context.Background(), ModelDescriptor{ID: "mock"}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if eng.Convention() != ConventionChat {
		t.Fatalf("convention: got %q, want %q", eng.Convention(), ConventionChat)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"capitalizes first letter", "hello world", "Hello world"},
		{"trims whitespace", "  hello world  ", "Hello world"},
		{"already capitalized", "Hello world", "Hello world"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eng.Generate(context.Background(), Request{Messages: prompt.BuildMessages(prompt.Formal, tt.input)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			reply, ok := res.(ChatReply)
			if !ok {
				t.Fatalf("result type: got %T, want ChatReply", res)
			}
			if reply.Content != tt.want {
				t.Errorf("got %q, want %q", reply.Content, tt.want)
			}
		})
	}
}

func TestMockAdapterGeneratePromptEchoes(t *testing.T) {
	m := &MockAdapter{}
	eng, err := m.Load(context.Background(), ModelDescriptor{ID: "mock-gpt2", Convention: ConventionPrompt}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := prompt.BuildPrompt(prompt.Concise, "see you soon")
	res, err := eng.Generate(context.Background(), Request{Prompt: p})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	c, ok := res.(Completion)
	if !ok {
		t.Fatalf("result type: got %T, want Completion", res)
	}
	if got := prompt.ExtractRewritten(c.Generated); got != "See you soon" {
		t.Errorf("extracted: got %q, want %q", got, "See you soon")
	}
}

func TestMockAdapterLoadReportsProgress(t *testing.T) {
	var payloads []progress.Payload
	m := &MockAdapter{}
	if _, err := m.Load(context.Background(), ModelDescriptor{ID: "mock"}, func(p progress.Payload) {
		payloads = append(payloads, p)
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("payloads: got %d, want 2", len(payloads))
	}
	if _, ok := payloads[0].(progress.Text); !ok {
		t.Errorf("first payload: got %T, want progress.Text", payloads[0])
	}
	if _, ok := payloads[1].(progress.Report); !ok {
		t.Errorf("second payload: got %T, want progress.Report", payloads[1])
	}
}

func TestMockAdapterLoadError(t *testing.T) {
	boom := errors.New("no weights")
	m := &MockAdapter{LoadErr: boom}
	_, err := m.Load(context.Background(), ModelDescriptor{ID: "mock"}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("error: got %v, want wrapping %v", err, boom)
	}
}

func TestMockAdapterContextCancel(t *testing.T) {
	m := &MockAdapter{Delay: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Load(ctx, ModelDescriptor{ID: "mock"}, nil)
	if err == nil {
		t.Error("expected error on cancelled context, got nil")
	}
}

func TestMockAdapterAvailable(t *testing.T) {
	m := &MockAdapter{}
	if !m.Available() {
		t.Error("mock adapter should always be available")
	}
}

func TestMockAdapterName(t *testing.T) {
	m := &MockAdapter{}
	if m.Name() != "Mock" {
		t.Errorf("got %q, want %q", m.Name(), "Mock")
	}
}
