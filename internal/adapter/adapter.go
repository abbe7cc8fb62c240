package adapter

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

// Convention is the calling convention an engine expects.
type Convention string

const (
	// ConventionPrompt takes a raw prompt and returns a continuation.
	ConventionPrompt Convention = "prompt"
	// ConventionChat takes system/user messages and returns an assistant reply.
	ConventionChat Convention = "chat"
)

// ParseConvention returns def for empty or unknown values.
func ParseConvention(s string, def Convention) Convention {
	switch Convention(strings.ToLower(strings.TrimSpace(s))) {
	case ConventionPrompt:
		return ConventionPrompt
	case ConventionChat:
		return ConventionChat
	default:
		return def
	}
}

// ErrNoAPIKey is returned by hosted backends configured without credentials.
var ErrNoAPIKey = errors.New("no API key configured")

// ModelDescriptor identifies a loadable model. It is exposed via GET /api/models.
type ModelDescriptor struct {
	ID         string     `json:"id" yaml:"model_id"`
	Name       string     `json:"name" yaml:"name"`
	Provider   string     `json:"provider" yaml:"backend"`
	Convention Convention `json:"convention" yaml:"convention"`
	Weights    string     `json:"model,omitempty" yaml:"model"`
	Lib        string     `json:"model_lib,omitempty" yaml:"model_lib"`
}

// Sampling holds the generation knobs sent with every request.
type Sampling struct {
	MaxTokens         int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	DoSample          bool
}

var (
	// PromptSampling is used for raw-prompt engines.
	PromptSampling = Sampling{MaxTokens: 40, Temperature: 0.7, TopP: 0.9, RepetitionPenalty: 1.12, DoSample: true}
	// ChatSampling is used for chat engines.
	ChatSampling = Sampling{MaxTokens: 200, Temperature: 0.6, TopP: 0.9, DoSample: true}
)

// Request is either a raw Prompt or a Messages list, depending on the engine's Convention.
type Request struct {
	Prompt   string
	Messages []prompt.Message
	Sampling Sampling
}

// Result is the engine output, resolved at the adapter boundary.
// It is either a Completion or a ChatReply.
type Result interface {
	isResult()
}

// Completion is the generated text of a raw-prompt engine. It may echo the prompt.
type Completion struct {
	Generated string
}

// ChatReply is the assistant message content of a chat engine.
type ChatReply struct {
	Content string
}

func (Completion) isResult() {}
func (ChatReply) isResult()  {}

// Engine is a loaded, ready-to-query model.
type Engine interface {
	Model() ModelDescriptor
	Convention() Convention
	Generate(ctx context.Context, req Request) (Result, error)
}

// Backend acquires engines from an external runtime.
type Backend interface {
	Name() string
	Provider() string
	Available() bool
	Load(ctx context.Context, desc ModelDescriptor, report progress.Callback) (Engine, error)
}

// Lister is implemented by backends that can enumerate the models they serve.
type Lister interface {
	Models(ctx context.Context) ([]ModelDescriptor, error)
}

// Release closes e when it holds resources. Nil engines are a no-op.
func Release(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// systemAndUser splits a chat request into its system instruction and user text.
func systemAndUser(msgs []prompt.Message) (system, user string) {
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			user = m.Content
		}
	}
	return system, user
}

// emit forwards p to report when a callback was supplied.
func emit(report progress.Callback, p progress.Payload) {
	if report != nil {
		report(p)
	}
}
