// Package backends turns configuration into generation backends and the
// model catalog both front-ends share.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/config"
)

// Build returns one backend per configured provider, keyed by provider.
func Build(cfg config.Config, useMock bool) map[string]adapter.Backend {
	enabled := make(map[string]adapter.Backend)

	if useMock {
		enabled["mock"] = &adapter.MockAdapter{Delay: 500 * time.Millisecond}
		return enabled
	}

	// llama.cpp first: it is the local GPU path.
	if cfg.LlamaCppURL != "" {
		enabled["llamacpp"] = &adapter.LlamaCppAdapter{
			BaseURL:    cfg.LlamaCppURL,
			Client:     &http.Client{Timeout: 120 * time.Second},
			Convention: adapter.ParseConvention(cfg.LlamaCppConvention, adapter.ConventionChat),
		}
	}
	if cfg.OllamaURL != "" {
		// Pulls stream for minutes; the load timeout bounds them instead.
		enabled["ollama"] = &adapter.OllamaAdapter{
			BaseURL:    cfg.OllamaURL,
			Client:     &http.Client{},
			Convention: adapter.ParseConvention(cfg.OllamaConvention, adapter.ConventionChat),
		}
	}
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		enabled["openai"] = &adapter.OpenAIAdapter{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
		}
	}
	if cfg.ClaudeAPIKey != "" {
		enabled["claude"] = &adapter.ClaudeAdapter{
			APIKey:     cfg.ClaudeAPIKey,
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
		}
	}
	if cfg.GeminiAPIKey != "" {
		enabled["gemini"] = &adapter.GeminiAdapter{
			APIKey:     cfg.GeminiAPIKey,
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
		}
	}
	return enabled
}

// defaultModels is the descriptor each backend contributes when no models
// list is configured.
func defaultModels(cfg config.Config, provider string) []adapter.ModelDescriptor {
	switch provider {
	case "mock":
		return []adapter.ModelDescriptor{
			{ID: "mock", Name: "Mock (dev)", Convention: adapter.ConventionChat},
			{ID: "mock-raw", Name: "Mock raw prompt (dev)", Convention: adapter.ConventionPrompt},
		}
	case "llamacpp":
		model := cfg.LlamaCppModel
		if model == "" {
			model = "qwen2.5-1.5b-gpu"
		}
		return []adapter.ModelDescriptor{{ID: model, Name: "llama.cpp (" + model + ")"}}
	case "ollama":
		return []adapter.ModelDescriptor{{ID: cfg.OllamaModel, Name: "Ollama (" + cfg.OllamaModel + ")"}}
	case "openai":
		return []adapter.ModelDescriptor{{ID: cfg.OpenAIModel, Name: "OpenAI (" + cfg.OpenAIModel + ")", Convention: adapter.ConventionChat}}
	case "claude":
		return []adapter.ModelDescriptor{{ID: cfg.ClaudeModel, Name: "Claude (" + cfg.ClaudeModel + ")", Convention: adapter.ConventionChat}}
	case "gemini":
		return []adapter.ModelDescriptor{{ID: cfg.GeminiModel, Name: "Gemini (" + cfg.GeminiModel + ")", Convention: adapter.ConventionChat}}
	default:
		return nil
	}
}

var providerOrder = []string{"mock", "llamacpp", "ollama", "openai", "claude", "gemini"}

// Catalog fills the catalog from the configured models list, or from each
// backend's defaults, then optionally asks listing backends for more.
func Catalog(ctx context.Context, cfg config.Config, useMock bool, logger *slog.Logger) (*adapter.Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	enabled := Build(cfg, useMock)
	catalog := adapter.NewCatalog()

	if len(cfg.Models) > 0 && !useMock {
		for _, desc := range cfg.Models {
			b, ok := enabled[desc.Provider]
			if !ok {
				return nil, fmt.Errorf("catalog: model %q: backend %q is not configured", desc.ID, desc.Provider)
			}
			if err := catalog.Add(desc, b); err != nil {
				return nil, err
			}
		}
	} else {
		for _, provider := range providerOrder {
			b, ok := enabled[provider]
			if !ok {
				continue
			}
			for _, desc := range defaultModels(cfg, provider) {
				if err := catalog.Add(desc, b); err != nil {
					return nil, err
				}
			}
			logger.Info("backend enabled", "backend", provider)
		}
	}

	if cfg.DiscoverModels && !useMock {
		for _, provider := range providerOrder {
			b, ok := enabled[provider]
			if !ok {
				continue
			}
			n, err := catalog.Discover(ctx, b)
			if err != nil {
				logger.Warn("model discovery failed", "backend", provider, "error", err)
				continue
			}
			if n > 0 {
				logger.Info("models discovered", "backend", provider, "count", n)
			}
		}
	}

	if catalog.Len() == 0 {
		return nil, fmt.Errorf("catalog: no models available; configure a backend or use -mock")
	}
	return catalog, nil
}
