package handler

import (
	"net/http"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/metrics"
)

type adapterStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version,omitempty"`
	Adapters map[string]adapterStatus `json:"adapters"`
}

func Health(backends map[string]adapter.Backend, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := make(map[string]adapterStatus, len(backends))
		for id, b := range backends {
			s := adapterStatus{Available: b.Available()}
			gauge := 0.0
			if s.Available {
				gauge = 1
			} else {
				s.Reason = unavailableReason(b)
			}
			metrics.AdapterAvailable.WithLabelValues(id).Set(gauge)
			statuses[id] = s
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:   "ok",
			Version:  version,
			Adapters: statuses,
		})
	}
}

func unavailableReason(b adapter.Backend) string {
	switch b.(type) {
	case *adapter.ClaudeAdapter, *adapter.GeminiAdapter, *adapter.OpenAIAdapter:
		return "no API key"
	case *adapter.OllamaAdapter:
		return "ollama unreachable"
	case *adapter.LlamaCppAdapter:
		return "llama-server unreachable"
	default:
		return "unavailable"
	}
}
