package handler

import (
	"net/http"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/prompt"
)

func Models(catalog *adapter.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalog.Models())
	}
}

type styleInfo struct {
	ID          prompt.Style `json:"id"`
	Instruction string       `json:"instruction"`
}

// Styles lists the rewording styles in menu order.
func Styles() http.HandlerFunc {
	styles := make([]styleInfo, 0, len(prompt.Styles()))
	for _, s := range prompt.Styles() {
		styles = append(styles, styleInfo{ID: s, Instruction: s.Instruction()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, styles)
	}
}
