// Package prompt maps a rewording style to its instruction and builds the
// text handed to a generation backend.
package prompt

import "strings"

// Style selects the tone of the rewrite.
type Style string

const (
	Professional Style = "professional"
	Concise      Style = "concise"
	Friendly     Style = "friendly"
	Formal       Style = "formal"
)

// Delimiter separates the raw prompt from the generated continuation.
const Delimiter = "Rewritten:"

// Message is one role/content pair of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var templates = map[Style]string{
	Professional: "Rewrite professionally: ",
	Concise:      "Rewrite concisely: ",
	Friendly:     "Rewrite in a friendly tone: ",
	Formal:       "Rewrite formally: ",
}

var instructions = map[Style]string{
	Professional: "Rewrite the user's sentence in a clear, professional tone. Reply with the rewritten sentence only.",
	Concise:      "Rewrite the user's sentence as concisely as possible while keeping its meaning. Reply with the rewritten sentence only.",
	Friendly:     "Rewrite the user's sentence in a warm, friendly tone. Reply with the rewritten sentence only.",
	Formal:       "Rewrite the user's sentence in a formal register. Reply with the rewritten sentence only.",
}

// Styles returns every style in menu order.
func Styles() []Style {
	return []Style{Professional, Concise, Friendly, Formal}
}

// ParseStyle resolves s case-insensitively. Unknown values fall back to Professional.
func ParseStyle(s string) Style {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := templates[st]; ok {
		return st
	}
	return Professional
}

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	_, ok := templates[s]
	return ok
}

// Template is the raw-prompt prefix for s.
func (s Style) Template() string {
	if t, ok := templates[s]; ok {
		return t
	}
	return templates[Professional]
}

// Instruction is the system message for s.
func (s Style) Instruction() string {
	if i, ok := instructions[s]; ok {
		return i
	}
	return instructions[Professional]
}

// BuildPrompt returns template + trimmed sentence + "\nRewritten:".
func BuildPrompt(style Style, sentence string) string {
	return style.Template() + strings.TrimSpace(sentence) + "\n" + Delimiter
}

// BuildMessages returns a system instruction followed by the trimmed sentence.
func BuildMessages(style Style, sentence string) []Message {
	return []Message{
		{Role: "system", Content: style.Instruction()},
		{Role: "user", Content: strings.TrimSpace(sentence)},
	}
}

// ExtractRewritten keeps what follows the first Delimiter, if any, and trims it.
// A model that echoes the delimiter inside its answer keeps the later copies.
func ExtractRewritten(text string) string {
	if _, after, found := strings.Cut(text, Delimiter); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(text)
}
