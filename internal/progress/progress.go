// Package progress normalizes loader progress into a label and a fill ratio.
package progress

import "math"

// Update is the single record every progress source is reduced to.
type Update struct {
	Text  string  `json:"text"`
	Ratio float64 `json:"ratio"`
}

// Reporter renders a progress label and a proportional fill.
// Implementations must clamp ratio to [0,1].
type Reporter interface {
	SetProgress(text string, ratio float64)
}

// Payload is what a backend hands to a loader callback: either Text or Report.
type Payload interface {
	isPayload()
}

// Text is a bare status line with no measurable fraction.
type Text string

// Report carries a fraction in [0,1] alongside its label.
type Report struct {
	Progress float64
	Text     string
}

func (Text) isPayload()   {}
func (Report) isPayload() {}

// Callback receives payloads while an engine is being acquired.
type Callback func(Payload)

// DefaultTextRatio is used for Text payloads, which carry no fraction.
const DefaultTextRatio = 0.5

// Clamp bounds r to [0,1]. NaN maps to 0.
func Clamp(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Normalize reduces a payload to an Update. Text payloads take fallback as ratio.
func Normalize(p Payload, fallback float64) Update {
	switch v := p.(type) {
	case Text:
		return Update{Text: string(v), Ratio: Clamp(fallback)}
	case Report:
		return Update{Text: v.Text, Ratio: Clamp(v.Progress)}
	default:
		return Update{Ratio: Clamp(fallback)}
	}
}

// Func adapts a Reporter into a Callback, normalizing every payload on the way.
func Func(r Reporter) Callback {
	return func(p Payload) {
		u := Normalize(p, DefaultTextRatio)
		r.SetProgress(u.Text, u.Ratio)
	}
}
