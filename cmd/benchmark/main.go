package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type result struct {
	Sample    string `json:"sample"`
	Chars     int    `json:"chars"`
	Model     string `json:"model"`
	Style     string `json:"style"`
	Run       int    `json:"run"`
	ElapsedMs int64  `json:"elapsed_ms"`
	WallMs    int64  `json:"wall_ms"`
	OutChars  int    `json:"out_chars"`
	Error     string `json:"error,omitempty"`
}

type options struct {
	modelID     string
	styles      []string
	runs        int
	warmup      bool
	loadTimeout time.Duration
}

func main() {
	url := flag.String("url", "http://localhost:8090", "API base URL")
	apiKey := flag.String("api-key", "", "API key (optional)")
	runs := flag.Int("runs", 3, "Number of runs per sample and style")
	model := flag.String("model", "", "Model ID to use (default: first available)")
	styles := flag.String("styles", "", "Comma-separated styles (default: all)")
	quality := flag.Bool("quality", false, "Quality mode: show input/output for each sample and style (1 run, no timing table)")
	jsonOut := flag.String("json", "", "Write results to JSON file (e.g. results.json)")
	warmup := flag.Bool("warmup", false, "Run one warmup request per sample before measuring")
	loadTimeout := flag.Duration("load-timeout", 10*time.Minute, "How long to wait for the model to load")
	flag.Parse()

	client := newAPIClient(*url, *apiKey, 180*time.Second)

	opts := options{runs: *runs, warmup: *warmup, loadTimeout: *loadTimeout}
	var err error
	if opts.modelID, err = pickModel(client, *model); err != nil {
		fatal(err)
	}
	if opts.styles, err = pickStyles(client, *styles); err != nil {
		fatal(err)
	}

	sessionID, err := prepareSession(client, opts, os.Stdout)
	if err != nil {
		fatal(err)
	}
	defer client.deleteSession(sessionID)

	if *quality {
		failures := runQualityMode(client, sessionID, opts, os.Stdout)
		if failures > 0 {
			client.deleteSession(sessionID)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Benchmarking against %s using model: %s, styles: %s (%d runs each", client.baseURL, opts.modelID, strings.Join(opts.styles, ","), opts.runs)
	if opts.warmup {
		fmt.Print(", warmup enabled")
	}
	fmt.Println(")")

	results := runBenchmark(client, sessionID, opts, os.Stdout)

	fmt.Println()
	printTable(os.Stdout, results)
	printSummary(os.Stdout, results)

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, results, client.baseURL, opts.modelID); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
		} else {
			fmt.Printf("\nResults written to %s\n", *jsonOut)
		}
	}

	for _, r := range results {
		if r.Error != "" {
			client.deleteSession(sessionID)
			os.Exit(1)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func pickModel(c *apiClient, want string) (string, error) {
	if want != "" {
		return want, nil
	}
	models, err := c.models()
	if err != nil {
		return "", fmt.Errorf("fetching models: %w", err)
	}
	if len(models) == 0 {
		return "", fmt.Errorf("no models available")
	}
	return models[0].ID, nil
}

func pickStyles(c *apiClient, flagValue string) ([]string, error) {
	if flagValue != "" {
		var out []string
		for _, s := range strings.Split(flagValue, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	styles, err := c.styles()
	if err != nil {
		return nil, fmt.Errorf("fetching styles: %w", err)
	}
	return styles, nil
}

// prepareSession creates a session and loads the model into it, printing
// each progress label as it changes.
func prepareSession(c *apiClient, opts options, w io.Writer) (string, error) {
	id, err := c.createSession()
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	fmt.Fprintf(w, "Loading %s...\n", opts.modelID)
	start := time.Now()
	last := ""
	err = c.load(id, opts.modelID, opts.loadTimeout, func(s sessionInfo) {
		if s.Progress.Text != last {
			last = s.Progress.Text
			fmt.Fprintf(w, "  [%3.0f%%] %s\n", s.Progress.Ratio*100, last)
		}
	})
	if err != nil {
		c.deleteSession(id)
		return "", fmt.Errorf("loading model: %w", err)
	}
	fmt.Fprintf(w, "Model ready in %s\n", time.Since(start).Round(time.Millisecond))
	return id, nil
}

func runBenchmark(c *apiClient, sessionID string, opts options, w io.Writer) []result {
	var results []result
	for _, sample := range Samples {
		for _, style := range opts.styles {
			if opts.warmup {
				fmt.Fprintf(w, "  Warming up %s/%s...", sample.Name, style)
				r := benchmark(c, sessionID, sample, style, 0)
				if r.Error != "" {
					fmt.Fprintf(w, " FAILED (%s)\n", r.Error)
				} else {
					fmt.Fprintf(w, " %dms (discarded)\n", r.ElapsedMs)
				}
			}
			for run := 1; run <= opts.runs; run++ {
				fmt.Fprintf(w, "  Running %s/%s (run %d/%d)...", sample.Name, style, run, opts.runs)
				r := benchmark(c, sessionID, sample, style, run)
				results = append(results, r)
				if r.Error != "" {
					fmt.Fprintf(w, " FAILED (%s)\n", r.Error)
				} else {
					fmt.Fprintf(w, " %dms\n", r.ElapsedMs)
				}
			}
		}
	}
	return results
}

func benchmark(c *apiClient, sessionID string, sample Sample, style string, run int) result {
	r := result{Sample: sample.Name, Chars: len(sample.Text), Style: style, Run: run}

	rr, wall, err := c.reword(sessionID, sample.Text, style)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Model = rr.Model
	r.ElapsedMs = rr.ElapsedMs
	r.WallMs = wall.Milliseconds()
	r.OutChars = len(rr.Rewritten)
	return r
}

func printTable(w io.Writer, results []result) {
	fmt.Fprintln(w, "| Sample | Chars | Model | Style | Run | Elapsed (ms) | Wall (ms) | Out Chars | Ratio |")
	fmt.Fprintln(w, "|--------|-------|-------|-------|-----|--------------|-----------|-----------|-------|")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "| %-6s | %5d | %-20s | %-12s | %d | %12s | %9s | %9s | %5s |\n",
				r.Sample, r.Chars, "-", r.Style, r.Run, "FAIL", "-", "-", "-")
			continue
		}
		ratio := float64(r.OutChars) / float64(r.Chars)
		fmt.Fprintf(w, "| %-6s | %5d | %-20s | %-12s | %d | %12d | %9d | %9d | %5.2f |\n",
			r.Sample, r.Chars, r.Model, r.Style, r.Run, r.ElapsedMs, r.WallMs, r.OutChars, ratio)
	}
}

func runQualityMode(c *apiClient, sessionID string, opts options, w io.Writer) int {
	fmt.Fprintf(w, "Quality test against %s using model: %s\n", c.baseURL, opts.modelID)
	fmt.Fprintln(w, strings.Repeat("=", 72))

	var failures, total int
	for i, sample := range QualitySamples {
		fmt.Fprintf(w, "\n--- %d/%d: %s (%d chars) ---\n", i+1, len(QualitySamples), sample.Name, len(sample.Text))
		fmt.Fprintf(w, "IN:  %s\n", sample.Text)

		for _, style := range opts.styles {
			total++
			rr, _, err := c.reword(sessionID, sample.Text, style)
			if err != nil {
				fmt.Fprintf(w, "ERR [%s]: %s\n", style, err)
				failures++
				continue
			}
			fmt.Fprintf(w, "OUT [%s]: %s\n", style, rr.Rewritten)
			fmt.Fprintf(w, "     [%dms, %d->%d chars]\n", rr.ElapsedMs, len(sample.Text), len(rr.Rewritten))
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 72))
	fmt.Fprintf(w, "Done: %d/%d passed\n", total-failures, total)
	return failures
}

func printSummary(w io.Writer, results []result) {
	var ok []result
	for _, r := range results {
		if r.Error == "" {
			ok = append(ok, r)
		}
	}

	failed := len(results) - len(ok)

	if len(ok) == 0 {
		fmt.Fprintf(w, "\nSummary: all %d runs failed\n", len(results))
		return
	}

	var totalElapsed int64
	var totalChars int
	minElapsed, maxElapsed := ok[0].ElapsedMs, ok[0].ElapsedMs
	minLabel, maxLabel := label(ok[0]), label(ok[0])
	perStyle := make(map[string][]int64)

	for _, r := range ok {
		totalElapsed += r.ElapsedMs
		totalChars += r.Chars
		perStyle[r.Style] = append(perStyle[r.Style], r.ElapsedMs)
		if r.ElapsedMs < minElapsed {
			minElapsed = r.ElapsedMs
			minLabel = label(r)
		}
		if r.ElapsedMs > maxElapsed {
			maxElapsed = r.ElapsedMs
			maxLabel = label(r)
		}
	}

	avgMsPerChar := float64(totalElapsed) / float64(totalChars)

	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "- Avg ms/char: %.2f\n", avgMsPerChar)
	fmt.Fprintf(w, "- Min elapsed: %dms (%s)\n", minElapsed, minLabel)
	fmt.Fprintf(w, "- Max elapsed: %dms (%s)\n", maxElapsed, maxLabel)
	for _, r := range ok {
		times, seen := perStyle[r.Style]
		if !seen {
			continue
		}
		var sum int64
		for _, t := range times {
			sum += t
		}
		fmt.Fprintf(w, "- Avg %s: %dms\n", r.Style, sum/int64(len(times)))
		delete(perStyle, r.Style)
	}
	fmt.Fprintf(w, "- Total runs: %d (%d ok, %d failed)\n", len(results), len(ok), failed)
}

func label(r result) string {
	return r.Sample + "/" + r.Style
}

type jsonReport struct {
	Timestamp string   `json:"timestamp"`
	URL       string   `json:"url"`
	Model     string   `json:"model"`
	Results   []result `json:"results"`
}

func writeJSON(path string, results []result, baseURL, modelID string) error {
	report := jsonReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URL:       baseURL,
		Model:     modelID,
		Results:   results,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
