package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type modelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

type styleInfo struct {
	ID string `json:"id"`
}

type sessionInfo struct {
	ID       string `json:"id"`
	Phase    string `json:"phase"`
	Status   string `json:"status"`
	Progress struct {
		Text  string  `json:"text"`
		Ratio float64 `json:"ratio"`
	} `json:"progress"`
}

type loadRequest struct {
	ModelID string `json:"model_id"`
}

type rewordRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type rewordResponse struct {
	Rewritten string `json:"rewritten"`
	Model     string `json:"model"`
	Style     string `json:"style"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// apiClient talks to the session API. Rate-limited calls are retried after
// the server's Retry-After.
type apiClient struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	pollEvery  time.Duration
	maxRetries int
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) *apiClient {
	return &apiClient{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pollEvery:  500 * time.Millisecond,
		maxRetries: 3,
	}
}

func (c *apiClient) do(method, path string, in, out any, want int) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			time.Sleep(wait)
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode != want {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

func (c *apiClient) models() ([]modelInfo, error) {
	var models []modelInfo
	err := c.do(http.MethodGet, "/api/models", nil, &models, http.StatusOK)
	return models, err
}

func (c *apiClient) styles() ([]string, error) {
	var styles []styleInfo
	if err := c.do(http.MethodGet, "/api/styles", nil, &styles, http.StatusOK); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(styles))
	for _, s := range styles {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (c *apiClient) createSession() (string, error) {
	var s sessionInfo
	if err := c.do(http.MethodPost, "/api/sessions", nil, &s, http.StatusCreated); err != nil {
		return "", err
	}
	return s.ID, nil
}

func (c *apiClient) deleteSession(id string) error {
	return c.do(http.MethodDelete, "/api/sessions/"+id, nil, nil, http.StatusNoContent)
}

// load starts a model load and polls the session until it settles.
// onProgress, when set, sees every polled snapshot.
func (c *apiClient) load(id, modelID string, timeout time.Duration, onProgress func(sessionInfo)) error {
	var s sessionInfo
	if err := c.do(http.MethodPost, "/api/sessions/"+id+"/load", loadRequest{ModelID: modelID}, &s, http.StatusAccepted); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for s.Phase == "loading" {
		if time.Now().After(deadline) {
			return fmt.Errorf("load %s: timed out after %s", modelID, timeout)
		}
		time.Sleep(c.pollEvery)
		if err := c.do(http.MethodGet, "/api/sessions/"+id, nil, &s, http.StatusOK); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(s)
		}
	}
	if s.Phase != "ready" {
		return fmt.Errorf("load %s: %s", modelID, s.Status)
	}
	return nil
}

func (c *apiClient) reword(id, text, style string) (rewordResponse, time.Duration, error) {
	var rr rewordResponse
	start := time.Now()
	err := c.do(http.MethodPost, "/api/sessions/"+id+"/reword", rewordRequest{Text: text, Style: style}, &rr, http.StatusOK)
	return rr, time.Since(start), err
}
