// Package ai adapts Google Gemini to the query parser chain.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"laporan/internal/query"
)

const (
	DefaultModel    = "gemini-2.0-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
)

// ErrEmptyResponse is returned when Gemini answers without any text part.
var ErrEmptyResponse = errors.New("gemini returned empty response")

// Config holds the Gemini connection settings.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration

	// Now anchors relative answers. Defaults to time.Now; callers pass a
	// clock in the report timezone.
	Now func() time.Time
}

// Gemini implements query.AIParser over the generateContent REST API.
type Gemini struct {
	config Config
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

var _ query.AIParser = (*Gemini)(nil)

// New creates a Gemini parser. The request deadline comes from the caller's
// context; Config.Timeout only bounds the underlying HTTP client.
func New(cfg Config) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Gemini{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    now,
		logger: slog.Default().With("component", "gemini"),
	}
}

// ParseIntent asks Gemini to classify text and converts its JSON answer.
func (g *Gemini) ParseIntent(ctx context.Context, text string, capsters, branches []string) (*query.Spec, error) {
	prompt, err := buildPrompt(text, capsters, branches)
	if err != nil {
		return nil, err
	}
	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	var ans answer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &ans); err != nil {
		g.logger.Warn("Unparseable Gemini answer", "error", err, "answer", truncate(raw, 200))
		return nil, fmt.Errorf("decode gemini answer: %w", err)
	}
	spec := ans.spec(g.now())
	spec.Text = text
	g.logger.Debug("Gemini parsed query",
		"report_type", spec.Type,
		"timeframe", spec.Window.Label(),
		"capsters", spec.Capsters,
		"branches", spec.Branches)
	return spec, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(g.config.Endpoint, "/"), g.config.Model, url.QueryEscape(g.config.APIKey))

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", redactKey(err, g.config.APIKey))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var gr geminiResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

var (
	reCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	reObject    = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON strips markdown fences and surrounding prose from a model
// answer.
func extractJSON(s string) string {
	if m := reCodeBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if m := reObject.FindString(s); m != "" {
		return m
	}
	return strings.TrimSpace(s)
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key != "" && errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, url.QueryEscape(key), "REDACTED")
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
