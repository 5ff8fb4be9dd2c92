package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zeroinvoice/internal/config"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	queue      *Queue
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// GenerationOptions override the per-call sampling defaults. Zero values
// fall back to the defaults, so extraction callers only set what they need.
type GenerationOptions struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.GeminiTimeoutMs) * time.Millisecond},
		queue:      NewQueue(time.Duration(cfg.GeminiMinIntervalMs) * time.Millisecond),
	}
}

func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.cfg.GeminiAPIKey) != ""
}

// GenerateContent sends a single prompt through the rate-limited queue and
// returns the first candidate's text. Non-2xx responses and finish reasons
// other than STOP/MAX_TOKENS are hard failures.
func (c *Client) GenerateContent(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	if !c.IsConfigured() {
		return "", errors.New("gemini api key not configured")
	}

	return c.queue.Do(ctx, func() (string, error) {
		return c.generate(ctx, prompt, opts)
	})
}

func (c *Client) generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	gc := &generationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
	if opts.Temperature > 0 {
		gc.Temperature = opts.Temperature
	}
	if opts.TopK > 0 {
		gc.TopK = opts.TopK
	}
	if opts.TopP > 0 {
		gc.TopP = opts.TopP
	}
	if opts.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = opts.MaxOutputTokens
	}

	payload := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: gc,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := c.cfg.GeminiAPIEndpoint + "?key=" + c.cfg.GeminiAPIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini api error: status=%d body=%s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("gemini response decode: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("gemini response has no candidates")
	}

	cand := parsed.Candidates[0]
	if cand.FinishReason != "STOP" && cand.FinishReason != "MAX_TOKENS" {
		return "", fmt.Errorf("gemini generation stopped: %s", cand.FinishReason)
	}
	if len(cand.Content.Parts) == 0 {
		return "", errors.New("gemini candidate has no parts")
	}

	return cand.Content.Parts[0].Text, nil
}

// StripCodeFence removes a surrounding markdown code block, which the model
// adds despite being told not to.
func StripCodeFence(text string) string {
	out := strings.TrimSpace(text)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	}
	return strings.TrimSpace(out)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
