// Package semantic scores whole-document similarity through the external
// semantic similarity service. The service receives a digest of each
// document's markup, style, and behavior text and returns a 0–1 score.
//
// The service is a synchronous dependency of every analysis run, so calls
// carry a short timeout and a failure degrades to the structural score
// (marked Derived) instead of failing the run.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/plagiat/page"
	"github.com/hazyhaar/plagiat/score"
)

// Config configures the semantic client.
type Config struct {
	// Endpoint is the base URL of the similarity service,
	// e.g. "http://localhost:8031".
	Endpoint string `yaml:"endpoint"`

	// Timeout for the similarity call. Default: 5s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxChars truncates each digest before sending. Default: 20000.
	MaxChars int `yaml:"max_chars"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 20_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls the external similarity service.
type Client struct {
	endpoint string
	client   *http.Client
	cfg      Config
	conv     *converter.Converter
	policy   *bluemonday.Policy
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// similarityRequest is the JSON body sent to /v1/similarity.
type similarityRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

// similarityResponse is the JSON response from /v1/similarity.
type similarityResponse struct {
	Score float64 `json:"score"`
}

// Score compares two documents through the similarity service. On timeout
// or error it reuses the structural score for this pair, marked Derived —
// a degraded-but-useful estimate exists, so the run never hard-fails on
// this one network call. If structural is itself unavailable, the result
// is Unavailable.
func (c *Client) Score(ctx context.Context, original, candidate *page.Document, structural score.DimensionScore) score.DimensionScore {
	value, err := c.call(ctx, c.Digest(original), c.Digest(candidate))
	if err == nil {
		return score.DimensionScore{
			Dimension: score.Semantic,
			Value:     score.Clamp(value),
			Evidence:  "semantic similarity service",
		}
	}

	c.cfg.Logger.Warn("semantic: service call failed, falling back to structural",
		"error", err, "original", original.URL, "candidate", candidate.URL)

	if structural.Unavailable {
		return score.Unavailable(score.Semantic,
			fmt.Sprintf("semantic service unavailable and no structural fallback: %v", err))
	}
	return score.DimensionScore{
		Dimension: score.Semantic,
		Value:     structural.Value,
		Derived:   true,
		Evidence:  fmt.Sprintf("derived from structural score (semantic service unavailable: %v)", err),
	}
}

func (c *Client) call(ctx context.Context, textA, textB string) (float64, error) {
	if c.endpoint == "" {
		return 0, fmt.Errorf("no endpoint configured")
	}

	body, err := json.Marshal(similarityRequest{TextA: textA, TextB: textB})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/similarity"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var result similarityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return result.Score, nil
}

// Digest reduces a document to the text blob sent to the service:
// sanitized markup converted to markdown, followed by declared style and
// inline behavior text. If conversion fails or produces nothing, the
// plain visible text is used instead.
func (c *Client) Digest(doc *page.Document) string {
	content, err := c.conv.ConvertString(c.policy.Sanitize(doc.Markup), converter.WithDomain(doc.URL))
	if err != nil || strings.TrimSpace(content) == "" {
		content = doc.Text()
	}

	var sb strings.Builder
	sb.WriteString(content)
	if doc.Styles != "" {
		sb.WriteString("\n\n")
		sb.WriteString(doc.Styles)
	}
	if doc.Scripts != "" {
		sb.WriteString("\n\n")
		sb.WriteString(doc.Scripts)
	}

	digest := sb.String()
	if len(digest) > c.cfg.MaxChars {
		digest = digest[:c.cfg.MaxChars]
	}
	return digest
}
