// CLAUDE:SUMMARY HTTP client for the external vision comparator service.
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ClientConfig configures the comparator client.
type ClientConfig struct {
	// Endpoint is the base URL of the image comparator service.
	Endpoint string `yaml:"endpoint"`

	// Timeout for one comparison call. Vision models are slow; default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *ClientConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client implements Comparator against an HTTP vision service.
type Client struct {
	endpoint string
	client   *http.Client
	cfg      ClientConfig
}

// NewClient creates a comparator Client.
func NewClient(cfg ClientConfig) *Client {
	cfg.defaults()
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
	}
}

// compareRequest is the JSON body sent to /v1/compare.
type compareRequest struct {
	ImageA string `json:"image_a"` // base64 PNG
	ImageB string `json:"image_b"` // base64 PNG
	Rubric string `json:"rubric"`
}

// compareResponse is the JSON response from /v1/compare.
type compareResponse struct {
	Score    float64 `json:"score"`
	Evidence string  `json:"evidence"`
}

// Compare submits two PNG images and the rubric, returning the service's
// judgment.
func (c *Client) Compare(ctx context.Context, imageA, imageB []byte, rubric string) (Judgment, error) {
	if c.endpoint == "" {
		return Judgment{}, fmt.Errorf("visual: no comparator endpoint configured")
	}

	body, err := json.Marshal(compareRequest{
		ImageA: base64.StdEncoding.EncodeToString(imageA),
		ImageB: base64.StdEncoding.EncodeToString(imageB),
		Rubric: rubric,
	})
	if err != nil {
		return Judgment{}, fmt.Errorf("visual: marshal request: %w", err)
	}

	url := c.endpoint + "/v1/compare"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Judgment{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Judgment{}, fmt.Errorf("visual: HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Judgment{}, fmt.Errorf("visual: HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var result compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Judgment{}, fmt.Errorf("visual: decode response: %w", err)
	}
	return Judgment{Score: result.Score, Evidence: result.Evidence}, nil
}
