// Package fal wraps the FAL synchronous image generation API. Errors are
// returned to the caller directly; campaign rendering falls back to Gemini
// image output when FAL is unavailable.
package fal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://fal.run"
	defaultModel       = "fal-ai/flux/schnell"
	defaultHTTPTimeout = 60 * time.Second

	// Synchronous responses inline the image; cap downloads defensively.
	maxImageBytes = 32 << 20
)

// Client wraps the FAL image generation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the FAL client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeout bounds each generation request. Non-positive values keep the
// default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithModel overrides the default model route.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs a FAL API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.model == "" {
		client.model = defaultModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Request describes one image generation call.
type Request struct {
	Prompt    string
	ImageSize string // e.g. "landscape_16_9"; empty uses the model default
	Seed      int64  // 0 lets the model pick
}

// Image is a generated image with its raw bytes.
type Image struct {
	Data        []byte
	ContentType string
	URL         string
	Seed        int64
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size,omitempty"`
	Seed      int64  `json:"seed,omitempty"`
	NumImages int    `json:"num_images"`
}

type generateResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Seed   int64 `json:"seed"`
	Detail any   `json:"detail"`
}

// Generate renders one image for the prompt, downloading the result bytes.
func (c *Client) Generate(ctx context.Context, request Request) (Image, error) {
	var empty Image
	prompt := strings.TrimSpace(request.Prompt)
	if prompt == "" {
		return empty, errors.New("fal generate: prompt required")
	}
	if c.apiKey == "" {
		return empty, errors.New("fal generate: api key required")
	}

	endpoint, err := url.JoinPath(c.baseURL, c.model)
	if err != nil {
		return empty, fmt.Errorf("fal generate: build url: %w", err)
	}
	encoded, err := json.Marshal(generateRequest{
		Prompt:    prompt,
		ImageSize: request.ImageSize,
		Seed:      request.Seed,
		NumImages: 1,
	})
	if err != nil {
		return empty, fmt.Errorf("fal generate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("fal generate: request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("fal generate: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return empty, fmt.Errorf("fal generate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, fmt.Errorf("fal generate: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("fal generate: decode response: %w", err)
	}
	if len(decoded.Images) == 0 {
		return empty, errors.New("fal generate: response contains no images")
	}

	first := decoded.Images[0]
	image := Image{ContentType: first.ContentType, URL: first.URL, Seed: decoded.Seed}
	if image.ContentType == "" {
		image.ContentType = "image/png"
	}

	switch {
	case strings.HasPrefix(first.URL, "data:"):
		data, contentType, err := decodeDataURI(first.URL)
		if err != nil {
			return empty, fmt.Errorf("fal generate: %w", err)
		}
		image.Data = data
		if contentType != "" {
			image.ContentType = contentType
		}
		image.URL = ""
	case first.URL != "":
		data, err := c.download(ctx, first.URL)
		if err != nil {
			return empty, fmt.Errorf("fal generate: download image: %w", err)
		}
		image.Data = data
	default:
		return empty, errors.New("fal generate: image has no url")
	}

	return image, nil
}

// HealthCheck verifies the API key is present and the endpoint resolvable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return errors.New("fal health: api key required")
	}
	_, err := url.JoinPath(c.baseURL, c.model)
	if err != nil {
		return fmt.Errorf("fal health: %w", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image body")
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data uri")
	}
	contentType, _, _ := strings.Cut(meta, ";")
	if !strings.Contains(meta, "base64") {
		return nil, "", errors.New("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return data, contentType, nil
}
