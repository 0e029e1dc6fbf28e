// Package perplexity talks to the Perplexity chat completions API for
// web-grounded research. Responses carry citations alongside the content.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"artiquity/internal/modeljson"
)

const (
	defaultBaseURL        = "https://api.perplexity.ai/chat/completions"
	defaultModel          = "sonar"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Config captures the runtime settings required to talk to Perplexity.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps the Perplexity chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Perplexity client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Answer is the content of a completed research request plus its web sources.
type Answer struct {
	Content   string
	Citations []string
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("perplexity request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Snippet)
}

// CompleteJSON issues a chat completion request expected to yield JSON.
// It returns the raw payload produced by the model plus any citations.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (Answer, error) {
	var empty Answer
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return empty, errors.New("perplexity complete: system prompt required")
	}
	if userPrompt == "" {
		return empty, errors.New("perplexity complete: user prompt required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("perplexity complete: api key required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}
	return c.completionWithRetry(ctx, payload, "perplexity complete")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("perplexity health: api key required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: "Respond with {\"ok\":true}"},
		},
		Temperature: 0,
	}
	answer, err := c.completionWithRetry(ctx, payload, "perplexity health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := modeljson.Decode(answer.Content, &parsed); err != nil {
		return fmt.Errorf("perplexity health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("perplexity health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completionWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (Answer, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		completion, body, err := c.sendOnce(ctx, payload)
		if err == nil {
			content, finishReason := extractContent(completion)
			if content == "" {
				if len(completion.Choices) == 0 {
					err = fmt.Errorf("%s: empty choices", op)
				} else {
					err = &emptyContentError{
						Op:           op,
						FinishReason: finishReason,
						Snippet:      modeljson.Snippet(string(body)),
					}
				}
			} else {
				return Answer{Content: content, Citations: completion.Citations}, nil
			}
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return Answer{}, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return Answer{}, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return Answer{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func extractContent(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func (c *Client) sendOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("perplexity request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("perplexity request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("perplexity request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("perplexity request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("perplexity request: decode response: %w", err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("perplexity request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	if _, ok := err.(*emptyContentError); ok {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if c != nil {
		if c.retryBaseDelay >= 0 {
			base = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if base <= 0 {
		return 0
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("perplexity retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c != nil && c.sleeper != nil {
		c.sleeper(delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
