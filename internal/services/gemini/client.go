// Package gemini wraps the Google GenAI SDK for structured text and image
// generation. Feature packages depend on the TextGenerator and ImageGenerator
// interfaces so model calls can be stubbed in tests.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey         string
	BaseURL        string
	TextModel      string
	ImageModel     string
	TimeoutSeconds int
}

// TextRequest describes one structured generation call.
type TextRequest struct {
	System string
	Prompt string
	Schema *genai.Schema
}

// Image is a generated image with its raw bytes.
type Image struct {
	Data     []byte
	MIMEType string
}

// TextGenerator produces JSON payloads conforming to a response schema.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, req TextRequest) (string, error)
}

// ImageGenerator renders an image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

// Client wraps a genai.Client with the configured model routes.
type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

var _ TextGenerator = (*Client)(nil)
var _ ImageGenerator = (*Client)(nil)

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.HTTPOptions.BaseURL = base
	}
	if cfg.TimeoutSeconds > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	textModel := strings.TrimSpace(cfg.TextModel)
	if textModel == "" {
		textModel = defaultTextModel
	}
	imageModel := strings.TrimSpace(cfg.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	return &Client{client: client, textModel: textModel, imageModel: imageModel}, nil
}

// TextModel returns the configured text model route.
func (c *Client) TextModel() string {
	return c.textModel
}

// GenerateJSON issues a schema-constrained generation call and returns the
// raw JSON payload produced by the model.
func (c *Client) GenerateJSON(ctx context.Context, req TextRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("gemini generate: prompt required")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
		Temperature:      genai.Ptr[float32](0.7),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	payload := extractText(resp)
	if payload == "" {
		return "", errors.New("gemini generate: empty response")
	}
	return payload, nil
}

// GenerateImage renders one image for the prompt, returning inline bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	var empty Image
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return empty, errors.New("gemini image: prompt required")
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, contents, config)
	if err != nil {
		return empty, fmt.Errorf("gemini image: %w", err)
	}

	image := extractInlineImage(resp)
	if image == nil {
		return empty, errors.New("gemini image: response contains no image data")
	}
	return *image, nil
}

// HealthCheck verifies the API key by issuing a minimal generation call.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GenerateJSON(ctx, TextRequest{
		Prompt: `Respond with {"ok":true}`,
		Schema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"ok": {Type: genai.TypeBoolean},
			},
			Required: []string{"ok"},
		},
	})
	return err
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			builder.WriteString(part.Text)
		}
		if builder.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(builder.String())
}

func extractInlineImage(resp *genai.GenerateContentResponse) *Image {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &Image{Data: part.InlineData.Data, MIMEType: mimeType}
		}
	}
	return nil
}
