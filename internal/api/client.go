package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned when the daemon responds with a non-success code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("daemon returned status %d", e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Code)
}

// Client talks to a running artiquityd over its HTTP API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpc = h }
}

// NewClient builds a client for the daemon listening at baseURL. A bare
// host:port is accepted and normalized to http.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		httpc:   &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

// Register creates an account on the daemon.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*AuthResponse, error) {
	req := map[string]string{"email": email, "password": password, "displayName": displayName}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a session token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Logout revokes the current session token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the account behind the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// CreateProject starts a new wizard project.
func (c *Client) CreateProject(ctx context.Context, brandName string, inputs json.RawMessage) (*Project, error) {
	req := struct {
		BrandName string          `json:"brandName"`
		Inputs    json.RawMessage `json:"inputs,omitempty"`
	}{BrandName: brandName, Inputs: inputs}
	var resp ProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// Projects lists the caller's projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp ProjectListResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// Project fetches a single project by ID.
func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var resp ProjectResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// UpdateInputs replaces a project's brand name and wizard inputs.
func (c *Client) UpdateInputs(ctx context.Context, id, brandName string, inputs json.RawMessage) (*Project, error) {
	req := struct {
		BrandName string          `json:"brandName"`
		Inputs    json.RawMessage `json:"inputs,omitempty"`
	}{BrandName: brandName, Inputs: inputs}
	var resp ProjectResponse
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(id)+"/inputs", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// DeleteProject removes a project and its artifacts.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// GenerateCapsule runs the identity capsule step and returns the artifact.
func (c *Client) GenerateCapsule(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodPost, id, "capsule")
}

// Capsule fetches the latest identity capsule artifact.
func (c *Client) Capsule(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodGet, id, "capsule")
}

// GenerateDashboard runs the synchronicity dashboard step.
func (c *Client) GenerateDashboard(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodPost, id, "dashboard")
}

// Dashboard fetches the latest trend dashboard artifact.
func (c *Client) Dashboard(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodGet, id, "dashboard")
}

// GenerateCampaign runs the campaign generation step.
func (c *Client) GenerateCampaign(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodPost, id, "campaign")
}

// Campaign fetches the latest campaign artifact.
func (c *Client) Campaign(ctx context.Context, id string) (*Artifact, error) {
	return c.stepArtifact(ctx, http.MethodGet, id, "campaign")
}

func (c *Client) stepArtifact(ctx context.Context, method, id, step string) (*Artifact, error) {
	var resp ArtifactResponse
	path := "/api/projects/" + url.PathEscape(id) + "/" + step
	if err := c.do(ctx, method, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Artifact, nil
}

// CompleteProject marks a campaign-ready project as completed.
func (c *Client) CompleteProject(ctx context.Context, id string) (*Project, error) {
	var resp ProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/complete", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// RetryProject resets a failed project back to draft.
func (c *Client) RetryProject(ctx context.Context, id string) (*Project, error) {
	var resp ProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/retry", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// Licenses lists recorded license embeds, most recent first.
func (c *Client) Licenses(ctx context.Context, limit int) ([]License, error) {
	path := "/api/licenses"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp LicenseListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Licenses, nil
}

// EmbedResult carries the licensed bytes returned by the embed endpoint.
type EmbedResult struct {
	Data      []byte
	FileName  string
	MIMEType  string
	LicenseID string
	Digest    string
	Sidecar   bool
}

// Embed uploads a file for license embedding and returns the licensed bytes.
// licenseJSON may be empty to use the daemon's configured defaults.
func (c *Client) Embed(ctx context.Context, fileName string, data []byte, licenseJSON string) (*EmbedResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if strings.TrimSpace(licenseJSON) != "" {
		if err := writer.WriteField("license", licenseJSON); err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/license/embed", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read licensed file: %w", err)
	}
	sidecar, _ := strconv.ParseBool(resp.Header.Get("X-License-Sidecar"))
	result := &EmbedResult{
		Data:      payload,
		FileName:  fileName,
		MIMEType:  resp.Header.Get("Content-Type"),
		LicenseID: resp.Header.Get("X-License-Id"),
		Digest:    resp.Header.Get("X-License-Digest"),
		Sidecar:   sidecar,
	}
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			result.FileName = params["filename"]
		}
	}
	return result, nil
}

// Verify uploads a file and reports whether it carries a valid license.
func (c *Client) Verify(ctx context.Context, fileName string, data []byte) (*VerifyResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/license/verify", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	var out VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Status reports daemon runtime information.
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	var resp ServerStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the configured model backends. An unhealthy daemon still
// returns a populated report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()
	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
