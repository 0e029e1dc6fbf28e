package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"artiquity/internal/config"
)

const userAgent = "Artiquity-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyCampaignGenerated(ctx context.Context, brandName string, territories int) error
	NotifyProjectCompleted(ctx context.Context, brandName string) error
	NotifyLicenseEmbedded(ctx context.Context, fileName string, sidecar bool) error
	NotifyWatchProcessed(ctx context.Context, fileName string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		campaign: cfg.Notifications.Campaign,
		license:  cfg.Notifications.License,
		watch:    cfg.Notifications.Watch,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	campaign bool
	license  bool
	watch    bool
	errors   bool
}

func (n *ntfyService) NotifyCampaignGenerated(ctx context.Context, brandName string, territories int) error {
	if !n.campaign {
		return nil
	}
	brandName = strings.TrimSpace(brandName)
	data := payload{
		title:   "Artiquity - Campaign Ready",
		message: fmt.Sprintf("Campaign generated for %s with %d territories", brandName, territories),
		tags:    []string{"artiquity", "campaign", "generated"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProjectCompleted(ctx context.Context, brandName string) error {
	if !n.campaign {
		return nil
	}
	brandName = strings.TrimSpace(brandName)
	data := payload{
		title:    "Artiquity - Complete",
		message:  fmt.Sprintf("Project complete: %s", brandName),
		tags:     []string{"artiquity", "project", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLicenseEmbedded(ctx context.Context, fileName string, sidecar bool) error {
	if !n.license {
		return nil
	}
	fileName = strings.TrimSpace(fileName)
	message := fmt.Sprintf("License embedded: %s", fileName)
	if sidecar {
		message = fmt.Sprintf("License written as sidecar for %s", fileName)
	}
	data := payload{
		title:   "Artiquity - Licensed",
		message: message,
		tags:    []string{"artiquity", "license", "embedded"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWatchProcessed(ctx context.Context, fileName string) error {
	if !n.watch {
		return nil
	}
	fileName = strings.TrimSpace(fileName)
	data := payload{
		title:   "Artiquity - Watch Folder",
		message: fmt.Sprintf("Licensed from watch folder: %s", fileName),
		tags:    []string{"artiquity", "watch", "processed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Artiquity - Error",
		message:  builder.String(),
		tags:     []string{"artiquity", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Artiquity - Test",
		message:  "Notification system test",
		tags:     []string{"artiquity", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCampaignGenerated(context.Context, string, int) error { return nil }
func (noopService) NotifyProjectCompleted(context.Context, string) error       { return nil }
func (noopService) NotifyLicenseEmbedded(context.Context, string, bool) error  { return nil }
func (noopService) NotifyWatchProcessed(context.Context, string) error         { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
