package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"artiquity/internal/config"
	"artiquity/internal/notifications"
)

func newNtfyTest(t *testing.T) (notifications.Service, *[]*http.Request, *[]string) {
	t.Helper()
	var requests []*http.Request
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, r.Clone(context.Background()))
		bodies = append(bodies, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Campaign = true
	cfg.Notifications.License = true
	cfg.Notifications.Watch = true
	cfg.Notifications.Errors = true
	return notifications.NewService(&cfg), &requests, &bodies
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCampaignGenerated(context.Background(), "Aurora Atelier", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsEvents(t *testing.T) {
	svc, requests, bodies := newNtfyTest(t)
	ctx := context.Background()

	if err := svc.NotifyCampaignGenerated(ctx, "Aurora Atelier", 3); err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if err := svc.NotifyLicenseEmbedded(ctx, "cover.png", true); err != nil {
		t.Fatalf("license: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("model unavailable"), "trend research"); err != nil {
		t.Fatalf("error: %v", err)
	}

	if len(*requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(*requests))
	}
	if got := (*requests)[0].Header.Get("Title"); got != "Artiquity - Campaign Ready" {
		t.Errorf("campaign title = %q", got)
	}
	if got := (*bodies)[0]; got != "Campaign generated for Aurora Atelier with 3 territories" {
		t.Errorf("campaign message = %q", got)
	}
	if got := (*bodies)[1]; got != "License written as sidecar for cover.png" {
		t.Errorf("license message = %q", got)
	}
	if got := (*requests)[2].Header.Get("Priority"); got != "high" {
		t.Errorf("error priority = %q", got)
	}
	if got := (*bodies)[2]; got != "Error with trend research: model unavailable" {
		t.Errorf("error message = %q", got)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Campaign = false
	cfg.Notifications.License = false
	cfg.Notifications.Watch = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	ctx := context.Background()
	_ = svc.NotifyCampaignGenerated(ctx, "Aurora", 1)
	_ = svc.NotifyLicenseEmbedded(ctx, "a.jpg", false)
	_ = svc.NotifyWatchProcessed(ctx, "a.jpg")
	_ = svc.NotifyError(ctx, errors.New("boom"), "test")
	if calls != 0 {
		t.Errorf("disabled toggles still sent %d notifications", calls)
	}

	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if calls != 1 {
		t.Errorf("test notification calls = %d, want 1", calls)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
