package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"log/slog"

	"artiquity/internal/auth"
	"artiquity/internal/campaign"
	"artiquity/internal/capsule"
	"artiquity/internal/config"
	"artiquity/internal/licensing"
	"artiquity/internal/notifications"
	"artiquity/internal/server"
	"artiquity/internal/services/fal"
	"artiquity/internal/services/gemini"
	"artiquity/internal/services/perplexity"
	"artiquity/internal/store"
	"artiquity/internal/trends"
)

// buildServices wires the model clients and feature services from config.
func buildServices(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (server.Services, error) {
	geminiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		TextModel:      cfg.Gemini.TextModel,
		ImageModel:     cfg.Gemini.ImageModel,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	})
	if err != nil {
		return server.Services{}, fmt.Errorf("gemini client: %w", err)
	}

	health := map[string]server.HealthCheck{
		"gemini": geminiClient.HealthCheck,
	}

	var researcher trends.Researcher
	if cfg.Perplexity.Enabled {
		perplexityClient := perplexity.NewClient(perplexity.Config{
			APIKey:         cfg.Perplexity.APIKey,
			BaseURL:        cfg.Perplexity.BaseURL,
			Model:          cfg.Perplexity.Model,
			TimeoutSeconds: cfg.Perplexity.TimeoutSeconds,
		})
		researcher = perplexityClient
		health["perplexity"] = perplexityClient.HealthCheck
	}

	campaignOpts := []campaign.Option{
		campaign.WithImageFallback(geminiClient),
		campaign.WithImageConcurrency(cfg.Workflow.ImageConcurrency),
		campaign.WithLogger(logger),
	}
	if cfg.FAL.Enabled {
		falClient := fal.NewClient(cfg.FAL.APIKey,
			fal.WithBaseURL(cfg.FAL.BaseURL),
			fal.WithModel(cfg.FAL.Model),
			fal.WithTimeout(time.Duration(cfg.FAL.TimeoutSeconds)*time.Second))
		campaignOpts = append(campaignOpts, campaign.WithImageSource(falClient))
		health["fal"] = falClient.HealthCheck
	}

	services := server.Services{
		Capsules: capsule.NewService(geminiClient, st, cfg.Gemini.TextModel, logger),
		Trends:   trends.NewService(geminiClient, researcher, st, cfg.Gemini.TextModel, logger),
		Campaigns: campaign.NewService(geminiClient, st,
			filepath.Join(cfg.Paths.DataDir, "campaigns"), cfg.Gemini.ImageModel, campaignOpts...),
		Licensing: licensing.NewService(cfg, st, logger),
		Notifier:  notifications.NewService(cfg),
		Health:    health,
	}
	if cfg.Auth.Enabled {
		ttl := time.Duration(cfg.Auth.SessionTTLHours) * time.Hour
		services.Auth = auth.NewService(st, cfg.Auth.SessionSecret, ttl)
	}
	return services, nil
}
