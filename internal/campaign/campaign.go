// Package campaign generates campaign territories and assets from a
// project's capsule and dashboard, then renders hero images through FAL with
// Gemini image fallback.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"google.golang.org/genai"

	"artiquity/internal/capsule"
	"artiquity/internal/fileutil"
	"artiquity/internal/logging"
	"artiquity/internal/modeljson"
	"artiquity/internal/services/fal"
	"artiquity/internal/services/gemini"
	"artiquity/internal/store"
	"artiquity/internal/trends"
)

const defaultImageConcurrency = 2

// ImageSource renders images from prompts. *fal.Client satisfies it.
type ImageSource interface {
	Generate(ctx context.Context, request fal.Request) (fal.Image, error)
}

// Asset is one concrete campaign deliverable.
type Asset struct {
	Headline    string `json:"headline"`
	Body        string `json:"body"`
	Channel     string `json:"channel"`
	ImagePrompt string `json:"image_prompt"`
	ImageRef    string `json:"image_ref,omitempty"` // rendered file path; empty when rendering failed
}

// Territory groups assets under one creative direction.
type Territory struct {
	Name    string  `json:"name"`
	BigIdea string  `json:"big_idea"`
	Assets  []Asset `json:"assets"`
}

// Campaign is the generated campaign payload.
type Campaign struct {
	BrandName   string      `json:"brand_name"`
	Territories []Territory `json:"territories"`
	Fallback    bool        `json:"fallback,omitempty"`
}

// Service generates and persists campaigns.
type Service struct {
	text        gemini.TextGenerator
	images      ImageSource
	imageBackup gemini.ImageGenerator
	store       *store.Store
	outputDir   string
	concurrency int
	model       string
	logger      *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithImageSource sets the primary image renderer.
func WithImageSource(images ImageSource) Option {
	return func(s *Service) { s.images = images }
}

// WithImageFallback sets the renderer used when the primary fails.
func WithImageFallback(backup gemini.ImageGenerator) Option {
	return func(s *Service) { s.imageBackup = backup }
}

// WithImageConcurrency bounds the image rendering fan-out.
func WithImageConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger attaches a logger to the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logging.WithComponent(logger, "campaign")
		}
	}
}

// NewService constructs a campaign service writing rendered images under
// outputDir.
func NewService(text gemini.TextGenerator, st *store.Store, outputDir, model string, opts ...Option) *Service {
	s := &Service{
		text:        text,
		store:       st,
		outputDir:   outputDir,
		concurrency: defaultImageConcurrency,
		model:       model,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a campaign for the project, renders its images, persists
// the result, and advances the project status when this is the first
// campaign. Partial image failure never fails the campaign.
func (s *Service) Generate(ctx context.Context, project *store.Project, cap *capsule.Capsule, dashboard *trends.Dashboard) (*Campaign, error) {
	if cap == nil {
		return nil, fmt.Errorf("campaign: project %s has no capsule", project.ID)
	}
	if dashboard == nil {
		return nil, fmt.Errorf("campaign: project %s has no dashboard", project.ID)
	}

	camp := s.generateFromModel(ctx, cap, dashboard)
	camp.BrandName = cap.BrandName

	s.renderImages(ctx, project.ID, camp)

	payload, err := json.Marshal(camp)
	if err != nil {
		return nil, fmt.Errorf("campaign: encode payload: %w", err)
	}
	artifact := &store.Artifact{
		ProjectID:   project.ID,
		PayloadJSON: string(payload),
		Model:       s.model,
		Fallback:    camp.Fallback,
	}
	if err := s.store.SaveArtifact(ctx, store.ArtifactCampaign, artifact); err != nil {
		return nil, err
	}
	if project.Status == store.StatusTrendsReady {
		if err := s.store.TransitionProject(ctx, project.ID, store.StatusTrendsReady, store.StatusCampaignReady); err != nil {
			return nil, err
		}
		project.Status = store.StatusCampaignReady
	}

	s.logger.Info("campaign generated",
		logging.String("project_id", project.ID),
		logging.Int("territories", len(camp.Territories)),
		logging.Bool("fallback", camp.Fallback))
	return camp, nil
}

// Latest returns the most recent campaign persisted for a project.
func (s *Service) Latest(ctx context.Context, projectID string) (*Campaign, error) {
	artifact, err := s.store.LatestArtifact(ctx, store.ArtifactCampaign, projectID)
	if err != nil {
		return nil, err
	}
	var camp Campaign
	if err := json.Unmarshal([]byte(artifact.PayloadJSON), &camp); err != nil {
		return nil, fmt.Errorf("campaign: decode stored payload: %w", err)
	}
	return &camp, nil
}

func (s *Service) generateFromModel(ctx context.Context, cap *capsule.Capsule, dashboard *trends.Dashboard) *Campaign {
	content, err := s.text.GenerateJSON(ctx, gemini.TextRequest{
		System: systemPrompt,
		Prompt: buildPrompt(cap, dashboard),
		Schema: responseSchema(),
	})
	if err != nil {
		s.logger.Warn("campaign model call failed, using fallback", logging.Error(err))
		return fallbackCampaign(cap)
	}

	var camp Campaign
	if err := modeljson.Decode(content, &camp); err != nil {
		s.logger.Warn("campaign payload unparseable, using fallback", logging.Error(err))
		return fallbackCampaign(cap)
	}
	if len(camp.Territories) == 0 {
		return fallbackCampaign(cap)
	}
	return &camp
}

type renderJob struct {
	territory int
	asset     int
	prompt    string
}

// renderImages fans the asset image prompts out over a bounded worker pool.
// Each worker tries the primary source first, then the fallback renderer.
// Failed renders leave the asset's ImageRef empty.
func (s *Service) renderImages(ctx context.Context, projectID string, camp *Campaign) {
	if s.images == nil && s.imageBackup == nil {
		return
	}

	var jobs []renderJob
	for ti := range camp.Territories {
		for ai := range camp.Territories[ti].Assets {
			prompt := strings.TrimSpace(camp.Territories[ti].Assets[ai].ImagePrompt)
			if prompt == "" {
				continue
			}
			jobs = append(jobs, renderJob{territory: ti, asset: ai, prompt: prompt})
		}
	}
	if len(jobs) == 0 {
		return
	}

	dir := filepath.Join(s.outputDir, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("image output dir unavailable, skipping renders", logging.Error(err))
		return
	}

	workers := s.concurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan renderJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				ref := s.renderOne(ctx, dir, job)
				camp.Territories[job.territory].Assets[job.asset].ImageRef = ref
			}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
}

func (s *Service) renderOne(ctx context.Context, dir string, job renderJob) string {
	data, ext := s.renderBytes(ctx, job.prompt)
	if len(data) == 0 {
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("territory-%d-asset-%d%s", job.territory+1, job.asset+1, ext))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		s.logger.Warn("write rendered image failed", logging.String("path", path), logging.Error(err))
		return ""
	}
	return path
}

func (s *Service) renderBytes(ctx context.Context, prompt string) ([]byte, string) {
	if s.images != nil {
		image, err := s.images.Generate(ctx, fal.Request{Prompt: prompt})
		if err == nil {
			return image.Data, extensionFor(image.ContentType)
		}
		s.logger.Warn("primary image render failed, trying fallback", logging.Error(err))
	}
	if s.imageBackup != nil {
		image, err := s.imageBackup.GenerateImage(ctx, prompt)
		if err == nil {
			return image.Data, extensionFor(image.MIMEType)
		}
		s.logger.Warn("fallback image render failed", logging.Error(err))
	}
	return nil, ""
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// fallbackCampaign is the canned payload returned when the model is
// unavailable. No image prompts, so nothing is rendered for it.
func fallbackCampaign(cap *capsule.Capsule) *Campaign {
	return &Campaign{
		Territories: []Territory{
			{
				Name:    "The maker's hands",
				BigIdea: "Show the process, not just the product.",
				Assets: []Asset{
					{
						Headline: "Made slowly, on purpose",
						Body:     "A look inside how " + cap.BrandName + " makes one piece at a time.",
						Channel:  "instagram",
					},
					{
						Headline: "Why we don't batch",
						Body:     "The case for making fewer, better things.",
						Channel:  "newsletter",
					},
				},
			},
		},
		Fallback: true,
	}
}

const systemPrompt = `You are a creative director. Turn the brand identity and trend dashboard into campaign territories with concrete assets. Respond with JSON only.`

func buildPrompt(cap *capsule.Capsule, dashboard *trends.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\nEssence: %s\n", cap.BrandName, cap.Essence)
	if len(cap.VoiceTraits) > 0 {
		fmt.Fprintf(&b, "Voice: %s\n", strings.Join(cap.VoiceTraits, ", "))
	}
	if len(cap.VisualVocabulary) > 0 {
		fmt.Fprintf(&b, "Visual vocabulary: %s\n", strings.Join(cap.VisualVocabulary, ", "))
	}
	b.WriteString("\nTrends to activate:\n")
	for _, trend := range dashboard.Trends {
		fmt.Fprintf(&b, "- %s (%s): %s\n", trend.Title, trend.SignalStrength, trend.ActivationIdea)
	}
	b.WriteString("\nProduce 2 to 3 campaign territories. Each territory needs a name, a big idea, and 2 to 4 assets with headline, body copy, channel, and a hero image prompt written for a photorealistic image model.")
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"territories": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":     {Type: genai.TypeString},
						"big_idea": {Type: genai.TypeString},
						"assets": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"headline":     {Type: genai.TypeString},
									"body":         {Type: genai.TypeString},
									"channel":      {Type: genai.TypeString},
									"image_prompt": {Type: genai.TypeString},
								},
								Required: []string{"headline", "body", "channel", "image_prompt"},
							},
						},
					},
					Required: []string{"name", "big_idea", "assets"},
				},
			},
		},
		Required: []string{"territories"},
	}
}
