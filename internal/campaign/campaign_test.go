package campaign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"artiquity/internal/capsule"
	"artiquity/internal/services/fal"
	"artiquity/internal/services/gemini"
	"artiquity/internal/store"
	"artiquity/internal/trends"
)

type stubText struct {
	content string
	err     error
	calls   int
	lastReq gemini.TextRequest
}

func (s *stubText) GenerateJSON(_ context.Context, req gemini.TextRequest) (string, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

type stubImages struct {
	mu      sync.Mutex
	err     error
	calls   int
	prompts []string
}

func (s *stubImages) Generate(_ context.Context, req fal.Request) (fal.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	if s.err != nil {
		return fal.Image{}, s.err
	}
	return fal.Image{Data: []byte("fal-" + req.Prompt), ContentType: "image/png"}, nil
}

type stubGeminiImages struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubGeminiImages) GenerateImage(_ context.Context, prompt string) (gemini.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return gemini.Image{}, s.err
	}
	return gemini.Image{Data: []byte("gemini-" + prompt), MIMEType: "image/jpeg"}, nil
}

const campaignJSON = `{
  "territories": [
    {
      "name": "Workshop light",
      "big_idea": "Every piece has a maker.",
      "assets": [
        {"headline": "Hands first", "body": "Meet the maker.", "channel": "instagram", "image_prompt": "hands shaping clay in morning light"},
        {"headline": "No two alike", "body": "Variation is the point.", "channel": "newsletter", "image_prompt": "row of slightly different ceramic cups"}
      ]
    },
    {
      "name": "Quiet launch",
      "big_idea": "Tell fewer people, better.",
      "assets": [
        {"headline": "For the list", "body": "First look for subscribers.", "channel": "email", "image_prompt": ""}
      ]
    }
  ]
}`

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "artiquity.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func setup(t *testing.T, st *store.Store) (*store.Project, *capsule.Capsule, *trends.Dashboard) {
	t.Helper()
	project, err := st.CreateProject(context.Background(), 0, "Aurora Atelier", "{}")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, step := range [][2]store.ProjectStatus{
		{store.StatusDraft, store.StatusCapsuleReady},
		{store.StatusCapsuleReady, store.StatusTrendsReady},
	} {
		if err := st.TransitionProject(context.Background(), project.ID, step[0], step[1]); err != nil {
			t.Fatalf("advance project: %v", err)
		}
	}
	project.Status = store.StatusTrendsReady
	cap := &capsule.Capsule{
		BrandName:   "Aurora Atelier",
		Essence:     "Slow-made ceramics",
		VoiceTraits: []string{"warm", "direct"},
	}
	dashboard := &trends.Dashboard{
		BrandName: "Aurora Atelier",
		Trends: []trends.Trend{
			{Title: "Provenance storytelling", SignalStrength: "rising", ActivationIdea: "Show the studio"},
		},
	}
	return project, cap, dashboard
}

func TestGenerateRendersImagesAndAdvances(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	text := &stubText{content: campaignJSON}
	images := &stubImages{}
	dir := t.TempDir()

	svc := NewService(text, st, dir, "test-model", WithImageSource(images))
	camp, err := svc.Generate(context.Background(), project, cap, dashboard)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if camp.Fallback {
		t.Fatal("expected model payload, got fallback")
	}
	if len(camp.Territories) != 2 {
		t.Fatalf("territories = %d, want 2", len(camp.Territories))
	}
	if !strings.Contains(text.lastReq.Prompt, "Provenance storytelling") {
		t.Error("prompt missing trend context")
	}
	if images.calls != 2 {
		t.Fatalf("image renders = %d, want 2", images.calls)
	}
	for _, asset := range camp.Territories[0].Assets {
		if asset.ImageRef == "" {
			t.Fatalf("asset %q missing image ref", asset.Headline)
		}
		data, err := os.ReadFile(asset.ImageRef)
		if err != nil {
			t.Fatalf("read rendered image: %v", err)
		}
		if !strings.HasPrefix(string(data), "fal-") {
			t.Errorf("unexpected image bytes %q", data)
		}
	}
	// Empty image prompt renders nothing.
	if got := camp.Territories[1].Assets[0].ImageRef; got != "" {
		t.Errorf("asset without prompt got image ref %q", got)
	}

	fresh, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if fresh.Status != store.StatusCampaignReady {
		t.Errorf("status = %s, want %s", fresh.Status, store.StatusCampaignReady)
	}

	stored, err := svc.Latest(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if stored.Territories[0].Assets[0].ImageRef == "" {
		t.Error("persisted payload lost image refs")
	}
}

func TestGenerateFallsBackToGeminiImages(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	images := &stubImages{err: errors.New("fal down")}
	backup := &stubGeminiImages{}

	svc := NewService(&stubText{content: campaignJSON}, st, t.TempDir(), "test-model",
		WithImageSource(images), WithImageFallback(backup))
	camp, err := svc.Generate(context.Background(), project, cap, dashboard)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if backup.calls != 2 {
		t.Fatalf("fallback renders = %d, want 2", backup.calls)
	}
	ref := camp.Territories[0].Assets[0].ImageRef
	if !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("image ref %q should carry fallback renderer extension", ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("read rendered image: %v", err)
	}
	if !strings.HasPrefix(string(data), "gemini-") {
		t.Errorf("unexpected image bytes %q", data)
	}
}

func TestGenerateToleratesTotalImageFailure(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	images := &stubImages{err: errors.New("fal down")}
	backup := &stubGeminiImages{err: errors.New("gemini down")}

	svc := NewService(&stubText{content: campaignJSON}, st, t.TempDir(), "test-model",
		WithImageSource(images), WithImageFallback(backup))
	camp, err := svc.Generate(context.Background(), project, cap, dashboard)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if camp.Fallback {
		t.Error("image failures must not flag the campaign as fallback")
	}
	for _, territory := range camp.Territories {
		for _, asset := range territory.Assets {
			if asset.ImageRef != "" {
				t.Errorf("asset %q has image ref despite render failure", asset.Headline)
			}
		}
	}

	fresh, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if fresh.Status != store.StatusCampaignReady {
		t.Errorf("status = %s, want %s", fresh.Status, store.StatusCampaignReady)
	}
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	images := &stubImages{}

	svc := NewService(&stubText{err: errors.New("quota exceeded")}, st, t.TempDir(), "test-model",
		WithImageSource(images))
	camp, err := svc.Generate(context.Background(), project, cap, dashboard)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !camp.Fallback {
		t.Fatal("expected fallback campaign")
	}
	if images.calls != 0 {
		t.Errorf("fallback campaign rendered %d images, want 0", images.calls)
	}

	artifact, err := st.LatestArtifact(context.Background(), store.ArtifactCampaign, project.ID)
	if err != nil {
		t.Fatalf("latest artifact: %v", err)
	}
	if !artifact.Fallback {
		t.Error("fallback flag not persisted")
	}
}

func TestGenerateBoundsConcurrency(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	var (
		mu      sync.Mutex
		active  int
		peak    int
		started = make(chan struct{}, 16)
	)
	gate := &gatedImages{
		enter: func() {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			started <- struct{}{}
		},
		exit: func() {
			mu.Lock()
			active--
			mu.Unlock()
		},
	}

	svc := NewService(&stubText{content: campaignJSON}, st, t.TempDir(), "test-model",
		WithImageSource(gate), WithImageConcurrency(1))
	if _, err := svc.Generate(context.Background(), project, cap, dashboard); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if peak > 1 {
		t.Errorf("peak concurrent renders = %d, want at most 1", peak)
	}
	if len(started) != 2 {
		t.Errorf("renders started = %d, want 2", len(started))
	}
}

type gatedImages struct {
	enter func()
	exit  func()
}

func (g *gatedImages) Generate(_ context.Context, req fal.Request) (fal.Image, error) {
	g.enter()
	defer g.exit()
	return fal.Image{Data: []byte(req.Prompt), ContentType: "image/png"}, nil
}

func TestGenerateRequiresCapsuleAndDashboard(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	svc := NewService(&stubText{content: campaignJSON}, st, t.TempDir(), "test-model")

	if _, err := svc.Generate(context.Background(), project, nil, dashboard); err == nil {
		t.Error("expected error without capsule")
	}
	if _, err := svc.Generate(context.Background(), project, cap, nil); err == nil {
		t.Error("expected error without dashboard")
	}
}

func TestGenerateRegenerationKeepsStatus(t *testing.T) {
	st := openTestStore(t)
	project, cap, dashboard := setup(t, st)
	svc := NewService(&stubText{content: campaignJSON}, st, t.TempDir(), "test-model")

	if _, err := svc.Generate(context.Background(), project, cap, dashboard); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := svc.Generate(context.Background(), project, cap, dashboard); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	fresh, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if fresh.Status != store.StatusCampaignReady {
		t.Errorf("status = %s, want %s", fresh.Status, store.StatusCampaignReady)
	}
}
