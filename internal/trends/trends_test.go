package trends

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"artiquity/internal/capsule"
	"artiquity/internal/services/gemini"
	"artiquity/internal/services/perplexity"
	"artiquity/internal/store"
)

type stubText struct {
	content string
	err     error
	lastReq gemini.TextRequest
}

func (s *stubText) GenerateJSON(ctx context.Context, req gemini.TextRequest) (string, error) {
	s.lastReq = req
	return s.content, s.err
}

type stubResearcher struct {
	answer perplexity.Answer
	err    error
	calls  int
}

func (s *stubResearcher) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (perplexity.Answer, error) {
	s.calls++
	return s.answer, s.err
}

func testCapsule() *capsule.Capsule {
	return &capsule.Capsule{
		BrandName:   "Aurora Atelier",
		Essence:     "handmade ceramics",
		Values:      []string{"craft"},
		VoiceTraits: []string{"calm"},
	}
}

func setup(t *testing.T) (*store.Store, *store.Project) {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "artiquity.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	project, err := st.CreateProject(context.Background(), 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.TransitionProject(context.Background(), project.ID, store.StatusDraft, store.StatusCapsuleReady); err != nil {
		t.Fatal(err)
	}
	project.Status = store.StatusCapsuleReady
	return st, project
}

const dashboardJSON = `{
	"trends": [
		{"title": "Provenance storytelling", "signal_strength": "rising", "why_it_matters": "w", "activation_idea": "a"},
		{"title": "Slow content", "signal_strength": "steady", "why_it_matters": "w", "activation_idea": "a", "sources": ["https://example.com/own"]}
	]
}`

func TestGenerateWithResearch(t *testing.T) {
	st, project := setup(t)
	text := &stubText{content: dashboardJSON}
	research := &stubResearcher{answer: perplexity.Answer{
		Content:   `{"signals":[{"signal":"craft revival","evidence":"..."}]}`,
		Citations: []string{"https://example.com/source"},
	}}

	svc := NewService(text, research, st, "gemini-2.5-flash", nil)
	dashboard, err := svc.Generate(context.Background(), project, testCapsule())
	if err != nil {
		t.Fatal(err)
	}
	if dashboard.Fallback {
		t.Fatal("model path should not be flagged fallback")
	}
	if research.calls != 1 {
		t.Fatalf("research calls: %d", research.calls)
	}
	if !strings.Contains(text.lastReq.Prompt, "craft revival") {
		t.Fatal("research findings not forwarded to reshape prompt")
	}

	// Citations fill in only where the model supplied none.
	if got := dashboard.Trends[0].Sources; len(got) != 1 || got[0] != "https://example.com/source" {
		t.Fatalf("trend 0 sources: %v", got)
	}
	if got := dashboard.Trends[1].Sources; len(got) != 1 || got[0] != "https://example.com/own" {
		t.Fatalf("trend 1 sources: %v", got)
	}

	gotProject, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotProject.Status != store.StatusTrendsReady {
		t.Fatalf("project status: %s", gotProject.Status)
	}
}

func TestGenerateWithoutResearcher(t *testing.T) {
	st, project := setup(t)
	text := &stubText{content: dashboardJSON}

	svc := NewService(text, nil, st, "gemini-2.5-flash", nil)
	dashboard, err := svc.Generate(context.Background(), project, testCapsule())
	if err != nil {
		t.Fatal(err)
	}
	if dashboard.Fallback {
		t.Fatal("gemini-only path is not a fallback")
	}
	if !strings.Contains(text.lastReq.Prompt, "No web research is available") {
		t.Fatal("prompt should note missing research")
	}
}

func TestGenerateDegradesWhenResearchFails(t *testing.T) {
	st, project := setup(t)
	text := &stubText{content: dashboardJSON}
	research := &stubResearcher{err: errors.New("rate limited")}

	svc := NewService(text, research, st, "gemini-2.5-flash", nil)
	dashboard, err := svc.Generate(context.Background(), project, testCapsule())
	if err != nil {
		t.Fatal(err)
	}
	if dashboard.Fallback {
		t.Fatal("research failure alone should not force the canned fallback")
	}
}

func TestGenerateFallsBackWhenModelFails(t *testing.T) {
	st, project := setup(t)
	svc := NewService(&stubText{err: errors.New("unavailable")}, nil, st, "gemini-2.5-flash", nil)

	dashboard, err := svc.Generate(context.Background(), project, testCapsule())
	if err != nil {
		t.Fatal(err)
	}
	if !dashboard.Fallback {
		t.Fatal("expected canned fallback dashboard")
	}
	if len(dashboard.Trends) == 0 {
		t.Fatal("fallback dashboard should carry trends")
	}

	artifact, err := st.LatestArtifact(context.Background(), store.ArtifactDashboard, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !artifact.Fallback {
		t.Fatal("fallback flag not persisted")
	}
}

func TestGenerateRequiresCapsule(t *testing.T) {
	st, project := setup(t)
	svc := NewService(&stubText{content: dashboardJSON}, nil, st, "gemini-2.5-flash", nil)
	if _, err := svc.Generate(context.Background(), project, nil); err == nil {
		t.Fatal("expected error without capsule")
	}
}

func TestLatestRoundTrip(t *testing.T) {
	st, project := setup(t)
	svc := NewService(&stubText{content: dashboardJSON}, nil, st, "gemini-2.5-flash", nil)
	if _, err := svc.Generate(context.Background(), project, testCapsule()); err != nil {
		t.Fatal(err)
	}

	dashboard, err := svc.Latest(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dashboard.BrandName != "Aurora Atelier" || len(dashboard.Trends) != 2 {
		t.Fatalf("latest dashboard: %+v", dashboard)
	}
}
