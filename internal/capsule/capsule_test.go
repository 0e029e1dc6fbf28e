package capsule

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"artiquity/internal/services/gemini"
	"artiquity/internal/store"
)

type stubText struct {
	content string
	err     error
	calls   int
	lastReq gemini.TextRequest
}

func (s *stubText) GenerateJSON(ctx context.Context, req gemini.TextRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.content, s.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "artiquity.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newProject(t *testing.T, st *store.Store, inputsJSON string) *store.Project {
	t.Helper()
	project, err := st.CreateProject(context.Background(), 0, "Aurora Atelier", inputsJSON)
	if err != nil {
		t.Fatal(err)
	}
	return project
}

func TestGeneratePersistsAndAdvances(t *testing.T) {
	st := openTestStore(t)
	project := newProject(t, st, `{"brand_name":"Aurora Atelier","essence":"handmade ceramics"}`)

	text := &stubText{content: `{
		"brand_name": "Aurora Atelier",
		"essence": "Small-batch ceramics with wabi-sabi sensibility",
		"tagline": "Imperfect on purpose",
		"values": ["craft", "patience"],
		"audience": "slow-living enthusiasts",
		"voice_traits": ["calm"],
		"visual_vocabulary": ["speckled clay", "soft daylight"]
	}`}
	svc := NewService(text, st, "gemini-2.5-flash", nil)

	capsule, err := svc.Generate(context.Background(), project)
	if err != nil {
		t.Fatal(err)
	}
	if capsule.Fallback {
		t.Fatal("model path should not be flagged fallback")
	}
	if capsule.Tagline != "Imperfect on purpose" {
		t.Fatalf("capsule: %+v", capsule)
	}
	if text.lastReq.Schema == nil {
		t.Fatal("schema not attached to model request")
	}

	got, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusCapsuleReady {
		t.Fatalf("project status: %s", got.Status)
	}

	latest, err := svc.Latest(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.BrandName != "Aurora Atelier" {
		t.Fatalf("latest capsule: %+v", latest)
	}
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	st := openTestStore(t)
	project := newProject(t, st, `{"brand_name":"Aurora Atelier","essence":"handmade ceramics","values":["craft"]}`)

	svc := NewService(&stubText{err: errors.New("quota exceeded")}, st, "gemini-2.5-flash", nil)
	capsule, err := svc.Generate(context.Background(), project)
	if err != nil {
		t.Fatal(err)
	}
	if !capsule.Fallback {
		t.Fatal("expected fallback capsule")
	}
	if capsule.BrandName != "Aurora Atelier" || len(capsule.Values) != 1 {
		t.Fatalf("fallback capsule: %+v", capsule)
	}

	artifact, err := st.LatestArtifact(context.Background(), store.ArtifactCapsule, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !artifact.Fallback {
		t.Fatal("fallback flag not persisted")
	}
}

func TestGenerateFallsBackOnUnparseablePayload(t *testing.T) {
	st := openTestStore(t)
	project := newProject(t, st, `{"brand_name":"Aurora Atelier"}`)

	svc := NewService(&stubText{content: "I am sorry, I cannot help with that."}, st, "gemini-2.5-flash", nil)
	capsule, err := svc.Generate(context.Background(), project)
	if err != nil {
		t.Fatal(err)
	}
	if !capsule.Fallback {
		t.Fatal("expected fallback capsule")
	}
}

func TestGenerateRegenerationKeepsStatus(t *testing.T) {
	st := openTestStore(t)
	project := newProject(t, st, `{"brand_name":"Aurora Atelier"}`)

	text := &stubText{content: `{"brand_name":"Aurora Atelier","essence":"e","tagline":"t","values":[],"audience":"a","voice_traits":[],"visual_vocabulary":[]}`}
	svc := NewService(text, st, "gemini-2.5-flash", nil)

	if _, err := svc.Generate(context.Background(), project); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Generate(context.Background(), project); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusCapsuleReady {
		t.Fatalf("regeneration moved status: %s", got.Status)
	}
	if text.calls != 2 {
		t.Fatalf("model calls: %d", text.calls)
	}
}

func TestGenerateRequiresBrandName(t *testing.T) {
	st := openTestStore(t)
	project, err := st.CreateProject(context.Background(), 0, "", "")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(&stubText{content: "{}"}, st, "gemini-2.5-flash", nil)
	if _, err := svc.Generate(context.Background(), project); err == nil {
		t.Fatal("expected error for missing brand name")
	}
}
