package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenPath(filepath.Join(t.TempDir(), "artiquity.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProjectLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", `{"essence":"handmade ceramics"}`)
	if err != nil {
		t.Fatal(err)
	}
	if project.Status != StatusDraft {
		t.Fatalf("new project status: %s", project.Status)
	}

	steps := []struct {
		from ProjectStatus
		to   ProjectStatus
	}{
		{StatusDraft, StatusCapsuleReady},
		{StatusCapsuleReady, StatusTrendsReady},
		{StatusTrendsReady, StatusCampaignReady},
		{StatusCampaignReady, StatusCompleted},
	}
	for _, step := range steps {
		if err := s.TransitionProject(ctx, project.ID, step.from, step.to); err != nil {
			t.Fatalf("transition %s -> %s: %v", step.from, step.to, err)
		}
	}

	got, err := s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("final status: %s", got.Status)
	}
}

func TestProjectTransitionRejectsSkips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}

	err = s.TransitionProject(ctx, project.ID, StatusDraft, StatusCampaignReady)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Legal step declared against the wrong current status.
	err = s.TransitionProject(ctx, project.ID, StatusCapsuleReady, StatusTrendsReady)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFailAndRetryProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.TransitionProject(ctx, project.ID, StatusDraft, StatusCapsuleReady); err != nil {
		t.Fatal(err)
	}
	if err := s.FailProject(ctx, project.ID, "model call failed"); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.ErrorMessage != "model call failed" {
		t.Fatalf("failed state: %s %q", got.Status, got.ErrorMessage)
	}

	if err := s.RetryProject(ctx, project.ID); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusDraft || got.ErrorMessage != "" {
		t.Fatalf("retried state: %s %q", got.Status, got.ErrorMessage)
	}
}

func TestFailCompletedProjectRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range [][2]ProjectStatus{
		{StatusDraft, StatusCapsuleReady},
		{StatusCapsuleReady, StatusTrendsReady},
		{StatusTrendsReady, StatusCampaignReady},
		{StatusCampaignReady, StatusCompleted},
	} {
		if err := s.TransitionProject(ctx, project.ID, step[0], step[1]); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.FailProject(ctx, project.ID, "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestArtifactLatestWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}

	first := &Artifact{ProjectID: project.ID, PayloadJSON: `{"v":1}`, Model: "gemini-2.5-flash"}
	if err := s.SaveArtifact(ctx, ArtifactCapsule, first); err != nil {
		t.Fatal(err)
	}
	second := &Artifact{ProjectID: project.ID, PayloadJSON: `{"v":2}`, Model: "gemini-2.5-flash", Fallback: true}
	if err := s.SaveArtifact(ctx, ArtifactCapsule, second); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestArtifact(ctx, ArtifactCapsule, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.PayloadJSON != `{"v":2}` || !latest.Fallback {
		t.Fatalf("latest artifact: %+v", latest)
	}

	if _, err := s.LatestArtifact(ctx, ArtifactDashboard, project.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveArtifact(ctx, ArtifactCapsule, &Artifact{ProjectID: project.ID, PayloadJSON: "{}"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProject(ctx, project.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProject(ctx, project.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LatestArtifact(ctx, ArtifactCapsule, project.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cascade delete, got %v", err)
	}
}

func TestUsersUniqueEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "Maker@Example.com", "hash", "Maker")
	if err != nil {
		t.Fatal(err)
	}
	if user.Email != "maker@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}

	if _, err := s.CreateUser(ctx, "maker@example.com", "hash2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "MAKER@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != user.ID {
		t.Fatalf("lookup mismatch: %d != %d", got.ID, user.ID)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "maker@example.com", "hash", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.CreateSession(ctx, "session-1", user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	valid, err := s.SessionValid(ctx, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Fatal("session should be valid")
	}

	if err := s.RevokeSession(ctx, "session-1"); err != nil {
		t.Fatal(err)
	}
	valid, err = s.SessionValid(ctx, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Fatal("revoked session should be invalid")
	}

	if err := s.CreateSession(ctx, "session-2", user.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	valid, err = s.SessionValid(ctx, "session-2")
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Fatal("expired session should be invalid")
	}

	pruned, err := s.PruneSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("pruned %d sessions, want 1", pruned)
	}
}

func TestRecordLicenseUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := &LicenseRecord{
		ID:          "lic-1",
		FileName:    "photo.jpg",
		Format:      "jpeg",
		Digest:      "abc",
		PayloadJSON: "{}",
		EmbeddedAt:  time.Now().UTC(),
	}
	if err := s.RecordLicense(ctx, record); err != nil {
		t.Fatal(err)
	}

	record.Sidecar = true
	record.Digest = "def"
	if err := s.RecordLicense(ctx, record); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetLicense(ctx, "lic-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Digest != "def" || !got.Sidecar {
		t.Fatalf("upsert did not apply: %+v", got)
	}

	records, err := s.ListLicenses(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("license count: %d", len(records))
	}
}

func TestSummarize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateProject(ctx, 0, "Aurora Atelier", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProject(ctx, 0, "Night Drive Records", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.FailProject(ctx, first.ID, "boom"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordLicense(ctx, &LicenseRecord{
		ID: "lic-1", FileName: "a.png", Format: "png", Digest: "x", PayloadJSON: "{}", EmbeddedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Summarize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Projects != 2 || summary.Failed != 1 || summary.Licenses != 1 {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.ByStatus[StatusDraft] != 1 {
		t.Fatalf("draft count: %d", summary.ByStatus[StatusDraft])
	}
}

func TestSchemaVersionGuard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artiquity.db")

	s, err := OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
