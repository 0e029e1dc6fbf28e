package api

import (
	"testing"
	"time"

	"artiquity/internal/store"
)

func TestFromProject(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	p := &store.Project{
		ID:         "p-1",
		BrandName:  "Aurora Atelier",
		InputsJSON: `{"essence":"slow-made"}`,
		Status:     store.StatusDraft,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	out := FromProject(p)
	if out.Status != "draft" {
		t.Errorf("status = %q", out.Status)
	}
	if string(out.Inputs) != p.InputsJSON {
		t.Errorf("inputs = %s", out.Inputs)
	}
	if out.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Errorf("createdAt = %q", out.CreatedAt)
	}
}

func TestFromProjectDropsInvalidInputs(t *testing.T) {
	out := FromProject(&store.Project{ID: "p-1", InputsJSON: "{broken"})
	if out.Inputs != nil {
		t.Errorf("inputs = %s, want nil for invalid JSON", out.Inputs)
	}
	if out.CreatedAt != "" {
		t.Errorf("zero time formatted as %q", out.CreatedAt)
	}
}

func TestFromUserOmitsCredentials(t *testing.T) {
	out := FromUser(&store.User{ID: 7, Email: "a@b.com", PasswordHash: "secret"})
	if out.Email != "a@b.com" || out.ID != 7 {
		t.Errorf("user = %+v", out)
	}
}

func TestFromSummary(t *testing.T) {
	out := FromSummary(store.Summary{
		Projects:  3,
		ByStatus:  map[store.ProjectStatus]int{store.StatusDraft: 2, store.StatusCompleted: 1},
		Completed: 1,
		Licenses:  5,
	})
	if out.ByStatus["draft"] != 2 || out.ByStatus["completed"] != 1 {
		t.Errorf("byStatus = %v", out.ByStatus)
	}
	if out.Licenses != 5 {
		t.Errorf("licenses = %d", out.Licenses)
	}
}
