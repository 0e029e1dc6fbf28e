package api

import (
	"encoding/json"
	"time"

	"artiquity/internal/store"
)

// FromProject converts a storage project into its transport form.
func FromProject(p *store.Project) Project {
	if p == nil {
		return Project{}
	}
	out := Project{
		ID:           p.ID,
		BrandName:    p.BrandName,
		Status:       string(p.Status),
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    formatTimestamp(p.CreatedAt),
		UpdatedAt:    formatTimestamp(p.UpdatedAt),
	}
	if json.Valid([]byte(p.InputsJSON)) {
		out.Inputs = json.RawMessage(p.InputsJSON)
	}
	return out
}

// FromProjects converts a slice of storage projects.
func FromProjects(projects []*store.Project) []Project {
	if len(projects) == 0 {
		return nil
	}
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, FromProject(p))
	}
	return out
}

// FromArtifact converts a stored artifact into its transport form.
func FromArtifact(a *store.Artifact) Artifact {
	if a == nil {
		return Artifact{}
	}
	out := Artifact{
		Model:     a.Model,
		Fallback:  a.Fallback,
		CreatedAt: formatTimestamp(a.CreatedAt),
	}
	if json.Valid([]byte(a.PayloadJSON)) {
		out.Payload = json.RawMessage(a.PayloadJSON)
	}
	return out
}

// FromUser converts an account, omitting credential material.
func FromUser(u *store.User) User {
	if u == nil {
		return User{}
	}
	return User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// FromLicense converts a recorded license embed.
func FromLicense(rec *store.LicenseRecord) License {
	if rec == nil {
		return License{}
	}
	out := License{
		ID:         rec.ID,
		FileName:   rec.FileName,
		Format:     rec.Format,
		Digest:     rec.Digest,
		Sidecar:    rec.Sidecar,
		EmbeddedAt: formatTimestamp(rec.EmbeddedAt),
	}
	if json.Valid([]byte(rec.PayloadJSON)) {
		out.Payload = json.RawMessage(rec.PayloadJSON)
	}
	return out
}

// FromLicenses converts a slice of recorded license embeds.
func FromLicenses(records []*store.LicenseRecord) []License {
	if len(records) == 0 {
		return nil
	}
	out := make([]License, 0, len(records))
	for _, rec := range records {
		out = append(out, FromLicense(rec))
	}
	return out
}

// FromSummary converts aggregate store counts.
func FromSummary(s store.Summary) Summary {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, count := range s.ByStatus {
		byStatus[string(status)] = count
	}
	return Summary{
		Projects:  s.Projects,
		ByStatus:  byStatus,
		Completed: s.Completed,
		Failed:    s.Failed,
		Licenses:  s.Licenses,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
