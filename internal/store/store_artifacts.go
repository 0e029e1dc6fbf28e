package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const artifactColumns = "id, project_id, payload_json, model, fallback, created_at"

func artifactTable(kind ArtifactKind) (string, error) {
	switch kind {
	case ArtifactCapsule:
		return "capsules", nil
	case ArtifactDashboard:
		return "dashboards", nil
	case ArtifactCampaign:
		return "campaigns", nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", kind)
}

// SaveArtifact records a generated wizard payload for a project.
func (s *Store) SaveArtifact(ctx context.Context, kind ArtifactKind, artifact *Artifact) error {
	table, err := artifactTable(kind)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO `+table+` (project_id, payload_json, model, fallback, created_at) VALUES (?, ?, ?, ?, ?)`,
		artifact.ProjectID, artifact.PayloadJSON, nullableString(artifact.Model),
		boolToInt(artifact.Fallback), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save %s id: %w", kind, err)
	}
	artifact.ID = id
	artifact.CreatedAt = now
	return nil
}

// LatestArtifact returns the most recent artifact of a kind for a project.
func (s *Store) LatestArtifact(ctx context.Context, kind ArtifactKind, projectID string) (*Artifact, error) {
	table, err := artifactTable(kind)
	if err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+artifactColumns+` FROM `+table+` WHERE project_id = ? ORDER BY id DESC LIMIT 1`,
		projectID,
	)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s for project %s: %w", kind, projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", kind, err)
	}
	return artifact, nil
}
