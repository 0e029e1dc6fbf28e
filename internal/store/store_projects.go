package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const projectColumns = "id, owner_id, brand_name, inputs_json, status, error_message, created_at, updated_at"

// CreateProject inserts a new draft project and returns it.
func (s *Store) CreateProject(ctx context.Context, ownerID int64, brandName, inputsJSON string) (*Project, error) {
	now := time.Now().UTC()
	project := &Project{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		BrandName:  brandName,
		InputsJSON: inputsJSON,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var owner any
	if ownerID > 0 {
		owner = ownerID
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO projects (id, owner_id, brand_name, inputs_json, status, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		project.ID, owner, brandName, nullableString(inputsJSON),
		project.Status, formatTime(now), formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns projects newest first, optionally scoped to an owner.
func (s *Store) ListProjects(ctx context.Context, ownerID int64) ([]*Project, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`
	args := []any{}
	if ownerID > 0 {
		query = `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY created_at DESC`
		args = append(args, ownerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// UpdateProjectInputs replaces the wizard inputs of a project.
func (s *Store) UpdateProjectInputs(ctx context.Context, id, brandName, inputsJSON string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET brand_name = ?, inputs_json = ?, updated_at = ? WHERE id = ?`,
		brandName, nullableString(inputsJSON), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("update project inputs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// TransitionProject moves a project to a new status, enforcing the lifecycle.
// The transition happens in one statement keyed on the current status so two
// concurrent writers cannot both advance the same project.
func (s *Store) TransitionProject(ctx context.Context, id string, from, to ProjectStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(time.Now().UTC()), id, from,
	)
	if err != nil {
		return fmt.Errorf("transition project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := s.GetProject(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: project %s is %s, not %s", ErrInvalidTransition, id, current.Status, from)
	}
	return nil
}

// FailProject marks a project failed with an error message. Completed
// projects cannot fail.
func (s *Store) FailProject(ctx context.Context, id, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed, message, formatTime(time.Now().UTC()),
		id, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("fail project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := s.GetProject(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: project %s is %s", ErrInvalidTransition, id, current.Status)
	}
	return nil
}

// RetryProject returns a failed project to draft so the wizard can restart.
func (s *Store) RetryProject(ctx context.Context, id string) error {
	return s.TransitionProject(ctx, id, StatusFailed, StatusDraft)
}

// DeleteProject removes a project and its artifacts via cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
