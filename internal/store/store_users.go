package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmailTaken indicates a registration against an existing email address.
var ErrEmailTaken = errors.New("store: email already registered")

// CreateUser inserts a new account and returns it.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, displayName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?)`,
		email, passwordHash, nullableString(displayName), formatTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
	}, nil
}

// GetUserByEmail fetches an account by its (case-insensitive) email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

// GetUser fetches an account by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		user        User
		displayName sql.NullString
		createdRaw  string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &displayName, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.DisplayName = displayName.String
	if created, parseErr := parseTimeString(createdRaw); parseErr == nil {
		user.CreatedAt = created
	}
	return &user, nil
}

// CreateSession records an issued token ID.
func (s *Store) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time) error {
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, formatTime(expiresAt), formatTime(time.Now().UTC()),
	); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionValid reports whether a token ID is still issued and unexpired.
func (s *Store) SessionValid(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	var expiresRaw string
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM sessions WHERE id = ?`, id).Scan(&expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	expires, err := parseTimeString(expiresRaw)
	if err != nil {
		return false, nil
	}
	return time.Now().UTC().Before(expires), nil
}

// RevokeSession deletes an issued token ID so validation fails server-side.
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// PruneSessions removes expired sessions and returns how many were deleted.
func (s *Store) PruneSessions(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM sessions WHERE expires_at < ?`,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}
