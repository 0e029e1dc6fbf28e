// Package auth provides account registration, password verification, and
// JWT-backed sessions with database revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"artiquity/internal/store"
)

var (
	// ErrInvalidCredentials is returned when an email or password does not
	// match a known account.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned for malformed, expired, or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired session token")
)

const (
	minPasswordLength = 8
	tokenIssuer       = "artiquity"
)

// Service issues and validates sessions backed by the store.
type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs an auth service signing tokens with secret. Sessions
// expire after ttl.
func NewService(st *store.Store, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("auth: a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("auth: password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.store.CreateUser(ctx, email, string(hash), strings.TrimSpace(displayName))
}

// Login verifies the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	expires := s.now().Add(s.ttl)
	if err := s.store.CreateSession(ctx, sessionID, user.ID, expires); err != nil {
		return "", nil, err
	}

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   fmt.Sprintf("%d", user.ID),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, user, nil
}

// Validate parses a token, checks its signature and expiry, and confirms the
// embedded session has not been revoked. It returns the session user.
func (s *Service) Validate(ctx context.Context, token string) (*store.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	valid, err := s.store.SessionValid(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrInvalidToken
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes the session embedded in the token. Unparseable tokens are
// ignored so logout stays idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now)); err != nil {
		return nil
	}
	return s.store.RevokeSession(ctx, claims.ID)
}

// Prune removes expired sessions from the store.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	return s.store.PruneSessions(ctx)
}
