package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixedit/pixedit/internal/db"
	"github.com/pixedit/pixedit/internal/typeid"
)

const tokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// SessionStore persists issued sessions. It is optional.
type SessionStore interface {
	CreateSession(ctx context.Context, id string) (db.Session, error)
}

type Service struct {
	store     SessionStore
	jwtSecret []byte
	now       func() time.Time
}

// NewService creates a token service. store may be nil when no database is
// configured.
func NewService(store SessionStore, jwtSecret string) *Service {
	return &Service{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

type SessionResult struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// CreateSession allocates a new editing session id and a token scoped to it.
func (s *Service) CreateSession(ctx context.Context) (*SessionResult, error) {
	sessionID := typeid.NewSessionID()

	if s.store != nil {
		if _, err := s.store.CreateSession(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	token, err := s.IssueToken(sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{SessionID: sessionID, Token: token}, nil
}

// ValidateToken returns the session id the token was issued for.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	sessionID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if err := typeid.Validate(sessionID, typeid.PrefixSession); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return sessionID, nil
}

func (s *Service) IssueToken(sessionID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
