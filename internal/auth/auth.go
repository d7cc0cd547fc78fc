// Package auth issues and verifies the HS256 token pairs that gate the
// REST and websocket surfaces.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// token kind, expiry.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenPair is what a successful login hands out.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type claims struct {
	PlayerID int64  `json:"player_id"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Service signs and verifies token pairs for player identities.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssuePair mints a fresh access/refresh pair for the player.
func (s *Service) IssuePair(playerID int64) (TokenPair, error) {
	access, err := s.sign(playerID, "access", s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(playerID, "refresh", s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) sign(playerID int64, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PlayerID: playerID,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: cannot sign %s token: %w", kind, err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns the player identity.
func (s *Service) VerifyAccess(token string) (int64, error) {
	return s.verify(token, "access")
}

// VerifyRefresh validates a refresh token and returns the player identity.
func (s *Service) VerifyRefresh(token string) (int64, error) {
	return s.verify(token, "refresh")
}

func (s *Service) verify(raw, kind string) (int64, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	if c.Kind != kind {
		return 0, ErrInvalidToken
	}
	return c.PlayerID, nil
}
