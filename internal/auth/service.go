// Package auth verifies the bearer tokens issued by the account service and
// exposes the caller's user id to handlers.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/0xPexy/petpay-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type Service struct {
	secret    []byte
	ttl       time.Duration
	devToken  string
	devUserID string
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:    []byte(cfg.JWTSecret),
		ttl:       cfg.JWTTTL,
		devToken:  strings.TrimSpace(cfg.DevToken),
		devUserID: cfg.DevUserID,
	}
}

// Enabled reports whether tokens can be verified at all.
func (s *Service) Enabled() bool {
	return len(s.secret) > 0 || s.devToken != ""
}

func (s *Service) Issue(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrInvalidCredentials
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidCredentials
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredentials
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

func (s *Service) IsDevToken(token string) bool {
	return s.devToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.devToken)) == 1
}

func (s *Service) DevUserID() string { return s.devUserID }
