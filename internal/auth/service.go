package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/chunkrelay/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	tokenIssuer   = "chunkrelay"
	tokenAudience = "chunkrelay-api"
)

// Token is a signed bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims is the identity carried by a validated token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Service checks the single configured credential and issues bearer tokens.
type Service struct {
	username     string
	passwordHash string
	tokenSecret  []byte
	tokenTTL     time.Duration
	nowFunc      func() time.Time
	log          *zap.Logger
}

// NewService creates a Service from configuration.
func NewService(cfg config.AuthConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.PasswordHash) == "" {
		log.Warn("PASSWORD_HASH is not set; every request will be rejected")
	}
	return &Service{
		username:     cfg.Username,
		passwordHash: strings.TrimSpace(cfg.PasswordHash),
		tokenSecret:  []byte(cfg.TokenSecret),
		tokenTTL:     cfg.TokenTTL,
		nowFunc:      time.Now,
		log:          log,
	}
}

// Verify reports whether username and password match the configured
// credential. The password hash is always evaluated so a wrong username
// costs as much as a wrong password.
func (s *Service) Verify(username, password string) bool {
	if s.passwordHash == "" || username == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	passOK, err := CheckPassword(s.passwordHash, password)
	if err != nil {
		s.log.Error("configured password hash cannot be checked", zap.Error(err))
		return false
	}
	return userOK && passOK
}

// TokensEnabled reports whether bearer tokens can be issued and accepted.
func (s *Service) TokensEnabled() bool {
	return len(s.tokenSecret) > 0
}

// IssueToken signs an HS256 token for subject.
func (s *Service) IssueToken(subject string) (Token, error) {
	if !s.TokensEnabled() {
		return Token{}, ErrTokensDisabled
	}

	now := s.nowFunc()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// ValidateToken verifies signature, issuer, audience and expiry.
func (s *Service) ValidateToken(tokenString string) (Claims, error) {
	if !s.TokensEnabled() {
		return Claims{}, ErrTokensDisabled
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrUnauthorized
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFunc),
	)

	var claims jwt.RegisteredClaims
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.tokenSecret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrUnauthorized
	}
	if claims.Subject != s.username {
		return Claims{}, ErrUnauthorized
	}

	return Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
