// Package auth verifies and issues bearer tokens for chat sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrUnsupportedAlgorithm is returned by NewJWTManager for non-HMAC algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey string
	Algorithm string
	TokenTTL  time.Duration
}

// Claims carries the user reference. Field names match tokens issued by the
// existing account service.
type Claims struct {
	Email  string `json:"email"`
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token operations.
type JWTManager struct {
	config JWTConfig
	method *jwt.SigningMethodHMAC
	users  core.UserDirectory
}

var _ core.TokenVerifier = (*JWTManager)(nil)

// NewJWTManager creates a new JWTManager. Users is consulted on every
// verification so tokens of deleted users stop working.
func NewJWTManager(config JWTConfig, users core.UserDirectory) (*JWTManager, error) {
	if config.Algorithm == "" {
		config.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(config.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, config.Algorithm)
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 30 * time.Minute
	}
	return &JWTManager{config: config, method: method, users: users}, nil
}

// Issue signs an access token for the given user.
func (m *JWTManager) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:  user.Email,
		UserID: string(user.ID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(m.method, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Parse validates the signature and expiry and returns the claims.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify resolves the token to the current user record. Every failure is
// reported as domain.ErrUnauthorized with the cause wrapped for logging.
func (m *JWTManager) Verify(ctx context.Context, tokenString string) (*domain.User, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	user, err := m.users.FindByID(ctx, domain.UserID(claims.UserID))
	if err != nil {
		log.Debug().Err(err).Str("module", "auth").Str("user_id", claims.UserID).Msg("token subject lookup failed")
		return nil, fmt.Errorf("%w: subject: %w", domain.ErrUnauthorized, err)
	}
	return user, nil
}
