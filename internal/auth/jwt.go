// Package auth validates the bearer tokens presented by marketplace users.
//
// Tokens are HS256 JWTs issued by the identity provider. The subject claim
// is the acting user's profile id; proposals and messages are attributed to
// it and rate limited under it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience is the audience claim carried by end-user tokens.
const DefaultAudience = "authenticated"

// AccessTokenExpiry is the lifetime of tokens minted by IssueToken.
const AccessTokenExpiry = time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// Claims are the JWT claims read from end-user tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// JWTService signs and validates tokens.
// Tokens are signed with currentSecret and validated with either
// currentSecret or previousSecret, which allows secret rotation.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	audience       string
	leeway         time.Duration
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithPreviousSecret accepts tokens signed with secret during a rotation.
// An empty secret is ignored.
func WithPreviousSecret(secret string) Option {
	return func(s *JWTService) {
		if secret != "" {
			s.previousSecret = []byte(secret)
		}
	}
}

// WithAudience overrides the expected audience. An empty audience disables
// the audience check.
func WithAudience(aud string) Option {
	return func(s *JWTService) { s.audience = aud }
}

// WithLeeway sets the clock skew tolerance for exp/nbf/iat.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) { s.leeway = d }
}

// NewJWTService creates a JWTService for secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		currentSecret: []byte(secret),
		audience:      DefaultAudience,
		leeway:        DefaultLeeway,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken mints an access token for userID. It is used by the operator
// CLI and tests; production tokens come from the identity provider.
func (s *JWTService) IssueToken(userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Role: DefaultAudience,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.currentSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning its claims.
// The current secret is tried first, then the previous one if configured.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(s.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
