package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	// AccessToken is the session token issued by the API service.
	AccessToken TokenType = "access"
	// FaceAssertion is a short-lived token signed by the face service
	// attesting that an identity passed face verification. The API
	// service validates it before issuing a session, instead of
	// trusting a bare identity string.
	FaceAssertion TokenType = "face"
	// EmailVerify is the token embedded in admin verification links.
	EmailVerify TokenType = "email_verify"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by all Attendo tokens.
type Claims struct {
	Subject    string
	Role       string
	Confidence float64 // face assertions only
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret []byte, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl}
}

// Sign issues a token of the given type for the subject.
func (m *TokenManager) Sign(typ TokenType, c Claims) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"typ": string(typ),
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
		"iss": m.issuer,
	}
	if c.Role != "" {
		claims["role"] = c.Role
	}
	if typ == FaceAssertion {
		claims["conf"] = c.Confidence
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks its signature, expiry, issuer and type.
func (m *TokenManager) Verify(typ TokenType, tokenStr string) (Claims, error) {
	t, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if tt, _ := claims["typ"].(string); tt != string(typ) {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{}
	out.Subject, _ = claims["sub"].(string)
	out.Role, _ = claims["role"].(string)
	out.Confidence, _ = claims["conf"].(float64)
	if out.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return out, nil
}
