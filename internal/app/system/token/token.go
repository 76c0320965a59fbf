// internal/app/system/token/token.go

// Package token mints and verifies the two credential kinds the portal
// uses: session tokens carrying an authenticated user id, and short-lived
// provisional tokens carrying unverified federated-identity claims that
// bridge the OAuth redirect to the registration-completion request.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claims. A session token is never accepted where a provisional
// one is expected, and vice versa.
const (
	typeSession     = "session"
	typeProvisional = "provisional"
)

var (
	// ErrExpired means the signature checked out but the token is past its
	// expiry. Callers can tell users to log in (session) or redo the
	// federated handshake (provisional).
	ErrExpired = errors.New("token expired")

	// ErrMalformed means the token is unparseable, unsigned, tampered
	// with, or of the wrong type.
	ErrMalformed = errors.New("token malformed or invalid")
)

// ProvisionalClaims are the unverified external-identity claims carried
// between the federated callback and registration completion. No User
// exists for them yet.
type ProvisionalClaims struct {
	FederatedID string `json:"fid"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
}

type sessionClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type provisionalClaims struct {
	Type string `json:"typ"`
	ProvisionalClaims
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a single HMAC key. The key and
// both expiries are injected at construction; nothing here reads ambient
// configuration.
type Issuer struct {
	secret         []byte
	sessionTTL     time.Duration
	provisionalTTL time.Duration
}

// NewIssuer constructs an Issuer. The provisional TTL must be materially
// shorter than the session TTL; provisional tokens only exist to carry a
// redirect across one registration form.
func NewIssuer(secret string, sessionTTL, provisionalTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	if sessionTTL <= 0 || provisionalTTL <= 0 {
		return nil, errors.New("token expiries must be positive")
	}
	if provisionalTTL >= sessionTTL {
		return nil, fmt.Errorf("provisional expiry %s must be shorter than session expiry %s",
			provisionalTTL, sessionTTL)
	}
	return &Issuer{
		secret:         []byte(secret),
		sessionTTL:     sessionTTL,
		provisionalTTL: provisionalTTL,
	}, nil
}

// IssueSession mints a signed session token for an authenticated user id.
func (i *Issuer) IssueSession(userID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Type: typeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// IssueProvisional mints a signed short-lived token carrying federated
// claims that do not yet correspond to a stored user.
func (i *Issuer) IssueProvisional(claims ProvisionalClaims) (string, error) {
	now := time.Now()
	pc := provisionalClaims{
		Type:              typeProvisional,
		ProvisionalClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.provisionalTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, pc).SignedString(i.secret)
}

// VerifySession checks signature, expiry, and type, returning the user id.
func (i *Issuer) VerifySession(tok string) (string, error) {
	var claims sessionClaims
	if err := i.parse(tok, &claims); err != nil {
		return "", err
	}
	if claims.Type != typeSession || claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

// VerifyProvisional checks signature, expiry, and type, returning the
// carried federated claims. A failing token is reported as expired or
// malformed, never treated as absent.
func (i *Issuer) VerifyProvisional(tok string) (ProvisionalClaims, error) {
	var claims provisionalClaims
	if err := i.parse(tok, &claims); err != nil {
		return ProvisionalClaims{}, err
	}
	if claims.Type != typeProvisional || claims.FederatedID == "" {
		return ProvisionalClaims{}, ErrMalformed
	}
	return claims.ProvisionalClaims, nil
}

func (i *Issuer) parse(tok string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
