package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("authz: invalid token")

// Actor is the authenticated caller.
type Actor struct {
	ID string
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored in ctx, if any.
func ActorFrom(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(*Actor)
	return a, ok && a != nil
}

// Tokens issues and verifies HS256-signed bearer tokens whose subject is
// the actor id.
type Tokens struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
}

// NewTokens returns a token service. An empty issuer is neither set nor
// checked.
func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer, nowFunc: time.Now}
}

// Issue signs a token for subject that expires after ttl. A zero ttl
// produces a token without expiry.
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, error) {
	now := t.nowFunc()

	claims := gojwt.RegisteredClaims{
		Subject:  subject,
		Issuer:   t.issuer,
		IssuedAt: gojwt.NewNumericDate(now),
	}

	if ttl > 0 {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("authz: signing token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature, expiry and issuer of raw and returns the
// actor it identifies.
func (t *Tokens) Verify(raw string) (*Actor, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(t.nowFunc),
	}

	if t.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(t.issuer))
	}

	var claims gojwt.RegisteredClaims

	_, err := gojwt.ParseWithClaims(raw, &claims, func(*gojwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Actor{ID: claims.Subject}, nil
}
