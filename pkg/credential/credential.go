package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codepool-dev/codepool/pkg/debug"
)

// DefaultScope is the authorization scope identifying the session pool
// execution service, used when no scope is configured.
const DefaultScope = "https://dynamicsessions.io/.default"

// Token is a resolved bearer credential.
type Token struct {
	// AccessToken is the opaque bearer token string.
	AccessToken string

	// Scope is the authorization scope the token was issued for.
	Scope string

	// ExpiresAt is the expiry instant. A zero value means the expiry is
	// unknown; the Provider substitutes its default lifetime.
	ExpiresAt time.Time
}

// Valid reports whether the token is non-empty and not expired at now.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// ErrNoCredential is returned by a Source that has nothing configured.
// The chain treats it as an abstention and continues to the next source.
var ErrNoCredential = errors.New("credential: no credential available")

// Source resolves a bearer token from one kind of ambient credential.
type Source interface {
	// Name identifies the source for logging and metrics.
	Name() string

	// Token resolves a token. Returns ErrNoCredential to abstain when the
	// source is not configured in this environment; any other error stops
	// the chain.
	Token(ctx context.Context) (Token, error)
}

// Chain evaluates sources in order. The first source that yields a token
// wins; abstaining sources are skipped; a hard failure stops the chain.
type Chain struct {
	Sources []Source
}

// NewChain creates a chain over the given sources.
func NewChain(sources ...Source) *Chain {
	return &Chain{Sources: sources}
}

// Name identifies the chain for logging and metrics.
func (c *Chain) Name() string {
	return "chain"
}

// Token runs the chain. Returns ErrNoCredential when every source abstains.
func (c *Chain) Token(ctx context.Context) (Token, error) {
	for _, src := range c.Sources {
		tok, err := src.Token(ctx)
		if err == nil {
			debug.Log("credential", "credential resolved", "source", src.Name())
			return tok, nil
		}
		if errors.Is(err, ErrNoCredential) {
			debug.Log("credential", "credential source abstained", "source", src.Name())
			continue
		}
		return Token{}, fmt.Errorf("source %q: %w", src.Name(), err)
	}
	return Token{}, ErrNoCredential
}
