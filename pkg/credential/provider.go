package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codepool-dev/codepool/pkg/api"
	"github.com/codepool-dev/codepool/pkg/debug"
	"github.com/codepool-dev/codepool/pkg/observability"
)

// refreshFraction is the fraction of a token's lifetime after which the
// Provider proactively re-resolves instead of serving the cached token.
const refreshFraction = 0.8

// Provider caches the token resolved by a Source and refreshes it before
// expiry. Tokens are cached in process state; callers hold only a read
// reference to the returned value.
type Provider struct {
	source     Source
	defaultTTL time.Duration

	mu        sync.Mutex
	cached    Token
	refreshAt time.Time
	nowFunc   func() time.Time // for testing; defaults to time.Now
}

// NewProvider creates a Provider over the given source. defaultTTL is the
// lifetime assumed for tokens whose expiry cannot be determined; when
// zero, one hour is used.
func NewProvider(source Source, defaultTTL time.Duration) *Provider {
	if defaultTTL == 0 {
		defaultTTL = 1 * time.Hour
	}
	return &Provider{
		source:     source,
		defaultTTL: defaultTTL,
		nowFunc:    time.Now,
	}
}

// Token returns a valid bearer token, resolving one on first use and
// proactively re-resolving when 80% of the cached token's lifetime has
// elapsed. Failures surface as api errors of kind authentication_error.
func (p *Provider) Token(ctx context.Context) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()

	if p.cached.AccessToken != "" && now.Before(p.refreshAt) {
		return p.cached, nil
	}

	tok, err := p.source.Token(ctx)
	if err != nil {
		// A still-valid cached token survives a failed refresh.
		if p.cached.Valid(now) {
			debug.Log("credential", "token refresh failed, serving cached token",
				"expires_at", p.cached.ExpiresAt)
			observability.TokenRequestsTotal.WithLabelValues(p.source.Name(), "refresh_failed").Inc()
			return p.cached, nil
		}
		observability.TokenRequestsTotal.WithLabelValues(p.source.Name(), "error").Inc()
		if errors.Is(err, ErrNoCredential) {
			return Token{}, api.NewAuthenticationError("no credential source succeeded", err)
		}
		return Token{}, api.NewAuthenticationError("token request rejected", err)
	}

	// Pin down an expiry: the source's, the token's own exp claim, or the
	// default lifetime, in that order.
	if tok.ExpiresAt.IsZero() {
		if exp, ok := jwtExpiry(tok.AccessToken); ok {
			tok.ExpiresAt = exp
		} else {
			tok.ExpiresAt = now.Add(p.defaultTTL)
		}
	}

	p.cached = tok
	lifetime := tok.ExpiresAt.Sub(now)
	p.refreshAt = now.Add(time.Duration(float64(lifetime) * refreshFraction))

	debug.Log("credential", "token acquired",
		"source", p.source.Name(),
		"scope", tok.Scope,
		"expires_at", tok.ExpiresAt,
		"refresh_at", p.refreshAt,
	)
	observability.TokenRequestsTotal.WithLabelValues(p.source.Name(), "ok").Inc()

	return tok, nil
}

// Invalidate drops the cached token so the next Token call re-resolves.
// Called when the pool service rejects a request as unauthenticated.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = Token{}
	p.refreshAt = time.Time{}
}
