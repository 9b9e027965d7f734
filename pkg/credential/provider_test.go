package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/codepool-dev/codepool/pkg/api"
)

func testNow(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

// newTestProvider wires a Provider to a fixed clock.
func newTestProvider(t *testing.T, src Source, now time.Time) *Provider {
	t.Helper()
	p := NewProvider(src, time.Hour)
	p.nowFunc = func() time.Time { return now }
	return p
}

func TestProvider_CachesAcrossCalls(t *testing.T) {
	now := testNow(t)
	src := &fakeSource{name: "test", tok: Token{
		AccessToken: "tok-1",
		ExpiresAt:   now.Add(time.Hour),
	}}
	p := newTestProvider(t, src, now)

	for range 5 {
		tok, err := p.Token(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.AccessToken != "tok-1" {
			t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "tok-1")
		}
	}

	if src.calls != 1 {
		t.Errorf("source resolved %d times across 5 calls, want 1", src.calls)
	}
}

func TestProvider_ProactiveRefresh(t *testing.T) {
	now := testNow(t)
	src := &fakeSource{name: "test", tok: Token{
		AccessToken: "tok-1",
		ExpiresAt:   now.Add(time.Hour),
	}}
	p := newTestProvider(t, src, now)

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Before 80% of the lifetime: still cached.
	p.nowFunc = func() time.Time { return now.Add(47 * time.Minute) }
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("source resolved %d times before refresh point, want 1", src.calls)
	}

	// Past 80% of the lifetime: re-resolved.
	src.tok = Token{AccessToken: "tok-2", ExpiresAt: now.Add(2 * time.Hour)}
	p.nowFunc = func() time.Time { return now.Add(49 * time.Minute) }
	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "tok-2" {
		t.Errorf("AccessToken = %q, want refreshed %q", tok.AccessToken, "tok-2")
	}
	if src.calls != 2 {
		t.Errorf("source resolved %d times, want 2", src.calls)
	}
}

func TestProvider_ServesCachedOnRefreshFailure(t *testing.T) {
	now := testNow(t)
	src := &fakeSource{name: "test", tok: Token{
		AccessToken: "tok-1",
		ExpiresAt:   now.Add(time.Hour),
	}}
	p := newTestProvider(t, src, now)

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Refresh point passed, source now failing, token still valid.
	src.err = errors.New("token endpoint unreachable")
	p.nowFunc = func() time.Time { return now.Add(50 * time.Minute) }

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("expected cached token on refresh failure, got error: %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q, want cached %q", tok.AccessToken, "tok-1")
	}

	// Token fully expired: the failure must now surface.
	p.nowFunc = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := p.Token(context.Background()); !api.IsAuthentication(err) {
		t.Errorf("error = %v, want authentication_error", err)
	}
}

func TestProvider_NoCredentialIsAuthenticationError(t *testing.T) {
	now := testNow(t)
	p := newTestProvider(t, &fakeSource{name: "test", err: ErrNoCredential}, now)

	_, err := p.Token(context.Background())
	if !api.IsAuthentication(err) {
		t.Fatalf("error = %v, want authentication_error", err)
	}
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("error = %v, want wrapped ErrNoCredential", err)
	}
}

func TestProvider_ExpiryFromJWT(t *testing.T) {
	now := testNow(t)
	exp := now.Add(30 * time.Minute)

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "test",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test JWT: %v", err)
	}

	src := &fakeSource{name: "test", tok: Token{AccessToken: signed}}
	p := newTestProvider(t, src, now)

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tok.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v (from JWT exp claim)", tok.ExpiresAt, exp.Truncate(time.Second))
	}
}

func TestProvider_ExpiryFallsBackToDefaultTTL(t *testing.T) {
	now := testNow(t)
	src := &fakeSource{name: "test", tok: Token{AccessToken: "opaque-token"}}
	p := newTestProvider(t, src, now)

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want now+1h default", tok.ExpiresAt)
	}
}

func TestProvider_Invalidate(t *testing.T) {
	now := testNow(t)
	src := &fakeSource{name: "test", tok: Token{
		AccessToken: "tok-1",
		ExpiresAt:   now.Add(time.Hour),
	}}
	p := newTestProvider(t, src, now)

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Invalidate()
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source resolved %d times after Invalidate, want 2", src.calls)
	}
}
