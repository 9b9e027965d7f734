package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// EnvTokenVar is the environment variable holding a developer-supplied
// access token, checked by the default EnvSource.
const EnvTokenVar = "CODEPOOL_ACCESS_TOKEN"

// StaticSource yields a token from explicit configuration.
type StaticSource struct {
	// AccessToken is the configured bearer token. Empty means abstain.
	AccessToken string

	// Scope is the scope to record on the token. Defaults to DefaultScope.
	Scope string
}

// Name identifies the source.
func (s *StaticSource) Name() string { return "static" }

// Token returns the configured token, or ErrNoCredential when unset.
// Expiry is unknown for static tokens; the Provider derives it from the
// token itself or its default lifetime.
func (s *StaticSource) Token(_ context.Context) (Token, error) {
	if s.AccessToken == "" {
		return Token{}, ErrNoCredential
	}
	return Token{AccessToken: s.AccessToken, Scope: scopeOrDefault(s.Scope)}, nil
}

// EnvSource yields a token from an environment variable. This is the
// developer credential path: a token minted out of band and exported
// into the shell.
type EnvSource struct {
	// Var is the environment variable to read. Defaults to EnvTokenVar.
	Var string

	// Scope is the scope to record on the token. Defaults to DefaultScope.
	Scope string
}

// Name identifies the source.
func (s *EnvSource) Name() string { return "env" }

// Token reads the variable, abstaining when it is unset or empty.
func (s *EnvSource) Token(_ context.Context) (Token, error) {
	v := s.Var
	if v == "" {
		v = EnvTokenVar
	}
	raw := strings.TrimSpace(os.Getenv(v))
	if raw == "" {
		return Token{}, ErrNoCredential
	}
	return Token{AccessToken: raw, Scope: scopeOrDefault(s.Scope)}, nil
}

// ClientCredentialsSource obtains tokens via the OAuth 2.0
// client_credentials grant, requesting the execution service scope.
// This is the environment-specific service credential path.
type ClientCredentialsSource struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// Scope is the scope requested from the token endpoint.
	// Defaults to DefaultScope.
	Scope string

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// If nil, a client with a 10 second timeout is used.
	HTTPClient *http.Client
}

// tokenResponse represents the JSON response from an OAuth 2.0 token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Name identifies the source.
func (s *ClientCredentialsSource) Name() string { return "client_credentials" }

// Token performs the client_credentials grant. Abstains when no token
// endpoint or client ID is configured.
func (s *ClientCredentialsSource) Token(ctx context.Context) (Token, error) {
	if s.TokenURL == "" || s.ClientID == "" {
		return Token{}, ErrNoCredential
	}

	scope := scopeOrDefault(s.Scope)

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"scope":         {scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return Token{}, fmt.Errorf("parsing token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return Token{}, fmt.Errorf("token response missing access_token")
	}

	tok := Token{AccessToken: tokenResp.AccessToken, Scope: scope}
	if tokenResp.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	return tok, nil
}

func scopeOrDefault(scope string) string {
	if scope == "" {
		return DefaultScope
	}
	return scope
}
