package credential

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStaticSource(t *testing.T) {
	src := &StaticSource{AccessToken: "configured-token"}
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "configured-token" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "configured-token")
	}
	if tok.Scope != DefaultScope {
		t.Errorf("Scope = %q, want default %q", tok.Scope, DefaultScope)
	}

	empty := &StaticSource{}
	if _, err := empty.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("empty source error = %v, want ErrNoCredential", err)
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("CODEPOOL_TEST_TOKEN", "  env-token\n")

	src := &EnvSource{Var: "CODEPOOL_TEST_TOKEN", Scope: "https://pool.example/.default"}
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "env-token" {
		t.Errorf("AccessToken = %q, want trimmed %q", tok.AccessToken, "env-token")
	}
	if tok.Scope != "https://pool.example/.default" {
		t.Errorf("Scope = %q, want configured scope", tok.Scope)
	}

	t.Setenv("CODEPOOL_TEST_TOKEN", "")
	if _, err := src.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("unset variable error = %v, want ErrNoCredential", err)
	}
}

func TestClientCredentialsSource(t *testing.T) {
	var gotGrant, gotScope, gotClientID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotGrant = r.FormValue("grant_type")
		gotScope = r.FormValue("scope")
		gotClientID = r.FormValue("client_id")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "granted-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	src := &ClientCredentialsSource{
		TokenURL:     srv.URL,
		ClientID:     "pool-client",
		ClientSecret: "s3cret",
	}

	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "granted-token" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "granted-token")
	}
	if gotGrant != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", gotGrant)
	}
	if gotScope != DefaultScope {
		t.Errorf("scope = %q, want default %q", gotScope, DefaultScope)
	}
	if gotClientID != "pool-client" {
		t.Errorf("client_id = %q, want pool-client", gotClientID)
	}
	if tok.ExpiresAt.IsZero() || time.Until(tok.ExpiresAt) > time.Hour {
		t.Errorf("ExpiresAt = %v, want ~1h from now", tok.ExpiresAt)
	}
}

func TestClientCredentialsSource_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	src := &ClientCredentialsSource{
		TokenURL: srv.URL,
		ClientID: "bad-client",
	}

	_, err := src.Token(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrNoCredential) {
		t.Error("a rejected token request must not look like an abstention")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want mention of status 401", err)
	}
}

func TestClientCredentialsSource_Unconfigured(t *testing.T) {
	src := &ClientCredentialsSource{}
	if _, err := src.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
}

func TestClientCredentialsSource_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	src := &ClientCredentialsSource{TokenURL: srv.URL, ClientID: "c"}
	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected error for response without access_token")
	}
}
