// Package config provides unified configuration for the codepool client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CODEPOOL_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the codepool client.
type Config struct {
	Pool       PoolConfig       `yaml:"pool"`
	Credential CredentialConfig `yaml:"credential"`
	History    HistoryConfig    `yaml:"history"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// PoolConfig holds session pool execution settings.
type PoolConfig struct {
	Endpoint       string `yaml:"endpoint"`        // pool management endpoint base URL
	Runtime        string `yaml:"runtime"`         // default: "python"
	TimeoutSeconds int    `yaml:"timeout_seconds"` // default: 60
	AbortOnError   bool   `yaml:"abort_on_error"`  // default: false (continue past runtime errors)
}

// CredentialConfig holds bearer token acquisition settings.
// A static token takes precedence over the OAuth client credentials grant.
type CredentialConfig struct {
	Token            string        `yaml:"token"`
	TokenFile        string        `yaml:"token_file"` // _file variant for token
	TokenURL         string        `yaml:"token_url"`  // OAuth token endpoint
	ClientID         string        `yaml:"client_id"`
	ClientSecret     string        `yaml:"client_secret"`
	ClientSecretFile string        `yaml:"client_secret_file"` // _file variant for client_secret
	Scope            string        `yaml:"scope"`              // default: credential.DefaultScope
	DefaultTTL       time.Duration `yaml:"default_ttl"`        // fallback token lifetime, default: 1h
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "none"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// KubernetesConfig holds claim-based endpoint acquisition settings.
// When Template is set, pool endpoints are acquired per batch through
// SandboxClaim CRDs instead of the static pool.endpoint.
type KubernetesConfig struct {
	Template  string        `yaml:"template"`  // SandboxTemplate name; empty disables claims
	Namespace string        `yaml:"namespace"` // default: "default"
	Timeout   time.Duration `yaml:"timeout"`   // sandbox readiness timeout, default: 60s
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Pool: PoolConfig{
			Runtime:        "python",
			TimeoutSeconds: 60,
		},
		Credential: CredentialConfig{
			DefaultTTL: time.Hour,
		},
		History: HistoryConfig{
			Type:    "none",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Kubernetes: KubernetesConfig{
			Namespace: "default",
			Timeout:   60 * time.Second,
		},
	}
}
