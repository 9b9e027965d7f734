package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CODEPOOL_CONFIG env, ./codepool.yaml, /etc/codepool/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CODEPOOL_CONFIG environment variable
// 3. ./codepool.yaml in the current directory
// 4. /etc/codepool/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check CODEPOOL_CONFIG env var.
	if envPath := os.Getenv("CODEPOOL_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"codepool.yaml",
		"/etc/codepool/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps CODEPOOL_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEPOOL_ENDPOINT"); v != "" {
		cfg.Pool.Endpoint = v
	}
	if v := os.Getenv("CODEPOOL_RUNTIME"); v != "" {
		cfg.Pool.Runtime = v
	}
	if v := os.Getenv("CODEPOOL_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Pool.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("CODEPOOL_ABORT_ON_ERROR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Pool.AbortOnError = b
		}
	}
	if v := os.Getenv("CODEPOOL_ACCESS_TOKEN"); v != "" {
		cfg.Credential.Token = v
	}
	if v := os.Getenv("CODEPOOL_TOKEN_URL"); v != "" {
		cfg.Credential.TokenURL = v
	}
	if v := os.Getenv("CODEPOOL_CLIENT_ID"); v != "" {
		cfg.Credential.ClientID = v
	}
	if v := os.Getenv("CODEPOOL_CLIENT_SECRET"); v != "" {
		cfg.Credential.ClientSecret = v
	}
	if v := os.Getenv("CODEPOOL_SCOPE"); v != "" {
		cfg.Credential.Scope = v
	}
	if v := os.Getenv("CODEPOOL_HISTORY"); v != "" {
		cfg.History.Type = v
	}
	if v := os.Getenv("CODEPOOL_HISTORY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxSize = size
		}
	}
	if v := os.Getenv("CODEPOOL_POSTGRES_DSN"); v != "" {
		cfg.History.Postgres.DSN = v
	}
	if v := os.Getenv("CODEPOOL_SANDBOX_TEMPLATE"); v != "" {
		cfg.Kubernetes.Template = v
	}
	if v := os.Getenv("CODEPOOL_SANDBOX_NAMESPACE"); v != "" {
		cfg.Kubernetes.Namespace = v
	}
	if v := os.Getenv("CODEPOOL_SANDBOX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Kubernetes.Timeout = d
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// credential.token_file -> credential.token
	if cfg.Credential.TokenFile != "" && cfg.Credential.Token == "" {
		val, err := readSecretFile(cfg.Credential.TokenFile)
		if err != nil {
			return fmt.Errorf("credential.token_file: %w", err)
		}
		cfg.Credential.Token = val
	}

	// credential.client_secret_file -> credential.client_secret
	if cfg.Credential.ClientSecretFile != "" && cfg.Credential.ClientSecret == "" {
		val, err := readSecretFile(cfg.Credential.ClientSecretFile)
		if err != nil {
			return fmt.Errorf("credential.client_secret_file: %w", err)
		}
		cfg.Credential.ClientSecret = val
	}

	// history.postgres.dsn_file -> history.postgres.dsn
	if cfg.History.Postgres.DSNFile != "" && cfg.History.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.History.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("history.postgres.dsn_file: %w", err)
		}
		cfg.History.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
