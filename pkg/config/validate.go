package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// An execution target is required: a static endpoint or a claim template.
	if c.Pool.Endpoint == "" && c.Kubernetes.Template == "" {
		errs = append(errs, fmt.Errorf("pool.endpoint or kubernetes.template is required"))
	}

	if c.Pool.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("pool.timeout_seconds must be > 0, got %d", c.Pool.TimeoutSeconds))
	}

	// history.type must be a known value.
	switch c.History.Type {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("history.type must be \"none\", \"memory\" or \"postgres\", got %q", c.History.Type))
	}

	// If history.type is "postgres", DSN or DSNFile must be set.
	if c.History.Type == "postgres" {
		if c.History.Postgres.DSN == "" && c.History.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("history.postgres.dsn or history.postgres.dsn_file is required when history.type is \"postgres\""))
		}
	}

	// The client credentials grant needs both halves of the client pair.
	if c.Credential.TokenURL != "" && c.Credential.ClientID == "" {
		errs = append(errs, fmt.Errorf("credential.client_id is required when credential.token_url is set"))
	}

	return errors.Join(errs...)
}
