package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codepool-dev/codepool/pkg/api"
	"github.com/codepool-dev/codepool/pkg/credential"
	"github.com/codepool-dev/codepool/pkg/debug"
	"github.com/codepool-dev/codepool/pkg/history"
	"github.com/codepool-dev/codepool/pkg/observability"
)

// Executor is the capability contract consumed by the orchestration layer:
// anything that turns an ordered fragment sequence into one aggregated
// result. The Client is the HTTP pool implementation.
type Executor interface {
	Execute(ctx context.Context, fragments []api.Fragment) (api.AggregatedResult, error)
}

// TokenProvider supplies the bearer token authenticating pool requests.
// *credential.Provider satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (credential.Token, error)
}

// Config holds the execution client settings.
type Config struct {
	// Endpoint is the pool management endpoint base URL. Required unless
	// Resolver is set.
	Endpoint string

	// Runtime is the execution runtime path segment (default: "python").
	// It also derives the request's source field key ("pythonCode").
	Runtime string

	// TimeoutSeconds is the per-fragment execution timeout communicated
	// in-band to the pool service (default: 60).
	TimeoutSeconds int

	// AbortOnError stops the batch on application errors too, instead of
	// only on transport failures (default: false, continue).
	AbortOnError bool

	// Resolver overrides Endpoint with per-batch endpoint acquisition.
	Resolver EndpointResolver

	// History, when set, records one run per executed batch.
	History history.Store

	// HTTPClient allows injecting a custom HTTP client. If nil, a client
	// with a 120 second timeout is used, so a hung pool service cannot
	// block the batch indefinitely.
	HTTPClient *http.Client

	// Validation limits applied to each batch before submission.
	Validation api.ValidationConfig
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Runtime == "" {
		c.Runtime = "python"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
	if c.Resolver == nil {
		c.Resolver = &staticResolver{endpoint: strings.TrimRight(c.Endpoint, "/")}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: 120 * time.Second, // Transport guard; execution timeout is enforced by the pool.
		}
	}
	if c.Validation == (api.ValidationConfig{}) {
		c.Validation = api.DefaultValidationConfig()
	}
}

// Ensure Client implements Executor.
var _ Executor = (*Client)(nil)

// Client executes fragment batches against a session pool service.
type Client struct {
	config Config
	creds  TokenProvider
}

// NewClient creates a Client with the given configuration and credential
// provider.
func NewClient(cfg Config, creds TokenProvider) (*Client, error) {
	if cfg.Endpoint == "" && cfg.Resolver == nil {
		return nil, fmt.Errorf("session: endpoint or resolver is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("session: credential provider is required")
	}
	cfg.applyDefaults()
	return &Client{config: cfg, creds: creds}, nil
}

// Execute submits the fragments in order, one synchronous call each, and
// returns the single aggregated result for the batch.
//
// Credential failures propagate as an error with nothing submitted.
// Transport failures abort the remaining fragments; the partial log is
// still returned with exit status 1. Application errors reported by the
// remote runtime are folded into the log with exit status 1 and, unless
// AbortOnError is set, the batch continues.
func (c *Client) Execute(ctx context.Context, fragments []api.Fragment) (api.AggregatedResult, error) {
	if verr := api.ValidateBatch(fragments, c.config.Validation); verr != nil {
		return api.AggregatedResult{}, verr
	}

	// An empty batch needs no token and no calls.
	if len(fragments) == 0 {
		return api.AggregatedResult{}, nil
	}

	tok, err := c.creds.Token(ctx)
	if err != nil {
		return api.AggregatedResult{}, err
	}

	endpoint, release, err := c.config.Resolver.Resolve(ctx)
	if err != nil {
		return api.AggregatedResult{}, api.NewTransportError(0, "resolving pool endpoint", err)
	}
	defer release()

	observability.BatchesInflight.Inc()
	defer observability.BatchesInflight.Dec()
	started := time.Now()

	var log strings.Builder
	status := 0

	for i, fragment := range fragments {
		out, appErr, err := c.submit(ctx, endpoint, tok, fragment)

		if err != nil {
			// Transport failure: record a diagnostic, abort the batch.
			fmt.Fprintf(&log, "\nfragment %d: %v", i+1, err)
			status = 1
			observability.FragmentsTotal.WithLabelValues(c.config.Runtime, "transport_error").Inc()
			slog.Warn("fragment submission failed, aborting batch",
				"fragment", i+1,
				"total", len(fragments),
				"error", err.Error(),
			)
			break
		}

		log.WriteString(out)

		if appErr != "" {
			log.WriteString("\n")
			log.WriteString(appErr)
			status = 1
			observability.FragmentsTotal.WithLabelValues(c.config.Runtime, "application_error").Inc()
			debug.Log("session", "fragment reported error", "fragment", i+1, "error", appErr)
			if c.config.AbortOnError {
				break
			}
			continue
		}

		observability.FragmentsTotal.WithLabelValues(c.config.Runtime, "ok").Inc()
	}

	result := api.AggregatedResult{Log: log.String(), ExitCode: status}

	batchStatus := "ok"
	if status != 0 {
		batchStatus = "error"
	}
	observability.BatchesTotal.WithLabelValues(c.config.Runtime, batchStatus).Inc()

	c.recordRun(ctx, result, len(fragments), time.Since(started))

	return result, nil
}

// submit performs one fragment's round trip. It returns the output to
// append to the log, the remote error text if the execution completed with
// an error report, and a non-nil error for transport-level failures.
func (c *Client) submit(ctx context.Context, endpoint string, tok credential.Token, fragment api.Fragment) (string, string, error) {
	id := api.NewExecutionID()

	body, err := json.Marshal(executionRequest{
		Identifier:     id,
		Runtime:        c.config.Runtime,
		Code:           string(fragment),
		TimeoutSeconds: c.config.TimeoutSeconds,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	url := endpoint + "/" + c.config.Runtime + "/execute"

	debug.Log("session", "submitting fragment", "id", id, "url", url, "bytes", len(body))
	debug.Raw("transport", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	start := time.Now()
	resp, err := c.config.HTTPClient.Do(req)
	observability.FragmentDuration.WithLabelValues(c.config.Runtime).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", "", fmt.Errorf("pool request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("pool returned HTTP %d: %s", resp.StatusCode, debug.Truncate(string(respBody), 512))
	}

	debug.Raw("transport", string(respBody))

	// A malformed body counts as a transport failure for aggregation.
	var execResp executionResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}

	out := execResp.Stdout + execResp.Stderr
	if execResp.Result != nil {
		out += fmt.Sprintf("%v", execResp.Result)
	}

	return out, execResp.Error, nil
}

// recordRun persists the batch outcome to the history store, when one is
// configured. History failures are logged, never surfaced to the caller.
func (c *Client) recordRun(ctx context.Context, result api.AggregatedResult, fragments int, duration time.Duration) {
	if c.config.History == nil {
		return
	}

	rec := &history.Record{
		ID:        history.NewRunID(),
		Runtime:   c.config.Runtime,
		Fragments: fragments,
		Log:       result.Log,
		ExitCode:  result.ExitCode,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.config.History.SaveRun(ctx, rec); err != nil {
		observability.HistoryWritesTotal.WithLabelValues(c.config.History.Type(), "error").Inc()
		slog.Warn("recording run history failed", "run", rec.ID, "error", err.Error())
		return
	}
	observability.HistoryWritesTotal.WithLabelValues(c.config.History.Type(), "ok").Inc()
	debug.Log("history", "run recorded", "run", rec.ID, "exit_code", rec.ExitCode)
}
