// Command mcp-server exposes pool execution as an MCP tool. Agents call
// "execute_code" with one or more fragments and receive the aggregated
// log and exit status.
//
// Configuration follows the layered loader (see pkg/config); the listen
// port comes from PORT (default: 8081).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codepool-dev/codepool/pkg/api"
	"github.com/codepool-dev/codepool/pkg/config"
	"github.com/codepool-dev/codepool/pkg/credential"
	"github.com/codepool-dev/codepool/pkg/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	chain := credential.NewChain(
		&credential.StaticSource{AccessToken: cfg.Credential.Token, Scope: cfg.Credential.Scope},
		&credential.EnvSource{Var: credential.EnvTokenVar, Scope: cfg.Credential.Scope},
		&credential.ClientCredentialsSource{
			TokenURL:     cfg.Credential.TokenURL,
			ClientID:     cfg.Credential.ClientID,
			ClientSecret: cfg.Credential.ClientSecret,
			Scope:        cfg.Credential.Scope,
		},
	)
	creds := credential.NewProvider(chain, cfg.Credential.DefaultTTL)

	exec, err := session.NewClient(session.Config{
		Endpoint:       cfg.Pool.Endpoint,
		Runtime:        cfg.Pool.Runtime,
		TimeoutSeconds: cfg.Pool.TimeoutSeconds,
		AbortOnError:   cfg.Pool.AbortOnError,
	}, creds)
	if err != nil {
		return err
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "codepool", Version: "v1.0.0"},
		nil,
	)

	type ExecuteInput struct {
		Fragments []string `json:"fragments" jsonschema_description:"Ordered code fragments to execute in one batch"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_code",
		Description: "Executes code fragments in a managed session pool and returns the combined output",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ExecuteInput) (*mcp.CallToolResult, struct{}, error) {
		fragments := make([]api.Fragment, 0, len(input.Fragments))
		for _, f := range input.Fragments {
			fragments = append(fragments, api.Fragment(f))
		}

		result, err := exec.Execute(ctx, fragments)
		if err != nil {
			return nil, struct{}{}, err
		}

		return &mcp.CallToolResult{
			IsError: !result.Succeeded(),
			Content: []mcp.Content{
				&mcp.TextContent{Text: result.Log},
			},
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	slog.Info("mcp server starting", "port", port, "runtime", cfg.Pool.Runtime)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
