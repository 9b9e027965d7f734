// Command codepool executes code fragments against a managed session pool.
//
// Fragments are read from file arguments, or from stdin when no files are
// given. Within one input, fragments are separated by lines consisting of
// "# ---". With -extract, the input is treated as free-form text and
// fenced code blocks are pulled out instead.
//
// The aggregated log is written to stdout and the process exits with the
// batch exit status.
//
// The run history of the configured store is reachable through the
// "history" subcommand:
//
//	codepool history list
//	codepool history show <run-id>
//	codepool history delete <run-id>
//
// Configuration follows the layered loader: codepool.yaml (or the path in
// CODEPOOL_CONFIG / -config), overridden by CODEPOOL_* environment
// variables. See pkg/config for the full set. With -metrics, a Prometheus
// endpoint is served on the given address for the duration of the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/codepool-dev/codepool/pkg/api"
	"github.com/codepool-dev/codepool/pkg/config"
	"github.com/codepool-dev/codepool/pkg/credential"
	"github.com/codepool-dev/codepool/pkg/history"
	historymemory "github.com/codepool-dev/codepool/pkg/history/memory"
	historypostgres "github.com/codepool-dev/codepool/pkg/history/postgres"
	"github.com/codepool-dev/codepool/pkg/session"
	sessionk8s "github.com/codepool-dev/codepool/pkg/session/kubernetes"
)

// fragmentSeparator splits multi-fragment input files.
const fragmentSeparator = "# ---"

func main() {
	exitCode, err := run()
	if err != nil {
		slog.Error("execution failed", "error", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func run() (int, error) {
	configPath := flag.String("config", "", "path to config file")
	endpoint := flag.String("endpoint", "", "pool management endpoint (overrides config)")
	runtimeName := flag.String("runtime", "", "execution runtime (overrides config)")
	extract := flag.Bool("extract", false, "extract fenced code blocks from the input")
	metricsAddr := flag.String("metrics", "", "address to serve Prometheus metrics on (e.g. :9090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return 1, err
	}
	if *endpoint != "" {
		cfg.Pool.Endpoint = *endpoint
	}
	if *runtimeName != "" {
		cfg.Pool.Runtime = *runtimeName
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 && args[0] == "history" {
		return runHistory(ctx, cfg, args[1:])
	}

	fragments, err := readFragments(flag.Args(), *extract)
	if err != nil {
		return 1, err
	}

	if *metricsAddr != "" {
		serveMetrics(*metricsAddr)
	}

	creds := buildCredentials(cfg)

	store, err := buildHistory(ctx, cfg)
	if err != nil {
		return 1, err
	}
	if store != nil {
		defer store.Close()
	}

	resolver, err := buildResolver(cfg)
	if err != nil {
		return 1, err
	}

	exec, err := session.NewClient(session.Config{
		Endpoint:       cfg.Pool.Endpoint,
		Runtime:        cfg.Pool.Runtime,
		TimeoutSeconds: cfg.Pool.TimeoutSeconds,
		AbortOnError:   cfg.Pool.AbortOnError,
		Resolver:       resolver,
		History:        store,
	}, creds)
	if err != nil {
		return 1, err
	}

	result, err := exec.Execute(ctx, fragments)
	if err != nil {
		return 1, err
	}

	fmt.Print(result.Log)
	return result.ExitCode, nil
}

// runHistory handles the history subcommand: list, show <id>, delete <id>.
func runHistory(ctx context.Context, cfg *config.Config, args []string) (int, error) {
	store, err := buildHistory(ctx, cfg)
	if err != nil {
		return 1, err
	}
	if store == nil {
		return 1, fmt.Errorf("no history store configured (history.type is %q)", cfg.History.Type)
	}
	defer store.Close()

	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		recs, err := store.ListRuns(ctx, 50)
		if err != nil {
			return 1, err
		}
		for _, rec := range recs {
			fmt.Printf("%s  %s  fragments=%d  exit=%d  %s\n",
				rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.Fragments, rec.ExitCode, rec.Duration)
		}
		return 0, nil
	case "show":
		if len(args) < 2 {
			return 1, fmt.Errorf("usage: codepool history show <run-id>")
		}
		rec, err := store.GetRun(ctx, args[1])
		if err != nil {
			return 1, err
		}
		fmt.Printf("id:        %s\nruntime:   %s\nfragments: %d\nexit:      %d\nduration:  %s\ncreated:   %s\n\n%s",
			rec.ID, rec.Runtime, rec.Fragments, rec.ExitCode, rec.Duration, rec.CreatedAt.Format(time.RFC3339), rec.Log)
		return 0, nil
	case "delete":
		if len(args) < 2 {
			return 1, fmt.Errorf("usage: codepool history delete <run-id>")
		}
		if err := store.DeleteRun(ctx, args[1]); err != nil {
			return 1, err
		}
		return 0, nil
	default:
		return 1, fmt.Errorf("unknown history command %q (expected list, show or delete)", args[0])
	}
}

// serveMetrics exposes the Prometheus registry for the duration of the run.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Warn("metrics listener failed", "addr", addr, "error", err.Error())
		}
	}()
}

// readFragments assembles the fragment batch from file arguments or stdin.
func readFragments(paths []string, extract bool) ([]api.Fragment, error) {
	var inputs []string

	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		inputs = append(inputs, string(data))
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		inputs = append(inputs, string(data))
	}

	var fragments []api.Fragment
	for _, input := range inputs {
		if extract {
			fragments = append(fragments, session.ExtractCodeBlocks(input)...)
			continue
		}
		fragments = append(fragments, splitFragments(input)...)
	}
	return fragments, nil
}

// splitFragments splits input on separator lines, dropping empty parts.
func splitFragments(input string) []api.Fragment {
	var fragments []api.Fragment
	for _, part := range strings.Split(input, "\n"+fragmentSeparator+"\n") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		fragments = append(fragments, api.Fragment(part))
	}
	return fragments
}

// buildCredentials assembles the credential chain: explicit token from
// config, then the process environment, then the client credentials grant.
func buildCredentials(cfg *config.Config) *credential.Provider {
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
	return credential.NewProvider(chain, cfg.Credential.DefaultTTL)
}

// buildHistory creates the configured run history store, or nil for "none".
func buildHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return historymemory.New(cfg.History.MaxSize), nil
	case "postgres":
		store, err := historypostgres.New(ctx, historypostgres.Config{
			DSN:            cfg.History.Postgres.DSN,
			MaxConns:       cfg.History.Postgres.MaxConns,
			MigrateOnStart: cfg.History.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting history store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history type %q", cfg.History.Type)
	}
}

// buildResolver creates a claim-based endpoint resolver when a sandbox
// template is configured. A nil resolver leaves the static endpoint in
// charge.
func buildResolver(cfg *config.Config) (session.EndpointResolver, error) {
	if cfg.Kubernetes.Template == "" {
		return nil, nil
	}

	restCfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	scheme, err := sessionk8s.NewScheme()
	if err != nil {
		return nil, err
	}
	k8sClient, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}

	timeout := cfg.Kubernetes.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return sessionk8s.NewClaimResolver(k8sClient, cfg.Kubernetes.Template, cfg.Kubernetes.Namespace, timeout), nil
}
