package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/codepool-dev/codepool/pkg/api"
	"github.com/codepool-dev/codepool/pkg/credential"
	"github.com/codepool-dev/codepool/pkg/history/memory"
	"github.com/codepool-dev/codepool/pkg/session"
)

// newPoolClient wires a full client against the mock pool: client
// credentials grant for the token, memory store for history.
func newPoolClient(t *testing.T, cfg session.Config) (*session.Client, *credential.Provider) {
	t.Helper()

	chain := credential.NewChain(
		&credential.ClientCredentialsSource{
			TokenURL:     testEnv.Pool.URL + "/token",
			ClientID:     "integration-client",
			ClientSecret: "integration-secret",
		},
	)
	creds := credential.NewProvider(chain, time.Hour)

	cfg.Endpoint = testEnv.Pool.URL
	client, err := session.NewClient(cfg, creds)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, creds
}

func TestExecute_EndToEnd(t *testing.T) {
	testEnv.Reset(t)

	store := memory.New(10)
	client, _ := newPoolClient(t, session.Config{History: store})

	result, err := client.Execute(context.Background(), []api.Fragment{
		"print('one')",
		"print('two')",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
	if result.Log != "one\ntwo\n" {
		t.Errorf("log = %q, want %q", result.Log, "one\ntwo\n")
	}

	// The pool saw both fragments in order, with valid tokens.
	reqs := testEnv.Requests()
	if len(reqs) != 2 {
		t.Fatalf("pool saw %d requests, want 2", len(reqs))
	}
	for i, req := range reqs {
		if req.Runtime != "python" {
			t.Errorf("request %d runtime = %q, want python", i, req.Runtime)
		}
		if !api.ValidateExecutionID(req.Identifier) {
			t.Errorf("request %d identifier = %q, not a valid execution ID", i, req.Identifier)
		}
		if req.Timeout != 60 {
			t.Errorf("request %d timeout = %d, want default 60", i, req.Timeout)
		}
	}

	// One run landed in history.
	recs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Fragments != 2 || recs[0].ExitCode != 0 {
		t.Errorf("history = %+v, want one successful 2-fragment run", recs)
	}
}

func TestExecute_TokenIsReusedAcrossBatches(t *testing.T) {
	testEnv.Reset(t)

	client, _ := newPoolClient(t, session.Config{})

	for i := 0; i < 3; i++ {
		if _, err := client.Execute(context.Background(), []api.Fragment{"print('x')"}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	reqs := testEnv.Requests()
	if len(reqs) != 3 {
		t.Fatalf("pool saw %d requests, want 3", len(reqs))
	}
	for i := 1; i < len(reqs); i++ {
		if reqs[i].Token != reqs[0].Token {
			t.Errorf("request %d used a different token; the cached token should be reused", i)
		}
	}
}

func TestExecute_ApplicationErrorContinuesBatch(t *testing.T) {
	testEnv.Reset(t)

	client, _ := newPoolClient(t, session.Config{})

	result, err := client.Execute(context.Background(), []api.Fragment{
		"print('before')",
		"error: NameError: name 'x' is not defined",
		"print('after')",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", result.ExitCode)
	}
	want := "before\n\nNameError: name 'x' is not definedafter\n"
	if result.Log != want {
		t.Errorf("log = %q, want %q", result.Log, want)
	}
	if len(testEnv.Requests()) != 3 {
		t.Errorf("pool saw %d requests, want all 3 fragments submitted", len(testEnv.Requests()))
	}
}

func TestExecute_TransportFailureAborts(t *testing.T) {
	testEnv.Reset(t)

	client, _ := newPoolClient(t, session.Config{})

	result, err := client.Execute(context.Background(), []api.Fragment{
		"print('ok')",
		"fail",
		"print('never')",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", result.ExitCode)
	}
	if !strings.HasPrefix(result.Log, "ok\n") {
		t.Errorf("log = %q, want partial output preserved", result.Log)
	}
	if len(testEnv.Requests()) != 2 {
		t.Errorf("pool saw %d requests, want 2 (batch aborted)", len(testEnv.Requests()))
	}
}

func TestExecute_InvalidCredentialsRejected(t *testing.T) {
	testEnv.Reset(t)

	// A static token the pool did not mint is rejected with HTTP 401,
	// which surfaces as a transport failure in the aggregated result.
	creds := credential.NewProvider(&credential.StaticSource{AccessToken: "forged"}, time.Hour)
	client, err := session.NewClient(session.Config{Endpoint: testEnv.Pool.URL}, creds)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	result, err := client.Execute(context.Background(), []api.Fragment{"print('x')"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", result.ExitCode)
	}
	if !strings.Contains(result.Log, "401") {
		t.Errorf("log = %q, want HTTP 401 diagnostic", result.Log)
	}
}

func TestExecute_AlternateRuntime(t *testing.T) {
	testEnv.Reset(t)

	client, _ := newPoolClient(t, session.Config{Runtime: "node"})

	if _, err := client.Execute(context.Background(), []api.Fragment{"print('js')"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	reqs := testEnv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("pool saw %d requests, want 1", len(reqs))
	}
	if reqs[0].Runtime != "node" {
		t.Errorf("runtime = %q, want node", reqs[0].Runtime)
	}
	if reqs[0].Code != "print('js')" {
		t.Errorf("code = %q, the nodeCode key must carry the fragment", reqs[0].Code)
	}
}
