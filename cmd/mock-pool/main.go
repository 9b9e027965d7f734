// Command mock-pool runs a local session pool service for development and
// integration testing. It speaks the same wire protocol as a managed pool:
//
//	POST /{runtime}/execute - execute one code fragment synchronously
//	POST /token             - issue a bearer token (client credentials grant)
//	GET  /healthz           - liveness probe
//
// Execute requests must carry a bearer token minted by /token (or any
// HS256 token signed with the shared secret).
//
// Configuration:
//
//	MOCK_POOL_PORT    - Listen port (default: 8080)
//	MOCK_POOL_SECRET  - HS256 signing secret (default: "dev-secret")
//	MOCK_POOL_NO_AUTH - Set to "true" to skip token verification
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	port := envOr("MOCK_POOL_PORT", "8080")
	secret := envOr("MOCK_POOL_SECRET", "dev-secret")
	noAuth := envOr("MOCK_POOL_NO_AUTH", "") == "true"

	srv := &poolServer{
		secret: []byte(secret),
		noAuth: noAuth,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{runtime}/execute", srv.handleExecute)
	mux.HandleFunc("POST /token", srv.handleToken)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long timeout for code execution.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock pool starting", "port", port, "auth", !noAuth)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

type poolServer struct {
	secret []byte
	noAuth bool
}

// executeProperties is the inner object of the execute request envelope.
// The code itself arrives under a runtime-derived key ("pythonCode"), so
// it is fished out of the raw map separately.
type executeProperties struct {
	Identifier       string `json:"identifier"`
	CodeInputType    string `json:"codeInputType"`
	ExecutionType    string `json:"executionType"`
	TimeoutInSeconds int    `json:"timeoutInSeconds"`
}

type executeResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// interpreters maps runtime path segments to interpreter commands and
// script file extensions.
var interpreters = map[string]struct {
	cmd string
	ext string
}{
	"python": {"python3", ".py"},
	"node":   {"node", ".js"},
	"shell":  {"bash", ".sh"},
}

func (s *poolServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.noAuth {
		if err := s.verifyToken(r); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	runtimeName := r.PathValue("runtime")
	interp, ok := interpreters[runtimeName]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unsupported runtime %q", runtimeName))
		return
	}
	if _, err := exec.LookPath(interp.cmd); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s not found in PATH", interp.cmd))
		return
	}

	var envelope struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10*1024*1024)).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(envelope.Properties) == 0 {
		writeError(w, http.StatusBadRequest, "properties is required")
		return
	}

	var props executeProperties
	if err := json.Unmarshal(envelope.Properties, &props); err != nil {
		writeError(w, http.StatusBadRequest, "invalid properties: "+err.Error())
		return
	}

	// The fragment source sits under the runtime-derived key.
	var raw map[string]any
	if err := json.Unmarshal(envelope.Properties, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid properties: "+err.Error())
		return
	}
	code, _ := raw[runtimeName+"Code"].(string)
	if code == "" {
		writeError(w, http.StatusBadRequest, runtimeName+"Code is required")
		return
	}

	if props.TimeoutInSeconds <= 0 {
		props.TimeoutInSeconds = 30
	}

	slog.Info("execute request",
		"identifier", props.Identifier,
		"runtime", runtimeName,
		"timeout", props.TimeoutInSeconds,
		"bytes", len(code),
	)

	result := s.execute(r.Context(), interp.cmd, interp.ext, code, props.TimeoutInSeconds)

	slog.Info("execute complete",
		"identifier", props.Identifier,
		"stdout_len", len(result.Stdout),
		"error", result.Error != "",
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// execute runs one fragment in a subprocess with a deadline. A non-zero
// exit surfaces through the error field; stdout and stderr are always
// passed through.
func (s *poolServer) execute(ctx context.Context, interpreter, ext, code string, timeoutSecs int) executeResult {
	tmpDir, err := os.MkdirTemp("", "mock-pool-*")
	if err != nil {
		return executeResult{Error: "failed to create temp dir: " + err.Error()}
	}
	defer os.RemoveAll(tmpDir)

	scriptPath := filepath.Join(tmpDir, "fragment"+ext)
	if err := os.WriteFile(scriptPath, []byte(code), 0o644); err != nil {
		return executeResult{Error: "failed to write fragment: " + err.Error()}
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, interpreter, scriptPath)
	cmd.Dir = tmpDir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	execErr := cmd.Run()

	result := executeResult{Stdout: stdoutBuf.String()}

	if execErr == nil {
		result.Stderr = stderrBuf.String()
		return result
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.Error = fmt.Sprintf("execution timed out after %d seconds", timeoutSecs)
		return result
	}

	// Runtime errors report through the error field, as a managed pool
	// does with the interpreter traceback.
	if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
		result.Error = msg
	} else {
		result.Error = execErr.Error()
	}
	return result
}

// --- Token endpoint ---

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleToken implements a minimal client credentials grant. Any non-empty
// client_id is accepted; the mock exists to exercise the token flow, not
// to guard anything.
func (s *poolServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	if grant := r.PostFormValue("grant_type"); grant != "client_credentials" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported grant_type %q", grant))
		return
	}
	clientID := r.PostFormValue("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	const lifetime = time.Hour
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   clientID,
		"scope": r.PostFormValue("scope"),
		"iat":   now.Unix(),
		"exp":   now.Add(lifetime).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signing token: "+err.Error())
		return
	}

	slog.Info("token issued", "client_id", clientID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(lifetime.Seconds()),
	})
}

// verifyToken checks the Authorization header for a valid HS256 token.
func (s *poolServer) verifyToken(r *http.Request) error {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return fmt.Errorf("missing bearer token")
	}

	_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

// --- Helpers ---

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
