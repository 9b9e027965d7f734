// Package kubernetes provides an EndpointResolver implementation that
// acquires pool endpoints through agent-sandbox SandboxClaim CRDs.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/codepool-dev/codepool/pkg/session"
)

// Ensure ClaimResolver implements EndpointResolver.
var _ session.EndpointResolver = (*ClaimResolver)(nil)

// ClaimResolver implements EndpointResolver by creating and deleting
// SandboxClaim CRDs. Each call to Resolve creates a SandboxClaim, waits
// for the corresponding Sandbox to become ready, and returns the
// Sandbox's serviceFQDN as the pool endpoint.
type ClaimResolver struct {
	client    client.Client
	template  string
	namespace string
	timeout   time.Duration
}

// NewClaimResolver creates a ClaimResolver from configuration.
func NewClaimResolver(c client.Client, template, namespace string, timeout time.Duration) *ClaimResolver {
	return &ClaimResolver{
		client:    c,
		template:  template,
		namespace: namespace,
		timeout:   timeout,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Resolve creates a SandboxClaim, waits for the Sandbox to become ready,
// and returns the pool endpoint (http://<serviceFQDN>:8080) along with a
// release function that deletes the claim.
func (r *ClaimResolver) Resolve(ctx context.Context) (string, func(), error) {
	claimName := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: r.namespace,
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: r.template,
			},
		},
	}

	if err := r.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}

	slog.Debug("created SandboxClaim", "name", claimName, "namespace", r.namespace, "template", r.template)

	serviceFQDN, err := r.waitForReady(ctx, claimName)
	if err != nil {
		// Clean up the claim on error.
		r.deleteClaim(context.Background(), claimName)
		return "", nil, err
	}

	endpoint := fmt.Sprintf("http://%s:8080", serviceFQDN)

	release := func() {
		r.deleteClaim(context.Background(), claimName)
	}

	slog.Debug("pool endpoint acquired", "name", claimName, "endpoint", endpoint)
	return endpoint, release, nil
}

// waitForReady polls the Sandbox resource until its Ready condition is True
// or the timeout expires.
func (r *ClaimResolver) waitForReady(ctx context.Context, sandboxName string) (string, error) {
	deadline := time.After(r.timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled waiting for Sandbox %q: %w", sandboxName, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", sandboxName, r.timeout)
		case <-ticker.C:
			sandbox := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: r.namespace}
			if err := r.client.Get(ctx, key, sandbox); err != nil {
				// Sandbox may not exist yet (controller hasn't created it). Keep polling.
				slog.Debug("waiting for Sandbox", "name", sandboxName, "error", err.Error())
				continue
			}

			if isReady(sandbox) {
				if sandbox.Status.ServiceFQDN == "" {
					continue // Ready but FQDN not yet populated.
				}
				return sandbox.Status.ServiceFQDN, nil
			}
		}
	}
}

// isReady checks if the Sandbox has a Ready condition set to True.
func isReady(sandbox *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sandbox.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged but not returned
// since this is called from release functions and cleanup paths.
func (r *ClaimResolver) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: r.namespace,
		},
	}
	if err := r.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", r.namespace, "error", err.Error())
		return
	}
	slog.Debug("deleted SandboxClaim", "name", name, "namespace", r.namespace)
}

// generateClaimNameFn creates a unique name for a SandboxClaim.
// Replaceable in tests for deterministic naming.
var generateClaimNameFn = func() string {
	return fmt.Sprintf("codepool-%d", time.Now().UnixNano())
}
