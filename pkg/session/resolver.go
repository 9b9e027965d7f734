package session

import "context"

// EndpointResolver yields the pool management endpoint for one batch.
// Implementations exist for static configuration (this package) and for
// claim-based acquisition of pooled sandboxes (the kubernetes subpackage).
type EndpointResolver interface {
	// Resolve returns the endpoint base URL to use for the batch.
	// The release function must be called after the batch completes.
	Resolve(ctx context.Context) (endpoint string, release func(), err error)
}

// staticResolver returns a fixed endpoint from configuration.
type staticResolver struct {
	endpoint string
}

func (r *staticResolver) Resolve(_ context.Context) (string, func(), error) {
	return r.endpoint, func() {}, nil // No cleanup needed for a static endpoint.
}
