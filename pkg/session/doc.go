// Package session implements the execution client for managed
// code-interpreter session pools.
//
// A Client submits an ordered sequence of code fragments to the pool's
// execute endpoint, one synchronous HTTP call per fragment, and folds the
// per-fragment outputs into a single api.AggregatedResult. Application
// errors reported by the remote runtime are recorded in the log and force
// a nonzero exit status but (by default) do not stop the batch; transport
// failures stop the batch and return whatever was gathered.
//
// The bearer token authenticating each call comes from a TokenProvider,
// typically a credential.Provider. The endpoint can be fixed configuration
// or resolved per batch through an EndpointResolver (see the kubernetes
// subpackage for a claim-based resolver).
package session
