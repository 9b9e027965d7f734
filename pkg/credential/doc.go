// Package credential resolves and caches the bearer token that
// authenticates requests to the session pool service.
//
// Resolution uses an ambient identity chain: sources are evaluated in
// order and the first one that yields a token wins. A source that has
// nothing configured abstains with ErrNoCredential and the chain moves
// on; a source that fails hard (for example, a rejected token request)
// stops the chain.
//
// The Provider wraps a chain with process-lifetime caching: the resolved
// token is reused until 80% of its lifetime has elapsed, then proactively
// re-resolved. If re-resolution fails while the cached token is still
// valid, the cached token keeps being served.
package credential
