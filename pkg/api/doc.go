// Package api defines the core types for the codepool session execution
// client: code fragments, aggregated batch results, the client-facing
// error taxonomy, execution ID generation, and fragment validation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. Wire-level request and response types live in pkg/session,
// next to the HTTP client that produces them.
package api
