package api

// Fragment is one unit of source code submitted as a single execution
// request. A fragment has no identity beyond its content and its position
// in the batch; the target language is implied by the pool runtime.
type Fragment string

// AggregatedResult is the single outcome of executing a batch of fragments.
//
// Log is the ordered concatenation of per-fragment outputs in submission
// order. ExitCode is 0 for a fully clean batch and 1 as soon as any
// fragment reports an error; once nonzero it never reverts within a batch.
type AggregatedResult struct {
	Log      string `json:"log"`
	ExitCode int    `json:"exit_code"`
}

// Succeeded reports whether the batch completed without any error.
func (r AggregatedResult) Succeeded() bool {
	return r.ExitCode == 0
}
