package session

import "encoding/json"

// executionRequest is the request body for POST {endpoint}/{runtime}/execute.
// The pool API wraps all request fields in a "properties" object, and the
// source field key is derived from the runtime path segment ("pythonCode",
// "nodeCode", ...), so the body is marshaled by hand.
type executionRequest struct {
	// Identifier is an opaque correlation string for this fragment's
	// round trip.
	Identifier string

	// Runtime is the pool runtime path segment.
	Runtime string

	// Code is the fragment source text.
	Code string

	// TimeoutSeconds is the in-band execution timeout communicated to the
	// pool service.
	TimeoutSeconds int
}

// MarshalJSON builds the properties envelope with the runtime-derived
// code key.
func (r executionRequest) MarshalJSON() ([]byte, error) {
	props := map[string]any{
		"identifier":       r.Identifier,
		"codeInputType":    "inline",
		"executionType":    "synchronous",
		r.Runtime + "Code": r.Code,
		"timeoutInSeconds": r.TimeoutSeconds,
	}
	return json.Marshal(map[string]any{"properties": props})
}

// executionResponse is the pool service's response for one fragment.
// Every field is optional; an absent field is equivalent to empty content.
type executionResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Result any    `json:"result"`
	Error  string `json:"error"`
}
