package session

import (
	"regexp"

	"github.com/codepool-dev/codepool/pkg/api"
)

// fencePattern matches fenced code blocks with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")

// ExtractCodeBlocks pulls fenced code blocks out of free-form text and
// returns them as fragments in document order. It is the default code
// extractor for orchestration layers that hand the client raw model
// output instead of pre-split fragments. Text without fences yields nil.
func ExtractCodeBlocks(text string) []api.Fragment {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	fragments := make([]api.Fragment, 0, len(matches))
	for _, m := range matches {
		fragments = append(fragments, api.Fragment(m[1]))
	}
	return fragments
}
