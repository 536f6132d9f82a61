// Package tokenizer splits document text into the ordered token sequence the
// postings builder consumes. Tokens are kept verbatim: no case folding,
// stop-word removal or stemming.
package tokenizer

import "strings"

// Split breaks text on single spaces and drops the empty strings produced by
// runs of spaces. The result is never nil.
func Split(text string) []string {
	parts := strings.Split(text, " ")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		terms = append(terms, p)
	}
	return terms
}
