package normalizer

import (
	"regexp"
	"strings"
)

// MessageNormalizer replaces the dynamic parts of a log line with
// placeholders, so lines reporting the same problem share one fingerprint
type MessageNormalizer struct {
	rules []rule
}

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// NewMessageNormalizer creates a normalizer with compiled patterns.
// Rule order matters: specific shapes are replaced before bare numbers.
func NewMessageNormalizer() *MessageNormalizer {
	return &MessageNormalizer{
		rules: []rule{
			{regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "<GUID>"},
			{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "<TIMESTAMP>"},
			{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`), "<IP>"},
			{regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`), "<HEX>"},
			{regexp.MustCompile(`\b\d+(?:\.\d+)?\b`), "<NUMBER>"},
			{regexp.MustCompile(`"[^"]*"|'[^']*'`), "<STRING>"},
		},
	}
}

// Normalize returns the fingerprint of msg. Empty input yields "".
func (n *MessageNormalizer) Normalize(msg string) string {
	if msg == "" {
		return ""
	}

	normalized := msg
	for _, r := range n.rules {
		normalized = r.pattern.ReplaceAllString(normalized, r.placeholder)
	}

	return strings.Join(strings.Fields(normalized), " ")
}
