package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxTokens = 2000

	approxCharsPerToken = 4
	rawPreviewLen       = 200
)

// Compress renders records, in order, as one line each and stops before the estimated
// token count would exceed maxTokens. The first record is always kept so non-empty input
// never yields empty output. maxTokens <= 0 uses DefaultMaxTokens.
func Compress(records []Record, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	total := 0
	parts := make([]string, 0, len(records))
	for _, r := range records {
		line := renderLine(r)
		tokens := EstimateTokens(line)
		if total+tokens > maxTokens && len(parts) > 0 {
			break
		}
		parts = append(parts, line)
		total += tokens
	}

	return strings.Join(parts, "\n\n")
}

// EstimateTokens approximates the token count of s as ceil(chars/4)
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + approxCharsPerToken - 1) / approxCharsPerToken
}

func renderLine(r Record) string {
	text := r.Summary
	if text == "" {
		text = truncateRunes(r.Raw, rawPreviewLen)
	}
	return fmt.Sprintf("[%s] (%s) %s", r.ID, r.Type, text)
}
