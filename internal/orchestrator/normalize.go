package orchestrator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

type normalizeOptions struct {
	maxLength        int
	maxWordRepeats   int
	collapsedRepeats int
}

// normalizeInput collapses whitespace, shortens runs of one word repeated
// more than maxWordRepeats times to collapsedRepeats, and truncates to
// maxLength runes. It reports whether the text changed.
func normalizeInput(text string, opts normalizeOptions) (string, bool) {
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	cleaned = collapseRepeats(cleaned, opts.maxWordRepeats, opts.collapsedRepeats)
	cleaned = truncateRunes(cleaned, opts.maxLength)
	return cleaned, cleaned != text
}

func collapseRepeats(text string, maxRepeats, keep int) string {
	if maxRepeats <= 0 {
		return text
	}
	words := strings.Split(text, " ")
	out := make([]string, 0, len(words))

	for i := 0; i < len(words); {
		j := i + 1
		for j < len(words) && strings.EqualFold(words[j], words[i]) {
			j++
		}
		run := j - i
		if run > maxRepeats {
			run = keep
		}
		out = append(out, words[i:i+run]...)
		i = j
	}
	return strings.Join(out, " ")
}

func truncateRunes(text string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxLength]))
}
