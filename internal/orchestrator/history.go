package orchestrator

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Cyclone1070/pharmassist/internal/orchestrator/models"
)

const (
	summaryQuestionLimit = 5
	summarySnippetRunes  = 80
	charsPerToken        = 4
)

type historyOptions struct {
	maxMessages int
	maxTokens   int
	keepRecent  int
}

// sanitizeHistory keeps the user and assistant text turns of caller-supplied
// history. Tool traffic from earlier runs cannot be replayed because its
// tool_call_ids belong to those runs.
func sanitizeHistory(history []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		out = append(out, models.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// estimateTokens approximates token count from character count.
func estimateTokens(messages []models.Message) int {
	chars := 0
	for _, msg := range messages {
		chars += utf8.RuneCountInString(msg.Content)
	}
	return chars / charsPerToken
}

// compressHistory keeps the most recent messages verbatim and replaces older
// ones with a single summary message when either budget is exceeded.
func compressHistory(history []models.Message, opts historyOptions) ([]models.Message, bool) {
	overCount := opts.maxMessages > 0 && len(history) > opts.maxMessages
	overTokens := opts.maxTokens > 0 && estimateTokens(history) > opts.maxTokens
	if !overCount && !overTokens {
		return history, false
	}
	if opts.keepRecent <= 0 || len(history) <= opts.keepRecent {
		return history, false
	}

	cut := len(history) - opts.keepRecent
	older, recent := history[:cut], history[cut:]

	out := make([]models.Message, 0, len(recent)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: summarize(older)})
	out = append(out, recent...)
	return out, true
}

func summarize(older []models.Message) string {
	var questions []string
	for _, msg := range slices.Backward(older) {
		if msg.Role != models.RoleUser {
			continue
		}
		questions = append(questions, snippet(msg.Content, summarySnippetRunes))
		if len(questions) == summaryQuestionLimit {
			break
		}
	}
	slices.Reverse(questions)

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d earlier messages.", len(older))
	if len(questions) > 0 {
		b.WriteString(" The user previously asked: ")
		b.WriteString(strings.Join(questions, "; "))
		b.WriteString(".")
	}
	return b.String()
}

func snippet(text string, limit int) string {
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

type entityPattern struct {
	label   string
	pattern *regexp.Regexp
}

var entityPatterns = []entityPattern{
	{"medication ids", regexp.MustCompile(`\bmed_\d+\b`)},
	{"store ids", regexp.MustCompile(`\bstore_\d+\b`)},
	{"prescription ids", regexp.MustCompile(`\brx_\d+\b`)},
}

// contextHint lists entity ids already mentioned in history so the model can
// reuse them instead of repeating lookups.
func contextHint(history []models.Message) (models.Message, bool) {
	var sections []string
	for _, ep := range entityPatterns {
		var found []string
		for _, msg := range history {
			for _, id := range ep.pattern.FindAllString(msg.Content, -1) {
				if !slices.Contains(found, id) {
					found = append(found, id)
				}
			}
		}
		if len(found) > 0 {
			sections = append(sections, ep.label+": "+strings.Join(found, ", "))
		}
	}
	if len(sections) == 0 {
		return models.Message{}, false
	}
	return models.Message{
		Role: models.RoleSystem,
		Content: "Entities already known from this conversation: " + strings.Join(sections, "; ") +
			". Reuse these ids instead of looking them up again.",
	}, true
}
