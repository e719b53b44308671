package orchestrator

import "strings"

// authErrorSignatures identify authentication failures in tool error text.
var authErrorSignatures = []string{
	"authentication",
	"login required",
	"not authenticated",
	"unauthorized",
	"access denied",
}

func isAuthError(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, sig := range authErrorSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
