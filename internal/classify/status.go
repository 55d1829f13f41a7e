// Package classify maps free-text operation statuses onto success, pending
// and failure.
//
// Statuses have no closed vocabulary, so every predicate matches by substring
// on the lower-cased status. Precedence is success, then pending, then
// failure: a status carrying a success token is never pending.
package classify

import "strings"

// Class is the bucket a status falls into.
type Class string

const (
	ClassSuccess Class = "success"
	ClassPending Class = "pending"
	ClassFailure Class = "failure"
	ClassUnknown Class = "unknown"
)

var (
	successTokens = []string{"minted", "withdraw_successful", "withdraw_completed", "client_notified"}
	pendingTokens = []string{"pending", "processing", "initiated", "in_progress", "hold", "review"}
	failureTokens = []string{"failed", "error", "cancelled", "rejected"}
)

// IsSuccess reports whether the status contains a success token.
func IsSuccess(status string) bool {
	return containsAny(normalize(status), successTokens)
}

// IsFailure reports whether the status contains a failure token.
func IsFailure(status string) bool {
	return containsAny(normalize(status), failureTokens)
}

// IsPending reports whether the status contains a pending token and is
// neither a success nor a failure.
func IsPending(status string) bool {
	s := normalize(status)
	return containsAny(s, pendingTokens) &&
		!containsAny(s, successTokens) &&
		!containsAny(s, failureTokens)
}

// Classify evaluates the predicates in precedence order.
func Classify(status string) Class {
	switch {
	case IsSuccess(status):
		return ClassSuccess
	case IsPending(status):
		return ClassPending
	case IsFailure(status):
		return ClassFailure
	default:
		return ClassUnknown
	}
}

func normalize(status string) string {
	return strings.ToLower(status)
}

func containsAny(s string, tokens []string) bool {
	if s == "" {
		return false
	}
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
