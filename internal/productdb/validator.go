package productdb

import "strings"

// allowedPrefixes are the only statement kinds the agent may execute.
var allowedPrefixes = []string{"SELECT", "DESCRIBE", "SHOW"}

// forbiddenKeywords are rejected by substring containment on the normalized
// query. This is intentionally conservative: a SELECT whose string literal
// happens to contain "DELETE" is rejected too. Accepted false positive.
var forbiddenKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"CREATE",
	"ALTER",
	"TRUNCATE",
}

// RejectionError reports a query that failed the safety check.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "productdb: query rejected: " + e.Reason
}

// Validate classifies a query string as permitted or rejected. It runs
// before every execution attempt; a rejection is returned to the model as a
// zero-result message, never retried.
func Validate(query string) error {
	normalized := strings.ToUpper(strings.TrimSpace(query))

	allowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return &RejectionError{Reason: "only SELECT, DESCRIBE, and SHOW queries are allowed"}
	}

	for _, keyword := range forbiddenKeywords {
		if strings.Contains(normalized, keyword) {
			return &RejectionError{Reason: "query contains forbidden keyword " + keyword}
		}
	}
	return nil
}
