package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/krish7x/store-agent/internal/domain"
)

// continuationCues mark a turn as a pagination request.
var continuationCues = []string{
	"show more",
	"load more",
	"next page",
	"more results",
	"continue",
	"more",
	"next",
	"additional",
	"further",
	"pagination",
}

var offsetClauseRe = regexp.MustCompile(`(?i)\bOFFSET\s+(\d+)`)

func isContinuationRequest(requestText string) bool {
	lower := strings.ToLower(requestText)
	for _, cue := range continuationCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// resolveNextPage scans history newest-first for the latest bounded query
// and returns it with the offset advanced by one window: LIMIT L with no
// offset becomes OFFSET L, LIMIT L OFFSET O becomes OFFSET O+L. ok is false
// when history holds no bounded query, in which case no deterministic
// continuation exists and the caller must say so to the model instead of
// fabricating one.
func resolveNextPage(history []domain.ChatMessage) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		query, found := queryFromMessage(history[i])
		if !found {
			continue
		}
		m := limitClauseRe.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		limit, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return advanceOffset(query, limit), true
	}
	return "", false
}

func advanceOffset(query string, limit int) string {
	if m := offsetClauseRe.FindStringSubmatch(query); m != nil {
		if offset, err := strconv.Atoi(m[1]); err == nil {
			return offsetClauseRe.ReplaceAllString(query, fmt.Sprintf("OFFSET %d", offset+limit))
		}
	}
	return strings.TrimRight(query, " ;") + fmt.Sprintf(" OFFSET %d", limit)
}

// queryFromMessage extracts the query text from a structured query record:
// either an assistant tool-invocation request or a query-result payload
// carried in an assistant/tool message body.
func queryFromMessage(msg domain.ChatMessage) (string, bool) {
	for _, call := range msg.ToolCalls {
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err == nil && args.Query != "" {
			return args.Query, true
		}
	}
	if msg.Role != domain.RoleAssistant && msg.Role != domain.RoleTool {
		return "", false
	}
	var result domain.QueryResult
	if err := json.Unmarshal([]byte(msg.Content), &result); err == nil && result.Query != "" {
		return result.Query, true
	}
	return "", false
}
