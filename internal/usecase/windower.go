package usecase

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/krish7x/store-agent/internal/domain"
)

const defaultResultLimit = 10

var limitClauseRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)

// countCuePatterns extract a requested result count from the user's request
// text. Tried in order; the first match wins.
var countCuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btop\s+(\d+)`),
	regexp.MustCompile(`(?i)\bshow\s+(\d+)`),
	regexp.MustCompile(`(?i)\blimit\s+(\d+)`),
	regexp.MustCompile(`(?i)\b(\d+)\s+results?\b`),
	regexp.MustCompile(`(?i)\b(\d+)\s+items?\b`),
	regexp.MustCompile(`(?i)\b(\d+)\s+products?\b`),
}

// windowResults decides how many fetched rows to surface. An explicit LIMIT
// in the query wins; otherwise a count cue in the request text, capped at
// the fetched total; otherwise the default of 10. Rows are already ordered
// by the query and are never re-sorted here.
func windowResults(query, requestText string, rows []domain.Row) domain.QueryResult {
	total := len(rows)

	limit := defaultResultLimit
	if m := limitClauseRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			limit = n
		}
	} else if n, ok := requestedCount(requestText); ok {
		limit = n
		if limit > total {
			limit = total
		}
	}

	showing := limit
	if showing > total {
		showing = total
	}

	message := fmt.Sprintf("Query executed successfully. Found %d total results. Showing %d results.", total, showing)
	if total == 0 {
		message = "Query executed successfully. No results found."
	}

	return domain.QueryResult{
		TotalAvailable: total,
		Results:        rows[:showing],
		Query:          query,
		Message:        message,
		Showing:        showing,
		HasMore:        total > showing,
	}
}

func requestedCount(requestText string) (int, bool) {
	for _, pattern := range countCuePatterns {
		if m := pattern.FindStringSubmatch(requestText); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
