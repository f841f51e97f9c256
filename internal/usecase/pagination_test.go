package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krish7x/store-agent/internal/domain"
)

func resultMessage(t *testing.T, query string) domain.ChatMessage {
	t.Helper()
	body, err := json.Marshal(domain.QueryResult{
		TotalAvailable: 100,
		Results:        []domain.Row{},
		Query:          query,
		Message:        "ok",
		Showing:        20,
		HasMore:        true,
	})
	require.NoError(t, err)
	return domain.ChatMessage{Role: domain.RoleTool, Content: string(body), ToolCallID: "call-1"}
}

func TestIsContinuationRequest(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"show more", true},
		{"Load More please", true},
		{"next page", true},
		{"can I see additional options", true},
		{"continue", true},
		{"show me rings", false},
		{"rings under 50k", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isContinuationRequest(tc.text), "text=%q", tc.text)
	}
}

func TestResolveNextPage_AppendsOffset(t *testing.T) {
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "show me expensive rings"},
		resultMessage(t, "SELECT * FROM product ORDER BY price DESC LIMIT 20"),
	}

	next, ok := resolveNextPage(history)
	require.True(t, ok)
	require.Equal(t, "SELECT * FROM product ORDER BY price DESC LIMIT 20 OFFSET 20", next)
}

func TestResolveNextPage_AdvancesExistingOffset(t *testing.T) {
	history := []domain.ChatMessage{
		resultMessage(t, "SELECT * FROM product LIMIT 20 OFFSET 20"),
	}

	next, ok := resolveNextPage(history)
	require.True(t, ok)
	require.Equal(t, "SELECT * FROM product LIMIT 20 OFFSET 40", next)
}

func TestResolveNextPage_UsesMostRecentBoundedQuery(t *testing.T) {
	history := []domain.ChatMessage{
		resultMessage(t, "SELECT * FROM product LIMIT 10"),
		{Role: domain.RoleUser, Content: "what about earrings"},
		resultMessage(t, "SELECT * FROM product WHERE jewellery_type = 'Earrings' LIMIT 5"),
	}

	next, ok := resolveNextPage(history)
	require.True(t, ok)
	require.Equal(t, "SELECT * FROM product WHERE jewellery_type = 'Earrings' LIMIT 5 OFFSET 5", next)
}

func TestResolveNextPage_SkipsUnboundedQueries(t *testing.T) {
	history := []domain.ChatMessage{
		resultMessage(t, "SELECT * FROM product LIMIT 10"),
		resultMessage(t, "SELECT count(*) FROM product"),
	}

	next, ok := resolveNextPage(history)
	require.True(t, ok)
	require.Equal(t, "SELECT * FROM product LIMIT 10 OFFSET 10", next)
}

func TestResolveNextPage_NoBoundedQuery(t *testing.T) {
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "Hi, how can I help?"},
	}

	_, ok := resolveNextPage(history)
	require.False(t, ok)
}

func TestResolveNextPage_FindsQueryInToolCallArguments(t *testing.T) {
	history := []domain.ChatMessage{
		{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				Name:      "execute_sql_query",
				Arguments: `{"query":"SELECT sku FROM product LIMIT 15"}`,
			}},
		},
	}

	next, ok := resolveNextPage(history)
	require.True(t, ok)
	require.Equal(t, "SELECT sku FROM product LIMIT 15 OFFSET 15", next)
}

func TestAdvanceOffset_TrimsTrailingSemicolon(t *testing.T) {
	require.Equal(t, "SELECT * FROM product LIMIT 10 OFFSET 10", advanceOffset("SELECT * FROM product LIMIT 10; ", 10))
}
