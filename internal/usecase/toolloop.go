package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/krish7x/store-agent/internal/domain"
	"github.com/krish7x/store-agent/internal/productdb"
)

const (
	// maxToolCycles bounds the ask-model/run-tool loop. A normal turn takes
	// one cycle, a schema-discovery turn two.
	maxToolCycles = 8

	executeQueryToolName = "execute_sql_query"
)

func queryToolSpecs() []domain.ToolSpec {
	return []domain.ToolSpec{
		{
			Name:        executeQueryToolName,
			Description: "Execute a SQL query on the product table (SELECT, DESCRIBE, SHOW only for safety).",
			Parameters: `{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "The SQL query to execute"}
				},
				"required": ["query"],
				"additionalProperties": false
			}`,
		},
	}
}

// runProductFilter drives the SQL handler through repeated ask-model /
// run-tool cycles until a terminal answer is produced. It returns the
// messages appended during the loop. Tool failures are folded into the
// conversation as zero-result payloads; only model-call failures abort the
// turn.
func (s *ChatService) runProductFilter(ctx context.Context, messages []domain.ChatMessage, requestText string) ([]domain.ChatMessage, error) {
	var appended []domain.ChatMessage
	working := messages

	for cycle := 0; cycle < maxToolCycles; cycle++ {
		reply, err := s.llm.ChatWithTools(ctx, working, queryToolSpecs())
		if err != nil {
			return nil, modelCallError("query_model_error", err)
		}

		if len(reply.ToolCalls) == 0 {
			appended = append(appended, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Content})
			return appended, nil
		}

		// Only the first tool call per model reply is honored.
		call := reply.ToolCalls[0]
		if len(reply.ToolCalls) > 1 {
			discarded := make([]string, 0, len(reply.ToolCalls)-1)
			for _, extra := range reply.ToolCalls[1:] {
				discarded = append(discarded, extra.Name)
			}
			slog.Warn("discarding additional tool calls in model reply",
				"executed", call.Name,
				"discarded", strings.Join(discarded, ","),
			)
		}
		if call.ID == "" {
			call.ID = newToolCallID()
		}

		assistantMsg := domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: []domain.ToolCall{call},
		}

		result := s.executeQueryTool(ctx, call, requestText)
		toolMsg := domain.ChatMessage{
			Role:       domain.RoleTool,
			Content:    marshalQueryResult(result),
			ToolCallID: call.ID,
		}

		appended = append(appended, assistantMsg, toolMsg)
		working = append(working, assistantMsg, toolMsg)

		// A metadata query (DESCRIBE/SHOW) means the handler is in its
		// schema-discovery phase; loop back so the model can produce the
		// real query. A data result is terminal.
		if !isMetadataQuery(result.Query) {
			return appended, nil
		}
	}

	return nil, newError(ErrorUpstream, "tool_cycle_limit", fmt.Errorf("usecase: no terminal answer after %d cycles", maxToolCycles))
}

// executeQueryTool runs the validate -> execute -> window pipeline for one
// tool call. All failures come back as zero-result payloads so the loop
// always reaches a terminal state.
func (s *ChatService) executeQueryTool(ctx context.Context, call domain.ToolCall, requestText string) domain.QueryResult {
	if call.Name != executeQueryToolName {
		return zeroResult("", fmt.Sprintf("Error: unknown tool %q.", call.Name))
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return zeroResult("", "Error: tool arguments are not valid JSON.")
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return zeroResult("", "Error: tool call is missing a query argument.")
	}

	if err := productdb.Validate(query); err != nil {
		slog.Info("query rejected by safety validator", "query", query)
		return zeroResult(query, "Error: "+err.Error())
	}

	rows, _, err := s.db.Execute(ctx, query)
	if err != nil {
		slog.Error("query execution failed", "query", query, "err", err)
		return zeroResult(query, "Error executing query: "+err.Error())
	}

	return windowResults(query, requestText, rows)
}

func zeroResult(query, message string) domain.QueryResult {
	return domain.QueryResult{
		TotalAvailable: 0,
		Results:        []domain.Row{},
		Query:          query,
		Message:        message,
		Showing:        0,
		HasMore:        false,
	}
}

func isMetadataQuery(query string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(normalized, "DESCRIBE") || strings.HasPrefix(normalized, "SHOW")
}

func marshalQueryResult(result domain.QueryResult) string {
	payload, err := json.Marshal(result)
	if err != nil {
		// Row values are plain scan results; this should not happen.
		slog.Error("failed to marshal query result", "err", err)
		return fmt.Sprintf(`{"total_available":0,"results":[],"query":%q,"message":"Error: failed to encode query result.","showing":0,"has_more":false}`, result.Query)
	}
	return string(payload)
}

var newToolCallID = func() string {
	return uuid.NewString()
}
