package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krish7x/store-agent/internal/domain"
)

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/store-agent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyPrefix(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestNewClient_Valid(t *testing.T) {
	c, err := NewClient(&fakeGetter{}, "/store-agent")
	require.NoError(t, err)
	require.Equal(t, defaultModel, c.model)
	require.NotNil(t, c.getter)
}

// ---------------------------------------------------------------------------
// resolveAPI — SSM caching behaviour
// ---------------------------------------------------------------------------

func TestResolveAPI_KeyFetchedOnFirstCall(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/store-agent")
	require.NoError(t, err)

	api, err := c.resolveAPI(context.Background())
	require.NoError(t, err)
	require.NotNil(t, api)
	require.Equal(t, 1, calls)

	// subsequent calls must never hit SSM again
	_, _ = c.resolveAPI(context.Background())
	_, _ = c.resolveAPI(context.Background())
	require.Equal(t, 1, calls, "SSM must only be called once per process lifetime")
}

// ---------------------------------------------------------------------------
// fetchAPIKeyFromParamStore
// ---------------------------------------------------------------------------

// fakeGetter is a minimal paramstore Getter stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	onCall func() // optional; called on each GetParameter invocation
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestFetchAPIKey_JSONToken(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-json"}`}
	key, err := fetchAPIKeyFromParamStore(context.Background(), g, "/store-agent/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", key)
}

func TestFetchAPIKey_JSONMissingTokenField(t *testing.T) {
	g := &fakeGetter{val: `{"other":"value"}`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/store-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API token is empty")
}

func TestFetchAPIKey_MalformedJSON(t *testing.T) {
	g := &fakeGetter{val: `{"broken`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/store-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestFetchAPIKey_GetterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/store-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestFetchAPIKey_EmptyName(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-json"}`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

// ---------------------------------------------------------------------------
// Chat / ChatWithTools
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/store-agent",
		WithBaseURL(srv.URL+"/v1"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithModel("gpt-mock"),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `"model":"gpt-mock"`)
		require.Contains(t, string(reqBody), "show me rings")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1670000000,
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "show me rings"}})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", resp)
}

func TestClient_Chat_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 429, statusErr.HTTPStatusCode())
}

func TestClient_Chat_500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`{"error":{"message":"internal server error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 500, statusErr.HTTPStatusCode())
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Chat_KeyFetchError(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("ssm unavailable")}, "/store-agent")
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestClient_ChatWithTools_ReturnsToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `"tools"`)
		require.Contains(t, string(reqBody), "execute_sql_query")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call-1",
						"type": "function",
						"function": {
							"name": "execute_sql_query",
							"arguments": "{\"query\":\"SELECT * FROM product LIMIT 5\"}"
						}
					}]
				}
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.ChatWithTools(context.Background(),
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "show me top 5 rings"}},
		[]domain.ToolSpec{{
			Name:        "execute_sql_query",
			Description: "Execute a SQL query",
			Parameters:  `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
		}},
	)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	require.Equal(t, "call-1", reply.ToolCalls[0].ID)
	require.Equal(t, "execute_sql_query", reply.ToolCalls[0].Name)
	require.Contains(t, reply.ToolCalls[0].Arguments, "SELECT * FROM product LIMIT 5")
}

// ---------------------------------------------------------------------------
// toWireMessages
// ---------------------------------------------------------------------------

func TestToWireMessages_ToolMessageWithID(t *testing.T) {
	wire := toWireMessages([]domain.ChatMessage{
		{Role: domain.RoleTool, Content: `{"query":"SELECT 1"}`, ToolCallID: "call-1"},
	})
	require.Len(t, wire, 1)
	require.Equal(t, "tool", wire[0].Role)
	require.Equal(t, "call-1", wire[0].ToolCallID)
}

func TestToWireMessages_ToolMessageWithoutIDBecomesUserText(t *testing.T) {
	wire := toWireMessages([]domain.ChatMessage{
		{Role: domain.RoleTool, Content: `{"query":"SELECT 1"}`},
	})
	require.Len(t, wire, 1)
	require.Equal(t, "user", wire[0].Role)
	require.Contains(t, wire[0].Content, "[Tool result]")
}

func TestToWireMessages_AssistantToolCallsWithoutIDBecomeText(t *testing.T) {
	wire := toWireMessages([]domain.ChatMessage{
		{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				Name:      "execute_sql_query",
				Arguments: `{"query":"SELECT 1"}`,
			}},
		},
	})
	require.Len(t, wire, 1)
	require.Equal(t, "assistant", wire[0].Role)
	require.Empty(t, wire[0].ToolCalls)
	require.Contains(t, wire[0].Content, "execute_sql_query")
}

func TestToWireMessages_AssistantToolCallsWithIDKeepStructure(t *testing.T) {
	wire := toWireMessages([]domain.ChatMessage{
		{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				ID:        "call-1",
				Name:      "execute_sql_query",
				Arguments: `{"query":"SELECT 1"}`,
			}},
		},
	})
	require.Len(t, wire, 1)
	require.Len(t, wire[0].ToolCalls, 1)
	require.Equal(t, "call-1", wire[0].ToolCalls[0].ID)
}
