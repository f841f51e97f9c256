package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/krish7x/store-agent/internal/domain"
)

const defaultModel = "gpt-4o-mini"

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// StatusError carries the upstream HTTP status of a failed model call so
// callers can distinguish rate limiting from other failures.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: upstream status %d: %v", e.Status, e.Err)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.Status
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Client is a chat-completions client for the conversational engine. The API
// key is fetched from SSM on the first call and reused for the lifetime of
// the process.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string
	model       string

	initOnce sync.Once
	api      *openai.Client
	initErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = model
		}
	}
}

// NewClient creates a new Client backed by the given paramstore Getter for
// API key retrieval.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("llm: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("llm: parameter prefix must not be empty")
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		model:       defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPI builds the underlying OpenAI client on the first call, fetching
// the API key from SSM, and returns the cached client afterwards.
func (c *Client) resolveAPI(ctx context.Context) (*openai.Client, error) {
	c.initOnce.Do(func() {
		apiKey, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			c.initErr = err
			return
		}
		cfg := openai.DefaultConfig(apiKey)
		if c.baseURL != "" {
			cfg.BaseURL = c.baseURL
		}
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.api = openai.NewClientWithConfig(cfg)
	})
	return c.api, c.initErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// Chat runs a plain completion and returns the assistant text.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toWireMessages(messages),
	})
	if err != nil {
		return "", wrapModelError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatWithTools runs a completion with the given tools offered and returns
// the assistant text plus any tool calls the model requested.
func (c *Client) ChatWithTools(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolSpec) (domain.ModelReply, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return domain.ModelReply{}, err
	}

	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toWireMessages(messages),
		Tools:    toWireTools(tools),
	})
	if err != nil {
		return domain.ModelReply{}, wrapModelError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.ModelReply{}, errors.New("llm: no choices in response")
	}

	choice := resp.Choices[0].Message
	reply := domain.ModelReply{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return reply, nil
}

// toWireMessages maps domain messages onto the wire format. Messages restored
// from compacted storage have lost their tool-call IDs, which the API
// requires for assistant/tool pairing, so those are replayed as plain text
// instead.
func toWireMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	wire := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleAssistant:
			if len(msg.ToolCalls) > 0 && msg.ToolCalls[0].ID == "" {
				wire = append(wire, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: describeToolCalls(msg.ToolCalls),
				})
				continue
			}
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			wire = append(wire, out)
		case domain.RoleTool:
			if msg.ToolCallID == "" {
				wire = append(wire, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: "[Tool result] " + msg.Content,
				})
				continue
			}
			wire = append(wire, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case domain.RoleSystem:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		default:
			wire = append(wire, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return wire
}

func describeToolCalls(calls []domain.ToolCall) string {
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, fmt.Sprintf("[Tool call] %s %s", call.Name, call.Arguments))
	}
	return strings.Join(parts, "\n")
}

func toWireTools(tools []domain.ToolSpec) []openai.Tool {
	wire := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		wire = append(wire, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(tool.Parameters),
			},
		})
	}
	return wire
}

// wrapModelError surfaces the upstream HTTP status when the library exposes one.
func wrapModelError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("llm: request failed: %w", err)
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("llm: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("llm: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("llm: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("llm: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("llm: API token is empty")
	}
	return tp.Token, nil
}
