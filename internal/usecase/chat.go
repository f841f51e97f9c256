package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/krish7x/store-agent/internal/domain"
)

const (
	defaultMaxQuestion = 300

	// maxHistoryMessages is the self-healing bound on stored history: a
	// session over the ceiling is fully cleared before the new turn runs.
	maxHistoryMessages = 100
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
	ChatWithTools(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolSpec) (domain.ModelReply, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]domain.Row, []string, error)
}

type HistoryStore interface {
	GetHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	SaveHistory(ctx context.Context, sessionID string, messages []domain.ChatMessage) error
	ClearHistory(ctx context.Context, sessionID string) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService coordinates one conversational turn: load history, route,
// run the selected handler, summarize, persist, respond.
type ChatService struct {
	params         ParamGetter
	llm            LLMClient
	db             QueryExecutor
	history        HistoryStore
	paramPrefix    string
	maxQuestionLen int

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	storeContext string
	schemaNotes  string
}

type ChatInput struct {
	Query     string
	UserEmail string
	Cart      []string
	StoreCode string
}

type ChatOutput struct {
	Summary   string
	Query     string
	Result    domain.QueryResult
	SessionID string
}

func NewChatService(p ParamGetter, llm LLMClient, db QueryExecutor, h HistoryStore, paramPrefix string, maxQuestionLen int) (*ChatService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if db == nil {
		return nil, errors.New("usecase: query executor must not be nil")
	}
	if h == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	return &ChatService{
		params:         p,
		llm:            llm,
		db:             db,
		history:        h,
		paramPrefix:    paramPrefix,
		maxQuestionLen: maxQuestionLen,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_query", nil)
	}
	if len(query) > s.maxQuestionLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "query_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	sessionID := strings.TrimSpace(in.UserEmail)
	if sessionID == "" {
		sessionID = newSessionID()
	}

	history := s.loadHistory(ctx, sessionID)

	pctx := promptContext{
		storeContext: s.storeContext,
		schemaNotes:  s.schemaNotes,
		storeCode:    strings.TrimSpace(in.StoreCode),
		cart:         in.Cart,
	}

	route := s.classifyRoute(ctx, query)

	var turnMessages []domain.ChatMessage
	var err error
	switch route {
	case domain.RouteStoreAnalysis:
		turnMessages, err = s.runStoreAnalysis(ctx, pctx, history, query)
	case domain.RouteProductFilter:
		turnMessages, err = s.runProductFilter(ctx, buildQueryMessages(pctx, history, query), query)
	default:
		turnMessages, err = s.runProductFilter(ctx, buildQueryMessages(pctx, history, query), query)
	}
	if err != nil {
		return ChatOutput{}, err
	}

	result, resultQuery := extractQueryResult(turnMessages)
	summary := s.summarize(ctx, query, turnMessages)

	updated := make([]domain.ChatMessage, 0, len(history)+len(turnMessages)+2)
	updated = append(updated, history...)
	updated = append(updated, domain.ChatMessage{Role: domain.RoleUser, Content: query})
	updated = append(updated, turnMessages...)
	updated = append(updated, domain.ChatMessage{Role: domain.RoleAssistant, Content: summary})
	if err := s.history.SaveHistory(ctx, sessionID, updated); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "history_write_error", err)
	}

	return ChatOutput{
		Summary:   summary,
		Query:     resultQuery,
		Result:    result,
		SessionID: sessionID,
	}, nil
}

// loadHistory fetches stored history for the session. A read failure
// degrades to an empty history rather than failing the turn; a history over
// the ceiling is cleared entirely.
func (s *ChatService) loadHistory(ctx context.Context, sessionID string) []domain.ChatMessage {
	history, err := s.history.GetHistory(ctx, sessionID)
	if err != nil {
		slog.Warn("history load failed, continuing with empty history", "session_id", sessionID, "err", err)
		return nil
	}
	if len(history) > maxHistoryMessages {
		slog.Info("history over ceiling, clearing session", "session_id", sessionID, "messages", len(history))
		if err := s.history.ClearHistory(ctx, sessionID); err != nil {
			slog.Warn("history clear failed", "session_id", sessionID, "err", err)
		}
		return nil
	}
	return history
}

// runStoreAnalysis answers a business-insight turn with a single model call.
func (s *ChatService) runStoreAnalysis(ctx context.Context, pctx promptContext, history []domain.ChatMessage, requestText string) ([]domain.ChatMessage, error) {
	reply, err := s.llm.Chat(ctx, buildAnalysisMessages(pctx, history, requestText))
	if err != nil {
		return nil, modelCallError("analysis_model_error", err)
	}
	return []domain.ChatMessage{{Role: domain.RoleAssistant, Content: reply}}, nil
}

// summarize produces the turn's user-facing summary. A summarizer failure
// does not fail the turn; the last assistant text stands in.
func (s *ChatService) summarize(ctx context.Context, requestText string, turnMessages []domain.ChatMessage) string {
	summary, err := s.llm.Chat(ctx, buildSummaryMessages(requestText, turnMessages))
	if err != nil {
		slog.Warn("summary generation failed, falling back to handler output", "err", err)
		return fallbackSummary(turnMessages)
	}
	if strings.TrimSpace(summary) == "" {
		return fallbackSummary(turnMessages)
	}
	return summary
}

func fallbackSummary(turnMessages []domain.ChatMessage) string {
	for i := len(turnMessages) - 1; i >= 0; i-- {
		msg := turnMessages[i]
		if msg.Role == domain.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}
	return "Summary not available"
}

// extractQueryResult finds the most recent query-result payload in the
// turn's messages for the transport response.
func extractQueryResult(turnMessages []domain.ChatMessage) (domain.QueryResult, string) {
	for i := len(turnMessages) - 1; i >= 0; i-- {
		msg := turnMessages[i]
		if msg.Role != domain.RoleTool {
			continue
		}
		var result domain.QueryResult
		if err := json.Unmarshal([]byte(msg.Content), &result); err != nil {
			continue
		}
		if result.Query == "" && result.Message == "" {
			continue
		}
		return result, result.Query
	}
	return domain.QueryResult{
		Results: []domain.Row{},
		Message: "Query processed successfully",
	}, "Query executed"
}

// modelCallError maps a model collaborator failure to the turn-level taxonomy.
func modelCallError(reason string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, reason, err)
	}
	return newError(ErrorUpstream, reason, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func (s *ChatService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	prefix := strings.TrimRight(s.paramPrefix, "/")

	storeContext, err := s.params.GetParameter(ctx, prefix+"/store_context")
	if err != nil {
		return fmt.Errorf("usecase: load store context: %w", err)
	}
	schemaNotes, err := s.params.GetParameter(ctx, prefix+"/schema_notes")
	if err != nil {
		return fmt.Errorf("usecase: load schema notes: %w", err)
	}

	s.storeContext = storeContext
	s.schemaNotes = schemaNotes
	s.cacheLoaded = true
	return nil
}

var newSessionID = func() string {
	return uuid.NewString()
}
