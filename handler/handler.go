package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/krish7x/store-agent/internal/domain"
	"github.com/krish7x/store-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ChatUseCase is the conversational engine consumed by the handler.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	chat ChatUseCase
}

func NewHandler(chat ChatUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{chat: chat}, nil
}

type chatRequest struct {
	Query     string   `json:"query"`
	UserEmail string   `json:"userEmail"`
	Cart      []string `json:"cart"`
	StoreCode string   `json:"storeCode"`
}

type chatResponse struct {
	Summary   string             `json:"summary"`
	Query     string             `json:"query"`
	Result    domain.QueryResult `json:"result"`
	SessionID string             `json:"sessionId"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle routes an API Gateway event: POST /chat runs a conversational turn,
// GET /health reports liveness.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := resolveCorrelationID(event.Headers)
	log := slog.With("correlation_id", correlationID, "method", event.HTTPMethod, "path", event.Path)

	switch {
	case event.HTTPMethod == http.MethodGet && event.Path == "/health":
		return respond(http.StatusOK, map[string]string{"status": "ok"}, correlationID), nil
	case event.HTTPMethod == http.MethodPost && event.Path == "/chat":
		return h.handleChat(ctx, event, correlationID, log), nil
	default:
		log.Warn("route not found")
		return respond(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, correlationID), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string, log *slog.Logger) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "invalid_body",
		}, correlationID)
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{
		Query:     req.Query,
		UserEmail: req.UserEmail,
		Cart:      req.Cart,
		StoreCode: req.StoreCode,
	})
	if err != nil {
		status, body := mapError(err)
		log.Error("chat turn failed", "status", status, "code", body.Error, "reason", body.Reason, "err", err)
		return respond(status, body, correlationID)
	}

	log.Info("chat turn completed", "session_id", out.SessionID, "showing", out.Result.Showing, "total", out.Result.TotalAvailable)
	return respond(http.StatusOK, chatResponse{
		Summary:   out.Summary,
		Query:     out.Query,
		Result:    out.Result,
		SessionID: out.SessionID,
	}, correlationID)
}

// mapError translates the use case error taxonomy to HTTP.
func mapError(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	body := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, body
	case usecase.ErrorInternal:
		return http.StatusInternalServerError, body
	default:
		return http.StatusInternalServerError, body
	}
}

// resolveCorrelationID reuses the caller's correlation id when present,
// matching the header case-insensitively, and mints one otherwise.
func resolveCorrelationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Error("failed to marshal response body", "err", err)
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"INTERNAL"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(payload),
	}
}
