package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/krish7x/store-agent/internal/domain"
)

// storedMessage is the compact persisted form of a chat message. Query-result
// payloads are stripped down to the query text before storage; tool calls
// keep only the tool name and the query they carried. Full result rows are
// recoverable from the database, not from the session store.
type storedMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	Query     string           `json:"query,omitempty"`
	ToolCalls []storedToolCall `json:"toolCalls,omitempty"`
}

type storedToolCall struct {
	Name  string `json:"name"`
	Query string `json:"query,omitempty"`
}

const resultPlaceholder = "[query result omitted]"

// encodeMessages compacts a history into its stored JSON form.
func encodeMessages(messages []domain.ChatMessage) (string, error) {
	stored := make([]storedMessage, 0, len(messages))
	for _, msg := range messages {
		stored = append(stored, compactMessage(msg))
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("repository: encode history: %w", err)
	}
	return string(payload), nil
}

// decodeMessages rebuilds a history from its stored JSON form. A message
// that cannot be decoded is skipped rather than failing the whole read.
func decodeMessages(payload string) ([]domain.ChatMessage, error) {
	if payload == "" {
		return nil, nil
	}
	var stored []storedMessage
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return nil, fmt.Errorf("repository: decode history: %w", err)
	}
	messages := make([]domain.ChatMessage, 0, len(stored))
	for i, sm := range stored {
		msg, err := expandMessage(sm)
		if err != nil {
			slog.Warn("skipping undecodable stored message", "index", i, "err", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func compactMessage(msg domain.ChatMessage) storedMessage {
	sm := storedMessage{Role: string(msg.Role), Content: msg.Content}

	for _, call := range msg.ToolCalls {
		sc := storedToolCall{Name: call.Name}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err == nil {
			sc.Query = args.Query
		}
		sm.ToolCalls = append(sm.ToolCalls, sc)
	}

	// A result payload collapses to its query. The rows themselves are not
	// worth persisting; pagination only needs the query text back.
	if msg.Role == domain.RoleTool || msg.Role == domain.RoleAssistant {
		var result domain.QueryResult
		if err := json.Unmarshal([]byte(msg.Content), &result); err == nil && result.Query != "" {
			sm.Query = result.Query
			sm.Content = resultPlaceholder
		}
	}
	return sm
}

func expandMessage(sm storedMessage) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		Role:    roleFromStored(sm.Role),
		Content: sm.Content,
	}

	for _, sc := range sm.ToolCalls {
		args, err := json.Marshal(struct {
			Query string `json:"query"`
		}{Query: sc.Query})
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("rebuild tool call args: %w", err)
		}
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			Name:      sc.Name,
			Arguments: string(args),
		})
	}

	// Rebuild a result-shaped body so pagination can find the query again.
	if sm.Query != "" {
		body, err := json.Marshal(domain.QueryResult{
			Results: []domain.Row{},
			Query:   sm.Query,
			Message: resultPlaceholder,
		})
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("rebuild result body: %w", err)
		}
		msg.Content = string(body)
	}
	return msg, nil
}

func roleFromStored(role string) domain.Role {
	switch domain.Role(role) {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem, domain.RoleTool:
		return domain.Role(role)
	default:
		return domain.RoleAssistant
	}
}
