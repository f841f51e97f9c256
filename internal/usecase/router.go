package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/krish7x/store-agent/internal/domain"
)

var routeIdentifiers = map[string]domain.RouteDecision{
	string(domain.RouteProductFilter): domain.RouteProductFilter,
	string(domain.RouteStoreAnalysis): domain.RouteStoreAnalysis,
}

// classifyRoute picks the handler for a turn. Classification is delegated
// to the model and is best-effort: any failure or unknown identifier falls
// back to the product-filter handler so the turn never dies on routing.
func (s *ChatService) classifyRoute(ctx context.Context, requestText string) domain.RouteDecision {
	reply, err := s.llm.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildRouterPrompt()},
		{Role: domain.RoleUser, Content: requestText},
	})
	if err != nil {
		slog.Warn("route classification failed, using default handler", "err", err)
		return domain.RouteProductFilter
	}

	normalized := strings.ToLower(strings.TrimSpace(reply))
	if route, ok := routeIdentifiers[normalized]; ok {
		return route
	}

	slog.Warn("route classification returned unknown identifier, using default handler", "reply", reply)
	return domain.RouteProductFilter
}
