package usecase

import (
	"fmt"
	"strings"

	"github.com/krish7x/store-agent/internal/domain"
)

type promptContext struct {
	storeContext string
	schemaNotes  string
	storeCode    string
	cart         []string
}

// buildQueryPrompt is the system prompt for the SQL-generation handler.
func buildQueryPrompt(schemaNotes string) string {
	sections := []string{
		"You are a SQL expert for a jewellery store's product database.",
		"",
		"Your task is to generate SQL queries based on user requests for product information.",
		"",
		"Available tables:",
		"- product: contains product details like sku, price, metal, purity, jewellery_type, relationship, occasion.",
		"",
		"EXACT COLUMN VALUES - USE THESE EXACTLY:",
		"",
		"jewellery_type: " + jewelleryTypes,
		"",
		"metal: " + metalValues,
		"",
		"purity: " + purityValues,
		"",
		"relationship: " + relationshipValues,
		"",
		"occasion: " + occasionValues,
		"",
		"Query mapping examples:",
		`- "ring for my grandpa" -> jewellery_type = 'Rings' AND relationship = 'Grandparent'`,
		`- "earrings for wife" -> jewellery_type = 'Earrings' AND relationship = 'Wife'`,
		`- "14 KT white gold" -> metal = '14 KT White'`,
		`- "anniversary gift" -> occasion = 'anniversary'`,
		`- "under 50k" -> price < 50000`,
		"",
		"Guidelines:",
		"- Use 'jewellery_type' NOT 'category' for product types.",
		"- Use 'sku' instead of 'name' or 'id' for product identification.",
		"- Use appropriate WHERE clauses for filtering.",
		"- If the user asks for a specific number (e.g. \"top 5\", \"show 3\"), add a LIMIT clause.",
		"- Use ORDER BY price DESC for expensive items and ORDER BY price ASC for budget items.",
		"- If you do not know the table structure yet, first call execute_sql_query with \"DESCRIBE product\", then generate the final query.",
		"",
		"Always use the execute_sql_query tool to run your SQL queries. Do not return SQL text directly.",
	}
	prompt := strings.Join(sections, "\n")
	if notes := strings.TrimSpace(schemaNotes); notes != "" {
		prompt += "\n\nAdditional schema notes:\n" + notes
	}
	return prompt
}

// buildStoreContextPrompt carries per-request store context into the model call.
func buildStoreContextPrompt(ctx promptContext) string {
	parts := make([]string, 0, 3)
	if storeCtx := strings.TrimSpace(ctx.storeContext); storeCtx != "" {
		parts = append(parts, storeCtx)
	}
	if ctx.storeCode != "" {
		parts = append(parts, "Store code: "+ctx.storeCode)
	}
	if len(ctx.cart) > 0 {
		parts = append(parts, "Items already in the customer's cart: "+strings.Join(ctx.cart, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// buildPaginationPrompt instructs the model to run the already resolved
// continuation query verbatim.
func buildPaginationPrompt(nextQuery string) string {
	return strings.Join([]string{
		"This is a pagination request. The next page has already been computed from the last bounded query in this conversation.",
		"",
		"Run exactly this query with the execute_sql_query tool, without modifying it:",
		"",
		nextQuery,
	}, "\n")
}

// buildNoContinuationPrompt signals that no deterministic continuation
// exists for a pagination request.
func buildNoContinuationPrompt() string {
	return strings.Join([]string{
		"This looks like a pagination request, but no prior query with a LIMIT clause exists in this conversation.",
		"There is no page to continue from. Do not invent a continuation query.",
		"Ask the user what they would like to see, or treat the request as a fresh search.",
	}, "\n")
}

// buildRouterPrompt classifies a turn into the closed handler vocabulary.
func buildRouterPrompt() string {
	return strings.Join([]string{
		"You route user queries for a jewellery store's inventory chatbot to exactly one handler.",
		"",
		"Handlers:",
		"- product_filter: product searches, counts, prices, statistics, anything answered from the product database.",
		"- store_analysis: store performance, sales trends, inventory strategy, business recommendations.",
		"",
		"Respond with exactly one handler identifier and nothing else.",
		"When unsure, respond with product_filter.",
	}, "\n")
}

// buildStoreAnalysisPrompt is the system prompt for the business-insight handler.
func buildStoreAnalysisPrompt() string {
	return strings.Join([]string{
		"You are a store analysis assistant for a jewellery store's inventory chatbot.",
		"",
		"You provide business insights, store performance analysis, and strategic recommendations to help store owners make informed decisions about their inventory.",
		"",
		"You can help with store performance metrics, product performance analysis, sales trends, inventory optimization, market preferences, and pricing strategy.",
		"",
		"Provide data-driven, specific, actionable insights. Be professional and concise.",
	}, "\n")
}

// buildSummaryPrompt is the system prompt for the result summarizer.
func buildSummaryPrompt() string {
	return strings.Join([]string{
		"You create a concise, factual summary of database query results for a jewellery store chatbot.",
		"",
		"Guidelines:",
		"- Keep it under 100 words.",
		"- Use simple, clean language without markdown formatting.",
		"- Present information as factual statements only, no questions or suggestions.",
		"- Focus on the key numbers and results. Currency is INR.",
		"",
		`Example: "Found 4102 products matching your criteria. Price range: 50,000 to 60,000 INR. Purity: 14 KT."`,
	}, "\n")
}

// replayableHistory filters history down to the messages worth replaying to
// the model: non-empty user, assistant, and tool messages. System messages
// are rebuilt fresh each turn.
func replayableHistory(history []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == domain.RoleSystem {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// buildQueryMessages assembles the model context for the SQL handler.
func buildQueryMessages(ctx promptContext, history []domain.ChatMessage, requestText string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildQueryPrompt(ctx.schemaNotes)},
	}
	if storeCtx := buildStoreContextPrompt(ctx); storeCtx != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: storeCtx})
	}
	messages = append(messages, replayableHistory(history)...)

	if isContinuationRequest(requestText) {
		if next, ok := resolveNextPage(history); ok {
			messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: buildPaginationPrompt(next)})
		} else {
			messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: buildNoContinuationPrompt()})
		}
	}

	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: requestText})
	return messages
}

// buildAnalysisMessages assembles the model context for the store-analysis handler.
func buildAnalysisMessages(ctx promptContext, history []domain.ChatMessage, requestText string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildStoreAnalysisPrompt()},
	}
	if storeCtx := buildStoreContextPrompt(ctx); storeCtx != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: storeCtx})
	}
	messages = append(messages, replayableHistory(history)...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: requestText})
	return messages
}

// buildSummaryMessages assembles the model context for the summarizer.
func buildSummaryMessages(requestText string, turnMessages []domain.ChatMessage) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSummaryPrompt()},
	}
	messages = append(messages, replayableHistory(turnMessages)...)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf("User query: %s", requestText),
	})
	return messages
}

const (
	jewelleryTypes = "Rings, Earrings, Pendants, Necklaces, Bangles, Mangalsutra, Tanmaniya, Silver Rakhi, Bracelets, Nose pin, Mount-Rings, Mount-Earrings, Mount-Pendants, Kada, Charms, Chains, Toe Rings, Anklets, Set Product, Nose Accessories, Silver Articles, Adjustable Rings, Hair Accessories, CuffLinks, Brooch, Brooches, Sets, Watch Charms, Nacklace, Silver Coin, Gold Coin, Baby Bangles, Wrist Watches, Arm Bands, Waist Bands, Earring, Dummy Product, Kanoti, Hasli Necklaces, Kurta Buttons, Bracelet, Charm Builders, Nath"

	metalValues = "14 KT White, 18 KT Yellow, 18 KT White, 14 KT Two Tone, 14 KT Yellow, 18 KT Two Tone, 14 KT Rose, Silver 925 Silver, 18 KT Rose, Platinum 950 Platinum, 22 KT Yellow, Platinum 950 White, 14 KT, 18 KT Three Tone, Brass Silver, Platinum 950 18 KT Two Tone, 14 KT Three Tone, 18 KT, 9 KT Yellow, 14 KT S925 Yellow, 10 KT Yellow, Silver 925 Yellow, Silver 999 Silver, Silver 925 White, Platinum 950 Two Tone, 22 KT Two Tone, 24 KT Yellow, Silver 925 Rose, 10 KT Rose, Platinum 950 18 KT Three Tone, 22 KT White, 9 KT Rose, Platinum 950 18 KT Two Tone Platinum Rose, 14 KT S925 White, 18 KT S925 White, 18 KT S925 Rose, 18 KT S925 Yellow, 10 KT White, 9 KT White"

	purityValues = "14 KT, 18 KT, Silver 925, Platinum 950, 22 KT, Brass, Platinum 950 18 KT, 9 KT, 14 KT S925, 10 KT, Silver 999, 24 KT, 18 KT S925"

	relationshipValues = "Grandparent, Wife, Girlfriend, Husband, Sister, Others, Daughter, Son, Father, Niece/Nephew, Mother, Friend, Self"

	occasionValues = "anniversary, diwali, christmas, dhanteras, valentines_day, mothers_day, general_gifting, akshaya_tritiya, wedding_season, raksha_bandhan, karva_chauth, ganesh_chaturthi, fathers_day, navratri, new_year"
)
