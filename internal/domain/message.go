package domain

// Role tags a conversation message. The set is closed: every consumer
// switches exhaustively over these four values.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a structured tool-invocation request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments as produced by the model
}

// ChatMessage is one entry in the ordered, append-only conversation history.
// A tool-result message carries the ToolCallID of the assistant tool call it
// answers; that call always appears earlier in the sequence.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set on assistant messages requesting a tool
	ToolCallID string     // set on tool-result messages
}

// ModelReply is the model collaborator's response to a single invocation:
// free text, structured tool calls, or both.
type ModelReply struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolSpec declares a callable tool to the model collaborator.
// Parameters holds the JSON Schema of the tool's arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  string
}

// RouteDecision is the single handler chosen for a turn.
type RouteDecision string

const (
	// RouteProductFilter drives the SQL tool-call pipeline. It is also the
	// deterministic fallback when classification is inconclusive.
	RouteProductFilter RouteDecision = "product_filter"
	// RouteStoreAnalysis answers business-insight questions without the
	// query pipeline.
	RouteStoreAnalysis RouteDecision = "store_analysis"
)
