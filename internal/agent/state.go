package agent

import "datadesigner/internal/llm"

// Phase is the coarse conversational stage of one turn. Phase is
// transient per-request context: a new user message always starts at
// PhasePlanning while message history persists across turns.
type Phase string

const (
	PhasePlanning             Phase = "planning"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseGenerating           Phase = "generating"
	PhaseComplete             Phase = "complete"
)

// ToolCallRecord is one executed tool call and its outcome.
type ToolCallRecord struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args"`
	Result string                 `json:"result"`
	Failed bool                   `json:"failed,omitempty"`
}

// ConversationState is the orchestrator's working state for one turn.
// It is scoped to a single in-flight request; nothing here is shared
// across concurrent turns.
type ConversationState struct {
	SessionID string
	Phase     Phase
	History   []llm.Message
	Records   []ToolCallRecord

	JobID     string
	JobStatus string
	PollCount int
	Outcome   PollOutcome
}

// TurnResult is what one processed user message produces.
type TurnResult struct {
	Reply     string
	Phase     Phase
	JobID     string
	JobStatus string
	Outcome   PollOutcome
	Records   []ToolCallRecord
}
