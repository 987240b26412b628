package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"datadesigner/internal/llm"
	"datadesigner/internal/logging"
	"datadesigner/internal/tools"
)

// Config bounds the orchestrator's loops.
type Config struct {
	// MaxIterations caps reasoning/tool cycles per user turn.
	MaxIterations int
	// HistoryLimit caps how many checkpointed messages are replayed.
	HistoryLimit int
	// PollInterval is the delay between job status checks.
	PollInterval time.Duration
	// MaxPollAttempts bounds the status-check loop.
	MaxPollAttempts int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 25
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 120
	}
	return c
}

// sleepFunc is injectable so tests can run the poller without waiting.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Agent drives one reasoning/tool-execution cycle per user message.
// One Agent serves many sessions, but a single session must only have
// one turn in flight at a time.
type Agent struct {
	llm        llm.Client
	registry   *tools.Registry
	detector   ConfirmationDetector
	checkpoint *Checkpoint
	cfg        Config
	sleep      sleepFunc
}

// Option customizes an Agent.
type Option func(*Agent)

// WithDetector replaces the confirmation heuristic.
func WithDetector(d ConfirmationDetector) Option {
	return func(a *Agent) { a.detector = d }
}

// WithCheckpoint enables persistent conversation history.
func WithCheckpoint(c *Checkpoint) Option {
	return func(a *Agent) { a.checkpoint = c }
}

func withSleep(s sleepFunc) Option {
	return func(a *Agent) { a.sleep = s }
}

// New builds an orchestrator over a model client and a tool registry.
func New(client llm.Client, registry *tools.Registry, cfg Config, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, ErrNoLLMClient
	}
	a := &Agent{
		llm:      client,
		registry: registry,
		detector: NewKeywordDetector(),
		cfg:      cfg.withDefaults(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ProcessTurn handles one user message: reasoning turns alternate with
// tool execution until the model produces a plain text reply, asks for
// confirmation, or creates a job (which hands off to the poller). The
// call blocks for the full polling budget in the worst case; size
// request timeouts accordingly.
func (a *Agent) ProcessTurn(ctx context.Context, sessionID, userInput string) (*TurnResult, error) {
	timer := logging.StartTimer(logging.CategoryAgent, "ProcessTurn")
	defer timer.StopWithInfo()

	state := &ConversationState{SessionID: sessionID, Phase: PhasePlanning}

	nextTurn := 0
	if a.checkpoint != nil {
		history, n, err := a.checkpoint.LoadHistory(sessionID, a.cfg.HistoryLimit)
		if err != nil {
			logging.AgentWarn("history load failed for session %s, starting fresh: %v", sessionID, err)
		} else {
			state.History = history
			nextTurn = n
		}
	}
	persistedLen := len(state.History)
	defer func() {
		if a.checkpoint == nil {
			return
		}
		if err := a.checkpoint.AppendTurns(sessionID, nextTurn, state.History[persistedLen:]); err != nil {
			logging.AgentWarn("history save failed for session %s: %v", sessionID, err)
		}
	}()

	if persistedLen == 0 {
		a.injectServiceNote(ctx, state)
	}

	state.History = append(state.History, llm.Message{Role: "user", Content: userInput})
	logging.Agent("session %s turn started (%d prior messages)", sessionID, persistedLen)

	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.llm.Chat(ctx, systemPrompt, state.History, a.registry.Definitions())
		if err != nil {
			// Reasoning failures abort the turn; there is no sensible
			// recovery short of the caller retrying.
			return nil, fmt.Errorf("reasoning call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			state.History = append(state.History, llm.Message{Role: "assistant", Content: resp.Text})
			if a.detector.IsConfirmationRequest(resp.Text) {
				state.Phase = PhaseAwaitingConfirmation
			} else {
				state.Phase = PhaseComplete
			}
			logging.Agent("session %s turn finished in phase %s", sessionID, state.Phase)
			return a.result(state, resp.Text), nil
		}

		state.History = append(state.History, llm.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		var createdJobID string
		for _, tc := range resp.ToolCalls {
			content, failed := a.executeToolCall(ctx, state, tc)
			state.History = append(state.History, llm.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: tc.ID,
			})
			state.Records = append(state.Records, ToolCallRecord{
				Tool: tc.Name, Args: tc.Args, Result: content, Failed: failed,
			})
			if tc.Name == "create_job" && !failed {
				if id := extractJobID(content); id != "" {
					createdJobID = id
				}
			}
		}

		if createdJobID != "" {
			state.Phase = PhaseGenerating
			state.JobID = createdJobID
			reply, err := a.runPoller(ctx, state)
			if err != nil {
				return nil, err
			}
			state.History = append(state.History, llm.Message{Role: "assistant", Content: reply})
			return a.result(state, reply), nil
		}
	}

	return nil, fmt.Errorf("%w (%d iterations)", ErrIterationBudget, a.cfg.MaxIterations)
}

// executeToolCall runs one tool call. Execution errors become error
// payloads the model can react to on its next reasoning turn, never a
// hard failure of the whole turn.
func (a *Agent) executeToolCall(ctx context.Context, state *ConversationState, tc llm.ToolCall) (content string, failed bool) {
	// Cooperative rate limit before repeated status checks: the delay
	// grows with the consecutive poll count, capped at 30s.
	if tc.Name == "get_job_status" {
		delay := time.Duration(state.PollCount) * 5 * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		if err := a.sleep(ctx, delay); err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error()), true
		}
		state.PollCount++
	}

	result, err := a.registry.Execute(ctx, tc.Name, tc.Args)
	if err != nil {
		logging.AgentWarn("tool %s failed: %v", tc.Name, err)
		return fmt.Sprintf(`{"error":%q}`, err.Error()), true
	}
	logging.AgentDebug("tool %s executed (%d bytes)", tc.Name, len(result.Result))
	return result.Result, false
}

// injectServiceNote probes the remote service on a session's first turn
// and, when it is unreachable, tells the model so it can warn the user
// instead of failing job submission later.
func (a *Agent) injectServiceNote(ctx context.Context, state *ConversationState) {
	if !a.registry.Has("check_service_health") {
		return
	}
	result, err := a.registry.Execute(ctx, "check_service_health", map[string]any{})
	if err != nil {
		return
	}
	var payload struct {
		Healthy bool   `json:"healthy"`
		Error   string `json:"error"`
	}
	if jerr := json.Unmarshal([]byte(result.Result), &payload); jerr != nil || payload.Healthy {
		return
	}
	logging.AgentWarn("data designer service unreachable: %s", payload.Error)
	state.History = append(state.History, llm.Message{
		Role: "system",
		Content: "Note: the data generation service is currently unreachable. " +
			"Schema design still works, but job submission will fail until the service recovers.",
	})
}

func (a *Agent) result(state *ConversationState, reply string) *TurnResult {
	return &TurnResult{
		Reply:     reply,
		Phase:     state.Phase,
		JobID:     state.JobID,
		JobStatus: state.JobStatus,
		Outcome:   state.Outcome,
		Records:   state.Records,
	}
}

// extractJobID pulls the job id out of a create_job result payload.
func extractJobID(content string) string {
	var payload struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return ""
	}
	return payload.JobID
}
