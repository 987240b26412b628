package agent

import "errors"

var (
	// ErrIterationBudget means a single turn hit the reasoning loop cap
	// without the model producing a final text reply.
	ErrIterationBudget = errors.New("turn exceeded reasoning iteration budget")

	// ErrNoLLMClient means the agent was constructed without a model client.
	ErrNoLLMClient = errors.New("no llm client configured")
)
