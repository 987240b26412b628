package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"datadesigner/internal/logging"
	"datadesigner/internal/nemo"
)

// PollOutcome is how the job poller's bounded loop ended. Timeout is
// its own outcome, never conflated with job failure.
type PollOutcome string

const (
	PollOutcomeSuccess PollOutcome = "success"
	PollOutcomeFailure PollOutcome = "failure"
	PollOutcomeTimeout PollOutcome = "timeout"
)

// runPoller drives a submitted job to a terminal state with a bounded
// fixed-interval loop. On terminal success it imports the results
// exactly once; no further reasoning turn is needed. Returns the
// user-facing reply.
func (a *Agent) runPoller(ctx context.Context, state *ConversationState) (string, error) {
	timer := logging.StartTimer(logging.CategoryPoller, "runPoller")
	defer timer.StopWithInfo()

	logging.Poller("polling job %s (interval %s, max %d attempts)",
		state.JobID, a.cfg.PollInterval, a.cfg.MaxPollAttempts)

	for attempt := 0; attempt < a.cfg.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, a.cfg.PollInterval); err != nil {
				return "", fmt.Errorf("polling job %s: %w", state.JobID, err)
			}
		}

		result, err := a.registry.Execute(ctx, "get_job_status", map[string]any{"job_id": state.JobID})
		if err != nil {
			// Transient API errors do not spend the outcome; keep polling.
			logging.PollerDebug("status check %d for job %s failed: %v", attempt+1, state.JobID, err)
			continue
		}

		status, details := parseStatusPayload(result.Result)
		if status == "" {
			continue
		}
		state.JobStatus = status
		logging.PollerDebug("job %s status: %s (attempt %d)", state.JobID, status, attempt+1)

		switch {
		case nemo.IsTerminalSuccess(status):
			state.Phase = PhaseComplete
			state.Outcome = PollOutcomeSuccess
			return a.importResults(ctx, state), nil

		case nemo.IsTerminalFailure(status):
			state.Phase = PhaseComplete
			state.Outcome = PollOutcomeFailure
			logging.Poller("job %s failed: %s", state.JobID, details)
			if details != "" {
				return fmt.Sprintf("Job %s failed: %s", state.JobID, details), nil
			}
			return fmt.Sprintf("Job %s failed (status: %s). Use get_job_logs to inspect what went wrong.",
				state.JobID, status), nil
		}
	}

	state.Phase = PhaseComplete
	state.Outcome = PollOutcomeTimeout
	logging.Poller("job %s still %s after %d attempts, giving up", state.JobID, state.JobStatus, a.cfg.MaxPollAttempts)
	return fmt.Sprintf("Job %s is still running (last status: %s) after %d checks. "+
		"It has not failed; check again later with get_job_status.",
		state.JobID, state.JobStatus, a.cfg.MaxPollAttempts), nil
}

// importResults pulls the finished job's dataset down and reports the
// outcome. Import problems degrade to an explanatory reply; the job
// itself still succeeded.
func (a *Agent) importResults(ctx context.Context, state *ConversationState) string {
	result, err := a.registry.Execute(ctx, "import_results", map[string]any{
		"job_id":     state.JobID,
		"session_id": state.SessionID,
	})
	if err != nil {
		logging.PollerDebug("import for job %s failed: %v", state.JobID, err)
		return fmt.Sprintf("Job %s completed, but importing the results failed: %v. "+
			"Try import_results again.", state.JobID, err)
	}

	state.Records = append(state.Records, ToolCallRecord{
		Tool:   "import_results",
		Args:   map[string]interface{}{"job_id": state.JobID, "session_id": state.SessionID},
		Result: result.Result,
	})

	var payload struct {
		Files  []string `json:"files"`
		Tables []string `json:"tables"`
	}
	if jerr := json.Unmarshal([]byte(result.Result), &payload); jerr != nil {
		return fmt.Sprintf("Job %s completed and the results were imported.", state.JobID)
	}
	if len(payload.Tables) > 0 {
		return fmt.Sprintf("Job %s completed! Imported %d result file(s) into table(s): %v",
			state.JobID, len(payload.Files), payload.Tables)
	}
	return fmt.Sprintf("Job %s completed! Downloaded %d result file(s): %v",
		state.JobID, len(payload.Files), payload.Files)
}

// parseStatusPayload reads status and optional error details from a
// get_job_status result.
func parseStatusPayload(content string) (status, details string) {
	var payload struct {
		Status       string `json:"status"`
		ErrorDetails string `json:"error_details"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", ""
	}
	if payload.Error != "" {
		return "", ""
	}
	return payload.Status, payload.ErrorDetails
}
