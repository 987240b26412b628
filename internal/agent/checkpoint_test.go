package agent

import (
	"context"
	"path/filepath"
	"testing"

	"datadesigner/internal/llm"
	"datadesigner/internal/tools"
)

func openTestCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "checkpoint.db"))
	if err != nil {
		t.Fatalf("OpenCheckpoint failed: %v", err)
	}
	t.Cleanup(func() { cp.Close() })
	return cp
}

func TestCheckpointRoundTrip(t *testing.T) {
	cp := openTestCheckpoint(t)

	turns := []llm.Message{
		{Role: "user", Content: "design a table"},
		{Role: "assistant", Content: "what fields?", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "get_config_summary", Args: map[string]interface{}{"session_id": "s1"}},
		}},
		{Role: "tool", Content: `{"summary":{}}`, ToolCallID: "c1"},
	}
	if err := cp.AppendTurns("s1", 0, turns); err != nil {
		t.Fatalf("AppendTurns failed: %v", err)
	}

	loaded, next, err := cp.LoadHistory("s1", 50)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if next != 3 {
		t.Errorf("expected next turn 3, got %d", next)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}
	if loaded[0].Role != "user" || loaded[2].ToolCallID != "c1" {
		t.Errorf("messages out of order or lossy: %+v", loaded)
	}
	if len(loaded[1].ToolCalls) != 1 || loaded[1].ToolCalls[0].Name != "get_config_summary" {
		t.Errorf("tool calls not preserved: %+v", loaded[1])
	}
}

func TestCheckpointEmptySession(t *testing.T) {
	cp := openTestCheckpoint(t)

	loaded, next, err := cp.LoadHistory("never-written", 50)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(loaded) != 0 || next != 0 {
		t.Errorf("fresh session should be empty, got %d messages next=%d", len(loaded), next)
	}
}

func TestCheckpointAppendIsIdempotent(t *testing.T) {
	cp := openTestCheckpoint(t)

	msgs := []llm.Message{{Role: "user", Content: "hello"}}
	if err := cp.AppendTurns("s1", 0, msgs); err != nil {
		t.Fatalf("first append: %v", err)
	}
	// Re-appending the same turn number must not duplicate it.
	if err := cp.AppendTurns("s1", 0, msgs); err != nil {
		t.Fatalf("second append: %v", err)
	}

	loaded, _, err := cp.LoadHistory("s1", 50)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected 1 message after duplicate append, got %d", len(loaded))
	}
}

func TestCheckpointSessionsIsolated(t *testing.T) {
	cp := openTestCheckpoint(t)

	if err := cp.AppendTurns("a", 0, []llm.Message{{Role: "user", Content: "one"}}); err != nil {
		t.Fatal(err)
	}
	if err := cp.AppendTurns("b", 0, []llm.Message{{Role: "user", Content: "two"}}); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := cp.LoadHistory("a", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Content != "one" {
		t.Errorf("session a history wrong: %+v", loaded)
	}
}

func TestCheckpointClearSession(t *testing.T) {
	cp := openTestCheckpoint(t)

	if err := cp.AppendTurns("s1", 0, []llm.Message{{Role: "user", Content: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := cp.ClearSession("s1"); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}

	loaded, next, err := cp.LoadHistory("s1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 || next != 0 {
		t.Errorf("cleared session should be empty, got %d messages", len(loaded))
	}
}

func TestHistoryPersistsAcrossTurns(t *testing.T) {
	cp := openTestCheckpoint(t)

	model := &fakeLLM{responses: []*llm.Response{
		textResponse("First reply."),
		textResponse("Second reply."),
	}}
	a := newTestAgent(t, model, tools.NewRegistry(), Config{})
	WithCheckpoint(cp)(a)

	if _, err := a.ProcessTurn(context.Background(), "s1", "first message"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := a.ProcessTurn(context.Background(), "s1", "second message"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	// The second reasoning call must replay the first turn's messages.
	second := model.seen[1]
	if len(second) != 3 {
		t.Fatalf("expected 3 messages in second turn (prior user+assistant, new user), got %d", len(second))
	}
	if second[0].Content != "first message" || second[1].Content != "First reply." {
		t.Errorf("prior history not replayed: %+v", second)
	}
}
