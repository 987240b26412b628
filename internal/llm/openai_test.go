package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMapToolDefinitions(t *testing.T) {
	tools := []ToolDefinition{
		{
			Name:        "create_job",
			Description: "Submit a generation job",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string"},
				},
			},
		},
	}

	mapped := mapToolDefinitions(tools)
	if len(mapped) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(mapped))
	}
	if mapped[0].Type != "function" {
		t.Errorf("type = %q", mapped[0].Type)
	}
	if mapped[0].Function.Name != "create_job" {
		t.Errorf("name = %q", mapped[0].Function.Name)
	}
	if mapped[0].Function.Parameters["type"] != "object" {
		t.Errorf("parameters not carried over: %+v", mapped[0].Function.Parameters)
	}
}

func TestMapToolCalls(t *testing.T) {
	calls := []openAIToolCall{
		{
			ID:   "call_1",
			Type: "function",
			Function: openAIFunction{
				Name:      "add_uuid_column",
				Arguments: `{"name":"id","session_id":"s1"}`,
			},
		},
		{
			ID:       "call_2",
			Type:     "function",
			Function: openAIFunction{Name: "get_config_summary", Arguments: ""},
		},
	}

	mapped, err := mapToolCalls(calls)
	if err != nil {
		t.Fatalf("mapToolCalls failed: %v", err)
	}
	if len(mapped) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(mapped))
	}
	if mapped[0].Name != "add_uuid_column" || mapped[0].Args["name"] != "id" {
		t.Errorf("call 0 = %+v", mapped[0])
	}
	if mapped[1].Args == nil || len(mapped[1].Args) != 0 {
		t.Errorf("empty arguments should map to empty args map, got %+v", mapped[1].Args)
	}
}

func TestMapToolCallsBadArguments(t *testing.T) {
	calls := []openAIToolCall{
		{ID: "c", Type: "function", Function: openAIFunction{Name: "x", Arguments: "{broken"}},
	}
	if _, err := mapToolCalls(calls); err == nil {
		t.Error("expected error for malformed arguments")
	}
}

func TestMapMessagesRoundTrip(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "add an id column"},
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "add_uuid_column", Args: map[string]interface{}{"name": "id"}},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: `{"status":"ok"}`},
	}

	wire := mapMessages("you are a data designer", messages)
	if len(wire) != 4 {
		t.Fatalf("expected 4 wire messages (system + 3), got %d", len(wire))
	}
	if wire[0].Role != "system" {
		t.Errorf("first message should be system, got %s", wire[0].Role)
	}
	if len(wire[2].ToolCalls) != 1 || wire[2].ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls lost: %+v", wire[2])
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(wire[2].ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["name"] != "id" {
		t.Errorf("args = %+v", args)
	}
	if wire[3].ToolCallID != "call_1" {
		t.Errorf("tool result message lost tool_call_id: %+v", wire[3])
	}
}

func TestChatWithToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "init_config", "arguments": "{\"session_id\":\"s1\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4.1"})
	resp, err := c.Chat(context.Background(), "system prompt", []Message{{Role: "user", Content: "reset"}}, []ToolDefinition{{Name: "init_config"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.StopReason != "tool_calls" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "init_config" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Args["session_id"] != "s1" {
		t.Errorf("args = %+v", resp.ToolCalls[0].Args)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"index":0,"message":{"role":"assistant","content":"  Does this schema look good?  "},"finish_reason":"stop"}],
			"usage": {"total_tokens": 20}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4.1"})
	resp, err := c.Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Text != "Does this schema look good?" {
		t.Errorf("text = %q (should be trimmed)", resp.Text)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("unexpected tool calls: %+v", resp.ToolCalls)
	}
}

func TestChatMissingAPIKey(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{Model: "gpt-4.1"})
	if _, err := c.Chat(context.Background(), "", nil, nil); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestChatAPIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model not found", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "nope"})
	_, err := c.Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected API error")
	}
}
