package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestBuildWirePayload(t *testing.T) {
	b := NewBuilder()
	b.AddModelConfig(ModelSpec{Alias: "writer", Model: "meta/llama-3.3-70b-instruct"})
	b.AddSamplerColumn("id", SamplerUUID, &UUIDParams{Prefix: "ID-", ShortForm: true, Uppercase: true}, "")
	b.AddSamplerColumn("age", SamplerUniform, &UniformParams{Low: 18, High: 70}, "int")
	b.AddGeneratedColumn("bio", "writer", "Write a bio.", "")
	b.AddConstraint("age", ">=", 21)

	payload, err := BuildWirePayload(b, "customer-profiles", 500, "")
	if err != nil {
		t.Fatalf("BuildWirePayload failed: %v", err)
	}

	if payload.Name != "customer-profiles" {
		t.Errorf("name = %q", payload.Name)
	}
	if payload.Project != DefaultProject {
		t.Errorf("project = %q, want %q", payload.Project, DefaultProject)
	}
	if payload.Spec.NumRecords != 500 {
		t.Errorf("num_records = %d", payload.Spec.NumRecords)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	body := string(data)

	// Local discriminators must not cross the wire
	if strings.Contains(body, "column_type") {
		t.Error("wire payload leaks column_type")
	}
	if strings.Contains(body, "sampler_type\":") {
		// sampler_type remains as the column's sampler selector key in
		// the persisted form only; verify it is gone from params
		var decoded map[string]interface{}
		json.Unmarshal(data, &decoded)
		spec := decoded["spec"].(map[string]interface{})
		cfg := spec["config"].(map[string]interface{})
		for _, item := range cfg["columns"].([]interface{}) {
			col := item.(map[string]interface{})
			if params, ok := col["params"].(map[string]interface{}); ok {
				if _, has := params["sampler_type"]; has {
					t.Error("params leak sampler_type")
				}
			}
		}
	}
	if strings.Contains(body, "null") {
		t.Errorf("wire payload contains nulls: %s", body)
	}
}

func TestBuildWirePayloadKeepsColumnSelector(t *testing.T) {
	// The top-level sampler_type on each column is how the service picks
	// the sampler; only the copy inside params is bookkeeping.
	b := NewBuilder()
	b.AddSamplerColumn("id", SamplerUUID, &UUIDParams{Prefix: "ID-"}, "")

	payload, err := BuildWirePayload(b, "j", 10, "p")
	if err != nil {
		t.Fatalf("BuildWirePayload failed: %v", err)
	}

	cols := payload.Spec.Config["columns"].([]interface{})
	col := cols[0].(map[string]interface{})
	if col["sampler_type"] != "uuid" {
		t.Errorf("column sampler_type = %v, want uuid", col["sampler_type"])
	}
	if _, has := col["column_type"]; has {
		t.Error("column_type should be stripped")
	}
}

func TestBuildWirePayloadValidation(t *testing.T) {
	b := NewBuilder()
	b.AddSamplerColumn("id", SamplerUUID, &UUIDParams{}, "")

	if _, err := BuildWirePayload(b, "", 10, ""); err == nil {
		t.Error("expected error for empty job name")
	}
	if _, err := BuildWirePayload(b, "j", 0, ""); err == nil {
		t.Error("expected error for zero num_records")
	}

	empty := NewBuilder()
	if _, err := BuildWirePayload(empty, "j", 10, ""); !errors.Is(err, ErrNoColumns) {
		t.Errorf("expected ErrNoColumns, got %v", err)
	}

	dangling := NewBuilder()
	dangling.AddGeneratedColumn("bio", "ghost", "Write a bio.", "")
	if _, err := BuildWirePayload(dangling, "j", 10, ""); !errors.Is(err, ErrUnknownModelAlias) {
		t.Errorf("expected ErrUnknownModelAlias, got %v", err)
	}
}

func TestStripNulls(t *testing.T) {
	m := map[string]interface{}{
		"keep": "value",
		"drop": nil,
		"nested": map[string]interface{}{
			"inner_drop": nil,
			"inner_keep": 1.0,
		},
		"list": []interface{}{
			map[string]interface{}{"x": nil, "y": "z"},
		},
	}

	stripNulls(m)

	if _, has := m["drop"]; has {
		t.Error("top-level null not removed")
	}
	nested := m["nested"].(map[string]interface{})
	if _, has := nested["inner_drop"]; has {
		t.Error("nested null not removed")
	}
	item := m["list"].([]interface{})[0].(map[string]interface{})
	if _, has := item["x"]; has {
		t.Error("null inside list element not removed")
	}
	if item["y"] != "z" {
		t.Error("non-null value lost")
	}
}
