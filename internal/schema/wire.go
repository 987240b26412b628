package schema

import (
	"encoding/json"
	"fmt"
)

// DefaultProject is the remote service project jobs are submitted under.
const DefaultProject = "nemo-data-designer"

// WirePayload is the job submission body for the remote data designer
// service. Config is the schema in wire form: no local discriminators,
// no null fields.
type WirePayload struct {
	Name    string   `json:"name"`
	Project string   `json:"project"`
	Spec    WireSpec `json:"spec"`
}

// WireSpec pairs the record count with the schema config.
type WireSpec struct {
	NumRecords int                    `json:"num_records"`
	Config     map[string]interface{} `json:"config"`
}

// BuildWirePayload validates the schema and converts it to the wire form
// the remote service accepts. The persisted snapshot carries local
// bookkeeping (column_type, sampler_type inside params) that the service
// rejects as unknown fields; those are stripped here, along with null
// values.
func BuildWirePayload(b *Builder, jobName string, numRecords int, project string) (*WirePayload, error) {
	if jobName == "" {
		return nil, fmt.Errorf("job name required")
	}
	if numRecords <= 0 {
		return nil, fmt.Errorf("num_records must be positive, got %d", numRecords)
	}
	if project == "" {
		project = DefaultProject
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	snap, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	cfg, err := wireConfig(snap)
	if err != nil {
		return nil, err
	}

	return &WirePayload{
		Name:    jobName,
		Project: project,
		Spec: WireSpec{
			NumRecords: numRecords,
			Config:     cfg,
		},
	}, nil
}

// WireConfig validates the schema and returns the wire config map alone,
// for preview requests that carry no job envelope.
func WireConfig(b *Builder) (map[string]interface{}, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	snap, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	return wireConfig(snap)
}

// wireConfig converts a snapshot to the wire config map.
func wireConfig(snap *Snapshot) (map[string]interface{}, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	columns, _ := cfg["columns"].([]interface{})
	for _, item := range columns {
		col, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		delete(col, "column_type")
		if params, ok := col["params"].(map[string]interface{}); ok {
			delete(params, "sampler_type")
		}
	}

	stripNulls(cfg)
	return cfg, nil
}

// stripNulls removes null values recursively. The remote service treats
// explicit nulls as type errors rather than absent fields.
func stripNulls(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]interface{}:
			stripNulls(val)
		case []interface{}:
			for _, item := range val {
				if sub, ok := item.(map[string]interface{}); ok {
					stripNulls(sub)
				}
			}
		}
	}
}
