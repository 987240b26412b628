package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"datadesigner/internal/dataset"
	"datadesigner/internal/nemo"
	"datadesigner/internal/schema"
	"datadesigner/internal/store"
)

// Toolset wires the schema, job, and dataset tools to their backing
// services. Register it on a fresh registry per agent.
type Toolset struct {
	store     *store.Store
	client    *nemo.Client
	datasets  *dataset.Store // nil disables viewer import
	outputDir string
}

// NewToolset creates the designer tool surface. datasets may be nil
// when no local viewer database is configured.
func NewToolset(sessions *store.Store, client *nemo.Client, datasets *dataset.Store, outputDir string) *Toolset {
	return &Toolset{
		store:     sessions,
		client:    client,
		datasets:  datasets,
		outputDir: outputDir,
	}
}

// RegisterAll registers every designer tool.
func (t *Toolset) RegisterAll(r *Registry) {
	for _, tool := range t.schemaTools() {
		r.MustRegister(tool)
	}
	for _, tool := range t.jobTools() {
		r.MustRegister(tool)
	}
}

// =============================================================================
// ARGUMENT AND RESULT HELPERS
// =============================================================================

func strArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func sliceArg(args map[string]any, key string) []interface{} {
	if v, ok := args[key].([]interface{}); ok {
		return v
	}
	return nil
}

func sessionArg(args map[string]any) string {
	return strArg(args, "session_id", "default")
}

// jsonResult marshals a tool result payload.
func jsonResult(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode result: %v"}`, err)
	}
	return string(data)
}

// errResult encodes a validation failure as a payload the model can read
// and correct, rather than an execution error.
func errResult(err error) string {
	return jsonResult(map[string]string{"error": err.Error()})
}

// loadBuilder reconstructs the session's schema builder from its stored
// snapshot.
func (t *Toolset) loadBuilder(ctx context.Context, sessionID string) (*schema.Builder, *schema.ReconstructReport) {
	snap := t.store.Load(ctx, sessionID)
	return schema.Reconstruct(snap)
}

// saveBuilder persists the builder state back to the session store.
func (t *Toolset) saveBuilder(ctx context.Context, sessionID string, b *schema.Builder) error {
	snap, err := b.Snapshot()
	if err != nil {
		return err
	}
	t.store.Save(ctx, sessionID, snap)
	return nil
}

// mutate runs one schema mutation against the session's builder and
// persists the result. A mutation error comes back as an error payload;
// the snapshot is only saved when the mutation succeeded.
func (t *Toolset) mutate(ctx context.Context, sessionID string, fn func(b *schema.Builder) error, ok interface{}) (string, error) {
	b, _ := t.loadBuilder(ctx, sessionID)
	if err := fn(b); err != nil {
		return errResult(err), nil
	}
	if err := t.saveBuilder(ctx, sessionID, b); err != nil {
		return errResult(err), nil
	}
	return jsonResult(ok), nil
}

// sessionProperty is the shared session_id parameter.
var sessionProperty = Property{
	Type:        "string",
	Description: "Session identifier; omit to use the default session",
}

// =============================================================================
// SCHEMA TOOLS
// =============================================================================

func (t *Toolset) schemaTools() []*Tool {
	return []*Tool{
		{
			Name:        "init_config",
			Description: "Reset the session's dataset schema to empty. Use before starting a new dataset design.",
			Category:    CategorySchema,
			Priority:    90,
			Schema: ToolSchema{
				Properties: map[string]Property{"session_id": sessionProperty},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				sessionID := sessionArg(args)
				t.store.Save(ctx, sessionID, schema.EmptySnapshot())
				return jsonResult(map[string]interface{}{
					"status":     "initialized",
					"session_id": sessionID,
				}), nil
			},
		},
		{
			Name:        "add_uuid_column",
			Description: "Add a unique identifier column. Values look like ID-3F9A2C41.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"prefix":     {Type: "string", Description: "Identifier prefix", Default: "ID-"},
					"short_form": {Type: "boolean", Description: "Use the short 8-character form", Default: true},
					"uppercase":  {Type: "boolean", Description: "Uppercase the hex digits", Default: true},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.UUIDParams{
					Prefix:    strArg(args, "prefix", "ID-"),
					ShortForm: boolArg(args, "short_form", true),
					Uppercase: boolArg(args, "uppercase", true),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerUUID, params, "")
				}, map[string]string{"added": name, "sampler": "uuid"})
			},
		},
		{
			Name:        "add_category_column",
			Description: "Add a column sampled uniformly from a fixed set of values.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "values"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"values":     {Type: "array", Description: "Candidate values", Items: &PropertyItems{Type: "string"}},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.CategoryParams{Values: sliceArg(args, "values")}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerCategory, params, "")
				}, map[string]string{"added": name, "sampler": "category"})
			},
		},
		{
			Name:        "add_float_column",
			Description: "Add a floating-point column sampled uniformly between low and high.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "low", "high"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"low":        {Type: "number", Description: "Lower bound (inclusive)"},
					"high":       {Type: "number", Description: "Upper bound (inclusive)"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.UniformParams{
					Low:  floatArg(args, "low", 0),
					High: floatArg(args, "high", 0),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerUniform, params, "")
				}, map[string]string{"added": name, "sampler": "uniform"})
			},
		},
		{
			Name:        "add_int_column",
			Description: "Add an integer column sampled uniformly between low and high.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "low", "high"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"low":        {Type: "number", Description: "Lower bound (inclusive)"},
					"high":       {Type: "number", Description: "Upper bound (inclusive)"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				// Integers ride the uniform sampler with a conversion hint
				params := &schema.UniformParams{
					Low:  floatArg(args, "low", 0),
					High: floatArg(args, "high", 0),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerUniform, params, "int")
				}, map[string]string{"added": name, "sampler": "uniform", "convert_to": "int"})
			},
		},
		{
			Name:        "add_gaussian_column",
			Description: "Add a numeric column sampled from a normal distribution.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "mean", "stddev"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"mean":       {Type: "number", Description: "Distribution mean"},
					"stddev":     {Type: "number", Description: "Standard deviation"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.GaussianParams{
					Mean:   floatArg(args, "mean", 0),
					Stddev: floatArg(args, "stddev", 1),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerGaussian, params, "")
				}, map[string]string{"added": name, "sampler": "gaussian"})
			},
		},
		{
			Name:        "add_datetime_column",
			Description: "Add a column of timestamps sampled between two dates.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "start", "end"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"start":      {Type: "string", Description: "Earliest date, ISO format (2024-01-01)"},
					"end":        {Type: "string", Description: "Latest date, ISO format"},
					"unit":       {Type: "string", Description: "Output resolution", Enum: []any{"s", "m", "h", "D"}, Default: "D"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.DatetimeParams{
					Start: strArg(args, "start", ""),
					End:   strArg(args, "end", ""),
					Unit:  strArg(args, "unit", "D"),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerDatetime, params, "")
				}, map[string]string{"added": name, "sampler": "datetime"})
			},
		},
		{
			Name:        "add_person_column",
			Description: "Add a column of synthetic person profiles (name, age, and related fields).",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name"},
				Properties: map[string]Property{
					"session_id": sessionProperty,
					"name":       {Type: "string", Description: "Column name"},
					"age_min":    {Type: "number", Description: "Minimum age", Default: 18},
					"age_max":    {Type: "number", Description: "Maximum age", Default: 70},
					"locale":     {Type: "string", Description: "Locale for generated names"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				params := &schema.PersonParams{
					AgeRange: []int{intArg(args, "age_min", 18), intArg(args, "age_max", 70)},
					Locale:   strArg(args, "locale", ""),
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddSamplerColumn(name, schema.SamplerPerson, params, "")
				}, map[string]string{"added": name, "sampler": "person"})
			},
		},
		{
			Name: "add_llm_text_column",
			Description: "Add a column generated by a language model. The prompt may reference other columns " +
				"with {{ column_name }} templates, but never the column being added.",
			Category: CategorySchema,
			Schema: ToolSchema{
				Required: []string{"name", "prompt", "model_alias"},
				Properties: map[string]Property{
					"session_id":    sessionProperty,
					"name":          {Type: "string", Description: "Column name (letters, digits, underscores)"},
					"prompt":        {Type: "string", Description: "Generation prompt, may use {{ other_column }} templates"},
					"model_alias":   {Type: "string", Description: "Alias of a model registered via add_model_config"},
					"system_prompt": {Type: "string", Description: "Optional system prompt"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				name := strArg(args, "name", "")
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddGeneratedColumn(name,
						strArg(args, "model_alias", ""),
						strArg(args, "prompt", ""),
						strArg(args, "system_prompt", ""))
				}, map[string]string{"added": name, "kind": schema.ColumnTypeLLMText})
			},
		},
		{
			Name:        "add_model_config",
			Description: "Register a model under an alias for generated text columns.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"alias", "model"},
				Properties: map[string]Property{
					"session_id":  sessionProperty,
					"alias":       {Type: "string", Description: "Short alias columns refer to"},
					"model":       {Type: "string", Description: "Model identifier, e.g. meta/llama-3.3-70b-instruct"},
					"provider":    {Type: "string", Description: "Optional provider override"},
					"temperature": {Type: "number", Description: "Sampling temperature"},
					"top_p":       {Type: "number", Description: "Nucleus sampling cutoff"},
					"max_tokens":  {Type: "number", Description: "Completion token cap"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				spec := schema.ModelSpec{
					Alias:    strArg(args, "alias", ""),
					Model:    strArg(args, "model", ""),
					Provider: strArg(args, "provider", ""),
				}
				if _, hasTemp := args["temperature"]; hasTemp || args["top_p"] != nil || args["max_tokens"] != nil {
					spec.Inference = &schema.InferenceParams{
						Temperature: floatArg(args, "temperature", 0),
						TopP:        floatArg(args, "top_p", 0),
						MaxTokens:   intArg(args, "max_tokens", 0),
					}
				}
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddModelConfig(spec)
				}, map[string]string{"registered": spec.Alias, "model": spec.Model})
			},
		},
		{
			Name:        "add_column_constraint",
			Description: "Constrain a numeric column. Operators: <, <=, >, >= (or lt, le, gt, ge). The right side is a number or another column name.",
			Category:    CategorySchema,
			Schema: ToolSchema{
				Required: []string{"target_column", "operator", "rhs"},
				Properties: map[string]Property{
					"session_id":    sessionProperty,
					"target_column": {Type: "string", Description: "Column the constraint applies to"},
					"operator":      {Type: "string", Description: "Comparison operator", Enum: []any{"<", "<=", ">", ">=", "lt", "le", "gt", "ge"}},
					"rhs":           {Type: "string", Description: "Number or column name to compare against"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				target := strArg(args, "target_column", "")
				op := strArg(args, "operator", "")
				rhs := args["rhs"]
				return t.mutate(ctx, sessionArg(args), func(b *schema.Builder) error {
					return b.AddConstraint(target, op, rhs)
				}, map[string]interface{}{"constrained": target, "operator": op, "rhs": rhs})
			},
		},
		{
			Name:        "get_config_summary",
			Description: "Summarize the session's current schema: columns, model configs, and constraints.",
			Category:    CategorySchema,
			Priority:    60,
			Schema: ToolSchema{
				Properties: map[string]Property{"session_id": sessionProperty},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				b, report := t.loadBuilder(ctx, sessionArg(args))
				result := map[string]interface{}{"summary": b.Summarize()}
				if !report.Clean() {
					result["reconstruction_warnings"] = report
				}
				return jsonResult(result), nil
			},
		},
	}
}
