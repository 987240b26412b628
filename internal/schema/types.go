// Package schema implements the incremental dataset schema: typed column
// definitions, model configs, and row constraints, plus the persisted
// snapshot form used by the session store and the wire form submitted to
// the remote data designer service.
package schema

import (
	"encoding/json"
	"fmt"
)

// Column type discriminators as they appear in persisted snapshots.
const (
	ColumnTypeSampler = "sampler"
	ColumnTypeLLMText = "llm-text"
)

// SamplerType identifies a statistical sampler variant.
type SamplerType string

const (
	SamplerUUID     SamplerType = "uuid"
	SamplerCategory SamplerType = "category"
	SamplerUniform  SamplerType = "uniform"
	SamplerDatetime SamplerType = "datetime"
	SamplerPerson   SamplerType = "person"
	SamplerGaussian SamplerType = "gaussian"
)

// KnownSamplers lists every sampler variant the schema accepts.
var KnownSamplers = []SamplerType{
	SamplerUUID, SamplerCategory, SamplerUniform,
	SamplerDatetime, SamplerPerson, SamplerGaussian,
}

// IsKnownSampler reports whether t names a supported sampler variant.
func IsKnownSampler(t SamplerType) bool {
	for _, k := range KnownSamplers {
		if t == k {
			return true
		}
	}
	return false
}

// SamplerParams is implemented by every typed sampler parameter struct.
type SamplerParams interface {
	Type() SamplerType
	Validate() error
}

// UUIDParams configures a uuid sampler column.
type UUIDParams struct {
	Prefix    string `json:"prefix,omitempty"`
	ShortForm bool   `json:"short_form,omitempty"`
	Uppercase bool   `json:"uppercase,omitempty"`
}

func (p *UUIDParams) Type() SamplerType { return SamplerUUID }
func (p *UUIDParams) Validate() error   { return nil }

// CategoryParams configures a category sampler column.
type CategoryParams struct {
	Values []interface{} `json:"values"`
}

func (p *CategoryParams) Type() SamplerType { return SamplerCategory }

func (p *CategoryParams) Validate() error {
	if len(p.Values) == 0 {
		return fmt.Errorf("%w: category sampler requires at least one value", ErrInvalidParams)
	}
	return nil
}

// UniformParams configures a uniform numeric sampler column. Integer
// columns use float bounds and a convert_to hint on the column.
type UniformParams struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (p *UniformParams) Type() SamplerType { return SamplerUniform }

func (p *UniformParams) Validate() error {
	if p.Low > p.High {
		return fmt.Errorf("%w: uniform low %v exceeds high %v", ErrInvalidParams, p.Low, p.High)
	}
	return nil
}

// DatetimeParams configures a datetime sampler column. Start and End use
// ISO date strings; Unit selects the output resolution.
type DatetimeParams struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Unit  string `json:"unit,omitempty"`
}

func (p *DatetimeParams) Type() SamplerType { return SamplerDatetime }

func (p *DatetimeParams) Validate() error {
	if p.Start == "" || p.End == "" {
		return fmt.Errorf("%w: datetime sampler requires start and end", ErrInvalidParams)
	}
	return nil
}

// PersonParams configures a synthetic person sampler column.
type PersonParams struct {
	AgeRange []int  `json:"age_range,omitempty"`
	Sex      string `json:"sex,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

func (p *PersonParams) Type() SamplerType { return SamplerPerson }

func (p *PersonParams) Validate() error {
	if len(p.AgeRange) != 0 && len(p.AgeRange) != 2 {
		return fmt.Errorf("%w: age_range must be [min, max]", ErrInvalidParams)
	}
	if len(p.AgeRange) == 2 && p.AgeRange[0] > p.AgeRange[1] {
		return fmt.Errorf("%w: age_range min %d exceeds max %d", ErrInvalidParams, p.AgeRange[0], p.AgeRange[1])
	}
	return nil
}

// GaussianParams configures a gaussian numeric sampler column.
type GaussianParams struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

func (p *GaussianParams) Type() SamplerType { return SamplerGaussian }

func (p *GaussianParams) Validate() error {
	if p.Stddev < 0 {
		return fmt.Errorf("%w: gaussian stddev must be non-negative, got %v", ErrInvalidParams, p.Stddev)
	}
	return nil
}

// decodeParams dispatches raw JSON params to the typed struct for the
// given sampler variant. Unknown fields in the raw payload (including a
// redundant sampler_type discriminator) are ignored.
func decodeParams(t SamplerType, raw json.RawMessage) (SamplerParams, error) {
	var p SamplerParams
	switch t {
	case SamplerUUID:
		p = &UUIDParams{}
	case SamplerCategory:
		p = &CategoryParams{}
	case SamplerUniform:
		p = &UniformParams{}
	case SamplerDatetime:
		p = &DatetimeParams{}
	case SamplerPerson:
		p = &PersonParams{}
	case SamplerGaussian:
		p = &GaussianParams{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSampler, t)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", t, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Column is the live, typed form of a schema column. Exactly one of the
// sampler fields (SamplerType, Params) or the generated-text fields
// (ModelAlias, Prompt) is populated.
type Column struct {
	Name string

	// Sampler columns
	SamplerType SamplerType
	Params      SamplerParams
	ConvertTo   string

	// Generated-text columns
	ModelAlias   string
	Prompt       string
	SystemPrompt string
}

// IsGenerated reports whether the column is produced by a language model
// rather than a statistical sampler.
func (c *Column) IsGenerated() bool { return c.ModelAlias != "" || c.Prompt != "" }

// ColumnType returns the persisted discriminator for the column.
func (c *Column) ColumnType() string {
	if c.IsGenerated() {
		return ColumnTypeLLMText
	}
	return ColumnTypeSampler
}

// InferenceParams tunes the model backing a generated column.
type InferenceParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ModelSpec binds a short alias to a concrete model for generated columns.
type ModelSpec struct {
	Alias     string           `json:"alias"`
	Model     string           `json:"model"`
	Provider  string           `json:"provider,omitempty"`
	Inference *InferenceParams `json:"inference_parameters,omitempty"`
}

// ConstraintSpec restricts rows of the generated dataset. Rhs is either a
// numeric literal or the name of another column.
type ConstraintSpec struct {
	TargetColumn string      `json:"target_column"`
	Operator     string      `json:"operator"`
	Rhs          interface{} `json:"rhs"`
}

// ColumnRecord is the persisted, JSON-shaped form of a column. Params stay
// raw so that one malformed column cannot poison snapshot decoding; they
// are typed on reconstruction.
type ColumnRecord struct {
	Name         string          `json:"name"`
	ColumnType   string          `json:"column_type,omitempty"`
	SamplerType  SamplerType     `json:"sampler_type,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
	ConvertTo    string          `json:"convert_to,omitempty"`
	ModelAlias   string          `json:"model_alias,omitempty"`
	Prompt       string          `json:"prompt,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
}

// Snapshot is the persisted session state: everything the builder needs
// to resume a conversation. All three collections are always present in
// the serialized form, even when empty.
type Snapshot struct {
	Columns      []ColumnRecord   `json:"columns"`
	ModelConfigs []ModelSpec      `json:"model_configs"`
	Constraints  []ConstraintSpec `json:"constraints"`
}

// EmptySnapshot returns a fresh snapshot with all collections empty.
// Marshals to {"columns":[],"model_configs":[],"constraints":[]}.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Columns:      []ColumnRecord{},
		ModelConfigs: []ModelSpec{},
		Constraints:  []ConstraintSpec{},
	}
}

// recordFromColumn converts a live column to its persisted form.
func recordFromColumn(c *Column) (ColumnRecord, error) {
	rec := ColumnRecord{
		Name:       c.Name,
		ColumnType: c.ColumnType(),
	}
	if c.IsGenerated() {
		rec.ModelAlias = c.ModelAlias
		rec.Prompt = c.Prompt
		rec.SystemPrompt = c.SystemPrompt
		return rec, nil
	}
	rec.SamplerType = c.SamplerType
	rec.ConvertTo = c.ConvertTo
	if c.Params != nil {
		raw, err := json.Marshal(c.Params)
		if err != nil {
			return ColumnRecord{}, fmt.Errorf("marshal %s params: %w", c.SamplerType, err)
		}
		rec.Params = raw
	}
	return rec, nil
}

// columnFromRecord converts a persisted column back to its live, typed
// form, dispatching on the sampler discriminator.
func columnFromRecord(rec ColumnRecord) (*Column, error) {
	if rec.Name == "" {
		return nil, ErrEmptyColumnName
	}

	if rec.ColumnType == ColumnTypeLLMText || (rec.SamplerType == "" && rec.ModelAlias != "") {
		if rec.Prompt == "" {
			return nil, fmt.Errorf("generated column %q has no prompt", rec.Name)
		}
		return &Column{
			Name:         rec.Name,
			ModelAlias:   rec.ModelAlias,
			Prompt:       rec.Prompt,
			SystemPrompt: rec.SystemPrompt,
		}, nil
	}

	params, err := decodeParams(rec.SamplerType, rec.Params)
	if err != nil {
		return nil, err
	}
	return &Column{
		Name:        rec.Name,
		SamplerType: rec.SamplerType,
		Params:      params,
		ConvertTo:   rec.ConvertTo,
	}, nil
}
