package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"datadesigner/internal/logging"
)

// columnNamePattern is the identifier shape prompt templates can
// reference. Digit-leading names are allowed.
var columnNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// operatorAliases maps symbolic comparison operators to their canonical
// short names. Canonical names pass through unchanged.
var operatorAliases = map[string]string{
	"<":  "lt",
	"<=": "le",
	">":  "gt",
	">=": "ge",
	"lt": "lt",
	"le": "le",
	"gt": "gt",
	"ge": "ge",
}

// NormalizeOperator maps a constraint operator (symbolic or canonical) to
// its canonical form. Returns ErrInvalidOperator for anything else.
func NormalizeOperator(op string) (string, error) {
	canonical, ok := operatorAliases[strings.TrimSpace(op)]
	if !ok {
		return "", fmt.Errorf("%w: %q (valid: <, <=, >, >= or lt, le, gt, ge)", ErrInvalidOperator, op)
	}
	return canonical, nil
}

// Builder accumulates a dataset schema across conversation turns. Each
// request reconstructs a builder from the session snapshot, mutates it,
// and persists a new snapshot; the builder itself is never shared between
// sessions.
type Builder struct {
	mu          sync.RWMutex
	columns     []*Column
	models      []ModelSpec
	constraints []ConstraintSpec
}

// NewBuilder returns an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddModelConfig registers a model alias for generated columns. Re-adding
// an existing alias replaces its config.
func (b *Builder) AddModelConfig(spec ModelSpec) error {
	if spec.Alias == "" {
		return fmt.Errorf("model config requires an alias")
	}
	if spec.Model == "" {
		return fmt.Errorf("model config %q requires a model name", spec.Alias)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, m := range b.models {
		if m.Alias == spec.Alias {
			b.models[i] = spec
			logging.SchemaDebug("replaced model config %q -> %s", spec.Alias, spec.Model)
			return nil
		}
	}
	b.models = append(b.models, spec)
	logging.SchemaDebug("added model config %q -> %s", spec.Alias, spec.Model)
	return nil
}

// AddSamplerColumn appends a statistical sampler column. Sampler column
// names only need to be non-empty and unique; they are not required to be
// template identifiers.
func (b *Builder) AddSamplerColumn(name string, t SamplerType, params SamplerParams, convertTo string) error {
	if name == "" {
		return ErrEmptyColumnName
	}
	if !IsKnownSampler(t) {
		return fmt.Errorf("%w: %q", ErrUnknownSampler, t)
	}
	if params == nil {
		return fmt.Errorf("%w: %s sampler requires parameters", ErrInvalidParams, t)
	}
	if params.Type() != t {
		return fmt.Errorf("%w: %s params given for %s sampler", ErrInvalidParams, params.Type(), t)
	}
	if err := params.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasColumnLocked(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	b.columns = append(b.columns, &Column{
		Name:        name,
		SamplerType: t,
		Params:      params,
		ConvertTo:   convertTo,
	})
	logging.SchemaDebug("added %s column %q", t, name)
	return nil
}

// AddGeneratedColumn appends an LLM-generated text column. The name must
// be a valid template identifier so other prompts can reference it, and
// the prompt must not reference the column's own output.
func (b *Builder) AddGeneratedColumn(name, modelAlias, prompt, systemPrompt string) error {
	if name == "" {
		return ErrEmptyColumnName
	}
	if !columnNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidColumnName, name, columnNamePattern)
	}
	if prompt == "" {
		return fmt.Errorf("generated column %q requires a prompt", name)
	}
	if modelAlias == "" {
		return fmt.Errorf("generated column %q requires a model alias", name)
	}
	if strings.Contains(prompt, "{{ "+name+" }}") {
		return fmt.Errorf("%w: %q", ErrSelfReference, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasColumnLocked(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	b.columns = append(b.columns, &Column{
		Name:         name,
		ModelAlias:   modelAlias,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
	})
	logging.SchemaDebug("added generated column %q (model alias %q)", name, modelAlias)
	return nil
}

// AddConstraint appends a row constraint. The operator may be symbolic or
// canonical; it is stored canonically.
func (b *Builder) AddConstraint(targetColumn, operator string, rhs interface{}) error {
	if targetColumn == "" {
		return fmt.Errorf("constraint requires a target column")
	}
	canonical, err := NormalizeOperator(operator)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.constraints = append(b.constraints, ConstraintSpec{
		TargetColumn: targetColumn,
		Operator:     canonical,
		Rhs:          rhs,
	})
	logging.SchemaDebug("added constraint %s %s %v", targetColumn, canonical, rhs)
	return nil
}

func (b *Builder) hasColumnLocked(name string) bool {
	for _, c := range b.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HasColumn reports whether a column with the given name exists.
func (b *Builder) HasColumn(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasColumnLocked(name)
}

// Columns returns a copy of the current column list.
func (b *Builder) Columns() []*Column {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Column, len(b.columns))
	copy(out, b.columns)
	return out
}

// ModelConfigs returns a copy of the registered model configs.
func (b *Builder) ModelConfigs() []ModelSpec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ModelSpec, len(b.models))
	copy(out, b.models)
	return out
}

// Constraints returns a copy of the registered constraints.
func (b *Builder) Constraints() []ConstraintSpec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ConstraintSpec, len(b.constraints))
	copy(out, b.constraints)
	return out
}

// Snapshot converts the builder's state to its persisted form. The
// result always has non-nil collections so it serializes with all three
// keys present.
func (b *Builder) Snapshot() (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := EmptySnapshot()
	for _, c := range b.columns {
		rec, err := recordFromColumn(c)
		if err != nil {
			return nil, err
		}
		snap.Columns = append(snap.Columns, rec)
	}
	snap.ModelConfigs = append(snap.ModelConfigs, b.models...)
	snap.Constraints = append(snap.Constraints, b.constraints...)
	return snap, nil
}

// Validate checks cross-item invariants before job submission: the schema
// must have columns, and every generated column's model alias must
// resolve to a registered model config.
func (b *Builder) Validate() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.columns) == 0 {
		return ErrNoColumns
	}

	aliases := make(map[string]bool, len(b.models))
	for _, m := range b.models {
		aliases[m.Alias] = true
	}
	for _, c := range b.columns {
		if c.IsGenerated() && !aliases[c.ModelAlias] {
			return fmt.Errorf("%w: column %q references %q", ErrUnknownModelAlias, c.Name, c.ModelAlias)
		}
	}
	return nil
}

// SkipEntry records one snapshot item dropped during reconstruction.
type SkipEntry struct {
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// ReconstructReport describes which snapshot items survived
// reconstruction and which were skipped.
type ReconstructReport struct {
	Columns            int         `json:"columns"`
	ModelConfigs       int         `json:"model_configs"`
	Constraints        int         `json:"constraints"`
	SkippedColumns     []SkipEntry `json:"skipped_columns,omitempty"`
	SkippedModels      []SkipEntry `json:"skipped_models,omitempty"`
	SkippedConstraints []SkipEntry `json:"skipped_constraints,omitempty"`
}

// Clean reports whether every snapshot item was reconstructed.
func (r *ReconstructReport) Clean() bool {
	return len(r.SkippedColumns) == 0 && len(r.SkippedModels) == 0 && len(r.SkippedConstraints) == 0
}

// Reconstruct rebuilds a builder from a persisted snapshot. Malformed
// items are skipped individually and reported: one bad column never
// discards the rest of the session state. Reconstruct itself never
// fails.
func Reconstruct(snap *Snapshot) (*Builder, *ReconstructReport) {
	b := NewBuilder()
	report := &ReconstructReport{}
	if snap == nil {
		return b, report
	}

	for i, m := range snap.ModelConfigs {
		if err := b.AddModelConfig(m); err != nil {
			logging.SchemaWarn("skipping model config %d (%q): %v", i, m.Alias, err)
			report.SkippedModels = append(report.SkippedModels, SkipEntry{Index: i, Name: m.Alias, Reason: err.Error()})
			continue
		}
		report.ModelConfigs++
	}

	for i, rec := range snap.Columns {
		col, err := columnFromRecord(rec)
		if err == nil {
			if col.IsGenerated() {
				err = b.AddGeneratedColumn(col.Name, col.ModelAlias, col.Prompt, col.SystemPrompt)
			} else {
				err = b.AddSamplerColumn(col.Name, col.SamplerType, col.Params, col.ConvertTo)
			}
		}
		if err != nil {
			logging.SchemaWarn("skipping column %d (%q): %v", i, rec.Name, err)
			report.SkippedColumns = append(report.SkippedColumns, SkipEntry{Index: i, Name: rec.Name, Reason: err.Error()})
			continue
		}
		report.Columns++
	}

	for i, c := range snap.Constraints {
		if err := b.AddConstraint(c.TargetColumn, c.Operator, c.Rhs); err != nil {
			logging.SchemaWarn("skipping constraint %d (%q): %v", i, c.TargetColumn, err)
			report.SkippedConstraints = append(report.SkippedConstraints, SkipEntry{Index: i, Name: c.TargetColumn, Reason: err.Error()})
			continue
		}
		report.Constraints++
	}

	return b, report
}

// Summary is a human-readable digest of the schema for review turns.
type Summary struct {
	ColumnCount     int              `json:"column_count"`
	ModelCount      int              `json:"model_count"`
	ConstraintCount int              `json:"constraint_count"`
	Columns         []ColumnSummary  `json:"columns"`
	ModelConfigs    []ModelSpec      `json:"model_configs"`
	Constraints     []ConstraintSpec `json:"constraints"`
}

// ColumnSummary describes one column in the summary.
type ColumnSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Sampler    string `json:"sampler,omitempty"`
	ModelAlias string `json:"model_alias,omitempty"`
}

// Summarize builds a digest of the current schema.
func (b *Builder) Summarize() *Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := &Summary{
		ColumnCount:     len(b.columns),
		ModelCount:      len(b.models),
		ConstraintCount: len(b.constraints),
		Columns:         make([]ColumnSummary, 0, len(b.columns)),
		ModelConfigs:    append([]ModelSpec{}, b.models...),
		Constraints:     append([]ConstraintSpec{}, b.constraints...),
	}
	for _, c := range b.columns {
		cs := ColumnSummary{Name: c.Name, Kind: c.ColumnType()}
		if c.IsGenerated() {
			cs.ModelAlias = c.ModelAlias
		} else {
			cs.Sampler = string(c.SamplerType)
		}
		s.Columns = append(s.Columns, cs)
	}
	return s
}
