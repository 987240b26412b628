package schema

import "errors"

// Sentinel errors for schema construction and validation
var (
	// ErrEmptyColumnName indicates a column with no name
	ErrEmptyColumnName = errors.New("column name is empty")

	// ErrInvalidColumnName indicates a generated column name that is not a
	// valid template identifier
	ErrInvalidColumnName = errors.New("invalid column name")

	// ErrDuplicateColumn indicates a column name already in the schema
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrSelfReference indicates a generated column whose prompt references
	// its own output
	ErrSelfReference = errors.New("prompt references the column it generates")

	// ErrUnknownSampler indicates an unrecognized sampler type
	ErrUnknownSampler = errors.New("unknown sampler type")

	// ErrInvalidOperator indicates an unrecognized constraint operator
	ErrInvalidOperator = errors.New("invalid constraint operator")

	// ErrUnknownModelAlias indicates a generated column referencing a model
	// alias with no matching model config
	ErrUnknownModelAlias = errors.New("unknown model alias")

	// ErrNoColumns indicates a build attempt on an empty schema
	ErrNoColumns = errors.New("schema has no columns")

	// ErrInvalidParams indicates sampler parameters that fail validation
	ErrInvalidParams = errors.New("invalid sampler parameters")
)
