package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrStoreRequired       = sterrors.New("statetree: record store is required")
	ErrSchemaRequired      = sterrors.New("statetree: schema is required")
	ErrUnknownType         = sterrors.New("statetree: serialized type must exist in schema")
	ErrInvalidRelationship = sterrors.New("statetree: invalid relationship")
	ErrInvalidQuery        = sterrors.New("statetree: invalid query")
	ErrPublisherRequired   = sterrors.New("statetree: publisher is required")
	ErrTopicRequired       = sterrors.New("statetree: topic is required")
)

// ConfigValidationError wraps the joined errors reported by config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("statetree: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
