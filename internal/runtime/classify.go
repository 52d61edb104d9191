package runtime

import (
	"errors"

	"github.com/drblury/statetree/internal/runtime/operation"
)

// ErrorClassifier decides whether a store error is a domain failure. Domain
// failures complete the request; everything else is reported as unhandled.
type ErrorClassifier func(err error) (*operation.RecordError, bool)

// DefaultErrorClassifier treats any *operation.RecordError in the chain as a
// domain failure.
func DefaultErrorClassifier(err error) (*operation.RecordError, bool) {
	var recordErr *operation.RecordError
	if errors.As(err, &recordErr) {
		return recordErr, true
	}
	return nil, false
}
