package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrStoreRequired", ErrStoreRequired, "statetree: record store is required"},
		{"ErrSchemaRequired", ErrSchemaRequired, "statetree: schema is required"},
		{"ErrUnknownType", ErrUnknownType, "statetree: serialized type must exist in schema"},
		{"ErrInvalidRelationship", ErrInvalidRelationship, "statetree: invalid relationship"},
		{"ErrInvalidQuery", ErrInvalidQuery, "statetree: invalid query"},
		{"ErrPublisherRequired", ErrPublisherRequired, "statetree: publisher is required"},
		{"ErrTopicRequired", ErrTopicRequired, "statetree: topic is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("kafka: brokers are required")
	err := ConfigValidationError{Err: inner}

	want := "statetree: invalid configuration: kafka: brokers are required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is reaches the wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
