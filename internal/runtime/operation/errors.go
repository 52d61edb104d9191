package operation

import "fmt"

// RecordError is a domain failure reported by a record store, such as a
// missing record. It completes a request as failed rather than aborting it.
type RecordError struct {
	Message      string `json:"message"`
	Description  string `json:"description"`
	Type         string `json:"type,omitempty"`
	ID           string `json:"id,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

func (e *RecordError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Description
}

// RecordNotFound reports that typ/id does not exist.
func RecordNotFound(typ, id string) *RecordError {
	return &RecordError{
		Message:     fmt.Sprintf("Record not found: %s:%s", typ, id),
		Description: "Record not found",
		Type:        typ,
		ID:          id,
	}
}

// RelatedRecordNotFound reports that the relationship of typ/id is not set.
func RelatedRecordNotFound(typ, id, relationship string) *RecordError {
	return &RecordError{
		Message:      fmt.Sprintf("Related record not found: %s:%s/%s", typ, id, relationship),
		Description:  "Related record not found",
		Type:         typ,
		ID:           id,
		Relationship: relationship,
	}
}

// ModelNotFound reports that typ is not declared in the schema.
func ModelNotFound(typ string) *RecordError {
	return &RecordError{
		Message:     fmt.Sprintf("Model definition for %s not found", typ),
		Description: "Model not defined",
		Type:        typ,
	}
}
