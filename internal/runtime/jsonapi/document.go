package jsonapi

import (
	"fmt"

	"github.com/drblury/statetree/internal/runtime/jsoncodec"
)

// Document is a JSON:API top-level document. Many distinguishes a collection
// from a single resource; a single document with no Data is the null
// document (for example an empty to-one relationship or a removal).
type Document struct {
	Data     []Resource
	Many     bool
	Included []Resource
}

// Single wraps one resource.
func Single(r Resource, included ...Resource) Document {
	return Document{Data: []Resource{r}, Included: included}
}

// Collection wraps resources in order. A call without resources yields an
// empty collection, not the null document.
func Collection(rs ...Resource) Document {
	if rs == nil {
		rs = []Resource{}
	}
	return Document{Data: rs, Many: true}
}

// Empty is the null document.
func Empty() Document {
	return Document{}
}

// IsEmpty reports whether the document carries no primary data.
func (d Document) IsEmpty() bool {
	return len(d.Data) == 0
}

// Primary returns the single primary resource, if any.
func (d Document) Primary() (Resource, bool) {
	if d.Many || len(d.Data) == 0 {
		return Resource{}, false
	}
	return d.Data[0], true
}

type documentWire struct {
	Data     any        `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	wire := documentWire{Included: d.Included}
	switch {
	case d.Many:
		data := d.Data
		if data == nil {
			data = []Resource{}
		}
		wire.Data = data
	case len(d.Data) > 0:
		wire.Data = d.Data[0]
	}
	return jsoncodec.Marshal(wire)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var wire documentWire
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := Document{Included: wire.Included}
	switch primary := wire.Data.(type) {
	case nil:
	case []any:
		out.Many = true
		if err := recode(primary, &out.Data); err != nil {
			return fmt.Errorf("decode primary data: %w", err)
		}
		if out.Data == nil {
			out.Data = []Resource{}
		}
	case map[string]any:
		var r Resource
		if err := recode(primary, &r); err != nil {
			return fmt.Errorf("decode primary data: %w", err)
		}
		out.Data = []Resource{r}
	default:
		return fmt.Errorf("unexpected primary data %T", wire.Data)
	}
	*d = out
	return nil
}

// DecodeDocument parses a wire document.
func DecodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := jsoncodec.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
