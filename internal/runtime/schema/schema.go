// Package schema describes the record models known to a state tree: which
// types exist and which relationships each type declares.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/drblury/statetree/internal/runtime/jsoncodec"
)

// Kind is the cardinality of a relationship.
type Kind string

const (
	HasOne  Kind = "hasOne"
	HasMany Kind = "hasMany"
)

// Relationship declares a link from one model to another.
type Relationship struct {
	Kind    Kind   `yaml:"type" json:"type"`
	Model   string `yaml:"model" json:"model"`
	Inverse string `yaml:"inverse,omitempty" json:"inverse,omitempty"`
}

// Model is the declaration of a single record type.
type Model struct {
	Keys          []string                `yaml:"keys,omitempty" json:"keys,omitempty"`
	Attributes    map[string]Attribute    `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Relationships map[string]Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Attribute declares a record attribute. The type is informational.
type Attribute struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Adapter is the capability the state tree consumes: given a type and a
// relationship name, report the related type and its cardinality.
type Adapter interface {
	HasModel(typ string) bool
	ModelHasRelationship(typ, name string) (Relationship, bool)
	RelationshipNames(typ string) []string
	GenerateID(typ string) string
}

// Schema is the default Adapter backed by a static set of models.
type Schema struct {
	Models map[string]Model `yaml:"models" json:"models"`

	// IDGenerator overrides record id generation. Defaults to random UUIDs.
	IDGenerator func(typ string) string `yaml:"-" json:"-"`
}

var _ Adapter = (*Schema)(nil)

// New builds a schema from the given models and validates it.
func New(models map[string]Model) (*Schema, error) {
	s := &Schema{Models: models}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New that panics on an invalid schema.
func MustNew(models map[string]Model) *Schema {
	s, err := New(models)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse decodes a YAML (or JSON, which YAML accepts) schema definition.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a schema file. Files ending in .json are decoded with the JSON
// codec, everything else as YAML.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var s Schema
		if err := jsoncodec.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", path, err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return &s, nil
	}
	return Parse(data)
}

// Validate checks that every relationship names a known model with a known
// cardinality and that declared inverses exist on the related model.
func (s *Schema) Validate() error {
	if s == nil || len(s.Models) == 0 {
		return fmt.Errorf("schema: at least one model is required")
	}
	for _, typ := range s.modelNames() {
		for _, name := range s.RelationshipNames(typ) {
			rel := s.Models[typ].Relationships[name]
			if rel.Kind != HasOne && rel.Kind != HasMany {
				return fmt.Errorf("schema: relationship %s.%s has unknown type %q", typ, name, rel.Kind)
			}
			target, ok := s.Models[rel.Model]
			if !ok {
				return fmt.Errorf("schema: relationship %s.%s references unknown model %q", typ, name, rel.Model)
			}
			if rel.Inverse == "" {
				continue
			}
			inverse, ok := target.Relationships[rel.Inverse]
			if !ok {
				return fmt.Errorf("schema: inverse %s.%s of %s.%s is not declared", rel.Model, rel.Inverse, typ, name)
			}
			if inverse.Model != typ {
				return fmt.Errorf("schema: inverse %s.%s points at %q, want %q", rel.Model, rel.Inverse, inverse.Model, typ)
			}
		}
	}
	return nil
}

func (s *Schema) HasModel(typ string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Models[typ]
	return ok
}

func (s *Schema) ModelHasRelationship(typ, name string) (Relationship, bool) {
	if s == nil {
		return Relationship{}, false
	}
	model, ok := s.Models[typ]
	if !ok {
		return Relationship{}, false
	}
	rel, ok := model.Relationships[name]
	return rel, ok
}

// RelationshipNames lists the relationships declared on typ, sorted.
func (s *Schema) RelationshipNames(typ string) []string {
	if s == nil {
		return nil
	}
	model, ok := s.Models[typ]
	if !ok || len(model.Relationships) == 0 {
		return nil
	}
	names := make([]string, 0, len(model.Relationships))
	for name := range model.Relationships {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GenerateID returns a new record id for typ.
func (s *Schema) GenerateID(typ string) string {
	if s != nil && s.IDGenerator != nil {
		return s.IDGenerator(typ)
	}
	return uuid.NewString()
}

func (s *Schema) modelNames() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
