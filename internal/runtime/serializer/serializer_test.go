package serializer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/schema"
)

func testSchema() *schema.Schema {
	s := schema.MustNew(map[string]schema.Model{
		"planet": {Relationships: map[string]schema.Relationship{
			"moons": {Kind: schema.HasMany, Model: "moon", Inverse: "planet"},
			"sun":   {Kind: schema.HasOne, Model: "star"},
		}},
		"moon": {Relationships: map[string]schema.Relationship{
			"planet": {Kind: schema.HasOne, Model: "planet", Inverse: "moons"},
		}},
		"star": {},
	})
	s.IDGenerator = func(typ string) string { return "generated-" + typ }
	return s
}

func TestAugmentAddsTypeAndRelationshipNames(t *testing.T) {
	record := map[string]any{"id": "earth", "name": "Earth"}
	out := Augment(testSchema(), "planet", record)

	assert.Equal(t, "planet", out["type"])
	assert.Equal(t, []string{"moons", "sun"}, out["relationshipNames"])
	assert.Equal(t, "Earth", out["name"])
	assert.NotContains(t, record, "type", "input must not be modified")
}

func TestAugmentRecordFieldsWin(t *testing.T) {
	out := Augment(testSchema(), "planet", map[string]any{"type": "dwarf", "relationshipNames": []string{"x"}})
	assert.Equal(t, "dwarf", out["type"])
	assert.Equal(t, []string{"x"}, out["relationshipNames"])
}

func TestAugmentRecursesIntoRelatedRecords(t *testing.T) {
	record := map[string]any{
		"id":    "earth",
		"moons": []any{map[string]any{"id": "luna"}, "phobos"},
		"sun":   map[string]any{"id": "sol"},
	}
	out := Augment(testSchema(), "planet", record)

	moons := out["moons"].([]any)
	luna := moons[0].(map[string]any)
	assert.Equal(t, "moon", luna["type"])
	assert.Equal(t, []string{"planet"}, luna["relationshipNames"])
	assert.Equal(t, "phobos", moons[1])

	sun := out["sun"].(map[string]any)
	assert.Equal(t, "star", sun["type"])
	assert.Empty(t, sun["relationshipNames"])

	_, augmentedInPlace := record["moons"].([]any)[0].(map[string]any)["type"]
	assert.False(t, augmentedInPlace)
}

func TestAugmentSkipsBlankRelationshipFields(t *testing.T) {
	out := Augment(testSchema(), "planet", map[string]any{"sun": nil, "moons": ""})
	assert.Nil(t, out["sun"])
	assert.Equal(t, "", out["moons"])
}

func TestSerialize(t *testing.T) {
	s := New(testSchema())
	doc, err := s.Serialize("planet", map[string]any{
		"id":             "earth",
		"name":           "Earth",
		"classification": "terrestrial",
		"keys":           map[string]any{"remoteId": "p-3"},
		"moons":          []any{map[string]any{"id": "luna", "name": "Luna"}, "phobos"},
		"sun":            "sol",
	})
	require.NoError(t, err)

	earth, ok := doc.Primary()
	require.True(t, ok)
	assert.Equal(t, jsonapi.Identity{Type: "planet", ID: "earth"}, earth.Identity())
	assert.Equal(t, map[string]any{"name": "Earth", "classification": "terrestrial"}, earth.Attributes)
	assert.Equal(t, map[string]string{"remoteId": "p-3"}, earth.Keys)
	assert.Equal(t, jsonapi.ToMany("moon", "luna", "phobos"), earth.Relationships["moons"])
	assert.Equal(t, jsonapi.ToOne("star", "sol"), earth.Relationships["sun"])

	require.Len(t, doc.Included, 1)
	assert.Equal(t, "Luna", doc.Included[0].Attributes["name"])
}

func TestSerializeGeneratesMissingIDs(t *testing.T) {
	r, err := New(testSchema()).Resource("moon", map[string]any{"name": "Luna"})
	require.NoError(t, err)
	assert.Equal(t, "generated-moon", r.ID)
}

func TestSerializeNumericIDs(t *testing.T) {
	r, err := New(testSchema()).Resource("planet", map[string]any{"id": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, "3", r.ID)
}

func TestSerializeNullLinkageKeepsCardinality(t *testing.T) {
	r, err := New(testSchema()).Resource("planet", map[string]any{"id": "earth", "moons": nil, "sun": nil})
	require.NoError(t, err)
	assert.True(t, r.Relationships["moons"].Many)
	assert.Empty(t, r.Relationships["moons"].Members)
	assert.False(t, r.Relationships["sun"].Many)
	assert.Nil(t, r.Relationships["sun"].One)
}

func TestSerializeUnknownType(t *testing.T) {
	_, err := New(testSchema()).Serialize("comet", map[string]any{"id": "halley"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errspkg.ErrUnknownType))
}

func TestSerializeUnsupportedLinkage(t *testing.T) {
	_, err := New(testSchema()).Serialize("planet", map[string]any{"id": "earth", "sun": true})
	assert.Error(t, err)
}
