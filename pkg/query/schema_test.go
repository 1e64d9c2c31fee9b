package query

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testSchema mirrors a model with ObjectID keys and optional single
// collection inheritance.
type testSchema struct {
	subtype bool
	idKeys  []string
}

func (s testSchema) IsSharedCollectionSubtype() bool { return s.subtype }
func (s testSchema) DiscriminatorField() string      { return "_type" }
func (s testSchema) DiscriminatorValue() string      { return "Enter" }

func (s testSchema) PrimaryKeyTypedFields() []string {
	return append([]string{IDField}, s.idKeys...)
}

func (s testSchema) CoerceIdentifier(text string) (any, error) {
	return primitive.ObjectIDFromHex(text)
}

var (
	room    = testSchema{}
	message = testSchema{idKeys: []string{"room_id"}}
	enter   = testSchema{subtype: true}
)

func mustSpec(t interface {
	Helper()
	Fatalf(string, ...any)
}, schema Schema, raw any) Spec {
	t.Helper()
	spec, err := New(schema, raw)
	if err != nil {
		t.Fatalf("New(%v) unexpected error: %v", raw, err)
	}
	return spec
}
