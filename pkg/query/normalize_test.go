package query

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_RejectsNonMappings(t *testing.T) {
	for _, raw := range []any{1, "foo", []any{1}, true} {
		if _, err := New(room, raw); !errors.Is(err, ErrInvalidRequestShape) {
			t.Fatalf("New(%v) error = %v, want ErrInvalidRequestShape", raw, err)
		}
	}
}

func TestNew_NilIsEmpty(t *testing.T) {
	spec := mustSpec(t, room, nil)
	if !spec.IsEmpty() {
		t.Fatalf("expected empty spec, got %v", spec)
	}
}

func TestNew_Discriminator(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		raw    Request
		want   map[string]any
	}{
		{
			name:   "not inherited",
			schema: message,
			raw:    Request{"foo": "bar"},
			want:   map[string]any{"foo": "bar"},
		},
		{
			name:   "inherited",
			schema: enter,
			raw:    Request{"foo": "bar"},
			want:   map[string]any{"foo": "bar", "_type": "Enter"},
		},
		{
			name:   "not added to nested conditions",
			schema: enter,
			raw:    Request{"foo": "bar", "age": Request{"$gt": 21}},
			want:   map[string]any{"foo": "bar", "age": map[string]any{"$gt": 21}, "_type": "Enter"},
		},
		{
			name:   "empty request",
			schema: enter,
			raw:    Request{},
			want:   map[string]any{"_type": "Enter"},
		},
		{
			name:   "caller value wins",
			schema: enter,
			raw:    Request{"_type": "Exit"},
			want:   map[string]any{"_type": "Exit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustSpec(t, tt.schema, tt.raw).Criteria().Native()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("criteria = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNew_OperatorTokens(t *testing.T) {
	tokens := map[string]Token{
		"gt": Field("age").Gt(), "lt": Field("age").Lt(), "gte": Field("age").Gte(),
		"lte": Field("age").Lte(), "ne": Field("age").Ne(), "in": Field("age").In(),
		"nin": Field("age").Nin(), "mod": Field("age").Mod(), "size": Field("age").Size(),
		"where": Field("age").Where(), "exists": Field("age").Exists(),
	}
	for op, tok := range tokens {
		got := mustSpec(t, room, Request{tok: 21}).Criteria().Native()
		want := map[string]any{"age": map[string]any{"$" + op: 21}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: criteria = %#v, want %#v", op, got, want)
		}
	}
}

func TestNew_SimpleCriteria(t *testing.T) {
	got := mustSpec(t, room, map[string]any{"foo": "bar", "baz": "wick"}).Criteria().Native()
	want := map[string]any{"foo": "bar", "baz": "wick"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("criteria = %#v, want %#v", got, want)
	}
}

func TestNew_IdentifierFields(t *testing.T) {
	id := primitive.NewObjectID()

	tests := []struct {
		name   string
		schema Schema
		raw    Request
		want   map[string]any
	}{
		{"id becomes _id", room, Request{"id": id}, map[string]any{"_id": id}},
		{"id token becomes _id", room, Request{Field("id").Ne(): id}, map[string]any{"_id": map[string]any{"$ne": id}}},
		{"_id text coerced", room, Request{"_id": id.Hex()}, map[string]any{"_id": id}},
		{"_id object id untouched", room, Request{"_id": id}, map[string]any{"_id": id}},
		{"other id key coerced", message, Request{"room_id": id.Hex()}, map[string]any{"room_id": id}},
		{"other id key untouched", message, Request{"room_id": id}, map[string]any{"room_id": id}},
		{"id list coerced", room, Request{"_id": []string{id.Hex()}}, map[string]any{"_id": map[string]any{"$in": []any{id}}}},
		{"id operator coerced", room, Request{"_id": Request{"$ne": id.Hex()}}, map[string]any{"_id": map[string]any{"$ne": id}}},
		{"plain text untouched", message, Request{"name": id.Hex()}, map[string]any{"name": id.Hex()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustSpec(t, tt.schema, tt.raw).Criteria().Native()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("criteria = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNew_InvalidIdentifier(t *testing.T) {
	_, err := New(room, Request{"_id": "not-an-object-id"})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestNew_TimesNormalizedToUTC(t *testing.T) {
	zone := time.FixedZone("EST", -5*3600)
	local := time.Date(2024, 3, 1, 9, 30, 0, 0, zone)

	got := mustSpec(t, room, Request{"created_at": local}).Criteria()["created_at"].Value().(time.Time)
	if got.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", got.Location())
	}
	if !got.Equal(local) {
		t.Fatalf("instant changed: %v vs %v", got, local)
	}

	already := time.Now().UTC()
	got = mustSpec(t, room, Request{"created_at": already}).Criteria()["created_at"].Value().(time.Time)
	if got != already {
		t.Fatalf("utc time rebuilt: %v vs %v", got, already)
	}
}

func TestNew_Membership(t *testing.T) {
	tests := []struct {
		name string
		raw  Request
		want map[string]any
	}{
		{"arrays become $in", Request{"foo": []int{1, 2, 3}}, map[string]any{"foo": map[string]any{"$in": []any{1, 2, 3}}}},
		{"$all untouched", Request{"foo": Request{"$all": []any{1, 2, 3}}}, map[string]any{"foo": map[string]any{"$all": []any{1, 2, 3}}}},
		{"$any untouched", Request{"foo": Request{"$any": []any{1, 2, 3}}}, map[string]any{"foo": map[string]any{"$any": []any{1, 2, 3}}}},
		{"nested arrays", Request{"foo": Request{"bar": []any{1, 2, 3}}}, map[string]any{"foo": map[string]any{"bar": map[string]any{"$in": []any{1, 2, 3}}}}},
		{"nested operators", Request{"foo": Request{"bar": Request{"$any": []any{1, 2, 3}}}}, map[string]any{"foo": map[string]any{"bar": map[string]any{"$any": []any{1, 2, 3}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustSpec(t, room, tt.raw).Criteria().Native()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("criteria = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNew_PredicateKinds(t *testing.T) {
	c := mustSpec(t, room, Request{
		"doc": Request{"bar": 1},
		"ops": Request{"$gt": 1},
		"tag": []any{"a"},
		"one": 1,
	}).Criteria()

	want := map[string]Kind{"doc": KindDocument, "ops": KindOperators, "tag": KindOperators, "one": KindScalar}
	for field, kind := range want {
		if got := c[field].Kind(); got != kind {
			t.Fatalf("%s kind = %s, want %s", field, got, kind)
		}
	}
}

func TestNew_Conditions(t *testing.T) {
	spec := mustSpec(t, room, Request{"conditions": Request{"foo": "bar"}})
	if got, want := spec.Criteria().Native(), map[string]any{"foo": "bar"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("criteria = %#v, want %#v", got, want)
	}

	nested := mustSpec(t, room, Request{"a": 1, "conditions": Request{"conditions": Request{"b": 2}}})
	if got, want := nested.Criteria().Native(), map[string]any{"a": 1, "b": 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("criteria = %#v, want %#v", got, want)
	}

	explicit := mustSpec(t, room, Request{"a": 1, "conditions": Request{"a": 2}})
	if got := explicit.Criteria()["a"].Value(); got != 1 {
		t.Fatalf("explicit key should win over conditions, got %v", got)
	}

	if _, err := New(room, Request{"conditions": 5}); !errors.Is(err, ErrInvalidRequestShape) {
		t.Fatalf("error = %v, want ErrInvalidRequestShape", err)
	}
}

func TestNew_OptionKeysAreNotCriteria(t *testing.T) {
	spec := mustSpec(t, room, Request{
		"foo":    "bar",
		"baz":    true,
		"sort":   [][]any{{"foo", 1}},
		"fields": []string{"foo", "baz"},
		"limit":  10,
		"skip":   10,
	})
	if got, want := spec.Criteria().Native(), map[string]any{"foo": "bar", "baz": true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("criteria = %#v, want %#v", got, want)
	}
	opts := spec.Options()
	if opts.Skip() != 10 || opts.Limit() != 10 {
		t.Fatalf("skip/limit = %d/%d, want 10/10", opts.Skip(), opts.Limit())
	}
	if !reflect.DeepEqual(opts.Fields(), []string{"foo", "baz"}) {
		t.Fatalf("fields = %v", opts.Fields())
	}
	if !opts.Sort().Equal(SortSpec{Asc("foo")}) {
		t.Fatalf("sort = %v", opts.Sort())
	}

	for _, key := range []string{"select", "offset", "order"} {
		s := mustSpec(t, room, Request{key: "foo"})
		if _, ok := s.Criteria()[key]; ok {
			t.Fatalf("%s leaked into criteria", key)
		}
	}
}

func TestNew_OrderedBSON(t *testing.T) {
	spec := mustSpec(t, room, bson.D{{Key: "name", Value: "John"}, {Key: "limit", Value: 2}})
	if got := spec.Criteria()["name"].Value(); got != "John" {
		t.Fatalf("name = %v", got)
	}
	if spec.Options().Limit() != 2 {
		t.Fatalf("limit = %d", spec.Options().Limit())
	}
}

func TestNew_RegexPassesThrough(t *testing.T) {
	re := primitive.Regex{Pattern: "^Ste"}
	got := mustSpec(t, room, bson.M{"first_name": re}).Criteria()["first_name"]
	if got.Kind() != KindScalar || got.Value() != re {
		t.Fatalf("regex predicate = %#v", got)
	}
}

func TestNew_SortTokenAsCondition(t *testing.T) {
	if _, err := New(room, Request{Field("age").Asc(): 1}); !errors.Is(err, ErrInvalidRequestShape) {
		t.Fatalf("error = %v, want ErrInvalidRequestShape", err)
	}
}

func TestNormalizeCriteria(t *testing.T) {
	c, err := NormalizeCriteria(enter, map[string]any{"limit": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"limit": 3, "_type": "Enter"}
	if got := c.Native(); !reflect.DeepEqual(got, want) {
		t.Fatalf("criteria = %#v, want %#v", got, want)
	}
}
