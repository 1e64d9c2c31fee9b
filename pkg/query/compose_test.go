package query

import (
	"reflect"
	"testing"
)

func composeCriteria(t *testing.T, schema Schema, a, b Request) map[string]any {
	t.Helper()
	return mustSpec(t, schema, a).Compose(mustSpec(t, schema, b)).Criteria().Native()
}

func TestCompose_Criteria(t *testing.T) {
	tests := []struct {
		name string
		a, b Request
		want map[string]any
	}{
		{
			name: "two scalars without overlap match nothing",
			a:    Request{"username": "Foo"},
			b:    Request{"username": "Bar"},
			want: map[string]any{"username": map[string]any{"$in": []any{}}},
		},
		{
			name: "two arrays intersect",
			a:    Request{"username": []any{"Foo", "Bar"}},
			b:    Request{"username": []any{"Bar", "Baz"}},
			want: map[string]any{"username": map[string]any{"$in": []any{"Bar"}}},
		},
		{
			name: "array and scalar",
			a:    Request{"username": []any{"Foo", "Bar"}},
			b:    Request{"username": "Bar"},
			want: map[string]any{"username": map[string]any{"$in": []any{"Bar"}}},
		},
		{
			name: "scalar and array",
			a:    Request{"username": "Bar"},
			b:    Request{"username": []any{"Foo", "Bar"}},
			want: map[string]any{"username": map[string]any{"$in": []any{"Bar"}}},
		},
		{
			name: "equal scalars",
			a:    Request{"username": "Bar"},
			b:    Request{"username": "Bar"},
			want: map[string]any{"username": map[string]any{"$in": []any{"Bar"}}},
		},
		{
			name: "disjoint operators merge",
			a:    Request{"position": Request{"$gte": 4}},
			b:    Request{"position": Request{"$lt": 8}},
			want: map[string]any{"position": map[string]any{"$gte": 4, "$lt": 8}},
		},
		{
			name: "bounds tighten",
			a:    Request{"position": Request{"$lt": 4, "$gte": 3}},
			b:    Request{"position": Request{"$lt": 8, "$gte": 2}},
			want: map[string]any{"position": map[string]any{"$lt": 4, "$gte": 3}},
		},
		{
			name: "bounds tighten from the right",
			a:    Request{"position": Request{"$lte": 9, "$gt": 1}},
			b:    Request{"position": Request{"$lte": 5, "$gt": 2.5}},
			want: map[string]any{"position": map[string]any{"$lte": 5, "$gt": 2.5}},
		},
		{
			name: "different $ne become $nin",
			a:    Request{"position": Request{"$ne": 3}},
			b:    Request{"position": Request{"$ne": 2}},
			want: map[string]any{"position": map[string]any{"$nin": []any{3, 2}}},
		},
		{
			name: "same $ne stays",
			a:    Request{"position": Request{"$ne": 2}},
			b:    Request{"position": Request{"$ne": 2}},
			want: map[string]any{"position": map[string]any{"$ne": 2}},
		},
		{
			name: "$ne joins existing $nin",
			a:    Request{"position": Request{"$ne": 3, "$nin": []any{7}}},
			b:    Request{"position": Request{"$ne": 2}},
			want: map[string]any{"position": map[string]any{"$nin": []any{7, 3, 2}}},
		},
		{
			name: "$ne lists stay whole values",
			a:    Request{"tags": Request{"$ne": []any{"a", "b"}}},
			b:    Request{"tags": Request{"$ne": []any{"c"}}},
			want: map[string]any{"tags": map[string]any{"$nin": []any{[]any{"a", "b"}, []any{"c"}}}},
		},
		{
			name: "$nin unions",
			a:    Request{"tag": Request{"$nin": []any{"a", "b"}}},
			b:    Request{"tag": Request{"$nin": []any{"b", "c"}}},
			want: map[string]any{"tag": map[string]any{"$nin": []any{"a", "b", "c"}}},
		},
		{
			name: "$in intersects",
			a:    Request{"tag": Request{"$in": []any{"a", "b", "a"}}},
			b:    Request{"tag": Request{"$in": []any{"b", "a"}}},
			want: map[string]any{"tag": map[string]any{"$in": []any{"a", "b"}}},
		},
		{
			name: "$mod right wins",
			a:    Request{"n": Request{"$mod": []any{4, 0}}},
			b:    Request{"n": Request{"$mod": []any{3, 1}}},
			want: map[string]any{"n": map[string]any{"$mod": []any{3, 1}}},
		},
		{
			name: "$all right wins",
			a:    Request{"tags": Request{"$all": []any{"a"}}},
			b:    Request{"tags": Request{"$all": []any{"b"}}},
			want: map[string]any{"tags": map[string]any{"$all": []any{"b"}}},
		},
		{
			name: "$size right wins",
			a:    Request{"tags": Request{"$size": 2}},
			b:    Request{"tags": Request{"$size": 3}},
			want: map[string]any{"tags": map[string]any{"$size": 3}},
		},
		{
			name: "unknown operator right wins",
			a:    Request{"loc": Request{"$near": []any{1, 2}}},
			b:    Request{"loc": Request{"$near": []any{3, 4}}},
			want: map[string]any{"loc": map[string]any{"$near": []any{3, 4}}},
		},
		{
			name: "nested operator maps recurse",
			a:    Request{"items": Request{"$elemMatch": Request{"qty": Request{"$gt": 1}}}},
			b:    Request{"items": Request{"$elemMatch": Request{"qty": Request{"$gt": 5}}}},
			want: map[string]any{"items": map[string]any{"$elemMatch": map[string]any{"qty": map[string]any{"$gt": 5}}}},
		},
		{
			name: "scalar against operator map",
			a:    Request{"age": 30},
			b:    Request{"age": Request{"$gt": 21}},
			want: map[string]any{"age": map[string]any{"$in": []any{30}, "$gt": 21}},
		},
		{
			name: "arbitrarily deep",
			a:    Request{"foo": Request{"bar": []any{1, 2, 3}}},
			b:    Request{"foo": Request{"bar": Request{"$lt": 4}, "baz": 5}},
			want: map[string]any{"foo": map[string]any{"bar": map[string]any{"$in": []any{1, 2, 3}, "$lt": 4}, "baz": 5}},
		},
		{
			name: "nested scalars intersect",
			a:    Request{"foo": Request{"baz": 5}},
			b:    Request{"foo": Request{"baz": 6}},
			want: map[string]any{"foo": map[string]any{"baz": map[string]any{"$in": []any{}}}},
		},
		{
			name: "top-level $or takes the right side",
			a:    Request{"$or": []any{Request{"a": 1}, Request{"b": 2}}},
			b:    Request{"$or": []any{Request{"c": 3}}},
			want: map[string]any{"$or": []any{Request{"c": 3}}},
		},
		{
			name: "top-level operator maps merge",
			a:    Request{"$text": Request{"$search": "john", "$language": "en"}},
			b:    Request{"$text": Request{"$search": "steph"}},
			want: map[string]any{"$text": map[string]any{"$search": "steph", "$language": "en"}},
		},
		{
			name: "one-sided fields kept",
			a:    Request{"a": 1},
			b:    Request{"b": Request{"$exists": true}},
			want: map[string]any{"a": 1, "b": map[string]any{"$exists": true}},
		},
		{
			name: "blank left value replaced",
			a:    Request{"name": ""},
			b:    Request{"name": "John"},
			want: map[string]any{"name": "John"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := composeCriteria(t, room, tt.a, tt.b)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("compose = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCompose_MapAndScalarSymmetric(t *testing.T) {
	m := Request{"age": Request{"$in": []any{20, 30}, "$gt": 21}}
	s := Request{"age": 30}
	ab := composeCriteria(t, room, m, s)
	ba := composeCriteria(t, room, s, m)
	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("asymmetric: %#v vs %#v", ab, ba)
	}
	want := map[string]any{"age": map[string]any{"$in": []any{30}, "$gt": 21}}
	if !reflect.DeepEqual(ab, want) {
		t.Fatalf("compose = %#v, want %#v", ab, want)
	}
}

func TestCompose_DoesNotMutateInputs(t *testing.T) {
	a := mustSpec(t, room, Request{"position": Request{"$ne": 3}})
	b := mustSpec(t, room, Request{"position": Request{"$ne": 2}})
	_ = a.Compose(b)
	want := map[string]any{"position": map[string]any{"$ne": 3}}
	if got := a.Criteria().Native(); !reflect.DeepEqual(got, want) {
		t.Fatalf("left input mutated: %#v", got)
	}
}

func TestCompose_EmptyLeftShortCircuits(t *testing.T) {
	other := mustSpec(t, room, Request{"a": 1, "limit": 3})
	got := Spec{}.Compose(other)
	if !got.Equal(other) {
		t.Fatalf("compose = %v, want %v", got, other)
	}
}

func TestCompose_KeepsDiscriminator(t *testing.T) {
	got := composeCriteria(t, enter, Request{"a": 1}, Request{"b": 2})
	want := map[string]any{"a": 1, "b": 2, "_type": map[string]any{"$in": []any{"Enter"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("compose = %#v, want %#v", got, want)
	}
}

func TestCompose_Options(t *testing.T) {
	t.Run("fields union", func(t *testing.T) {
		a := mustSpec(t, room, Request{"fields": []string{"username", "commentable_type", "commentable_id"}})
		b := mustSpec(t, room, Request{"fields": []string{"username", "body"}})
		got := a.Compose(b).Options().Fields()
		if !sameFieldSet(got, []string{"username", "body", "commentable_type", "commentable_id"}) {
			t.Fatalf("fields = %v", got)
		}
	})
	t.Run("limit", func(t *testing.T) {
		a := mustSpec(t, room, Request{"limit": 10})
		b := mustSpec(t, room, Request{"limit": 5})
		if got := a.Compose(b).Options().Limit(); got != 5 {
			t.Fatalf("limit = %d, want 5", got)
		}
	})
	t.Run("skip", func(t *testing.T) {
		a := mustSpec(t, room, Request{"skip": 10})
		b := mustSpec(t, room, Request{"skip": 5})
		if got := a.Compose(b).Options().Skip(); got != 5 {
			t.Fatalf("skip = %d, want 5", got)
		}
	})
	t.Run("absent right keeps left", func(t *testing.T) {
		a := mustSpec(t, room, Request{"limit": 10, "skip": 2, "fields": "a"})
		b := mustSpec(t, room, Request{"foo": "bar"})
		opts := a.Compose(b).Options()
		if opts.Limit() != 10 || opts.Skip() != 2 || !reflect.DeepEqual(opts.Fields(), []string{"a"}) {
			t.Fatalf("options = %v", opts)
		}
	})
	t.Run("explicit zero limit overrides", func(t *testing.T) {
		a := mustSpec(t, room, Request{"limit": 10})
		b := mustSpec(t, room, Request{"limit": 0})
		if got := a.Compose(b).Options().Limit(); got != 0 {
			t.Fatalf("limit = %d, want 0", got)
		}
	})
	t.Run("order", func(t *testing.T) {
		a := mustSpec(t, room, Request{"order": "created_at ASC"})
		b := mustSpec(t, room, Request{"order": "updated_at DESC"})
		want := SortSpec{Desc("updated_at"), Asc("created_at")}
		if got := a.Compose(b).Options().Sort(); !got.Equal(want) {
			t.Fatalf("sort = %v, want %v", got, want)
		}
	})
	t.Run("sort", func(t *testing.T) {
		a := mustSpec(t, room, Request{"sort": SortSpec{Desc("updated_at"), Asc("created_at")}})
		b := mustSpec(t, room, Request{"sort": SortSpec{Asc("updated_at")}})
		want := SortSpec{Asc("updated_at"), Asc("created_at")}
		if got := a.Compose(b).Options().Sort(); !got.Equal(want) {
			t.Fatalf("sort = %v, want %v", got, want)
		}
	})
}

func TestSortSpec_Compose(t *testing.T) {
	base := SortSpec{Asc("a"), Desc("b"), Asc("c")}
	got := base.Compose(SortSpec{Desc("c"), Asc("d")})
	want := SortSpec{Desc("c"), Asc("d"), Asc("a"), Desc("b")}
	if !got.Equal(want) {
		t.Fatalf("sort = %v, want %v", got, want)
	}
	if !base.Equal(SortSpec{Asc("a"), Desc("b"), Asc("c")}) {
		t.Fatalf("base mutated: %v", base)
	}
}
