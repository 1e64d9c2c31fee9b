package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestOptions_SkipAndLimit(t *testing.T) {
	tests := []struct {
		name      string
		raw       Request
		skip      int
		limit     int
		skipSet   bool
		limitSet  bool
	}{
		{name: "defaults", raw: Request{}},
		{name: "skip", raw: Request{"skip": 2}, skip: 2, skipSet: true},
		{name: "skip string", raw: Request{"skip": "2"}, skip: 2, skipSet: true},
		{name: "offset", raw: Request{"offset": 1}, skip: 1, skipSet: true},
		{name: "skip beats offset", raw: Request{"skip": 3, "offset": 1}, skip: 3, skipSet: true},
		{name: "limit", raw: Request{"limit": 2}, limit: 2, limitSet: true},
		{name: "limit string", raw: Request{"limit": "2"}, limit: 2, limitSet: true},
		{name: "negative clamps", raw: Request{"limit": -4, "skip": -1}, skipSet: true, limitSet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := mustSpec(t, room, tt.raw).Options()
			if opts.Skip() != tt.skip || opts.Limit() != tt.limit {
				t.Fatalf("skip/limit = %d/%d, want %d/%d", opts.Skip(), opts.Limit(), tt.skip, tt.limit)
			}
			if opts.HasSkip() != tt.skipSet || opts.HasLimit() != tt.limitSet {
				t.Fatalf("presence = %v/%v, want %v/%v", opts.HasSkip(), opts.HasLimit(), tt.skipSet, tt.limitSet)
			}
		})
	}
}

func TestOptions_Fields(t *testing.T) {
	tests := []struct {
		name string
		raw  Request
		want []string
	}{
		{"default", Request{}, nil},
		{"empty string", Request{"fields": ""}, nil},
		{"empty list", Request{"fields": []string{}}, nil},
		{"list", Request{"fields": []string{"a", "b"}}, []string{"a", "b"}},
		{"comma separated", Request{"fields": "a, b"}, []string{"a", "b"}},
		{"select", Request{"select": []string{"a", "b"}}, []string{"a", "b"}},
		{"select of fields", Request{"select": []Field{"a", "b"}}, []string{"a", "b"}},
		{"nested lists flatten", Request{"fields": []any{[]string{"a"}, "b", nil}}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustSpec(t, room, tt.raw).Options().Fields()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("fields = %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := New(room, Request{"fields": 7}); !errors.Is(err, ErrInvalidRequestShape) {
		t.Fatalf("error = %v, want ErrInvalidRequestShape", err)
	}
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions(WithFields("a", " ", "b"), WithSkip(-3), WithLimit(7), WithSort(Desc("a")))
	if !reflect.DeepEqual(opts.Fields(), []string{"a", "b"}) {
		t.Fatalf("fields = %v", opts.Fields())
	}
	if opts.Skip() != 0 || !opts.HasSkip() || opts.Limit() != 7 {
		t.Fatalf("options = %v", opts)
	}
	if opts.IsZero() {
		t.Fatal("expected non-zero options")
	}
	if !NewOptions().IsZero() {
		t.Fatal("expected zero options")
	}
}

func TestOptions_Equal(t *testing.T) {
	a := NewOptions(WithFields("a", "b"), WithLimit(2))
	b := NewOptions(WithFields("b", "a"), WithLimit(2))
	if !a.Equal(b) {
		t.Fatalf("%v should equal %v", a, b)
	}
	if a.Equal(NewOptions(WithLimit(2))) {
		t.Fatal("projection must not equal all fields")
	}
}
