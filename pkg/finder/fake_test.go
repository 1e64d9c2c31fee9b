package finder

import (
	"context"
	"errors"

	"github.com/nimburion/querykit/pkg/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type user struct {
	Name string
	Age  int
}

// fakeModel records every store call and returns canned results.
type fakeModel struct {
	Scopes

	records []user
	total   int64
	err     error

	finds    int
	counts   int
	lastCrit query.Criteria
	lastOpts query.Options
}

func (m *fakeModel) Name() string                     { return "users" }
func (m *fakeModel) IsSharedCollectionSubtype() bool  { return false }
func (m *fakeModel) DiscriminatorField() string       { return "" }
func (m *fakeModel) DiscriminatorValue() string       { return "" }
func (m *fakeModel) PrimaryKeyTypedFields() []string  { return nil }
func (m *fakeModel) CoerceIdentifier(s string) (any, error) {
	return primitive.ObjectIDFromHex(s)
}

func (m *fakeModel) FindMany(_ context.Context, c query.Criteria, opts query.Options) ([]user, error) {
	m.finds++
	m.lastCrit, m.lastOpts = c, opts
	if m.err != nil {
		return nil, m.err
	}
	out := m.records
	if n := opts.Limit(); n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func (m *fakeModel) Count(_ context.Context, c query.Criteria) (int64, error) {
	m.counts++
	m.lastCrit = c
	if m.err != nil {
		return 0, m.err
	}
	return m.total, nil
}

var errStore = errors.New("store unavailable")

func newFake() *fakeModel {
	return &fakeModel{
		records: []user{{"John", 27}, {"Steve", 28}, {"Steph", 26}},
		total:   3,
	}
}
