package mongodb

import (
	"regexp"

	"github.com/nimburion/querykit/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter encodes criteria as a MongoDB filter document.
func Filter(c query.Criteria) bson.M {
	out := make(bson.M, len(c))
	for field, p := range c {
		out[field] = encodePredicate(p)
	}
	return out
}

func encodePredicate(p query.Predicate) any {
	switch p.Kind() {
	case query.KindList:
		items := p.Items()
		out := make(bson.A, len(items))
		for i, item := range items {
			out[i] = encodeValue(item)
		}
		return out
	case query.KindOperators:
		keys := p.Keys()
		out := make(bson.M, len(keys))
		for _, k := range keys {
			sub, _ := p.Get(k)
			out[k] = encodePredicate(sub)
		}
		return out
	case query.KindDocument:
		// Embedded documents compare field by field in order, so the
		// encoding must be stable: keys are emitted sorted.
		keys := p.Keys()
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			sub, _ := p.Get(k)
			out = append(out, bson.E{Key: k, Value: encodePredicate(sub)})
		}
		return out
	default:
		return encodeValue(p.Value())
	}
}

func encodeValue(v any) any {
	if re, ok := v.(*regexp.Regexp); ok {
		return primitive.Regex{Pattern: re.String()}
	}
	return v
}

// FindOptions encodes projection, window and sort. A zero limit is unbounded.
func FindOptions(opts query.Options) *options.FindOptions {
	fo := options.Find()
	if skip := opts.Skip(); skip > 0 {
		fo.SetSkip(int64(skip))
	}
	if limit := opts.Limit(); limit > 0 {
		fo.SetLimit(int64(limit))
	}
	if order := opts.Sort(); len(order) > 0 {
		fo.SetSort(Sort(order))
	}
	if fields := opts.Fields(); len(fields) > 0 {
		projection := make(bson.D, 0, len(fields))
		for _, f := range fields {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		fo.SetProjection(projection)
	}
	return fo
}

// Sort encodes a sort spec as an ordered document.
func Sort(order query.SortSpec) bson.D {
	out := make(bson.D, len(order))
	for i, e := range order {
		out[i] = bson.E{Key: e.Field, Value: int(e.Direction)}
	}
	return out
}
