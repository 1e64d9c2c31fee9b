// Package query normalizes loosely structured filter, sort and pagination
// requests into a canonical Spec and composes two specs into one that
// enforces both.
//
// A raw request is any mapping: a Request, a map[string]any, a bson.M or an
// ordered bson.D. Keys are field names, operator tokens built from Field, the
// pseudo-key "conditions", or one of the option keys
// (fields/select, skip/offset, limit, sort/order).
//
//	spec, err := query.New(schema, query.Request{
//		"last_name":             "Nunemaker",
//		query.Field("age").Gt(): 26,
//		"order":                 "age desc",
//		"limit":                 10,
//	})
//
// Composition is an AND: every record matching the composed spec matches
// both inputs. Collisions on the same operator are resolved per operator
// ($ne becomes $nin, bounds tighten, $in intersects, $nin unions). The
// right-hand side wins ties for $mod, $all and $size, and for skip/limit.
package query
