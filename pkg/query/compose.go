package query

// Compose merges other on top of c under AND semantics. Fields present on
// one side are kept verbatim; fields on both sides are merged per predicate
// shape. Where a rule must pick a side ($mod, $all, $size, unknown
// operators) other wins, as the more recently applied restriction.
func (c Criteria) Compose(other Criteria) Criteria {
	out := c.Clone()
	for _, field := range other.Fields() {
		rhs := other[field]
		lhs, ok := out[field]
		switch {
		case !ok || lhs.blank():
			out[field] = rhs.clone()
		case IsOperatorKey(field):
			out[field] = composeOperand(lhs, rhs)
		default:
			out[field] = composePredicate(lhs, rhs)
		}
	}
	return out
}

// composeOperand merges the values of an operator key ($or, $where, $foo).
// The operator governs what a list means, so lists are never turned into
// membership tests: maps merge, anything else takes the right-hand side.
func composeOperand(cur, v Predicate) Predicate {
	if cur.IsMap() && v.IsMap() {
		return mergeMaps(cur, v)
	}
	return v.clone()
}

func composePredicate(a, b Predicate) Predicate {
	// Orient so a map, if any, is on the left; the other side becomes a
	// membership test. $in intersection makes the result independent of
	// which side the map came from.
	if !a.IsMap() && b.IsMap() {
		a, b = b, a
	}
	switch {
	case a.IsMap() && b.IsMap():
		return mergeMaps(a, b)
	case a.IsMap():
		return mergeMaps(b.membership(), a)
	default:
		return In(intersect(a.Items(), b.Items())...)
	}
}

// mergeMaps merges b's keys into a copy of a.
func mergeMaps(a, b Predicate) Predicate {
	out := cloneFields(a.fields)
	for _, key := range b.Keys() {
		v := b.fields[key]
		cur, has := out[key]
		switch key {
		case "$ne":
			if has && !cur.Equal(v) {
				delete(out, "$ne")
				var nin []any
				if existing, ok := out["$nin"]; ok {
					nin = existing.Items()
				}
				out["$nin"] = List(union(nin, []any{cur.Native(), v.Native()}))
			} else {
				out["$ne"] = v.clone()
			}
		case "$lt", "$lte":
			out[key] = tighten(cur, v, has, -1)
		case "$gt", "$gte":
			out[key] = tighten(cur, v, has, 1)
		case "$in":
			if has {
				out["$in"] = List(intersect(cur.Items(), v.Items()))
			} else {
				out["$in"] = v.clone()
			}
		case "$nin":
			var nin []any
			if has {
				nin = cur.Items()
			}
			out["$nin"] = List(union(nin, v.Items()))
		case "$mod", "$all", "$size":
			out[key] = v.clone()
		default:
			switch {
			case !has:
				out[key] = v.clone()
			case !IsOperatorKey(key):
				out[key] = composePredicate(cur, v)
			default:
				out[key] = composeOperand(cur, v)
			}
		}
	}
	return Predicate{kind: mapKind(out), fields: out}
}

// tighten keeps the tighter of two bounds: the smaller when want is -1
// (upper bounds), the larger when want is 1 (lower bounds). Values without a
// natural order fall back to the right-hand side.
func tighten(cur, v Predicate, has bool, want int) Predicate {
	if !has || cur.kind != KindScalar || v.kind != KindScalar {
		return v.clone()
	}
	c, ok := compareValues(cur.value, v.value)
	if !ok || c == 0 {
		return v.clone()
	}
	if c == want {
		return cur
	}
	return v.clone()
}
