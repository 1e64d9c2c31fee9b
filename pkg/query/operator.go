package query

// Operator is a comparison operator or sort direction carried by a Token.
type Operator string

// Comparison operators. Combined with a value they produce {field: {"$op": value}}.
const (
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
	OpNe     Operator = "ne"
	OpIn     Operator = "in"
	OpNin    Operator = "nin"
	OpMod    Operator = "mod"
	OpSize   Operator = "size"
	OpWhere  Operator = "where"
	OpExists Operator = "exists"
	OpNear   Operator = "near"
	OpAll    Operator = "all"
)

// Sort directions. These never appear in criteria.
const (
	OpAsc  Operator = "asc"
	OpDesc Operator = "desc"
)

// IsSort reports whether op tags a sort direction.
func (op Operator) IsSort() bool {
	return op == OpAsc || op == OpDesc
}

// Sigil returns the store operator key, e.g. "$gt".
func (op Operator) Sigil() string {
	return "$" + string(op)
}

// Field names a queryable attribute and builds operator tokens for it.
type Field string

func (f Field) token(op Operator) Token { return Token{Field: string(f), Operator: op} }

func (f Field) Gt() Token     { return f.token(OpGt) }
func (f Field) Gte() Token    { return f.token(OpGte) }
func (f Field) Lt() Token     { return f.token(OpLt) }
func (f Field) Lte() Token    { return f.token(OpLte) }
func (f Field) Ne() Token     { return f.token(OpNe) }
func (f Field) In() Token     { return f.token(OpIn) }
func (f Field) Nin() Token    { return f.token(OpNin) }
func (f Field) Mod() Token    { return f.token(OpMod) }
func (f Field) Size() Token   { return f.token(OpSize) }
func (f Field) Where() Token  { return f.token(OpWhere) }
func (f Field) Exists() Token { return f.token(OpExists) }
func (f Field) Near() Token   { return f.token(OpNear) }
func (f Field) All() Token    { return f.token(OpAll) }
func (f Field) Asc() Token    { return f.token(OpAsc) }
func (f Field) Desc() Token   { return f.token(OpDesc) }

// Token pairs a field with an operator. Tokens are comparable and can be
// used directly as Request keys.
type Token struct {
	Field    string
	Operator Operator
}

// String renders the token as "field.$op".
func (t Token) String() string {
	return t.Field + "." + t.Operator.Sigil()
}

// Criteria returns the one-entry criteria {field: {"$op": value}}.
// The "id" field is rewritten to IDField; the value is not otherwise transformed.
func (t Token) Criteria(value any) Criteria {
	return Criteria{
		NormalizedField(t.Field): Operators(map[string]Predicate{
			t.Operator.Sigil(): rawPredicate(value),
		}),
	}
}

// SortEntry converts an asc/desc token into a sort entry. ok is false for
// comparison operators.
func (t Token) SortEntry() (entry SortEntry, ok bool) {
	switch t.Operator {
	case OpAsc:
		return SortEntry{Field: t.Field, Direction: Ascending}, true
	case OpDesc:
		return SortEntry{Field: t.Field, Direction: Descending}, true
	default:
		return SortEntry{}, false
	}
}
