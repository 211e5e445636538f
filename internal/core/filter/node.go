// Package filter contains the dialect-neutral predicate tree used by queries.
//
// A tree is built top-down from caller input, never mutated afterwards, and
// handed to a dialect for rendering. Children are owned by their parent.
package filter

// Node is one node of a filter tree.
type Node interface {
	node()
}

// NullKind distinguishes JSON null from database NULL.
type NullKind int

const (
	// JsonNull is the JSON literal null stored inside a JSON column.
	JsonNull NullKind = iota + 1
	// DbNull is a database-level NULL.
	DbNull
	// AnyNull matches either of the above. Filter position only.
	AnyNull
)

func (k NullKind) String() string {
	switch k {
	case JsonNull:
		return "JsonNull"
	case DbNull:
		return "DbNull"
	case AnyNull:
		return "AnyNull"
	}
	return "InvalidNull"
}

func (NullKind) isOperand() {}

// ParseNullKind maps the textual marker to a NullKind.
func ParseNullKind(s string) (NullKind, bool) {
	switch s {
	case "JsonNull":
		return JsonNull, true
	case "DbNull":
		return DbNull, true
	case "AnyNull":
		return AnyNull, true
	}
	return 0, false
}

// Mode modifies string matching.
type Mode int

const (
	ModeDefault Mode = iota
	ModeInsensitive
)

// CompareOp is a column comparison operator.
type CompareOp string

const (
	OpNot        CompareOp = "!="
	OpLt         CompareOp = "<"
	OpLte        CompareOp = "<="
	OpGt         CompareOp = ">"
	OpGte        CompareOp = ">="
	OpIn         CompareOp = "in"
	OpNotIn      CompareOp = "not_in"
	OpContains   CompareOp = "contains"
	OpStartsWith CompareOp = "starts_with"
	OpEndsWith   CompareOp = "ends_with"
)

// JSONOp is an operator applied to the value found at a JSON path.
type JSONOp string

const (
	JSONEquals           JSONOp = "equals"
	JSONStringContains   JSONOp = "string_contains"
	JSONStringStartsWith JSONOp = "string_starts_with"
	JSONStringEndsWith   JSONOp = "string_ends_with"
	JSONArrayContains    JSONOp = "array_contains"
	JSONArrayStartsWith  JSONOp = "array_starts_with"
	JSONArrayEndsWith    JSONOp = "array_ends_with"
)

// JSONOps lists every JSON operator in declaration order.
var JSONOps = []JSONOp{
	JSONEquals,
	JSONStringContains,
	JSONStringStartsWith,
	JSONStringEndsWith,
	JSONArrayContains,
	JSONArrayStartsWith,
	JSONArrayEndsWith,
}

// IsString reports whether op matches string values.
func (op JSONOp) IsString() bool {
	return op == JSONStringContains || op == JSONStringStartsWith || op == JSONStringEndsWith
}

// IsArray reports whether op inspects array values.
func (op JSONOp) IsArray() bool {
	return op == JSONArrayContains || op == JSONArrayStartsWith || op == JSONArrayEndsWith
}

func (op JSONOp) valid() bool {
	for _, o := range JSONOps {
		if o == op {
			return true
		}
	}
	return false
}

// Equality tests a column for equality. A Null value tests for NULL.
type Equality struct {
	Field string
	Value Value
}

// Comparison applies a column comparison operator.
type Comparison struct {
	Field string
	Op    CompareOp
	Value Value
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Children []Node
}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Children []Node
}

// Not negates its child.
type Not struct {
	Child Node
}

// JSONPath applies Op to the value found at Path inside the JSON column Field.
type JSONPath struct {
	Field string
	Path  Path
	Op    JSONOp
	Value Operand
	Mode  Mode
}

// NullCheck tests the column (or the value at Path) for a kind of null.
type NullCheck struct {
	Field string
	Path  Path
	Kind  NullKind
}

func (*Equality) node()   {}
func (*Comparison) node() {}
func (*And) node()        {}
func (*Or) node()         {}
func (*Not) node()        {}
func (*JSONPath) node()   {}
func (*NullCheck) node()  {}

// Eq builds an Equality node.
func Eq(field string, v Value) *Equality { return &Equality{Field: field, Value: v} }

// Cmp builds a Comparison node.
func Cmp(field string, op CompareOp, v Value) *Comparison {
	return &Comparison{Field: field, Op: op, Value: v}
}

// AllOf builds an And node.
func AllOf(children ...Node) *And { return &And{Children: children} }

// AnyOf builds an Or node.
func AnyOf(children ...Node) *Or { return &Or{Children: children} }

// Negate builds a Not node.
func Negate(child Node) *Not { return &Not{Child: child} }

// JSON builds a JSONPath node with the default mode.
func JSON(field string, path Path, op JSONOp, v Operand) *JSONPath {
	return &JSONPath{Field: field, Path: path, Op: op, Value: v}
}

// IsNull builds a NullCheck node.
func IsNull(field string, path Path, kind NullKind) *NullCheck {
	return &NullCheck{Field: field, Path: path, Kind: kind}
}
