package filter

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// exprLexer tokenises the filter expression language:
//
//	meta.tags[*] array_contains ["a"] AND NOT (name = "x" OR age >= 18)
//	meta.title string_starts_with "go" insensitive
//	meta.deleted is AnyNull
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Op", Pattern: `!=|<=|>=|=|<|>`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\]{}(),.:*]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type dslExpr struct {
	Or []*dslAnd `parser:"@@ ( 'OR' @@ )*"`
}

type dslAnd struct {
	And []*dslUnary `parser:"@@ ( 'AND' @@ )*"`
}

type dslUnary struct {
	Not   *dslUnary     `parser:"  'NOT' @@"`
	Group *dslExpr      `parser:"| '(' @@ ')'"`
	Const string        `parser:"| @( 'TRUE' | 'FALSE' )"`
	Pred  *dslPredicate `parser:"| @@"`
}

type dslPredicate struct {
	Field       string        `parser:"@Ident"`
	Segments    []*dslSegment `parser:"@@*"`
	Op          string        `parser:"@( Op | 'in' | 'not_in' | 'contains' | 'starts_with' | 'ends_with' | 'is' | 'equals' | 'string_contains' | 'string_starts_with' | 'string_ends_with' | 'array_contains' | 'array_starts_with' | 'array_ends_with' )"`
	Value       *dslValue     `parser:"@@"`
	Insensitive bool          `parser:"@'insensitive'?"`
}

type dslSegment struct {
	Key      *string `parser:"  '.' @( Ident | String )"`
	Index    *int    `parser:"| '[' ( @Number"`
	Wildcard bool    `parser:"      | @'*' ) ']'"`
}

type dslValue struct {
	Str      *string    `parser:"  @String"`
	Num      *string    `parser:"| @Number"`
	Bool     *string    `parser:"| @( 'true' | 'false' )"`
	Null     bool       `parser:"| @'null'"`
	NullKind *string    `parser:"| @( 'JsonNull' | 'DbNull' | 'AnyNull' )"`
	Array    *dslArray  `parser:"| @@"`
	Object   *dslObject `parser:"| @@"`
}

type dslArray struct {
	Open  string      `parser:"@'['"`
	Elems []*dslValue `parser:"( @@ ( ',' @@ )* )? ']'"`
}

type dslObject struct {
	Open    string       `parser:"@'{'"`
	Members []*dslMember `parser:"( @@ ( ',' @@ )* )? '}'"`
}

type dslMember struct {
	Key   string    `parser:"@String ':'"`
	Value *dslValue `parser:"@@"`
}

var exprParser = participle.MustBuild[dslExpr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// ParseExpr parses the text form of a filter tree. The first segment of a
// reference names the column; any further segments form a JSON path.
func ParseExpr(src string) (Node, error) {
	expr, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, qerr.Validation("parse filter: %v", err)
	}
	n, err := expr.node()
	if err != nil {
		return nil, err
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (e *dslExpr) node() (Node, error) {
	if len(e.Or) == 1 {
		return e.Or[0].node()
	}
	children := make([]Node, 0, len(e.Or))
	for _, a := range e.Or {
		n, err := a.node()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return &Or{Children: children}, nil
}

func (a *dslAnd) node() (Node, error) {
	if len(a.And) == 1 {
		return a.And[0].node()
	}
	children := make([]Node, 0, len(a.And))
	for _, u := range a.And {
		n, err := u.node()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return &And{Children: children}, nil
}

func (u *dslUnary) node() (Node, error) {
	switch {
	case u.Not != nil:
		child, err := u.Not.node()
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	case u.Group != nil:
		return u.Group.node()
	case u.Const == "TRUE":
		return &And{}, nil
	case u.Const == "FALSE":
		return &Or{}, nil
	case u.Pred != nil:
		return u.Pred.node()
	}
	return nil, qerr.Validation("empty filter expression")
}

func (p *dslPredicate) node() (Node, error) {
	var path Path
	for _, s := range p.Segments {
		switch {
		case s.Key != nil:
			path = append(path, Key(*s.Key))
		case s.Index != nil:
			path = append(path, Index(*s.Index))
		default:
			path = append(path, Wildcard())
		}
	}

	operand, err := p.Value.operand()
	if err != nil {
		return nil, err
	}
	mode := ModeDefault
	if p.Insensitive {
		mode = ModeInsensitive
	}

	switch op := JSONOp(p.Op); {
	case op.valid():
		return &JSONPath{Field: p.Field, Path: path, Op: op, Value: operand, Mode: mode}, nil
	case p.Op == "is":
		kind, ok := operand.(NullKind)
		if !ok {
			return nil, qerr.Validation("%q is must be followed by JsonNull, DbNull or AnyNull", p.Field)
		}
		return &NullCheck{Field: p.Field, Path: path, Kind: kind}, nil
	}

	if mode == ModeInsensitive {
		return nil, qerr.Validation("mode insensitive is not valid for %s on %q", p.Op, p.Field)
	}
	if p.Op == "=" {
		if len(path) > 0 {
			return &JSONPath{Field: p.Field, Path: path, Op: JSONEquals, Value: operand}, nil
		}
		if kind, ok := operand.(NullKind); ok {
			return &NullCheck{Field: p.Field, Kind: kind}, nil
		}
		return &Equality{Field: p.Field, Value: operand.(Value)}, nil
	}
	if len(path) > 0 {
		return nil, qerr.Validation("operator %s applies to columns, not JSON paths", p.Op)
	}
	v, ok := operand.(Value)
	if !ok {
		return nil, qerr.Validation("operator %s cannot compare against %s", p.Op, operand)
	}
	return &Comparison{Field: p.Field, Op: CompareOp(p.Op), Value: v}, nil
}

func (v *dslValue) operand() (Operand, error) {
	if v.NullKind != nil {
		kind, _ := ParseNullKind(*v.NullKind)
		return kind, nil
	}
	return v.value()
}

func (v *dslValue) value() (Value, error) {
	switch {
	case v.Str != nil:
		return String(*v.Str), nil
	case v.Num != nil:
		return Number(*v.Num), nil
	case v.Bool != nil:
		return Bool(*v.Bool == "true"), nil
	case v.Null:
		return Null{}, nil
	case v.NullKind != nil:
		return nil, qerr.Validation("%s is not allowed inside a JSON value", *v.NullKind)
	case v.Array != nil:
		arr := make(Array, 0, len(v.Array.Elems))
		for _, e := range v.Array.Elems {
			ev, err := e.value()
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	case v.Object != nil:
		obj := make(Object, 0, len(v.Object.Members))
		for _, m := range v.Object.Members {
			mv, err := m.Value.value()
			if err != nil {
				return nil, err
			}
			obj = append(obj, Member{Key: m.Key, Value: mv})
		}
		return obj, nil
	}
	return nil, fmt.Errorf("empty value")
}
