package filter

import (
	"strconv"
	"strings"
)

// Format renders a filter tree in the text form accepted by ParseExpr.
// Compound children are always parenthesised.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Equality:
		b.WriteString(t.Field)
		b.WriteString(" = ")
		b.WriteString(formatOperand(t.Value))
	case *Comparison:
		b.WriteString(t.Field)
		b.WriteString(" " + string(t.Op) + " ")
		b.WriteString(formatOperand(t.Value))
	case *And:
		if len(t.Children) == 0 {
			b.WriteString("TRUE")
			return
		}
		formatList(b, t.Children, " AND ")
	case *Or:
		if len(t.Children) == 0 {
			b.WriteString("FALSE")
			return
		}
		formatList(b, t.Children, " OR ")
	case *Not:
		b.WriteString("NOT ")
		formatChild(b, t.Child)
	case *JSONPath:
		formatRef(b, t.Field, t.Path)
		b.WriteString(" " + string(t.Op) + " ")
		b.WriteString(formatOperand(t.Value))
		if t.Mode == ModeInsensitive {
			b.WriteString(" insensitive")
		}
	case *NullCheck:
		formatRef(b, t.Field, t.Path)
		b.WriteString(" is ")
		b.WriteString(t.Kind.String())
	default:
		b.WriteString("<invalid>")
	}
}

func formatList(b *strings.Builder, children []Node, sep string) {
	for i, c := range children {
		if i > 0 {
			b.WriteString(sep)
		}
		formatChild(b, c)
	}
}

func formatChild(b *strings.Builder, n Node) {
	switch n.(type) {
	case *And, *Or:
		b.WriteByte('(')
		format(b, n)
		b.WriteByte(')')
	default:
		format(b, n)
	}
}

func formatRef(b *strings.Builder, field string, path Path) {
	b.WriteString(field)
	for _, s := range path {
		switch s.Kind {
		case SegmentKey:
			b.WriteByte('.')
			if IsBareKey(s.Key) {
				b.WriteString(s.Key)
			} else {
				b.WriteString(strconv.Quote(s.Key))
			}
		case SegmentIndex:
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
		case SegmentWildcard:
			b.WriteString("[*]")
		}
	}
}

func formatOperand(op Operand) string {
	switch t := op.(type) {
	case NullKind:
		return t.String()
	case Value:
		s, err := Encode(t)
		if err != nil {
			return "<invalid>"
		}
		return string(s)
	}
	return "<invalid>"
}
