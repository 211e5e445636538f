package filter

import (
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Validate checks the dialect-independent rules of a filter tree. Dialects
// call it before rendering, so the errors it reports take precedence over
// dialect capability errors.
func Validate(n Node) error {
	switch t := n.(type) {
	case nil:
		return qerr.Validation("filter node is nil")
	case *Equality:
		if err := validateField(t.Field); err != nil {
			return err
		}
		if t.Value == nil {
			return qerr.Validation("equality on %q has no value", t.Field)
		}
		return validateValue(t.Value)
	case *Comparison:
		return validateComparison(t)
	case *And:
		return validateChildren(t.Children)
	case *Or:
		return validateChildren(t.Children)
	case *Not:
		if t.Child == nil {
			return qerr.Validation("NOT has no operand")
		}
		return Validate(t.Child)
	case *JSONPath:
		return validateJSONPath(t)
	case *NullCheck:
		if err := validateField(t.Field); err != nil {
			return err
		}
		if err := validatePath(t.Path); err != nil {
			return err
		}
		if t.Kind < JsonNull || t.Kind > AnyNull {
			return qerr.Validation("invalid null kind %d on %q", int(t.Kind), t.Field)
		}
		return nil
	}
	return qerr.Validation("unknown filter node %T", n)
}

func validateChildren(children []Node) error {
	for _, c := range children {
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

func validateField(field string) error {
	if !IsBareKey(field) {
		return qerr.Validation("invalid field name %q", field)
	}
	return nil
}

func validatePath(p Path) error {
	for i, s := range p {
		switch s.Kind {
		case SegmentKey:
			if s.Key == "" {
				return qerr.Validation("path segment %d is an empty key", i)
			}
		case SegmentIndex:
			if s.Index < 0 {
				return qerr.Validation("path segment %d has negative index %d", i, s.Index)
			}
		case SegmentWildcard:
		default:
			return qerr.Validation("path segment %d has unknown kind", i)
		}
	}
	return nil
}

func validateValue(v Value) error {
	switch t := v.(type) {
	case Number:
		if !t.Valid() {
			return qerr.Validation("invalid number %q", string(t))
		}
	case Array:
		for _, e := range t {
			if e == nil {
				return qerr.Validation("array contains a nil element")
			}
			if err := validateValue(e); err != nil {
				return err
			}
		}
	case Object:
		for _, m := range t {
			if m.Value == nil {
				return qerr.Validation("object member %q is nil", m.Key)
			}
			if err := validateValue(m.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateComparison(c *Comparison) error {
	if err := validateField(c.Field); err != nil {
		return err
	}
	if c.Value == nil {
		return qerr.Validation("comparison %s on %q has no value", c.Op, c.Field)
	}
	if err := validateValue(c.Value); err != nil {
		return err
	}
	switch c.Op {
	case OpNot:
	case OpLt, OpLte, OpGt, OpGte:
		switch c.Value.Kind() {
		case KindNull, KindArray, KindObject:
			return qerr.Validation("%s on %q requires a scalar, got %s", c.Op, c.Field, c.Value.Kind())
		}
	case OpIn, OpNotIn:
		if c.Value.Kind() != KindArray {
			return qerr.Validation("%s on %q requires an array, got %s", c.Op, c.Field, c.Value.Kind())
		}
	case OpContains, OpStartsWith, OpEndsWith:
		if c.Value.Kind() != KindString {
			return qerr.Validation("%s on %q requires a string, got %s", c.Op, c.Field, c.Value.Kind())
		}
	default:
		return qerr.Validation("unknown comparison operator %q", string(c.Op))
	}
	return nil
}

func validateJSONPath(p *JSONPath) error {
	if err := validateField(p.Field); err != nil {
		return err
	}
	if err := validatePath(p.Path); err != nil {
		return err
	}
	if !p.Op.valid() {
		return qerr.Validation("unknown JSON operator %q", string(p.Op))
	}
	if p.Value == nil {
		return qerr.Validation("%s on %q has no value", p.Op, p.Field)
	}
	if kind, ok := p.Value.(NullKind); ok {
		if kind < JsonNull || kind > AnyNull {
			return qerr.Validation("invalid null kind %d on %q", int(kind), p.Field)
		}
		// Only JSON null can occur inside a JSON array, so null markers are
		// meaningless for array_contains.
		if p.Op == JSONArrayContains {
			return qerr.Validation("%s cannot be used inside array_contains on %q", kind, p.Field)
		}
		if p.Op != JSONEquals {
			return qerr.Validation("%s can only be compared with equals, not %s", kind, p.Op)
		}
	}
	if p.Mode == ModeInsensitive && !p.Op.IsString() {
		return qerr.Validation("mode insensitive is not valid for %s on %q", p.Op, p.Field)
	}
	if p.Mode != ModeDefault && p.Mode != ModeInsensitive {
		return qerr.Validation("invalid mode %d on %q", int(p.Mode), p.Field)
	}
	v, isValue := p.Value.(Value)
	if !isValue {
		return nil
	}
	if err := validateValue(v); err != nil {
		return err
	}
	if p.Op.IsString() && v.Kind() != KindString {
		return qerr.Validation("%s on %q requires a string, got %s", p.Op, p.Field, v.Kind())
	}
	return nil
}
