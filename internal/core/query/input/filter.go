package input

import (
	"strconv"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Column operators in Prisma spelling.
var columnOps = map[string]filter.CompareOp{
	"not":        filter.OpNot,
	"lt":         filter.OpLt,
	"lte":        filter.OpLte,
	"gt":         filter.OpGt,
	"gte":        filter.OpGte,
	"in":         filter.OpIn,
	"notIn":      filter.OpNotIn,
	"contains":   filter.OpContains,
	"startsWith": filter.OpStartsWith,
	"endsWith":   filter.OpEndsWith,
}

func isJSONOp(key string) bool {
	for _, op := range filter.JSONOps {
		if string(op) == key {
			return true
		}
	}
	return false
}

// decodeFilter turns a where object into a filter tree. Sibling members are
// combined with AND.
func decodeFilter(obj filter.Object) (filter.Node, error) {
	nodes := make([]filter.Node, 0, len(obj))
	for _, m := range obj {
		var (
			n   filter.Node
			err error
		)
		switch m.Key {
		case "AND":
			n, err = decodeLogical(m.Key, m.Value, func(c []filter.Node) filter.Node { return filter.AllOf(c...) })
		case "OR":
			n, err = decodeLogical(m.Key, m.Value, func(c []filter.Node) filter.Node { return filter.AnyOf(c...) })
		case "NOT":
			n, err = decodeLogical(m.Key, m.Value, func(c []filter.Node) filter.Node {
				if len(c) == 1 {
					return filter.Negate(c[0])
				}
				return filter.Negate(filter.AllOf(c...))
			})
		default:
			n, err = decodeField(m.Key, m.Value)
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return filter.AllOf(nodes...), nil
}

// decodeLogical accepts a single where object or an array of them.
func decodeLogical(key string, v filter.Value, build func([]filter.Node) filter.Node) (filter.Node, error) {
	var objs []filter.Object
	switch t := v.(type) {
	case filter.Object:
		objs = []filter.Object{t}
	case filter.Array:
		for i, e := range t {
			o, ok := e.(filter.Object)
			if !ok {
				return nil, qerr.Validation("%s[%d] must be an object, got %s", key, i, e.Kind())
			}
			objs = append(objs, o)
		}
	default:
		return nil, qerr.Validation("%s must be an object or an array, got %s", key, v.Kind())
	}
	var children []filter.Node
	for _, o := range objs {
		n, err := decodeFilter(o)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return build(children), nil
}

// decodeField decodes the condition on one field. A bare value is an
// equality test.
func decodeField(field string, v filter.Value) (filter.Node, error) {
	obj, ok := v.(filter.Object)
	if !ok || !isCondition(obj) {
		op, err := operand(v)
		if err != nil {
			return nil, err
		}
		return equals(field, nil, op), nil
	}

	if isJSONCondition(obj) {
		return decodeJSONCondition(field, obj)
	}

	var nodes []filter.Node
	for _, m := range obj {
		switch {
		case m.Key == "equals":
			op, err := operand(m.Value)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, equals(field, nil, op))
		case m.Key == "mode":
			return nil, qerr.Validation("mode is only valid with JSON string operators, found on %q", field)
		default:
			cmp, ok := columnOps[m.Key]
			if !ok {
				return nil, qerr.Validation("unknown operator %q on %q", m.Key, field)
			}
			op, err := operand(m.Value)
			if err != nil {
				return nil, err
			}
			if kind, isKind := op.(filter.NullKind); isKind {
				if cmp != filter.OpNot {
					return nil, qerr.Validation("%s cannot be compared with %s on %q", kind, m.Key, field)
				}
				nodes = append(nodes, filter.Negate(filter.IsNull(field, nil, kind)))
				continue
			}
			nodes = append(nodes, filter.Cmp(field, cmp, op.(filter.Value)))
		}
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return filter.AllOf(nodes...), nil
}

// isCondition reports whether obj is an operator object rather than a
// JSON value compared for equality.
func isCondition(obj filter.Object) bool {
	if len(obj) == 0 {
		return false
	}
	for _, m := range obj {
		if m.Key == "equals" || m.Key == "mode" || m.Key == "path" || isJSONOp(m.Key) {
			continue
		}
		if _, ok := columnOps[m.Key]; !ok {
			return false
		}
	}
	return true
}

func isJSONCondition(obj filter.Object) bool {
	for _, m := range obj {
		if m.Key == "path" || (m.Key != "equals" && isJSONOp(m.Key)) {
			return true
		}
	}
	return false
}

func decodeJSONCondition(field string, obj filter.Object) (filter.Node, error) {
	var (
		path filter.Path
		mode = filter.ModeDefault
		err  error
	)
	if v, ok := obj.Get("path"); ok {
		if path, err = decodePath(field, v); err != nil {
			return nil, err
		}
	}
	if v, ok := obj.Get("mode"); ok {
		switch v {
		case filter.String("default"):
		case filter.String("insensitive"):
			mode = filter.ModeInsensitive
		default:
			return nil, qerr.Validation("unknown mode %s on %q", filter.MustEncode(v), field)
		}
	}

	var nodes []filter.Node
	for _, m := range obj {
		if m.Key == "path" || m.Key == "mode" {
			continue
		}
		if !isJSONOp(m.Key) {
			return nil, qerr.Validation("operator %q cannot be combined with a JSON path on %q", m.Key, field)
		}
		op, err := operand(m.Value)
		if err != nil {
			return nil, err
		}
		p := filter.JSON(field, path, filter.JSONOp(m.Key), op)
		p.Mode = mode
		nodes = append(nodes, p)
	}
	switch len(nodes) {
	case 0:
		return nil, qerr.Validation("JSON condition on %q has no operator", field)
	case 1:
		return nodes[0], nil
	}
	return filter.AllOf(nodes...), nil
}

// decodePath accepts keys, non-negative integer indexes and "*".
func decodePath(field string, v filter.Value) (filter.Path, error) {
	arr, ok := v.(filter.Array)
	if !ok {
		return nil, qerr.Validation("path on %q must be an array, got %s", field, v.Kind())
	}
	path := make(filter.Path, 0, len(arr))
	for _, e := range arr {
		switch t := e.(type) {
		case filter.String:
			path = append(path, filter.P(string(t))...)
		case filter.Number:
			i, err := strconv.Atoi(string(t))
			if err != nil || i < 0 {
				return nil, qerr.Validation("path index %s on %q must be a non-negative integer", string(t), field)
			}
			path = append(path, filter.Index(i))
		default:
			return nil, qerr.Validation("path segment on %q must be a string or an integer, got %s", field, e.Kind())
		}
	}
	return path, nil
}

func equals(field string, path filter.Path, op filter.Operand) filter.Node {
	if kind, ok := op.(filter.NullKind); ok {
		return filter.IsNull(field, path, kind)
	}
	return filter.Eq(field, op.(filter.Value))
}
