package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// documentDialect renders filters as MongoDB-style query documents. Values
// are inlined, so the Builder never binds parameters for it. The store keeps
// a single null, so JsonNull and DbNull render identically and AnyNull is
// rejected.
type documentDialect struct{}

// NewDocument returns the document-store dialect.
func NewDocument() Dialect {
	return &documentDialect{}
}

func (d *documentDialect) Name() Name { return Document }

func (d *documentDialect) Supports(op filter.JSONOp) bool {
	return op != filter.JSONArrayEndsWith
}

func (d *documentDialect) SupportsFeature(f Feature) bool {
	return f == FeatureUpsert
}

func (d *documentDialect) Placeholder(int) string { return "" }

func (d *documentDialect) QuoteIdentifier(name string) string { return name }

func dottedPath(column string, path filter.Path) string {
	var sb strings.Builder
	sb.WriteString(column)
	for _, s := range path {
		sb.WriteByte('.')
		if s.Kind == filter.SegmentIndex {
			sb.WriteString(strconv.Itoa(s.Index))
		} else {
			sb.WriteString(s.Key)
		}
	}
	return sb.String()
}

func docKey(k string) string {
	return filter.MustEncode(filter.String(k))
}

func docField(key string, cond string) string {
	return "{" + docKey(key) + ":" + cond + "}"
}

func docOp(op string, v filter.Value) string {
	return "{" + docKey(op) + ":" + jsonText(v) + "}"
}

// RenderPath implements Dialect.
func (d *documentDialect) RenderPath(_ *Builder, column string, path filter.Path) (string, error) {
	if path.HasWildcard() {
		return "", qerr.Unsupported(string(Document), string(FeatureWildcardPath))
	}
	return docKey(dottedPath(column, path)), nil
}

// pathCond renders cond against the document key selecting path.
func (d *documentDialect) pathCond(b *Builder, column string, path filter.Path, cond string) (string, error) {
	sel, err := d.RenderPath(b, column, path)
	if err != nil {
		return "", err
	}
	return "{" + sel + ":" + cond + "}", nil
}

// RenderComparison implements Dialect.
func (d *documentDialect) RenderComparison(_ *Builder, field string, op filter.CompareOp, v filter.Value) (string, error) {
	switch op {
	case opEquals:
		return docField(field, jsonText(v)), nil
	case filter.OpNot:
		return docField(field, docOp("$ne", v)), nil
	case filter.OpLt:
		return docField(field, docOp("$lt", v)), nil
	case filter.OpLte:
		return docField(field, docOp("$lte", v)), nil
	case filter.OpGt:
		return docField(field, docOp("$gt", v)), nil
	case filter.OpGte:
		return docField(field, docOp("$gte", v)), nil
	case filter.OpIn:
		return docField(field, docOp("$in", v)), nil
	case filter.OpNotIn:
		return docField(field, docOp("$nin", v)), nil
	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		return docField(field, regexCond(columnMatchOp(op), string(v.(filter.String)), filter.ModeDefault)), nil
	}
	return "", qerr.Validation("unknown comparison operator %q", string(op))
}

func regexCond(op filter.JSONOp, needle string, mode filter.Mode) string {
	pattern := regexp.QuoteMeta(needle)
	switch op {
	case filter.JSONStringStartsWith:
		pattern = "^" + pattern
	case filter.JSONStringEndsWith:
		pattern += "$"
	}
	cond := docKey("$regex") + ":" + docKey(pattern)
	if mode == filter.ModeInsensitive {
		cond += "," + docKey("$options") + ":" + docKey("i")
	}
	return "{" + cond + "}"
}

// RenderOperator implements Dialect.
func (d *documentDialect) RenderOperator(b *Builder, p *filter.JSONPath) (string, error) {
	v := p.Value.(filter.Value)
	switch p.Op {
	case filter.JSONEquals:
		return d.pathCond(b, p.Field, p.Path, jsonText(v))
	case filter.JSONStringContains, filter.JSONStringStartsWith, filter.JSONStringEndsWith:
		return d.pathCond(b, p.Field, p.Path, regexCond(p.Op, string(v.(filter.String)), p.Mode))
	case filter.JSONArrayContains:
		elems, ok := v.(filter.Array)
		if !ok {
			elems = filter.Array{v}
		}
		if len(elems) == 0 {
			// $all with no elements matches nothing.
			return d.pathCond(b, p.Field, p.Path, `{"$type":"array"}`)
		}
		return d.pathCond(b, p.Field, p.Path, docOp("$all", elems))
	case filter.JSONArrayStartsWith:
		return d.pathCond(b, p.Field, p.Path.Append(filter.Index(0)), jsonText(v))
	}
	return "", qerr.Unsupported(string(Document), string(p.Op))
}

// RenderNull implements Dialect.
func (d *documentDialect) RenderNull(b *Builder, n *filter.NullCheck) (string, error) {
	if n.Kind == filter.AnyNull {
		return "", qerr.Unsupported(string(Document), string(FeatureAnyNull))
	}
	return d.pathCond(b, n.Field, n.Path, "null")
}

// RenderLogical implements Dialect.
func (d *documentDialect) RenderLogical(op Logical, parts []Part) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}
	switch op {
	case LogicalNot:
		return `{"$nor":[` + texts[0] + `]}`
	case LogicalAnd:
		if len(texts) == 0 {
			return "{}"
		}
		if len(texts) == 1 {
			return texts[0]
		}
		return `{"$and":[` + strings.Join(texts, ",") + `]}`
	}
	if len(texts) == 0 {
		return `{"$expr":false}`
	}
	if len(texts) == 1 {
		return texts[0]
	}
	return `{"$or":[` + strings.Join(texts, ",") + `]}`
}
