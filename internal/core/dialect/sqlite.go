package dialect

import (
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// sqliteDialect renders JSON predicates with the json1 functions and the
// -> operator. Paths use the `$.a[0]` syntax without wildcards.
type sqliteDialect struct {
	sqlBase
}

// NewSQLite returns the SQLite dialect.
func NewSQLite() Dialect {
	return &sqliteDialect{}
}

func (d *sqliteDialect) Name() Name { return SQLite }

func (d *sqliteDialect) Supports(op filter.JSONOp) bool { return true }

func (d *sqliteDialect) SupportsFeature(f Feature) bool {
	return f != FeatureWildcardPath
}

func (d *sqliteDialect) Placeholder(int) string { return "?" }

func (d *sqliteDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`, `"`) }

// RenderPath implements Dialect. The result is the JSON text at path, or
// NULL when the path is missing.
func (d *sqliteDialect) RenderPath(b *Builder, column string, path filter.Path) (string, error) {
	if path.HasWildcard() {
		return "", qerr.Unsupported(string(SQLite), string(FeatureWildcardPath))
	}
	return "(" + d.QuoteIdentifier(column) + " -> " + b.Arg(dollarPath(path)) + ")", nil
}

// RenderOperator implements Dialect. Placeholders are positional, so the
// path is rendered again for every use, in text order.
func (d *sqliteDialect) RenderOperator(b *Builder, p *filter.JSONPath) (string, error) {
	v := p.Value.(filter.Value)
	switch p.Op {
	case filter.JSONEquals:
		sel, err := d.RenderPath(b, p.Field, p.Path)
		if err != nil {
			return "", err
		}
		return sel + " = json(" + b.Arg(jsonText(v)) + ")", nil
	case filter.JSONStringContains, filter.JSONStringStartsWith, filter.JSONStringEndsWith:
		sel, err := d.RenderPath(b, p.Field, p.Path)
		if err != nil {
			return "", err
		}
		typeCheck := "json_type(" + sel + ") = 'text'"
		sel, _ = d.RenderPath(b, p.Field, p.Path)
		text := "(" + sel + " ->> '$')"
		return "(" + typeCheck + " AND " + d.matchString(b, text, p.Op, string(v.(filter.String)), p.Mode) + ")", nil
	case filter.JSONArrayContains:
		return d.arrayContains(b, p, v)
	case filter.JSONArrayStartsWith:
		sel, err := d.RenderPath(b, p.Field, p.Path.Append(filter.Index(0)))
		if err != nil {
			return "", err
		}
		return sel + " = json(" + b.Arg(jsonText(v)) + ")", nil
	case filter.JSONArrayEndsWith:
		sel, err := d.RenderPath(b, p.Field, p.Path)
		if err != nil {
			return "", err
		}
		return "(" + sel + " -> '$[#-1]') = json(" + b.Arg(jsonText(v)) + ")", nil
	}
	return "", qerr.Unsupported(string(SQLite), string(p.Op))
}

// arrayContains requires every candidate element to appear in the array at
// the path. A scalar candidate is treated as a one-element array.
func (d *sqliteDialect) arrayContains(b *Builder, p *filter.JSONPath, v filter.Value) (string, error) {
	elems, ok := v.(filter.Array)
	if !ok {
		elems = filter.Array{v}
	}
	for _, e := range elems {
		if e.Kind() == filter.KindObject {
			return "", qerr.Unsupported(string(SQLite), "array_contains with object elements")
		}
	}

	sel, err := d.RenderPath(b, p.Field, p.Path)
	if err != nil {
		return "", err
	}
	parts := []string{"json_type(" + sel + ") = 'array'"}
	for _, e := range elems {
		sel, _ := d.RenderPath(b, p.Field, p.Path)
		var match string
		switch t := e.(type) {
		case filter.Null:
			match = "json_each.type = 'null'"
		case filter.Bool:
			if t {
				match = "json_each.type = 'true'"
			} else {
				match = "json_each.type = 'false'"
			}
		case filter.Number:
			match = "json_each.type IN ('integer', 'real') AND json_each.atom = " + b.Arg(ValueArg(t))
		case filter.String:
			match = "json_each.type = 'text' AND json_each.atom = " + b.Arg(string(t))
		case filter.Array:
			match = "json_each.type = 'array' AND json_each.value = json(" + b.Arg(jsonText(t)) + ")"
		}
		parts = append(parts, "EXISTS (SELECT 1 FROM json_each("+sel+") WHERE "+match+")")
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

// RenderNull implements Dialect. The arrow yields NULL for a missing path
// and the text null for a JSON null.
func (d *sqliteDialect) RenderNull(b *Builder, n *filter.NullCheck) (string, error) {
	col := d.QuoteIdentifier(n.Field)
	dbNull := func() (string, error) {
		if len(n.Path) == 0 {
			return col + " IS NULL", nil
		}
		sel, err := d.RenderPath(b, n.Field, n.Path)
		return sel + " IS NULL", err
	}
	jsonNull := func() (string, error) {
		if len(n.Path) == 0 {
			return "json_type(" + col + ") = 'null'", nil
		}
		sel, err := d.RenderPath(b, n.Field, n.Path)
		return "json_type(" + sel + ") = 'null'", err
	}
	switch n.Kind {
	case filter.DbNull:
		return dbNull()
	case filter.JsonNull:
		return jsonNull()
	}
	db, err := dbNull()
	if err != nil {
		return "", err
	}
	js, err := jsonNull()
	if err != nil {
		return "", err
	}
	return "(" + db + " OR " + js + ")", nil
}

// matchString uses GLOB for case-sensitive matching since LIKE ignores
// ASCII case in SQLite.
func (d *sqliteDialect) matchString(b *Builder, expr string, op filter.JSONOp, needle string, mode filter.Mode) string {
	if mode == filter.ModeInsensitive {
		return expr + " LIKE " + b.Arg(likePattern(needle, op, "")) + " ESCAPE '" + likeEscape + "'"
	}
	return expr + " GLOB " + b.Arg(globPattern(needle, op))
}

func globPattern(needle string, op filter.JSONOp) string {
	var sb strings.Builder
	for _, r := range needle {
		switch r {
		case '*', '?', '[':
			sb.WriteByte('[')
			sb.WriteRune(r)
			sb.WriteByte(']')
		default:
			sb.WriteRune(r)
		}
	}
	switch op {
	case filter.JSONStringStartsWith:
		return sb.String() + "*"
	case filter.JSONStringEndsWith:
		return "*" + sb.String()
	}
	return "*" + sb.String() + "*"
}
