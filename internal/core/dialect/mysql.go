package dialect

import (
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// mysqlDialect renders JSON paths as `$.a.b[0][*]` strings bound to
// JSON_EXTRACT.
type mysqlDialect struct {
	sqlBase
}

// NewMySQL returns the MySQL dialect.
func NewMySQL() Dialect {
	return &mysqlDialect{}
}

func (d *mysqlDialect) Name() Name { return MySQL }

func (d *mysqlDialect) Supports(op filter.JSONOp) bool { return true }

func (d *mysqlDialect) SupportsFeature(f Feature) bool {
	return f != FeatureReturning
}

func (d *mysqlDialect) Placeholder(int) string { return "?" }

func (d *mysqlDialect) QuoteIdentifier(name string) string { return quoteWith(name, "`", "`") }

// RenderPath implements Dialect. Wildcards are kept, so the result may be
// an array of every match.
func (d *mysqlDialect) RenderPath(b *Builder, column string, path filter.Path) (string, error) {
	return "JSON_EXTRACT(" + d.QuoteIdentifier(column) + ", " + b.Arg(dollarPath(path)) + ")", nil
}

// RenderOperator implements Dialect. Placeholders are positional, so the
// path is rendered again for every use, in text order.
func (d *mysqlDialect) RenderOperator(b *Builder, p *filter.JSONPath) (string, error) {
	v := p.Value.(filter.Value)
	path := p.Path
	if p.Op == filter.JSONArrayStartsWith {
		path = path.Append(filter.Index(0))
	}
	sel, _ := d.RenderPath(b, p.Field, path)
	switch p.Op {
	case filter.JSONEquals, filter.JSONArrayStartsWith:
		return sel + " = CAST(" + b.Arg(jsonText(v)) + " AS JSON)", nil
	case filter.JSONStringContains, filter.JSONStringStartsWith, filter.JSONStringEndsWith:
		typeCheck := "JSON_TYPE(" + sel + ") = 'STRING'"
		value, _ := d.RenderPath(b, p.Field, path)
		text := "JSON_UNQUOTE(" + value + ")"
		return "(" + typeCheck + " AND " + d.matchString(b, text, p.Op, string(v.(filter.String)), p.Mode) + ")", nil
	case filter.JSONArrayContains:
		// JSON_CONTAINS accepts a scalar, object or array candidate.
		return "JSON_CONTAINS(" + sel + ", " + b.Arg(jsonText(v)) + ")", nil
	case filter.JSONArrayEndsWith:
		return "JSON_EXTRACT(" + sel + ", '$[last]') = CAST(" + b.Arg(jsonText(v)) + " AS JSON)", nil
	}
	return "", qerr.Unsupported(string(MySQL), string(p.Op))
}

// RenderNull implements Dialect.
func (d *mysqlDialect) RenderNull(b *Builder, n *filter.NullCheck) (string, error) {
	col := d.QuoteIdentifier(n.Field)
	dbNull := func() string {
		if len(n.Path) == 0 {
			return col + " IS NULL"
		}
		sel, _ := d.RenderPath(b, n.Field, n.Path)
		return sel + " IS NULL"
	}
	jsonNull := func() string {
		if len(n.Path) == 0 {
			return "JSON_TYPE(" + col + ") = 'NULL'"
		}
		sel, _ := d.RenderPath(b, n.Field, n.Path)
		return "JSON_TYPE(" + sel + ") = 'NULL'"
	}
	switch n.Kind {
	case filter.DbNull:
		return dbNull(), nil
	case filter.JsonNull:
		return jsonNull(), nil
	}
	// Bind in text order.
	db := dbNull()
	return "(" + db + " OR " + jsonNull() + ")", nil
}

func (d *mysqlDialect) matchString(b *Builder, expr string, op filter.JSONOp, needle string, mode filter.Mode) string {
	pattern := b.Arg(likePattern(needle, op, ""))
	if mode == filter.ModeInsensitive {
		return "LOWER(" + expr + ") LIKE LOWER(" + pattern + ") ESCAPE '" + likeEscape + "'"
	}
	return expr + " LIKE " + pattern + " ESCAPE '" + likeEscape + "'"
}
