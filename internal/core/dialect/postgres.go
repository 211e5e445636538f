package dialect

import (
	"strconv"

	"github.com/lib/pq"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// postgresDialect renders JSON paths as a text[] parameter consumed by the
// #> and #>> extraction operators on jsonb columns.
type postgresDialect struct {
	sqlBase
}

// NewPostgres returns the PostgreSQL dialect.
func NewPostgres() Dialect {
	return &postgresDialect{}
}

func (d *postgresDialect) Name() Name { return Postgres }

func (d *postgresDialect) Supports(op filter.JSONOp) bool { return true }

func (d *postgresDialect) SupportsFeature(f Feature) bool {
	return f != FeatureWildcardPath
}

func (d *postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (d *postgresDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`, `"`) }

// RenderPath implements Dialect. The path is bound once as a text[]
// parameter and the result is the jsonb value at path.
func (d *postgresDialect) RenderPath(b *Builder, column string, path filter.Path) (string, error) {
	if path.HasWildcard() {
		return "", qerr.Unsupported(string(Postgres), string(FeatureWildcardPath))
	}
	col := d.QuoteIdentifier(column)
	if len(path) == 0 {
		return col, nil
	}
	segs := make(pq.StringArray, len(path))
	for i, s := range path {
		if s.Kind == filter.SegmentIndex {
			segs[i] = strconv.Itoa(s.Index)
		} else {
			segs[i] = s.Key
		}
	}
	return "(" + col + " #> " + b.Arg(segs) + ")", nil
}

// RenderOperator implements Dialect.
func (d *postgresDialect) RenderOperator(b *Builder, p *filter.JSONPath) (string, error) {
	v := p.Value.(filter.Value)
	if p.Op == filter.JSONArrayContains {
		// jsonb containment needs an array on both sides to mean "contains
		// these elements"; a bare scalar is rejected rather than reinterpreted.
		if v.Kind() != filter.KindArray {
			return "", qerr.Validation("array_contains on postgres requires an array value, got %s", v.Kind())
		}
	}

	jsonb, err := d.RenderPath(b, p.Field, p.Path)
	if err != nil {
		return "", err
	}
	switch p.Op {
	case filter.JSONEquals:
		return jsonb + " = " + b.Arg(jsonText(v)) + "::jsonb", nil
	case filter.JSONStringContains, filter.JSONStringStartsWith, filter.JSONStringEndsWith:
		text := "(" + jsonb + " #>> '{}')"
		return "(jsonb_typeof(" + jsonb + ") = 'string' AND " +
			d.matchString(b, text, p.Op, string(v.(filter.String)), p.Mode) + ")", nil
	case filter.JSONArrayContains:
		return jsonb + " @> " + b.Arg(jsonText(v)) + "::jsonb", nil
	case filter.JSONArrayStartsWith:
		return "(" + jsonb + " -> 0) = " + b.Arg(jsonText(v)) + "::jsonb", nil
	case filter.JSONArrayEndsWith:
		return "(" + jsonb + " -> -1) = " + b.Arg(jsonText(v)) + "::jsonb", nil
	}
	return "", qerr.Unsupported(string(Postgres), string(p.Op))
}

// RenderNull implements Dialect.
func (d *postgresDialect) RenderNull(b *Builder, n *filter.NullCheck) (string, error) {
	jsonb, err := d.RenderPath(b, n.Field, n.Path)
	if err != nil {
		return "", err
	}
	dbNull := jsonb + " IS NULL"
	jsonNull := jsonb + " = 'null'::jsonb"
	switch n.Kind {
	case filter.DbNull:
		return dbNull, nil
	case filter.JsonNull:
		return jsonNull, nil
	}
	return "(" + dbNull + " OR " + jsonNull + ")", nil
}

func (d *postgresDialect) matchString(b *Builder, expr string, op filter.JSONOp, needle string, mode filter.Mode) string {
	like := " LIKE "
	if mode == filter.ModeInsensitive {
		like = " ILIKE "
	}
	return expr + like + b.Arg(likePattern(needle, op, "")) + " ESCAPE '" + likeEscape + "'"
}
