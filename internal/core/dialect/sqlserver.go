package dialect

import (
	"strconv"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// sqlserverDialect renders JSON predicates with JSON_VALUE and JSON_QUERY
// over nvarchar columns. JSON_VALUE returns text for every scalar, so value
// tests also check the element's type through OPENJSON. It has no array
// containment and no way to address the last element of an array. Rows are
// returned from writes through OUTPUT rather than RETURNING.
type sqlserverDialect struct {
	sqlBase
}

// OPENJSON [type] column codes.
const (
	openJSONNull   = 0
	openJSONString = 1
	openJSONNumber = 2
	openJSONBool   = 3
)

// NewSQLServer returns the SQL Server dialect.
func NewSQLServer() Dialect {
	return &sqlserverDialect{}
}

func (d *sqlserverDialect) Name() Name { return SQLServer }

func (d *sqlserverDialect) Supports(op filter.JSONOp) bool {
	return op != filter.JSONArrayContains && op != filter.JSONArrayEndsWith
}

func (d *sqlserverDialect) SupportsFeature(f Feature) bool {
	return f == FeatureAnyNull || f == FeatureReturning
}

func (d *sqlserverDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (d *sqlserverDialect) QuoteIdentifier(name string) string { return quoteWith(name, "[", "]") }

func (d *sqlserverDialect) fn(b *Builder, name, column string, path filter.Path) string {
	return name + "(" + d.QuoteIdentifier(column) + ", " + b.Arg(dollarPath(path)) + ")"
}

// RenderPath implements Dialect. Scalars are reached through JSON_VALUE.
func (d *sqlserverDialect) RenderPath(b *Builder, column string, path filter.Path) (string, error) {
	if path.HasWildcard() {
		return "", qerr.Unsupported(string(SQLServer), string(FeatureWildcardPath))
	}
	return d.fn(b, "JSON_VALUE", column, path), nil
}

// members selects the OPENJSON rows of the container holding the last
// segment of path, filtered to that segment. An empty path wraps the whole
// document in an array so its single element can be typed.
func (d *sqlserverDialect) members(b *Builder, column string, path filter.Path) string {
	col := d.QuoteIdentifier(column)
	if len(path) == 0 {
		return "SELECT 1 FROM OPENJSON(N'[' + " + col + " + N']') WHERE [key] = N'0'"
	}
	parent, last := path[:len(path)-1], path[len(path)-1]
	key := last.Key
	if last.Kind == filter.SegmentIndex {
		key = strconv.Itoa(last.Index)
	}
	return "SELECT 1 FROM OPENJSON(" + d.fn(b, "JSON_QUERY", column, parent) + ") WHERE [key] = " + b.Arg(key)
}

// typeIs tests that the element at path exists with the given OPENJSON type.
func (d *sqlserverDialect) typeIs(b *Builder, column string, path filter.Path, code int) string {
	return "EXISTS (" + d.members(b, column, path) + " AND [type] = " + strconv.Itoa(code) + ")"
}

// RenderOperator implements Dialect.
func (d *sqlserverDialect) RenderOperator(b *Builder, p *filter.JSONPath) (string, error) {
	if p.Path.HasWildcard() {
		return "", qerr.Unsupported(string(SQLServer), string(FeatureWildcardPath))
	}
	v := p.Value.(filter.Value)
	switch p.Op {
	case filter.JSONEquals:
		return d.equals(b, p.Field, p.Path, v)
	case filter.JSONStringContains, filter.JSONStringStartsWith, filter.JSONStringEndsWith:
		typeCheck := d.typeIs(b, p.Field, p.Path, openJSONString)
		text, err := d.RenderPath(b, p.Field, p.Path)
		if err != nil {
			return "", err
		}
		return "(" + typeCheck + " AND " + d.matchString(b, text, p.Op, string(v.(filter.String)), p.Mode) + ")", nil
	case filter.JSONArrayStartsWith:
		return d.equals(b, p.Field, p.Path.Append(filter.Index(0)), v)
	}
	return "", qerr.Unsupported(string(SQLServer), string(p.Op))
}

// equals compares scalars through JSON_VALUE after checking their type, and
// composites through JSON_QUERY, which returns the stored JSON text.
func (d *sqlserverDialect) equals(b *Builder, column string, path filter.Path, v filter.Value) (string, error) {
	var code int
	var want string
	switch t := v.(type) {
	case filter.Null:
		return d.typeIs(b, column, path, openJSONNull), nil
	case filter.Array, filter.Object:
		return d.fn(b, "JSON_QUERY", column, path) + " = " + b.Arg(jsonText(v)), nil
	case filter.Bool:
		code, want = openJSONBool, strconv.FormatBool(bool(t))
	case filter.Number:
		code, want = openJSONNumber, string(t)
	case filter.String:
		code, want = openJSONString, string(t)
	default:
		return "1=0", nil
	}
	typeCheck := d.typeIs(b, column, path, code)
	sel, err := d.RenderPath(b, column, path)
	if err != nil {
		return "", err
	}
	return "(" + typeCheck + " AND " + sel + " = " + b.Arg(want) + ")", nil
}

// RenderNull implements Dialect. A missing path and a NULL column both count
// as a database null.
func (d *sqlserverDialect) RenderNull(b *Builder, n *filter.NullCheck) (string, error) {
	if n.Path.HasWildcard() {
		return "", qerr.Unsupported(string(SQLServer), string(FeatureWildcardPath))
	}
	col := d.QuoteIdentifier(n.Field)
	dbNull := func() string {
		if len(n.Path) == 0 {
			return col + " IS NULL"
		}
		return "NOT EXISTS (" + d.members(b, n.Field, n.Path) + ")"
	}
	jsonNull := func() string {
		return d.typeIs(b, n.Field, n.Path, openJSONNull)
	}
	switch n.Kind {
	case filter.DbNull:
		return dbNull(), nil
	case filter.JsonNull:
		return jsonNull(), nil
	}
	db := dbNull()
	return "(" + db + " OR " + jsonNull() + ")", nil
}

// matchString forces a case-sensitive collation by default since SQL Server
// collations usually ignore case.
func (d *sqlserverDialect) matchString(b *Builder, expr string, op filter.JSONOp, needle string, mode filter.Mode) string {
	pattern := b.Arg(likePattern(needle, op, "["))
	if mode == filter.ModeInsensitive {
		return "LOWER(" + expr + ") LIKE LOWER(" + pattern + ") ESCAPE '" + likeEscape + "'"
	}
	return expr + " COLLATE Latin1_General_CS_AS LIKE " + pattern + " ESCAPE '" + likeEscape + "'"
}
