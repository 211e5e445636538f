// Package compiler implements statement compilation from logical queries.
package compiler

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// mysqlNoLimit is the row count MySQL expects when only an offset is given.
const mysqlNoLimit = "18446744073709551615"

// New returns the compiler for the named dialect.
func New(name dialect.Name) (domain.QueryCompiler, error) {
	d, err := dialect.For(name)
	if err != nil {
		return nil, qerr.Validation("%s", err.Error())
	}
	if name == dialect.Document {
		return NewDocumentCompiler(), nil
	}
	return NewSQLCompiler(d), nil
}

// SQLCompiler implements the domain.QueryCompiler interface for the
// relational dialects.
type SQLCompiler struct {
	dialect dialect.Dialect
}

// NewSQLCompiler creates a new SQL compiler.
func NewSQLCompiler(d dialect.Dialect) *SQLCompiler {
	return &SQLCompiler{dialect: d}
}

// Dialect returns the dialect statements are rendered for.
func (c *SQLCompiler) Dialect() dialect.Dialect {
	return c.dialect
}

// Compile compiles a query into a prepared statement.
func (c *SQLCompiler) Compile(q *domain.Query) (*domain.PreparedStatement, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// One builder per statement keeps placeholder numbering in text order.
	b := dialect.NewBuilder(c.dialect)
	var (
		sql         string
		returnsRows bool
		err         error
	)
	switch q.Operation {
	case domain.Find, domain.FindMany:
		sql, err = c.compileSelect(b, q)
		returnsRows = true
	case domain.Create:
		sql = c.compileInsert(b, q, nil)
		returnsRows = c.dialect.SupportsFeature(dialect.FeatureReturning)
	case domain.Update:
		sql, err = c.compileUpdate(b, q)
	case domain.Delete:
		sql, err = c.compileDelete(b, q)
	case domain.Upsert:
		sql, err = c.compileUpsert(b, q)
		returnsRows = c.dialect.SupportsFeature(dialect.FeatureReturning)
	default:
		return nil, qerr.Validation("unsupported operation: %s", q.Operation)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewPreparedStatement(sql, b.Args(), c.dialect.Name(), returnsRows), nil
}

func (c *SQLCompiler) quote(name string) string {
	return c.dialect.QuoteIdentifier(name)
}

func (c *SQLCompiler) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = c.quote(n)
	}
	return strings.Join(quoted, ", ")
}

// compileSelect compiles a SELECT query.
func (c *SQLCompiler) compileSelect(b *dialect.Builder, q *domain.Query) (string, error) {
	take := q.Take
	if q.Operation == domain.Find {
		take = 1
	}
	sqlServer := c.dialect.Name() == dialect.SQLServer

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if sqlServer && take > 0 && q.Skip == 0 {
		sb.WriteString("TOP (" + strconv.Itoa(take) + ") ")
	}
	if len(q.Select) > 0 {
		sb.WriteString(c.quoteAll(q.Select))
	} else {
		sb.WriteString("*")
	}
	sb.WriteString(" FROM " + c.quote(q.Model))

	if q.Filter != nil {
		where, err := b.Filter(q.Filter)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE " + where)
	}

	order := c.orderBy(q.OrderBy)
	if order == "" && sqlServer && q.Skip > 0 {
		// OFFSET requires an ORDER BY clause on SQL Server.
		order = "(SELECT NULL)"
	}
	if order != "" {
		sb.WriteString(" ORDER BY " + order)
	}

	switch {
	case sqlServer:
		if q.Skip > 0 {
			sb.WriteString(" OFFSET " + strconv.Itoa(q.Skip) + " ROWS")
			if take > 0 {
				sb.WriteString(" FETCH NEXT " + strconv.Itoa(take) + " ROWS ONLY")
			}
		}
	case take > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(take))
		if q.Skip > 0 {
			sb.WriteString(" OFFSET " + strconv.Itoa(q.Skip))
		}
	case q.Skip > 0:
		switch c.dialect.Name() {
		case dialect.MySQL:
			sb.WriteString(" LIMIT " + mysqlNoLimit)
		case dialect.SQLite:
			sb.WriteString(" LIMIT -1")
		}
		sb.WriteString(" OFFSET " + strconv.Itoa(q.Skip))
	}
	return sb.String(), nil
}

func (c *SQLCompiler) orderBy(order []domain.OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, len(order))
	for i, o := range order {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts[i] = c.quote(o.Field) + dir
	}
	return strings.Join(parts, ", ")
}

// compileInsert renders an INSERT of q.Data followed by the optional
// conflict clause. Rows are returned when the dialect can do so. The clause
// is rendered after the values so its arguments are bound in text order.
func (c *SQLCompiler) compileInsert(b *dialect.Builder, q *domain.Query, clause func() string) string {
	fields := q.Data.Fields()

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + c.quote(q.Model) + " (" + c.quoteAll(fields) + ")")
	returning := c.dialect.SupportsFeature(dialect.FeatureReturning)
	if returning && c.dialect.Name() == dialect.SQLServer {
		sb.WriteString(" OUTPUT INSERTED.*")
	}
	phs := make([]string, len(fields))
	for i, f := range fields {
		phs[i] = b.Arg(dataArg(q, f, q.Data[f]))
	}
	sb.WriteString(" VALUES (" + strings.Join(phs, ", ") + ")")
	if clause != nil {
		sb.WriteString(clause())
	}
	if returning && c.dialect.Name() != dialect.SQLServer {
		sb.WriteString(" RETURNING *")
	}
	return sb.String()
}

// compileUpdate compiles an UPDATE query.
func (c *SQLCompiler) compileUpdate(b *dialect.Builder, q *domain.Query) (string, error) {
	var sb strings.Builder
	sb.WriteString("UPDATE " + c.quote(q.Model) + " SET ")
	sb.WriteString(c.assignments(b, q, q.Data))

	where, err := b.Filter(q.Filter)
	if err != nil {
		return "", err
	}
	sb.WriteString(" WHERE " + where)
	return sb.String(), nil
}

func (c *SQLCompiler) assignments(b *dialect.Builder, q *domain.Query, data domain.Data) string {
	fields := data.Fields()
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = c.quote(f) + " = " + b.Arg(dataArg(q, f, data[f]))
	}
	return strings.Join(sets, ", ")
}

// compileDelete compiles a DELETE query.
func (c *SQLCompiler) compileDelete(b *dialect.Builder, q *domain.Query) (string, error) {
	where, err := b.Filter(q.Filter)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + c.quote(q.Model) + " WHERE " + where, nil
}

// dataArg converts a written value into a driver argument. JSON fields
// receive JSON text; JsonNull writes the literal null and DbNull writes a
// database NULL.
func dataArg(q *domain.Query, field string, v filter.Operand) any {
	switch t := v.(type) {
	case filter.NullKind:
		if t == filter.JsonNull {
			return "null"
		}
		return nil
	case filter.Value:
		if q.IsJSONField(field) {
			return filter.MustEncode(t)
		}
		return dialect.ValueArg(t)
	}
	return nil
}
