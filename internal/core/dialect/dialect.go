// Package dialect renders filter trees into dialect-specific query fragments.
//
// Each supported database has one Dialect implementation holding its path
// syntax, operator rendering and capability matrix. The Builder walks a
// filter tree and delegates every leaf to the selected Dialect.
package dialect

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
)

// Name identifies a dialect.
type Name string

const (
	Postgres  Name = "postgres"
	MySQL     Name = "mysql"
	SQLite    Name = "sqlite"
	SQLServer Name = "sqlserver"
	Document  Name = "document"
)

// Names lists every dialect.
var Names = []Name{Postgres, MySQL, SQLite, SQLServer, Document}

// Feature is a capability that is not tied to a single JSON operator.
type Feature string

const (
	FeatureWildcardPath Feature = "wildcard path segment"
	FeatureAnyNull      Feature = "AnyNull"
	FeatureUpsert       Feature = "upsert"
	FeatureReturning    Feature = "RETURNING"
)

// Features lists every Feature.
var Features = []Feature{FeatureWildcardPath, FeatureAnyNull, FeatureUpsert, FeatureReturning}

// Logical is a boolean connective.
type Logical int

const (
	LogicalAnd Logical = iota
	LogicalOr
	LogicalNot
)

// Part is a rendered child of a logical connective.
type Part struct {
	Text string
	// Compound is set when the child is itself an AND or OR.
	Compound bool
}

// opEquals is the column equality operator used for filter.Equality.
const opEquals filter.CompareOp = "="

// Dialect renders filter leaves for one database.
type Dialect interface {
	Name() Name

	// Supports reports whether the JSON operator can be rendered at all.
	Supports(op filter.JSONOp) bool
	SupportsFeature(f Feature) bool

	Placeholder(n int) string
	QuoteIdentifier(name string) string

	// RenderPath renders the expression selecting path inside column.
	// RenderOperator and RenderNull select paths through it, so a path it
	// rejects is rejected for every operator.
	RenderPath(b *Builder, column string, path filter.Path) (string, error)
	// RenderOperator renders a JSON predicate whose operand is a value.
	RenderOperator(b *Builder, p *filter.JSONPath) (string, error)
	// RenderNull renders a null-kind test on a column or a JSON path.
	RenderNull(b *Builder, n *filter.NullCheck) (string, error)
	// RenderComparison renders a scalar column comparison.
	RenderComparison(b *Builder, field string, op filter.CompareOp, v filter.Value) (string, error)
	// RenderLogical combines already rendered children.
	RenderLogical(op Logical, parts []Part) string
}

// For returns the dialect registered under name.
func For(name Name) (Dialect, error) {
	switch name {
	case Postgres:
		return NewPostgres(), nil
	case MySQL:
		return NewMySQL(), nil
	case SQLite:
		return NewSQLite(), nil
	case SQLServer:
		return NewSQLServer(), nil
	case Document:
		return NewDocument(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", string(name))
}

// ParseName maps provider spellings to a dialect name.
func ParseName(s string) (Name, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "cockroachdb":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3", "file":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "document", "mongodb":
		return Document, nil
	}
	return "", fmt.Errorf("unknown dialect %q", s)
}

// Fragment is a rendered boolean expression and its bound parameters.
type Fragment struct {
	SQL  string
	Args []any
}

// Translate renders n for dialect d.
func Translate(n filter.Node, d Dialect) (Fragment, error) {
	b := NewBuilder(d)
	sql, err := b.Filter(n)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: sql, Args: b.Args()}, nil
}

// Capability is one cell of the support matrix.
type Capability struct {
	Dialect   Name
	Operation string
	Supported bool
}

// Capabilities returns the full operator and feature matrix.
func Capabilities() []Capability {
	var out []Capability
	for _, name := range Names {
		d, _ := For(name)
		for _, op := range filter.JSONOps {
			out = append(out, Capability{Dialect: name, Operation: string(op), Supported: d.Supports(op)})
		}
		for _, f := range Features {
			out = append(out, Capability{Dialect: name, Operation: string(f), Supported: d.SupportsFeature(f)})
		}
	}
	return out
}
