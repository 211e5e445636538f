// Package domain contains the logical query model shared by the compiler,
// the executor and the transaction coordinator.
package domain

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Operation is the kind of a logical query.
type Operation string

const (
	// Find returns at most one record.
	Find Operation = "find"
	// FindMany returns every matching record.
	FindMany Operation = "findMany"
	// Create inserts a record.
	Create Operation = "create"
	// Update changes every matching record.
	Update Operation = "update"
	// Delete removes every matching record.
	Delete Operation = "delete"
	// Upsert inserts a record or updates the one sharing its conflict keys.
	Upsert Operation = "upsert"
)

// Operations lists every operation kind.
var Operations = []Operation{Find, FindMany, Create, Update, Delete, Upsert}

// IsRead reports whether the operation only reads.
func (o Operation) IsRead() bool {
	return o == Find || o == FindMany
}

// Data maps a field to the value written to it. JsonNull writes the JSON
// literal null and DbNull writes a database NULL.
type Data map[string]filter.Operand

// Query is a dialect-neutral description of one database operation.
type Query struct {
	Operation Operation
	Model     string
	Filter    filter.Node
	Data      Data

	// Update is the data applied when an upsert finds a conflict. When empty
	// the non-key fields of Data are used.
	Update       Data
	ConflictKeys []string

	Select  []string
	OrderBy []OrderBy
	Take    int
	Skip    int

	// JSONFields names columns holding JSON. Values written to them are
	// encoded as JSON and values read from them are decoded.
	JSONFields []string
}

// OrderBy sorts results by one field.
type OrderBy struct {
	Field string
	Desc  bool
}

// IsJSONField reports whether field was declared as JSON.
func (q *Query) IsJSONField(field string) bool {
	for _, f := range q.JSONFields {
		if f == field {
			return true
		}
	}
	return false
}

// Validate checks the query shape. It never touches a database.
func (q *Query) Validate() error {
	if q == nil {
		return qerr.Validation("query is nil")
	}
	known := false
	for _, op := range Operations {
		if q.Operation == op {
			known = true
			break
		}
	}
	if !known {
		return qerr.Validation("unknown operation %q", string(q.Operation))
	}
	if !filter.IsBareKey(q.Model) {
		return qerr.Validation("invalid model name %q", q.Model)
	}
	if q.Filter != nil {
		if err := filter.Validate(q.Filter); err != nil {
			return err
		}
	}

	switch q.Operation {
	case Create:
		if len(q.Data) == 0 {
			return qerr.Validation("create requires data")
		}
	case Update:
		if len(q.Data) == 0 {
			return qerr.Validation("update requires data")
		}
		if q.Filter == nil {
			return qerr.Validation("update requires a filter; use an empty AND to target every record")
		}
	case Delete:
		if q.Filter == nil {
			return qerr.Validation("delete requires a filter; use an empty AND to target every record")
		}
	case Upsert:
		if len(q.Data) == 0 {
			return qerr.Validation("upsert requires data")
		}
		if len(q.ConflictKeys) == 0 {
			return qerr.Validation("upsert requires conflict keys")
		}
		for _, k := range q.ConflictKeys {
			if _, ok := q.Data[k]; !ok {
				return qerr.Validation("conflict key %q is missing from data", k)
			}
		}
	}
	if q.Operation.IsRead() && (len(q.Data) > 0 || len(q.Update) > 0) {
		return qerr.Validation("%s does not accept data", q.Operation)
	}

	for _, d := range []Data{q.Data, q.Update} {
		if err := validateData(d); err != nil {
			return err
		}
		for field, v := range d {
			if _, ok := v.(filter.Null); ok && q.IsJSONField(field) {
				return qerr.Validation("null is ambiguous on JSON field %q; use JsonNull or DbNull", field)
			}
		}
	}
	for _, names := range [][]string{q.ConflictKeys, q.Select, q.JSONFields} {
		for _, n := range names {
			if !filter.IsBareKey(n) {
				return qerr.Validation("invalid field name %q", n)
			}
		}
	}
	for _, o := range q.OrderBy {
		if !filter.IsBareKey(o.Field) {
			return qerr.Validation("invalid order field %q", o.Field)
		}
	}
	if q.Take < 0 || q.Skip < 0 {
		return qerr.Validation("take and skip must not be negative")
	}
	return nil
}

func validateData(d Data) error {
	for field, v := range d {
		if !filter.IsBareKey(field) {
			return qerr.Validation("invalid field name %q", field)
		}
		switch t := v.(type) {
		case nil:
			return qerr.Validation("field %q has no value", field)
		case filter.NullKind:
			if t == filter.AnyNull {
				return qerr.Validation("AnyNull cannot be written to %q; use JsonNull or DbNull", field)
			}
			if t != filter.JsonNull && t != filter.DbNull {
				return qerr.Validation("invalid null kind on %q", field)
			}
		case filter.Number:
			if !t.Valid() {
				return qerr.Validation("invalid number %q on %q", string(t), field)
			}
		}
	}
	return nil
}

// Fields returns the data keys in sorted order.
func (d Data) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fingerprint returns a canonical text of the query, values included.
// Equal fingerprints compile to identical statements.
func (q *Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(q.Operation))
	b.WriteString("|" + q.Model)
	if q.Filter != nil {
		b.WriteString("|where:" + filter.Format(q.Filter))
	}
	writeData := func(label string, d Data) {
		if len(d) == 0 {
			return
		}
		b.WriteString("|" + label + ":")
		for _, k := range d.Fields() {
			b.WriteString(k + "=" + operandText(d[k]) + ";")
		}
	}
	writeData("data", q.Data)
	writeData("update", q.Update)
	b.WriteString("|keys:" + strings.Join(q.ConflictKeys, ","))
	b.WriteString("|select:" + strings.Join(q.Select, ","))
	for _, o := range q.OrderBy {
		b.WriteString("|order:" + o.Field)
		if o.Desc {
			b.WriteString(" desc")
		}
	}
	b.WriteString("|take:" + strconv.Itoa(q.Take))
	b.WriteString("|skip:" + strconv.Itoa(q.Skip))
	jsonFields := append([]string(nil), q.JSONFields...)
	sort.Strings(jsonFields)
	b.WriteString("|json:" + strings.Join(jsonFields, ","))
	return b.String()
}

func operandText(op filter.Operand) string {
	switch t := op.(type) {
	case filter.NullKind:
		return "$" + t.String()
	case filter.Value:
		s, err := filter.Encode(t)
		if err != nil {
			return "<invalid>"
		}
		return string(s)
	}
	return "<nil>"
}

// QueryCompiler turns a query into a statement for one dialect.
type QueryCompiler interface {
	Compile(q *Query) (*PreparedStatement, error)
}

// QueryExecutor runs logical queries.
type QueryExecutor interface {
	Execute(ctx context.Context, q *Query) (*ResultSet, error)
}
