package compiler

import (
	"strconv"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// DocumentCompiler renders queries as MongoDB-style database commands. The
// statement text is the command document; values are inlined so it has no
// arguments.
type DocumentCompiler struct {
	dialect dialect.Dialect
}

// NewDocumentCompiler creates a document-store compiler.
func NewDocumentCompiler() *DocumentCompiler {
	return &DocumentCompiler{dialect: dialect.NewDocument()}
}

// Compile compiles a query into a command document.
func (c *DocumentCompiler) Compile(q *domain.Query) (*domain.PreparedStatement, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where := filter.Value(filter.Object{})
	if q.Filter != nil {
		var err error
		if where, err = c.filterDoc(q.Filter); err != nil {
			return nil, err
		}
	}

	var cmd filter.Object
	switch q.Operation {
	case domain.Find, domain.FindMany:
		cmd = c.findCommand(q, where)
	case domain.Create:
		cmd = filter.Object{
			{Key: "insert", Value: filter.String(q.Model)},
			{Key: "documents", Value: filter.Array{document(q.Data, nil)}},
		}
	case domain.Update:
		cmd = updateCommand(q.Model, where, filter.Object{{Key: "$set", Value: document(q.Data, nil)}}, false)
	case domain.Delete:
		cmd = filter.Object{
			{Key: "delete", Value: filter.String(q.Model)},
			{Key: "deletes", Value: filter.Array{filter.Object{
				{Key: "q", Value: where},
				{Key: "limit", Value: filter.Number("0")},
			}}},
		}
	case domain.Upsert:
		cmd = c.upsertCommand(q)
	default:
		return nil, qerr.Validation("unsupported operation: %s", q.Operation)
	}

	text, err := filter.Encode(cmd)
	if err != nil {
		return nil, err
	}
	return domain.NewPreparedStatement(string(text), nil, dialect.Document, q.Operation.IsRead()), nil
}

func (c *DocumentCompiler) filterDoc(n filter.Node) (filter.Value, error) {
	frag, err := dialect.Translate(n, c.dialect)
	if err != nil {
		return nil, err
	}
	return filter.Decode([]byte(frag.SQL))
}

func (c *DocumentCompiler) findCommand(q *domain.Query, where filter.Value) filter.Object {
	cmd := filter.Object{
		{Key: "find", Value: filter.String(q.Model)},
		{Key: "filter", Value: where},
	}
	if len(q.Select) > 0 {
		proj := make(filter.Object, len(q.Select))
		for i, f := range q.Select {
			proj[i] = filter.Member{Key: f, Value: filter.Number("1")}
		}
		cmd = append(cmd, filter.Member{Key: "projection", Value: proj})
	}
	if len(q.OrderBy) > 0 {
		sort := make(filter.Object, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := filter.Number("1")
			if o.Desc {
				dir = "-1"
			}
			sort[i] = filter.Member{Key: o.Field, Value: dir}
		}
		cmd = append(cmd, filter.Member{Key: "sort", Value: sort})
	}
	if q.Skip > 0 {
		cmd = append(cmd, filter.Member{Key: "skip", Value: intNumber(q.Skip)})
	}
	take := q.Take
	if q.Operation == domain.Find {
		take = 1
	}
	if take > 0 {
		cmd = append(cmd, filter.Member{Key: "limit", Value: intNumber(take)})
	}
	return cmd
}

// upsertCommand matches on the conflict keys. The update data, or every
// non-key field when none is given, is set on both paths; the remaining
// fields are only written on insert.
func (c *DocumentCompiler) upsertCommand(q *domain.Query) filter.Object {
	keys := make(map[string]bool, len(q.ConflictKeys))
	match := make(filter.Object, 0, len(q.ConflictKeys))
	for _, k := range q.ConflictKeys {
		keys[k] = true
		match = append(match, filter.Member{Key: k, Value: documentValue(q.Data[k])})
	}

	var set, onInsert filter.Object
	if len(q.Update) > 0 {
		set = document(q.Update, nil)
		onInsert = document(q.Data, func(f string) bool {
			_, updated := q.Update[f]
			return !keys[f] && !updated
		})
	} else {
		set = document(q.Data, func(f string) bool { return !keys[f] })
	}

	var update filter.Object
	if len(set) > 0 {
		update = append(update, filter.Member{Key: "$set", Value: set})
	}
	if len(onInsert) > 0 {
		update = append(update, filter.Member{Key: "$setOnInsert", Value: onInsert})
	}
	if len(update) == 0 {
		update = filter.Object{{Key: "$setOnInsert", Value: filter.Object{}}}
	}
	return updateCommand(q.Model, match, update, true)
}

func updateCommand(model string, where filter.Value, update filter.Object, upsert bool) filter.Object {
	stmt := filter.Object{
		{Key: "q", Value: where},
		{Key: "u", Value: update},
	}
	if upsert {
		stmt = append(stmt, filter.Member{Key: "upsert", Value: filter.Bool(true)})
	} else {
		stmt = append(stmt, filter.Member{Key: "multi", Value: filter.Bool(true)})
	}
	return filter.Object{
		{Key: "update", Value: filter.String(model)},
		{Key: "updates", Value: filter.Array{stmt}},
	}
}

// document renders data in field order, keeping the fields accepted by keep.
func document(data domain.Data, keep func(string) bool) filter.Object {
	doc := make(filter.Object, 0, len(data))
	for _, f := range data.Fields() {
		if keep != nil && !keep(f) {
			continue
		}
		doc = append(doc, filter.Member{Key: f, Value: documentValue(data[f])})
	}
	return doc
}

// documentValue maps both null kinds to the store's single null.
func documentValue(v filter.Operand) filter.Value {
	if val, ok := v.(filter.Value); ok {
		return val
	}
	return filter.Null{}
}

func intNumber(n int) filter.Number {
	return filter.Number(strconv.Itoa(n))
}
