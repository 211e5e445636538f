package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

func TestQueryValidate(t *testing.T) {
	all := filter.AllOf()
	tests := []struct {
		name    string
		query   *Query
		wantErr string
	}{
		{name: "find many", query: &Query{Operation: FindMany, Model: "User"}},
		{name: "create", query: &Query{Operation: Create, Model: "User", Data: Data{"name": filter.String("a")}}},
		{name: "delete all", query: &Query{Operation: Delete, Model: "User", Filter: all}},
		{name: "json null write", query: &Query{Operation: Create, Model: "User", Data: Data{"meta": filter.JsonNull}}},
		{
			name: "upsert",
			query: &Query{
				Operation: Upsert, Model: "User",
				Data:         Data{"email": filter.String("a@b.c"), "name": filter.String("a")},
				ConflictKeys: []string{"email"},
			},
		},
		{name: "nil", query: nil, wantErr: "query is nil"},
		{name: "unknown operation", query: &Query{Operation: "aggregate", Model: "User"}, wantErr: "unknown operation"},
		{name: "bad model", query: &Query{Operation: FindMany, Model: "user; drop"}, wantErr: "invalid model name"},
		{name: "create without data", query: &Query{Operation: Create, Model: "User"}, wantErr: "create requires data"},
		{name: "update without filter", query: &Query{Operation: Update, Model: "User", Data: Data{"a": filter.Number("1")}}, wantErr: "requires a filter"},
		{name: "delete without filter", query: &Query{Operation: Delete, Model: "User"}, wantErr: "requires a filter"},
		{name: "upsert without keys", query: &Query{Operation: Upsert, Model: "User", Data: Data{"a": filter.Number("1")}}, wantErr: "conflict keys"},
		{
			name:    "upsert key missing from data",
			query:   &Query{Operation: Upsert, Model: "User", Data: Data{"a": filter.Number("1")}, ConflictKeys: []string{"b"}},
			wantErr: "missing from data",
		},
		{name: "any null write", query: &Query{Operation: Create, Model: "User", Data: Data{"meta": filter.AnyNull}}, wantErr: "AnyNull cannot be written"},
		{
			name:    "plain null on json field",
			query:   &Query{Operation: Create, Model: "User", Data: Data{"meta": filter.Null{}}, JSONFields: []string{"meta"}},
			wantErr: "null is ambiguous",
		},
		{name: "read with data", query: &Query{Operation: Find, Model: "User", Data: Data{"a": filter.Number("1")}}, wantErr: "does not accept data"},
		{name: "negative take", query: &Query{Operation: FindMany, Model: "User", Take: -1}, wantErr: "must not be negative"},
		{name: "bad filter", query: &Query{Operation: FindMany, Model: "User", Filter: filter.Negate(nil)}, wantErr: "NOT has no operand"},
		{name: "bad order field", query: &Query{Operation: FindMany, Model: "User", OrderBy: []OrderBy{{Field: "a b"}}}, wantErr: "invalid order field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, qerr.ErrValidation)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := &Query{
		Operation: FindMany, Model: "User",
		Filter: filter.Eq("name", filter.String("a")),
		Take:   10,
	}
	b := &Query{
		Operation: FindMany, Model: "User",
		Filter: filter.Eq("name", filter.String("a")),
		Take:   10,
	}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Filter = filter.Eq("name", filter.String("b"))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	w1 := &Query{Operation: Create, Model: "User", Data: Data{"a": filter.Number("1"), "b": filter.DbNull}}
	w2 := &Query{Operation: Create, Model: "User", Data: Data{"b": filter.DbNull, "a": filter.Number("1")}}
	assert.Equal(t, w1.Fingerprint(), w2.Fingerprint())

	w2.Data["b"] = filter.JsonNull
	assert.NotEqual(t, w1.Fingerprint(), w2.Fingerprint())
}

func TestPreparedStatementConsumedOnce(t *testing.T) {
	args := []any{"x"}
	stmt := NewPreparedStatement("SELECT 1 WHERE a = ?", args, dialect.SQLite, true)
	args[0] = "mutated"
	assert.Equal(t, []any{"x"}, stmt.Args())

	require.NoError(t, stmt.Consume())
	err := stmt.Consume()
	assert.ErrorIs(t, err, qerr.ErrValidation)

	clone := stmt.Clone()
	assert.NoError(t, clone.Consume())
	assert.Equal(t, stmt.SQL(), clone.SQL())
}

func TestResultSetFirst(t *testing.T) {
	var empty *ResultSet
	assert.Nil(t, empty.First())

	rs := &ResultSet{Rows: []Row{{"meta": filter.Object{}}}}
	v, ok := rs.First().JSON("meta")
	assert.True(t, ok)
	assert.Equal(t, filter.Object{}, v)
}
