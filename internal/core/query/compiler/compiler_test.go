package compiler_test

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/compiler"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

func compile(t *testing.T, name dialect.Name, q *domain.Query) *domain.PreparedStatement {
	t.Helper()
	comp, err := compiler.New(name)
	require.NoError(t, err)
	stmt, err := comp.Compile(q)
	require.NoError(t, err)
	return stmt
}

func TestCompiler_Statements(t *testing.T) {
	tests := []struct {
		name        string
		dialect     dialect.Name
		query       *domain.Query
		wantSQL     string
		wantArgs    []any
		returnsRows bool
	}{
		{
			name:    "postgres select with order and pagination",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation: domain.FindMany,
				Model:     "User",
				Select:    []string{"id", "email"},
				Filter:    filter.Eq("email", filter.String("x")),
				OrderBy:   []domain.OrderBy{{Field: "id", Desc: true}},
				Take:      10,
				Skip:      5,
			},
			wantSQL:     `SELECT "id", "email" FROM "User" WHERE "email" = $1 ORDER BY "id" DESC LIMIT 10 OFFSET 5`,
			wantArgs:    []any{"x"},
			returnsRows: true,
		},
		{
			name:        "find limits to one row",
			dialect:     dialect.SQLite,
			query:       &domain.Query{Operation: domain.Find, Model: "User", Take: 20},
			wantSQL:     `SELECT * FROM "User" LIMIT 1`,
			returnsRows: true,
		},
		{
			name:        "mysql skip without take",
			dialect:     dialect.MySQL,
			query:       &domain.Query{Operation: domain.FindMany, Model: "User", Skip: 3},
			wantSQL:     "SELECT * FROM `User` LIMIT 18446744073709551615 OFFSET 3",
			returnsRows: true,
		},
		{
			name:        "sqlite skip without take",
			dialect:     dialect.SQLite,
			query:       &domain.Query{Operation: domain.FindMany, Model: "User", Skip: 3},
			wantSQL:     `SELECT * FROM "User" LIMIT -1 OFFSET 3`,
			returnsRows: true,
		},
		{
			name:        "sqlserver top",
			dialect:     dialect.SQLServer,
			query:       &domain.Query{Operation: domain.FindMany, Model: "User", Take: 5},
			wantSQL:     "SELECT TOP (5) * FROM [User]",
			returnsRows: true,
		},
		{
			name:        "sqlserver offset fetch",
			dialect:     dialect.SQLServer,
			query:       &domain.Query{Operation: domain.FindMany, Model: "User", Take: 5, Skip: 10},
			wantSQL:     "SELECT * FROM [User] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY",
			returnsRows: true,
		},
		{
			name:    "postgres create encodes json fields",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation:  domain.Create,
				Model:      "User",
				Data:       domain.Data{"name": filter.String("a"), "meta": filter.Object{{Key: "a", Value: filter.Number("1")}}},
				JSONFields: []string{"meta"},
			},
			wantSQL:     `INSERT INTO "User" ("meta", "name") VALUES ($1, $2) RETURNING *`,
			wantArgs:    []any{`{"a":1}`, "a"},
			returnsRows: true,
		},
		{
			name:    "mysql create writes both null kinds",
			dialect: dialect.MySQL,
			query: &domain.Query{
				Operation:  domain.Create,
				Model:      "User",
				Data:       domain.Data{"a": filter.JsonNull, "b": filter.DbNull, "c": filter.String("s")},
				JSONFields: []string{"a", "b", "c"},
			},
			wantSQL:  "INSERT INTO `User` (`a`, `b`, `c`) VALUES (?, ?, ?)",
			wantArgs: []any{"null", nil, `"s"`},
		},
		{
			name:    "sqlserver create outputs inserted row",
			dialect: dialect.SQLServer,
			query: &domain.Query{
				Operation: domain.Create,
				Model:     "User",
				Data:      domain.Data{"name": filter.String("a")},
			},
			wantSQL:     "INSERT INTO [User] ([name]) OUTPUT INSERTED.* VALUES (@p1)",
			wantArgs:    []any{"a"},
			returnsRows: true,
		},
		{
			name:    "postgres update binds set before where",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation: domain.Update,
				Model:     "User",
				Data:      domain.Data{"name": filter.String("b")},
				Filter:    filter.JSON("meta", filter.P("a"), filter.JSONEquals, filter.Number("1")),
			},
			wantSQL:  `UPDATE "User" SET "name" = $1 WHERE ("meta" #> $2) = $3::jsonb`,
			wantArgs: []any{"b", pq.StringArray{"a"}, "1"},
		},
		{
			name:    "delete every record",
			dialect: dialect.SQLite,
			query:   &domain.Query{Operation: domain.Delete, Model: "User", Filter: filter.AllOf()},
			wantSQL: `DELETE FROM "User" WHERE 1=1`,
		},
		{
			name:    "sqlite upsert takes proposed values",
			dialect: dialect.SQLite,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c"), "name": filter.String("a")},
				ConflictKeys: []string{"email"},
			},
			wantSQL:     `INSERT INTO "User" ("email", "name") VALUES (?, ?) ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name" RETURNING *`,
			wantArgs:    []any{"a@b.c", "a"},
			returnsRows: true,
		},
		{
			name:    "postgres upsert with explicit update",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c"), "visits": filter.Number("1")},
				Update:       domain.Data{"visits": filter.Number("2")},
				ConflictKeys: []string{"email"},
			},
			wantSQL:     `INSERT INTO "User" ("email", "visits") VALUES ($1, $2) ON CONFLICT ("email") DO UPDATE SET "visits" = $3 RETURNING *`,
			wantArgs:    []any{"a@b.c", int64(1), int64(2)},
			returnsRows: true,
		},
		{
			name:    "postgres upsert with only keys",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c")},
				ConflictKeys: []string{"email"},
			},
			wantSQL:     `INSERT INTO "User" ("email") VALUES ($1) ON CONFLICT ("email") DO NOTHING RETURNING *`,
			wantArgs:    []any{"a@b.c"},
			returnsRows: true,
		},
		{
			name:    "mysql upsert",
			dialect: dialect.MySQL,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c"), "name": filter.String("a")},
				ConflictKeys: []string{"email"},
			},
			wantSQL:  "INSERT INTO `User` (`email`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
			wantArgs: []any{"a@b.c", "a"},
		},
		{
			name:    "mysql upsert with only keys",
			dialect: dialect.MySQL,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c")},
				ConflictKeys: []string{"email"},
			},
			wantSQL:  "INSERT INTO `User` (`email`) VALUES (?) ON DUPLICATE KEY UPDATE `email` = `email`",
			wantArgs: []any{"a@b.c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := compile(t, tt.dialect, tt.query)
			assert.Equal(t, tt.wantSQL, stmt.SQL())
			if tt.wantArgs == nil {
				assert.Empty(t, stmt.Args())
			} else {
				assert.Equal(t, tt.wantArgs, stmt.Args())
			}
			assert.Equal(t, tt.returnsRows, stmt.ReturnsRows())
			assert.Equal(t, tt.dialect, stmt.Dialect())
		})
	}
}

func TestCompiler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dialect dialect.Name
		query   *domain.Query
		want    error
	}{
		{
			name:    "sqlserver upsert",
			dialect: dialect.SQLServer,
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a")},
				ConflictKeys: []string{"email"},
			},
			want: qerr.ErrUnsupportedFeature,
		},
		{
			name:    "wildcard on postgres",
			dialect: dialect.Postgres,
			query: &domain.Query{
				Operation: domain.FindMany,
				Model:     "User",
				Filter:    filter.JSON("meta", filter.P("items", "*"), filter.JSONEquals, filter.String("a")),
			},
			want: qerr.ErrUnsupportedFeature,
		},
		{
			name:    "invalid query",
			dialect: dialect.MySQL,
			query:   &domain.Query{Operation: domain.Delete, Model: "User"},
			want:    qerr.ErrValidation,
		},
		{
			name:    "document any null",
			dialect: dialect.Document,
			query: &domain.Query{
				Operation: domain.FindMany,
				Model:     "User",
				Filter:    filter.IsNull("meta", filter.P("a"), filter.AnyNull),
			},
			want: qerr.ErrUnsupportedFeature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := compiler.New(tt.dialect)
			require.NoError(t, err)
			_, err = comp.Compile(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompiler_UnknownDialect(t *testing.T) {
	_, err := compiler.New("oracle")
	assert.ErrorIs(t, err, qerr.ErrValidation)
}

func TestDocumentCompiler(t *testing.T) {
	tests := []struct {
		name  string
		query *domain.Query
		want  string
		reads bool
	}{
		{
			name: "find",
			query: &domain.Query{
				Operation: domain.FindMany,
				Model:     "User",
				Filter:    filter.Cmp("age", filter.OpGte, filter.Number("18")),
				Select:    []string{"name"},
				OrderBy:   []domain.OrderBy{{Field: "age", Desc: true}},
				Take:      2,
				Skip:      1,
			},
			want:  `{"find":"User","filter":{"age":{"$gte":18}},"projection":{"name":1},"sort":{"age":-1},"skip":1,"limit":2}`,
			reads: true,
		},
		{
			name:  "find one without filter",
			query: &domain.Query{Operation: domain.Find, Model: "User"},
			want:  `{"find":"User","filter":{},"limit":1}`,
			reads: true,
		},
		{
			name: "insert",
			query: &domain.Query{
				Operation: domain.Create,
				Model:     "User",
				Data:      domain.Data{"name": filter.String("a"), "meta": filter.JsonNull},
			},
			want: `{"insert":"User","documents":[{"meta":null,"name":"a"}]}`,
		},
		{
			name: "update",
			query: &domain.Query{
				Operation: domain.Update,
				Model:     "User",
				Data:      domain.Data{"name": filter.String("b")},
				Filter:    filter.Eq("name", filter.String("a")),
			},
			want: `{"update":"User","updates":[{"q":{"name":"a"},"u":{"$set":{"name":"b"}},"multi":true}]}`,
		},
		{
			name:  "delete",
			query: &domain.Query{Operation: domain.Delete, Model: "User", Filter: filter.AllOf()},
			want:  `{"delete":"User","deletes":[{"q":{},"limit":0}]}`,
		},
		{
			name: "upsert",
			query: &domain.Query{
				Operation:    domain.Upsert,
				Model:        "User",
				Data:         domain.Data{"email": filter.String("a@b.c"), "name": filter.String("a"), "visits": filter.Number("1")},
				Update:       domain.Data{"visits": filter.Number("2")},
				ConflictKeys: []string{"email"},
			},
			want: `{"update":"User","updates":[{"q":{"email":"a@b.c"},"u":{"$set":{"visits":2},"$setOnInsert":{"name":"a"}},"upsert":true}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := compile(t, dialect.Document, tt.query)
			assert.JSONEq(t, tt.want, stmt.SQL())
			assert.Equal(t, tt.want, stmt.SQL())
			assert.Empty(t, stmt.Args())
			assert.Equal(t, tt.reads, stmt.ReturnsRows())
		})
	}
}

func TestCompiler_StatementsAreSingleUse(t *testing.T) {
	stmt := compile(t, dialect.SQLite, &domain.Query{Operation: domain.FindMany, Model: "User"})
	require.NoError(t, stmt.Consume())
	assert.ErrorIs(t, stmt.Consume(), qerr.ErrValidation)
}
