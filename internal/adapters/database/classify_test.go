package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     qerr.Kind
		code     string
		sentinel error
	}{
		{name: "bad conn", err: driver.ErrBadConn, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "eof", err: fmt.Errorf("read: %w", io.EOF), kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "net error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "deadline", err: context.DeadlineExceeded, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "mysql invalid conn", err: mysql.ErrInvalidConn, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, kind: qerr.KindQuery, code: qerr.CodeUniqueConstraint, sentinel: qerr.ErrUniqueConstraint},
		{name: "pq admin shutdown", err: &pq.Error{Code: "57P01"}, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "pq connection class", err: &pq.Error{Code: "08006"}, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "pq syntax", err: &pq.Error{Code: "42601"}, kind: qerr.KindQuery, code: qerr.CodeRawQuery},
		{name: "pgx foreign key", err: &pgconn.PgError{Code: "23503"}, kind: qerr.KindQuery, code: qerr.CodeForeignKey, sentinel: qerr.ErrForeignKeyConstraint},
		{name: "pgx not null", err: &pgconn.PgError{Code: "23502"}, kind: qerr.KindQuery, code: qerr.CodeNullConstraint, sentinel: qerr.ErrNullConstraint},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, kind: qerr.KindQuery, code: qerr.CodeUniqueConstraint, sentinel: qerr.ErrUniqueConstraint},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, kind: qerr.KindQuery, code: qerr.CodeForeignKey, sentinel: qerr.ErrForeignKeyConstraint},
		{name: "mysql null", err: &mysql.MySQLError{Number: 1048}, kind: qerr.KindQuery, code: qerr.CodeNullConstraint, sentinel: qerr.ErrNullConstraint},
		{name: "mysql gone away", err: &mysql.MySQLError{Number: 2006}, kind: qerr.KindConnection, code: qerr.CodeConnection},
		{name: "mysql syntax", err: &mysql.MySQLError{Number: 1064}, kind: qerr.KindQuery, code: qerr.CodeRawQuery},
		{name: "sqlite primary key", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, kind: qerr.KindQuery, code: qerr.CodeUniqueConstraint, sentinel: qerr.ErrUniqueConstraint},
		{name: "sqlite not null", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, kind: qerr.KindQuery, code: qerr.CodeNullConstraint, sentinel: qerr.ErrNullConstraint},
		{name: "mssql unique index", err: mssql.Error{Number: 2601}, kind: qerr.KindQuery, code: qerr.CodeUniqueConstraint, sentinel: qerr.ErrUniqueConstraint},
		{name: "mssql foreign key", err: mssql.Error{Number: 547}, kind: qerr.KindQuery, code: qerr.CodeForeignKey, sentinel: qerr.ErrForeignKeyConstraint},
		{name: "mssql null", err: mssql.Error{Number: 515}, kind: qerr.KindQuery, code: qerr.CodeNullConstraint, sentinel: qerr.ErrNullConstraint},
		{name: "unknown", err: errors.New("boom"), kind: qerr.KindQuery, code: qerr.CodeRawQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)

			var qe *qerr.Error
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.kind, qe.Kind)
			assert.Equal(t, tt.code, qe.Code)
			assert.ErrorIs(t, err, tt.err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestClassifyKeepsEngineErrors(t *testing.T) {
	assert.NoError(t, Classify(nil))

	orig := qerr.Validation("bad input")
	assert.Same(t, orig, Classify(orig))

	wrapped := fmt.Errorf("compile: %w", qerr.Unsupported("sqlite", "wildcard path"))
	assert.Equal(t, wrapped, Classify(wrapped))
}

func TestIsTransport(t *testing.T) {
	assert.True(t, IsTransport(driver.ErrBadConn))
	assert.True(t, IsTransport(qerr.Connection(io.EOF)))
	assert.False(t, IsTransport(&pq.Error{Code: "23505"}))
	assert.False(t, IsTransport(qerr.Validation("x")))
}

func TestClassifySQLiteDriverErrors(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLConnector(Config{
		Dialect: dialect.SQLite,
		DSN:     filepath.Join(t.TempDir(), "classify.db"),
	})
	require.NoError(t, err)
	defer conn.Close()

	session, err := conn.Connect(ctx)
	require.NoError(t, err)
	defer session.Close()
	s := session.(*Session)

	_, err = s.ExecContext(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	_, err = s.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (1, 'a@example.com')`)
	require.NoError(t, err)

	_, err = s.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (2, 'a@example.com')`)
	err = Classify(err)
	assert.ErrorIs(t, err, qerr.ErrUniqueConstraint)
	assert.Equal(t, qerr.KindQuery, qerr.KindOf(err))

	_, err = s.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (3, NULL)`)
	assert.ErrorIs(t, Classify(err), qerr.ErrNullConstraint)

	_, err = s.ExecContext(ctx, `SELEC 1`)
	err = Classify(err)
	assert.Equal(t, qerr.KindQuery, qerr.KindOf(err))
	assert.False(t, qerr.IsRetryable(err))

	// a semantic failure leaves the session usable
	assert.NoError(t, s.Ping(ctx))
}
