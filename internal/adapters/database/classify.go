package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Classify maps a driver error to the engine taxonomy. Transport failures
// become connection errors, after which the session must not be reused;
// everything the database reported about the statement itself becomes a
// query error with the matching code.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var qe *qerr.Error
	if errors.As(err, &qe) {
		return err
	}
	if isTransport(err) {
		return qerr.Connection(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code), err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code, err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return constraint(qerr.CodeUniqueConstraint, qerr.ErrUniqueConstraint, err)
		case 1451, 1452:
			return constraint(qerr.CodeForeignKey, qerr.ErrForeignKeyConstraint, err)
		case 1048:
			return constraint(qerr.CodeNullConstraint, qerr.ErrNullConstraint, err)
		case 2006, 2013:
			return qerr.Connection(err)
		}
		return qerr.Query(qerr.CodeRawQuery, err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return constraint(qerr.CodeUniqueConstraint, qerr.ErrUniqueConstraint, err)
		case sqlite3.ErrConstraintForeignKey:
			return constraint(qerr.CodeForeignKey, qerr.ErrForeignKeyConstraint, err)
		case sqlite3.ErrConstraintNotNull:
			return constraint(qerr.CodeNullConstraint, qerr.ErrNullConstraint, err)
		}
		return qerr.Query(qerr.CodeRawQuery, err)
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case 2601, 2627:
			return constraint(qerr.CodeUniqueConstraint, qerr.ErrUniqueConstraint, err)
		case 547:
			return constraint(qerr.CodeForeignKey, qerr.ErrForeignKeyConstraint, err)
		case 515:
			return constraint(qerr.CodeNullConstraint, qerr.ErrNullConstraint, err)
		}
		return qerr.Query(qerr.CodeRawQuery, err)
	}
	return qerr.Query(qerr.CodeRawQuery, err)
}

// IsTransport reports whether err leaves the session in an unknown state.
func IsTransport(err error) bool {
	return qerr.KindOf(Classify(err)) == qerr.KindConnection
}

func isTransport(err error) bool {
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classifySQLState(code string, err error) error {
	switch {
	case code == "23505":
		return constraint(qerr.CodeUniqueConstraint, qerr.ErrUniqueConstraint, err)
	case code == "23503":
		return constraint(qerr.CodeForeignKey, qerr.ErrForeignKeyConstraint, err)
	case code == "23502":
		return constraint(qerr.CodeNullConstraint, qerr.ErrNullConstraint, err)
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P02", code == "57P03":
		// Connection exception class and server shutdown.
		return qerr.Connection(err)
	}
	return qerr.Query(qerr.CodeRawQuery, err)
}

func constraint(code string, sentinel, err error) error {
	return qerr.Query(code, fmt.Errorf("%w: %w", sentinel, err))
}
