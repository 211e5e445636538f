package domain

import (
	"sync/atomic"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// PreparedStatement pairs a parameterised statement with its arguments.
// It is immutable and may be executed exactly once.
type PreparedStatement struct {
	sql         string
	args        []any
	dialect     dialect.Name
	returnsRows bool
	consumed    atomic.Bool
}

// NewPreparedStatement copies args into a new statement.
func NewPreparedStatement(sql string, args []any, d dialect.Name, returnsRows bool) *PreparedStatement {
	return &PreparedStatement{
		sql:         sql,
		args:        append([]any(nil), args...),
		dialect:     d,
		returnsRows: returnsRows,
	}
}

// SQL returns the statement text.
func (s *PreparedStatement) SQL() string { return s.sql }

// Args returns a copy of the bound arguments.
func (s *PreparedStatement) Args() []any { return append([]any(nil), s.args...) }

// Dialect returns the dialect the statement was rendered for.
func (s *PreparedStatement) Dialect() dialect.Name { return s.dialect }

// ReturnsRows reports whether the statement produces a row set.
func (s *PreparedStatement) ReturnsRows() bool { return s.returnsRows }

// Clone returns an unconsumed copy, used when serving from a cache.
func (s *PreparedStatement) Clone() *PreparedStatement {
	return NewPreparedStatement(s.sql, s.args, s.dialect, s.returnsRows)
}

// Consume marks the statement as executed. Only the first call succeeds.
func (s *PreparedStatement) Consume() error {
	if !s.consumed.CompareAndSwap(false, true) {
		return qerr.Validation("prepared statement has already been executed")
	}
	return nil
}

// Row is one result record keyed by column name. JSON columns hold
// filter.Value; SQL NULL is nil.
type Row map[string]any

// JSON returns the decoded JSON value of column.
func (r Row) JSON(column string) (filter.Value, bool) {
	v, ok := r[column].(filter.Value)
	return v, ok
}

// ResultSet is the outcome of one execution.
type ResultSet struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// First returns the first row or nil.
func (r *ResultSet) First() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}
