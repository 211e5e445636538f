package transaction

import (
	"database/sql"
	"strings"
)

// IsolationLevel represents the transaction isolation level.
type IsolationLevel int

const (
	// IsolationLevelDefault uses the database default isolation level.
	IsolationLevelDefault IsolationLevel = iota

	// IsolationLevelReadUncommitted allows dirty reads.
	IsolationLevelReadUncommitted

	// IsolationLevelReadCommitted prevents dirty reads.
	IsolationLevelReadCommitted

	// IsolationLevelRepeatableRead prevents dirty and non-repeatable reads.
	IsolationLevelRepeatableRead

	// IsolationLevelSerializable provides full serializability.
	IsolationLevelSerializable
)

// ToSQLIsolationLevel converts to the standard library isolation level.
func (l IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch l {
	case IsolationLevelReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationLevelReadCommitted:
		return sql.LevelReadCommitted
	case IsolationLevelRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationLevelSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

func (l IsolationLevel) String() string {
	return l.ToSQLIsolationLevel().String()
}

var levelNameCleaner = strings.NewReplacer(" ", "", "_", "", "-", "")

// ParseIsolationLevel parses names such as "read committed" or "Serializable".
func ParseIsolationLevel(s string) (IsolationLevel, bool) {
	key := strings.ToLower(levelNameCleaner.Replace(s))
	for l := IsolationLevelDefault; l <= IsolationLevelSerializable; l++ {
		if strings.ToLower(levelNameCleaner.Replace(l.String())) == key {
			return l, true
		}
	}
	return IsolationLevelDefault, false
}

// Options configures transaction behavior.
type Options struct {
	// IsolationLevel sets the transaction isolation level.
	IsolationLevel IsolationLevel

	// ReadOnly marks the transaction as read-only.
	ReadOnly bool
}

// DefaultOptions returns the default transaction options.
func DefaultOptions() *Options {
	return &Options{IsolationLevel: IsolationLevelDefault}
}

func (o *Options) txOptions() *sql.TxOptions {
	if o == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: o.IsolationLevel.ToSQLIsolationLevel(), ReadOnly: o.ReadOnly}
}
