package compiler

import (
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// compileUpsert renders an insert that updates the row sharing the conflict
// keys instead of failing.
func (c *SQLCompiler) compileUpsert(b *dialect.Builder, q *domain.Query) (string, error) {
	if !c.dialect.SupportsFeature(dialect.FeatureUpsert) {
		return "", qerr.Unsupported(string(c.dialect.Name()), string(dialect.FeatureUpsert))
	}

	switch c.dialect.Name() {
	case dialect.Postgres, dialect.SQLite:
		return c.compileInsert(b, q, func() string {
			clause := " ON CONFLICT (" + c.quoteAll(q.ConflictKeys) + ")"
			sets := c.conflictSets(b, q, func(col string) string { return "EXCLUDED." + col })
			if sets == "" {
				return clause + " DO NOTHING"
			}
			return clause + " DO UPDATE SET " + sets
		}), nil
	case dialect.MySQL:
		return c.compileInsert(b, q, func() string {
			sets := c.conflictSets(b, q, func(col string) string { return "VALUES(" + col + ")" })
			if sets == "" {
				// A no-op assignment keeps the statement from failing on conflict.
				k := c.quote(q.ConflictKeys[0])
				sets = k + " = " + k
			}
			return " ON DUPLICATE KEY UPDATE " + sets
		}), nil
	}
	return "", qerr.Unsupported(string(c.dialect.Name()), string(dialect.FeatureUpsert))
}

// conflictSets renders the update applied on conflict. Explicit update data
// is bound; otherwise every non-key field takes the proposed value.
func (c *SQLCompiler) conflictSets(b *dialect.Builder, q *domain.Query, proposed func(col string) string) string {
	if len(q.Update) > 0 {
		return c.assignments(b, q, q.Update)
	}
	keys := make(map[string]bool, len(q.ConflictKeys))
	for _, k := range q.ConflictKeys {
		keys[k] = true
	}
	var sets []string
	for _, f := range q.Data.Fields() {
		if keys[f] {
			continue
		}
		col := c.quote(f)
		sets = append(sets, col+" = "+proposed(col))
	}
	return strings.Join(sets, ", ")
}
