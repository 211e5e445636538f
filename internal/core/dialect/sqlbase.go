package dialect

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// stringMatcher renders a substring/prefix/suffix match of expr against
// needle. Every SQL dialect implements it.
type stringMatcher interface {
	matchString(b *Builder, expr string, op filter.JSONOp, needle string, mode filter.Mode) string
}

// sqlBase holds the behaviour shared by the relational dialects.
type sqlBase struct{}

// RenderComparison implements Dialect.
func (sqlBase) RenderComparison(b *Builder, field string, op filter.CompareOp, v filter.Value) (string, error) {
	col := b.d.QuoteIdentifier(field)
	switch op {
	case opEquals:
		if v.Kind() == filter.KindNull {
			return col + " IS NULL", nil
		}
		return col + " = " + b.Arg(ValueArg(v)), nil
	case filter.OpNot:
		if v.Kind() == filter.KindNull {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + b.Arg(ValueArg(v)), nil
	case filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte:
		return col + " " + string(op) + " " + b.Arg(ValueArg(v)), nil
	case filter.OpIn, filter.OpNotIn:
		arr := v.(filter.Array)
		if len(arr) == 0 {
			if op == filter.OpIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		phs := make([]string, len(arr))
		for i, e := range arr {
			phs[i] = b.Arg(ValueArg(e))
		}
		kw := " IN ("
		if op == filter.OpNotIn {
			kw = " NOT IN ("
		}
		return col + kw + strings.Join(phs, ", ") + ")", nil
	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		m := b.d.(stringMatcher)
		return m.matchString(b, col, columnMatchOp(op), string(v.(filter.String)), filter.ModeDefault), nil
	}
	return "", qerr.Validation("unknown comparison operator %q", string(op))
}

// RenderLogical implements Dialect.
func (sqlBase) RenderLogical(op Logical, parts []Part) string {
	if op == LogicalNot {
		return "NOT (" + parts[0].Text + ")"
	}
	if len(parts) == 0 {
		if op == LogicalAnd {
			return "1=1"
		}
		return "1=0"
	}
	if len(parts) == 1 {
		return parts[0].Text
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		if p.Compound {
			texts[i] = "(" + p.Text + ")"
		} else {
			texts[i] = p.Text
		}
	}
	sep := " AND "
	if op == LogicalOr {
		sep = " OR "
	}
	return strings.Join(texts, sep)
}

func columnMatchOp(op filter.CompareOp) filter.JSONOp {
	switch op {
	case filter.OpStartsWith:
		return filter.JSONStringStartsWith
	case filter.OpEndsWith:
		return filter.JSONStringEndsWith
	}
	return filter.JSONStringContains
}

// ValueArg converts a value into a driver argument. Composite values are
// bound as their JSON text.
func ValueArg(v filter.Value) any {
	switch t := v.(type) {
	case filter.Null:
		return nil
	case filter.Bool:
		return bool(t)
	case filter.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(t), 64); err == nil {
			return f
		}
		return string(t)
	case filter.String:
		return string(t)
	}
	return jsonText(v)
}

// jsonText encodes a validated value.
func jsonText(v filter.Value) string {
	return filter.MustEncode(v)
}

// likeEscape is the escape character used in every LIKE pattern.
const likeEscape = "!"

// likePattern escapes needle and adds the wildcards op needs.
func likePattern(needle string, op filter.JSONOp, specials string) string {
	var sb strings.Builder
	for _, r := range needle {
		if r == '!' || r == '%' || r == '_' || strings.ContainsRune(specials, r) {
			sb.WriteString(likeEscape)
		}
		sb.WriteRune(r)
	}
	escaped := sb.String()
	switch op {
	case filter.JSONStringStartsWith:
		return escaped + "%"
	case filter.JSONStringEndsWith:
		return "%" + escaped
	}
	return "%" + escaped + "%"
}

// dollarPath renders path in `$.a."b c"[0][*]` form.
func dollarPath(path filter.Path) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, s := range path {
		switch s.Kind {
		case filter.SegmentKey:
			if filter.IsBareKey(s.Key) {
				sb.WriteString("." + s.Key)
			} else {
				sb.WriteString(`."`)
				sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s.Key))
				sb.WriteString(`"`)
			}
		case filter.SegmentIndex:
			sb.WriteString("[" + strconv.Itoa(s.Index) + "]")
		case filter.SegmentWildcard:
			sb.WriteString("[*]")
		}
	}
	return sb.String()
}

func quoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}
