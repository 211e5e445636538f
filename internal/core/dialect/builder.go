package dialect

import (
	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// Builder accumulates bound parameters while a statement is rendered.
// Placeholders are numbered across everything rendered through one Builder.
type Builder struct {
	d    Dialect
	args []any
}

// NewBuilder returns an empty Builder for d.
func NewBuilder(d Dialect) *Builder {
	return &Builder{d: d}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() Dialect {
	return b.d
}

// Arg binds v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// Args returns a copy of the bound parameters in placeholder order.
func (b *Builder) Args() []any {
	out := make([]any, len(b.args))
	copy(out, b.args)
	return out
}

// Filter validates n and renders it.
func (b *Builder) Filter(n filter.Node) (string, error) {
	if err := filter.Validate(n); err != nil {
		return "", err
	}
	return b.render(n)
}

func (b *Builder) render(n filter.Node) (string, error) {
	switch t := n.(type) {
	case *filter.Equality:
		if k := t.Value.Kind(); k == filter.KindArray || k == filter.KindObject {
			return b.renderJSON(&filter.JSONPath{Field: t.Field, Op: filter.JSONEquals, Value: t.Value})
		}
		return b.d.RenderComparison(b, t.Field, opEquals, t.Value)
	case *filter.Comparison:
		return b.d.RenderComparison(b, t.Field, t.Op, t.Value)
	case *filter.And:
		parts, err := b.renderAll(t.Children)
		if err != nil {
			return "", err
		}
		return b.d.RenderLogical(LogicalAnd, parts), nil
	case *filter.Or:
		parts, err := b.renderAll(t.Children)
		if err != nil {
			return "", err
		}
		return b.d.RenderLogical(LogicalOr, parts), nil
	case *filter.Not:
		parts, err := b.renderAll([]filter.Node{t.Child})
		if err != nil {
			return "", err
		}
		return b.d.RenderLogical(LogicalNot, parts), nil
	case *filter.JSONPath:
		return b.renderJSON(t)
	case *filter.NullCheck:
		return b.renderNull(t)
	}
	return "", qerr.Validation("unknown filter node %T", n)
}

func (b *Builder) renderAll(children []filter.Node) ([]Part, error) {
	parts := make([]Part, 0, len(children))
	for _, c := range children {
		text, err := b.render(c)
		if err != nil {
			return nil, err
		}
		_, isAnd := c.(*filter.And)
		_, isOr := c.(*filter.Or)
		parts = append(parts, Part{Text: text, Compound: isAnd || isOr})
	}
	return parts, nil
}

func (b *Builder) renderJSON(p *filter.JSONPath) (string, error) {
	if !b.d.Supports(p.Op) {
		return "", qerr.Unsupported(string(b.d.Name()), string(p.Op))
	}
	if err := b.checkPath(p.Path); err != nil {
		return "", err
	}
	if kind, ok := p.Value.(filter.NullKind); ok {
		return b.renderNull(&filter.NullCheck{Field: p.Field, Path: p.Path, Kind: kind})
	}
	return b.d.RenderOperator(b, p)
}

func (b *Builder) renderNull(n *filter.NullCheck) (string, error) {
	if err := b.checkPath(n.Path); err != nil {
		return "", err
	}
	if n.Kind == filter.AnyNull && !b.d.SupportsFeature(FeatureAnyNull) {
		return "", qerr.Unsupported(string(b.d.Name()), string(FeatureAnyNull))
	}
	return b.d.RenderNull(b, n)
}

func (b *Builder) checkPath(p filter.Path) error {
	if p.HasWildcard() && !b.d.SupportsFeature(FeatureWildcardPath) {
		return qerr.Unsupported(string(b.d.Name()), string(FeatureWildcardPath))
	}
	return nil
}
