package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// SegmentKind identifies a JSON path segment.
type SegmentKind int

const (
	SegmentKey SegmentKind = iota
	SegmentIndex
	SegmentWildcard
)

// Segment is one step of a JSON path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// Key returns an object-key segment.
func Key(name string) Segment { return Segment{Kind: SegmentKey, Key: name} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{Kind: SegmentIndex, Index: i} }

// Wildcard returns a segment matching every array element.
func Wildcard() Segment { return Segment{Kind: SegmentWildcard} }

// Path locates a value inside a JSON document.
type Path []Segment

// P builds a path from strings, ints and "*" (wildcard).
func P(parts ...any) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch t := part.(type) {
		case int:
			p = append(p, Index(t))
		case string:
			if t == "*" {
				p = append(p, Wildcard())
			} else {
				p = append(p, Key(t))
			}
		case Segment:
			p = append(p, t)
		}
	}
	return p
}

// Append returns a new path with segs added after p's segments.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// HasWildcard reports whether any segment is a wildcard.
func (p Path) HasWildcard() bool {
	for _, s := range p {
		if s.Kind == SegmentWildcard {
			return true
		}
	}
	return false
}

var bareKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// String renders the path in dotted-bracket form, e.g. `a.b[0][*]`.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		switch s.Kind {
		case SegmentKey:
			if i > 0 {
				b.WriteByte('.')
			}
			if bareKey.MatchString(s.Key) {
				b.WriteString(s.Key)
			} else {
				b.WriteString(strconv.Quote(s.Key))
			}
		case SegmentIndex:
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
		case SegmentWildcard:
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// IsBareKey reports whether key can be written without quoting.
func IsBareKey(key string) bool {
	return bareKey.MatchString(key)
}
