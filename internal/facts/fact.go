// Package facts provides the label and fact model of the extraction
// database.
//
// A fact is a tuple of a kind (the relation name) and typed arguments. Labels
// identify entities and are handed out by a Sink through get-or-create on a
// string key. Facts are append-only: a Sink never retracts or rewrites what
// it has accepted.
package facts

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Label is an opaque entity identifier.
type Label uint64

// String renders the label as "#n".
func (l Label) String() string {
	return "#" + strconv.FormatUint(uint64(l), 10)
}

// ParseLabel parses "#n" or "n".
func ParseLabel(s string) (Label, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing label %q: %w", s, err)
	}
	return Label(n), nil
}

// ArgKind is the type of a fact argument.
type ArgKind uint8

const (
	ArgLabel ArgKind = iota
	ArgString
	ArgInt
)

// Arg is one field of a fact.
type Arg struct {
	// Kind selects which of the value fields is meaningful.
	Kind ArgKind `json:"k"`

	// Label is set for ArgLabel.
	Label Label `json:"l,omitempty"`

	// Str is set for ArgString.
	Str string `json:"s,omitempty"`

	// Int is set for ArgInt.
	Int int64 `json:"i,omitempty"`
}

// L wraps a label argument.
func L(l Label) Arg { return Arg{Kind: ArgLabel, Label: l} }

// S wraps a string argument.
func S(s string) Arg { return Arg{Kind: ArgString, Str: s} }

// I wraps an integer argument.
func I(i int) Arg { return Arg{Kind: ArgInt, Int: int64(i)} }

// String renders a label as #n, a string quoted and an integer in decimal.
func (a Arg) String() string {
	switch a.Kind {
	case ArgLabel:
		return a.Label.String()
	case ArgString:
		return strconv.Quote(a.Str)
	default:
		return strconv.FormatInt(a.Int, 10)
	}
}

// Fact is one row of relation Kind.
type Fact struct {
	// Kind is the relation name, e.g. "exprs".
	Kind string `json:"kind"`

	// Args are the columns in schema order.
	Args []Arg `json:"args"`
}

// New builds a fact.
func New(kind string, args ...Arg) Fact {
	return Fact{Kind: kind, Args: args}
}

// String renders the fact as kind(a, b, ...).
func (f Fact) String() string {
	var sb strings.Builder
	sb.WriteString(f.Kind)
	sb.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Hash returns a content hash of the fact. Equal facts hash equally; stores
// use it to make appends idempotent.
func (f Fact) Hash() uint64 {
	buf := make([]byte, 0, 16+len(f.Kind)+len(f.Args)*9)
	buf = append(buf, f.Kind...)
	buf = append(buf, 0)
	for _, a := range f.Args {
		buf = append(buf, byte(a.Kind))
		switch a.Kind {
		case ArgLabel:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Label))
		case ArgString:
			buf = binary.AppendUvarint(buf, uint64(len(a.Str)))
			buf = append(buf, a.Str...)
		default:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Int))
		}
	}
	return xxh3.Hash(buf)
}

// LabelAt returns argument i as a label, or false when it is not one.
func (f Fact) LabelAt(i int) (Label, bool) {
	if i < 0 || i >= len(f.Args) || f.Args[i].Kind != ArgLabel {
		return 0, false
	}
	return f.Args[i].Label, true
}

// StrAt returns argument i as a string, or "" when it is not one.
func (f Fact) StrAt(i int) string {
	if i < 0 || i >= len(f.Args) || f.Args[i].Kind != ArgString {
		return ""
	}
	return f.Args[i].Str
}

// IntAt returns argument i as an integer, or false when it is not one.
func (f Fact) IntAt(i int) (int64, bool) {
	if i < 0 || i >= len(f.Args) || f.Args[i].Kind != ArgInt {
		return 0, false
	}
	return f.Args[i].Int, true
}

// Sink is the database an extraction writes to. It has exactly two writer
// operations and is safe for concurrent use.
type Sink interface {
	// GetLabelFor returns the label of key, creating it on first request.
	// created reports whether this call created it.
	GetLabelFor(ctx context.Context, key string) (label Label, created bool, err error)

	// Append adds facts. Appending a fact equal to one already stored is a
	// no-op.
	Append(ctx context.Context, facts ...Fact) error
}
