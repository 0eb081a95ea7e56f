package atomspace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
)

// Handle is an opaque atom identifier resolved through the TLB.
type Handle uint64

const UndefinedHandle Handle = 0

// RealHandleOffset is the first handle given to a real atom. Values below it
// are reserved for type markers. It is part of the persisted format and must
// never shrink.
const RealHandleOffset = Handle(NoType) + 1000

// IsReal reports whether h lies in the range handed out to real atoms.
func (h Handle) IsReal() bool { return h >= RealHandleOffset }

func (h Handle) String() string { return strconv.FormatUint(uint64(h), 10) }

// ParseHandle reads a decimal handle.
func ParseHandle(s string) (Handle, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return UndefinedHandle, errors.Wrapf(ErrInvalidHandle, "parse %q", s)
	}
	return Handle(v), nil
}

// Atom is either a *Node or a *Link.
type Atom interface {
	Handle() Handle
	Type() Type
	TruthValue() truthvalue.TruthValue
	String() string

	setHandle(h Handle)
	setTruthValue(tv truthvalue.TruthValue)
}

type Node struct {
	handle Handle
	typ    Type
	name   string
	tv     truthvalue.TruthValue
}

func (n *Node) Handle() Handle { return n.handle }
func (n *Node) Type() Type { return n.typ }
func (n *Node) Name() string { return n.name }
func (n *Node) TruthValue() truthvalue.TruthValue { return n.tv }

func (n *Node) String() string {
	return fmt.Sprintf("%s %q %s", n.typ, n.name, n.tv)
}

func (n *Node) setHandle(h Handle) { n.handle = h }
func (n *Node) setTruthValue(tv truthvalue.TruthValue) { n.tv = tv }

type Link struct {
	handle   Handle
	typ      Type
	outgoing []Handle
	tv       truthvalue.TruthValue
}

func (l *Link) Handle() Handle { return l.handle }
func (l *Link) Type() Type { return l.typ }
func (l *Link) Arity() int { return len(l.outgoing) }
func (l *Link) TruthValue() truthvalue.TruthValue { return l.tv }

// Outgoing returns a copy of the link's targets.
func (l *Link) Outgoing() []Handle {
	return append([]Handle(nil), l.outgoing...)
}

func (l *Link) String() string {
	var b strings.Builder
	b.WriteString(l.typ.String())
	b.WriteString(" <")
	for i, h := range l.outgoing {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(h.String())
	}
	b.WriteString("> ")
	b.WriteString(l.tv.String())
	return b.String()
}

func (l *Link) setHandle(h Handle) { l.handle = h }
func (l *Link) setTruthValue(tv truthvalue.TruthValue) { l.tv = tv }
