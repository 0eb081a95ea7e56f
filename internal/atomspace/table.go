// Package atomspace holds the hypergraph knowledge base: atoms addressed by
// handle, indexed by type, name and adjacency.
//
// A Table is not safe for concurrent use. The cognitive loop owns it and
// bulk operations borrow it only while the loop is paused.
package atomspace

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type nodeKey struct {
	typ  Type
	name string
}

type handleSet map[Handle]struct{}

type Table struct {
	tlb      *TLB
	nodes    map[nodeKey]Handle
	links    map[string]Handle
	byType   map[Type]handleSet
	incoming map[Handle]handleSet
	version  uint64
	logger   *zap.Logger
}

func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		tlb:      NewTLB(),
		nodes:    make(map[nodeKey]Handle),
		links:    make(map[string]Handle),
		byType:   make(map[Type]handleSet),
		incoming: make(map[Handle]handleSet),
		logger:   logger,
	}
}

// AddNode inserts a node or, if one with the same type and name exists,
// merges tv into it. A nil tv keeps the existing value.
func (t *Table) AddNode(typ Type, name string, tv truthvalue.TruthValue) (Handle, bool, error) {
	if !typ.IsNode() || typ.Abstract() {
		return UndefinedHandle, false, errors.Wrapf(ErrInvalidType, "%s is not a concrete node type", typ)
	}
	if h, ok := t.nodes[nodeKey{typ, name}]; ok {
		t.mergeTruthValue(h, tv)
		return h, true, nil
	}
	if tv == nil {
		tv = truthvalue.Default()
	}
	n := &Node{typ: typ, name: name, tv: tv}
	h := t.tlb.Allocate(n)
	t.index(n)
	return h, false, nil
}

// AddLink inserts a link or merges tv into the existing link with the same
// type and targets. Targets of unordered link types are kept sorted.
func (t *Table) AddLink(typ Type, outgoing []Handle, tv truthvalue.TruthValue) (Handle, bool, error) {
	if !typ.IsLink() || typ.Abstract() {
		return UndefinedHandle, false, errors.Wrapf(ErrInvalidType, "%s is not a concrete link type", typ)
	}
	out := canonicalOutgoing(typ, outgoing)
	for _, h := range out {
		if !t.tlb.IsValid(h) {
			return UndefinedHandle, false, errors.Wrapf(ErrInvalidHandle, "link target %d", h)
		}
	}
	if h, ok := t.links[linkKey(typ, out)]; ok {
		t.mergeTruthValue(h, tv)
		return h, true, nil
	}
	if tv == nil {
		tv = truthvalue.Default()
	}
	l := &Link{typ: typ, outgoing: out, tv: tv}
	h := t.tlb.Allocate(l)
	t.index(l)
	return h, false, nil
}

func (t *Table) mergeTruthValue(h Handle, tv truthvalue.TruthValue) {
	if tv == nil {
		return
	}
	a, _ := t.tlb.Resolve(h)
	merged := truthvalue.Merge(a.TruthValue(), tv)
	if !merged.Equal(a.TruthValue()) {
		a.setTruthValue(merged)
		t.version++
	}
}

// index registers a freshly mapped atom in every secondary index.
func (t *Table) index(a Atom) {
	h := a.Handle()
	set, ok := t.byType[a.Type()]
	if !ok {
		set = make(handleSet)
		t.byType[a.Type()] = set
	}
	set[h] = struct{}{}

	switch a := a.(type) {
	case *Node:
		t.nodes[nodeKey{a.typ, a.name}] = h
	case *Link:
		t.links[linkKey(a.typ, a.outgoing)] = h
		t.linkIncoming(h, a.outgoing)
	}
	t.version++
}

func (t *Table) linkIncoming(h Handle, targets []Handle) {
	for _, target := range targets {
		in, ok := t.incoming[target]
		if !ok {
			in = make(handleSet)
			t.incoming[target] = in
		}
		in[h] = struct{}{}
	}
}

func (t *Table) unlinkIncoming(h Handle, targets []Handle) {
	for _, target := range targets {
		in := t.incoming[target]
		delete(in, h)
		if len(in) == 0 {
			delete(t.incoming, target)
		}
	}
}

func (t *Table) Get(h Handle) (Atom, error) {
	return t.tlb.Resolve(h)
}

func (t *Table) IsValid(h Handle) bool {
	return t.tlb.IsValid(h)
}

// GetHandle finds a node by type and name.
func (t *Table) GetHandle(typ Type, name string) (Handle, bool) {
	h, ok := t.nodes[nodeKey{typ, name}]
	return h, ok
}

// GetLinkHandle finds a link by type and targets.
func (t *Table) GetLinkHandle(typ Type, outgoing []Handle) (Handle, bool) {
	h, ok := t.links[linkKey(typ, canonicalOutgoing(typ, outgoing))]
	return h, ok
}

// Outgoing returns the targets of a link. Nodes have none.
func (t *Table) Outgoing(h Handle) ([]Handle, error) {
	a, err := t.tlb.Resolve(h)
	if err != nil {
		return nil, err
	}
	if l, ok := a.(*Link); ok {
		return l.Outgoing(), nil
	}
	return nil, nil
}

// Incoming returns the links that point at h, in handle order.
func (t *Table) Incoming(h Handle) ([]Handle, error) {
	if !t.tlb.IsValid(h) {
		return nil, errors.Wrapf(ErrInvalidHandle, "incoming of %d", h)
	}
	return sortedHandles(t.incoming[h]), nil
}

// HandlesByType lists atoms of type typ, and of its subtypes when subclass
// is set, in handle order.
func (t *Table) HandlesByType(typ Type, subclass bool) []Handle {
	if !subclass {
		return sortedHandles(t.byType[typ])
	}
	var out []Handle
	for _, st := range Subtypes(typ) {
		for h := range t.byType[st] {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}

func (t *Table) SetTruthValue(h Handle, tv truthvalue.TruthValue) error {
	a, err := t.tlb.Resolve(h)
	if err != nil {
		return err
	}
	if tv == nil {
		tv = truthvalue.Default()
	}
	a.setTruthValue(tv)
	t.version++
	return nil
}

// SetOutgoing re-points a link. A target that leads back to h is rejected
// with ErrInvalidHandle, so the link graph stays acyclic. The incoming sets
// of the old and new targets are updated together; nothing changes if any
// check fails.
func (t *Table) SetOutgoing(h Handle, outgoing []Handle) error {
	a, err := t.tlb.Resolve(h)
	if err != nil {
		return err
	}
	l, ok := a.(*Link)
	if !ok {
		return errors.Wrapf(ErrInvalidType, "handle %d is a node", h)
	}
	out := canonicalOutgoing(l.typ, outgoing)
	for _, target := range out {
		if !t.tlb.IsValid(target) {
			return errors.Wrapf(ErrInvalidHandle, "link target %d", target)
		}
		if t.reaches(target, h) {
			return errors.Wrapf(ErrInvalidHandle, "link %d cannot point at %d, which leads back to it", h, target)
		}
	}
	newKey := linkKey(l.typ, out)
	if other, ok := t.links[newKey]; ok && other != h {
		return errors.Wrapf(ErrDuplicateLink, "%s already exists as %d", newKey, other)
	}

	delete(t.links, linkKey(l.typ, l.outgoing))
	t.unlinkIncoming(h, l.outgoing)
	l.outgoing = out
	t.links[newKey] = h
	t.linkIncoming(h, out)
	t.version++
	return nil
}

// reaches reports whether to is from or lies in the outgoing closure of from.
func (t *Table) reaches(from, to Handle) bool {
	seen := make(handleSet)
	stack := []Handle{from}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == to {
			return true
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		if l, ok := t.tlb.byHandle[h].(*Link); ok {
			stack = append(stack, l.outgoing...)
		}
	}
	return false
}

// Remove deletes an atom and releases its handle. An atom that is still the
// target of links is rejected with ErrHasIncoming unless recursive is set,
// in which case those links are removed first.
func (t *Table) Remove(h Handle, recursive bool) error {
	a, err := t.tlb.Resolve(h)
	if err != nil {
		return err
	}
	if in := t.incoming[h]; len(in) > 0 {
		if !recursive {
			return errors.Wrapf(ErrHasIncoming, "handle %d is referenced by %d links", h, len(in))
		}
		for _, lh := range sortedHandles(in) {
			// an earlier cascade may already have taken it
			if !t.tlb.IsValid(lh) {
				continue
			}
			if err := t.Remove(lh, true); err != nil {
				return errors.Wrapf(err, "cascade from %d", h)
			}
		}
	}

	delete(t.byType[a.Type()], h)
	switch a := a.(type) {
	case *Node:
		delete(t.nodes, nodeKey{a.typ, a.name})
	case *Link:
		delete(t.links, linkKey(a.typ, a.outgoing))
		t.unlinkIncoming(h, a.outgoing)
	}
	delete(t.incoming, h)
	if err := t.tlb.Release(h); err != nil {
		return err
	}
	t.version++
	t.logger.Debug("atom removed", zap.Uint64("handle", uint64(h)), zap.Stringer("type", a.Type()))
	return nil
}

func (t *Table) Size() int { return t.tlb.Len() }

// Version changes on every mutation. Bulk readers compare it before and after
// their work to detect interleaved writes.
func (t *Table) Version() uint64 { return t.version }

// Print writes one "<handle>: <atom>" line per atom of the given type.
func (t *Table) Print(w io.Writer, typ Type, subclass bool) error {
	for _, h := range t.HandlesByType(typ, subclass) {
		a, _ := t.tlb.Resolve(h)
		if _, err := fmt.Fprintf(w, "%d: %s\n", h, a); err != nil {
			return err
		}
	}
	return nil
}

func canonicalOutgoing(typ Type, outgoing []Handle) []Handle {
	out := append([]Handle(nil), outgoing...)
	if IsA(typ, TypeUnorderedLink) {
		slices.Sort(out)
	}
	return out
}

func linkKey(typ Type, outgoing []Handle) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(typ), 10))
	b.WriteByte(':')
	for i, h := range outgoing {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(h), 10))
	}
	return b.String()
}

func sortedHandles(set handleSet) []Handle {
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
