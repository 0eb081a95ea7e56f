package atomspace

import "github.com/cockroachdb/errors"

var (
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrHasIncoming      = errors.New("atom has incoming links")
	ErrConcurrentAccess = errors.New("concurrent access to atom table")
	ErrInvalidType      = errors.New("invalid atom type")
	ErrDuplicateLink    = errors.New("link already exists")
)

// TLB maps handles to atoms and back. Handles are allocated from a monotonic
// counter and never handed out twice.
type TLB struct {
	next     Handle
	byHandle map[Handle]Atom
	byAtom   map[Atom]Handle
	retired  map[Handle]struct{}
}

func NewTLB() *TLB {
	return &TLB{
		next:     RealHandleOffset,
		byHandle: make(map[Handle]Atom),
		byAtom:   make(map[Atom]Handle),
		retired:  make(map[Handle]struct{}),
	}
}

// Allocate maps a to a fresh handle. An atom that is already mapped keeps
// its handle.
func (t *TLB) Allocate(a Atom) Handle {
	if h, ok := t.byAtom[a]; ok {
		return h
	}
	h := t.next
	t.next++
	t.bind(h, a)
	return h
}

// Reserve maps a to a handle chosen by the caller, typically one read back
// from storage. Later allocations start above it.
func (t *TLB) Reserve(h Handle, a Atom) error {
	if !h.IsReal() {
		return errors.Wrapf(ErrInvalidHandle, "handle %d is below the real atom range", h)
	}
	if _, ok := t.retired[h]; ok {
		return errors.Wrapf(ErrInvalidHandle, "handle %d was released", h)
	}
	if other, ok := t.byHandle[h]; ok && other != a {
		return errors.Wrapf(ErrConcurrentAccess, "handle %d already maps to %s", h, other)
	}
	if prev, ok := t.byAtom[a]; ok && prev != h {
		return errors.AssertionFailedf("atom already mapped to handle %d", prev)
	}
	if h >= t.next {
		t.next = h + 1
	}
	t.bind(h, a)
	return nil
}

func (t *TLB) bind(h Handle, a Atom) {
	t.byHandle[h] = a
	t.byAtom[a] = h
	a.setHandle(h)
}

func (t *TLB) Resolve(h Handle) (Atom, error) {
	a, ok := t.byHandle[h]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %d", h)
	}
	return a, nil
}

// Release unmaps h permanently.
func (t *TLB) Release(h Handle) error {
	a, ok := t.byHandle[h]
	if !ok {
		return errors.Wrapf(ErrInvalidHandle, "release handle %d", h)
	}
	delete(t.byHandle, h)
	delete(t.byAtom, a)
	t.retired[h] = struct{}{}
	return nil
}

func (t *TLB) IsValid(h Handle) bool {
	_, ok := t.byHandle[h]
	return ok
}

func (t *TLB) Len() int { return len(t.byHandle) }
