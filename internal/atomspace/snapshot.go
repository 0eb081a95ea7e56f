package atomspace

import (
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
)

// Record is the flat form of an atom used by persistence backends. Name is
// empty for links and Outgoing is empty for nodes. TV holds
// truthvalue.Encode output.
type Record struct {
	Handle   Handle   `json:"handle"`
	Type     Type     `json:"type"`
	Name     string   `json:"name,omitempty"`
	Outgoing []Handle `json:"outgoing,omitempty"`
	TV       string   `json:"tv"`
}

// Snapshot flattens the table in handle order. A re-pointed or reserved link
// may precede its targets; Restore orders records before applying them.
func (t *Table) Snapshot() []Record {
	handles := t.HandlesByType(TypeAtom, true)
	out := make([]Record, 0, len(handles))
	for _, h := range handles {
		a, _ := t.tlb.Resolve(h)
		out = append(out, recordOf(a))
	}
	return out
}

func recordOf(a Atom) Record {
	r := Record{Handle: a.Handle(), Type: a.Type(), TV: truthvalue.Encode(a.TruthValue())}
	switch a := a.(type) {
	case *Node:
		r.Name = a.name
	case *Link:
		r.Outgoing = a.Outgoing()
	}
	return r
}

type restoreStep struct {
	rec      Record
	tv       truthvalue.TruthValue
	existing bool
}

// Restore loads records under their persisted handles. Records already in
// the table with identical content only merge their truth value. Either every
// record is applied or none is: a handle or key that is held by a different
// atom fails with ErrConcurrentAccess before anything changes.
func (t *Table) Restore(records []Record) error {
	plan, err := t.planRestore(records)
	if err != nil {
		return err
	}
	for _, step := range plan {
		if step.existing {
			t.mergeTruthValue(step.rec.Handle, step.tv)
			continue
		}
		var a Atom
		if step.rec.Type.IsNode() {
			a = &Node{typ: step.rec.Type, name: step.rec.Name, tv: step.tv}
		} else {
			a = &Link{typ: step.rec.Type, outgoing: canonicalOutgoing(step.rec.Type, step.rec.Outgoing), tv: step.tv}
		}
		if err := t.tlb.Reserve(step.rec.Handle, a); err != nil {
			return errors.NewAssertionErrorWithWrappedErrf(err, "restore handle %d after planning", step.rec.Handle)
		}
		t.index(a)
	}
	return nil
}

// planRestore validates records and orders them so every link follows its
// targets.
func (t *Table) planRestore(records []Record) ([]restoreStep, error) {
	var (
		nodes   []restoreStep
		links   []restoreStep
		seen    = make(map[Handle]struct{}, len(records))
		newKeys = make(map[string]Handle)
	)

	for _, rec := range records {
		if _, dup := seen[rec.Handle]; dup {
			return nil, errors.Wrapf(ErrConcurrentAccess, "handle %d appears twice", rec.Handle)
		}
		seen[rec.Handle] = struct{}{}

		if !rec.Type.Valid() || rec.Type.Abstract() {
			return nil, errors.Wrapf(ErrInvalidType, "record %d has type %d", rec.Handle, rec.Type)
		}
		if !rec.Handle.IsReal() {
			return nil, errors.Wrapf(ErrInvalidHandle, "record handle %d is below the real atom range", rec.Handle)
		}
		tv, err := truthvalue.Decode(rec.TV)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", rec.Handle)
		}
		step := restoreStep{rec: rec, tv: tv}

		var key string
		var holder Handle
		var held bool
		if rec.Type.IsNode() {
			key = "n:" + linkKey(rec.Type, nil) + rec.Name
			holder, held = t.nodes[nodeKey{rec.Type, rec.Name}]
		} else {
			out := canonicalOutgoing(rec.Type, rec.Outgoing)
			key = "l:" + linkKey(rec.Type, out)
			holder, held = t.links[linkKey(rec.Type, out)]
		}
		if other, ok := newKeys[key]; ok {
			return nil, errors.Wrapf(ErrConcurrentAccess, "records %d and %d describe the same atom", other, rec.Handle)
		}
		newKeys[key] = rec.Handle

		switch {
		case t.tlb.IsValid(rec.Handle):
			if !held || holder != rec.Handle {
				cur, _ := t.tlb.Resolve(rec.Handle)
				return nil, errors.Wrapf(ErrConcurrentAccess, "handle %d already holds %s", rec.Handle, cur)
			}
			step.existing = true
		case held:
			return nil, errors.Wrapf(ErrConcurrentAccess, "record %d duplicates atom %d", rec.Handle, holder)
		default:
			if _, gone := t.tlb.retired[rec.Handle]; gone {
				return nil, errors.Wrapf(ErrConcurrentAccess, "handle %d was removed in this session", rec.Handle)
			}
		}

		if rec.Type.IsNode() {
			nodes = append(nodes, step)
		} else {
			links = append(links, step)
		}
	}

	available := make(handleSet, len(nodes))
	for _, s := range nodes {
		available[s.rec.Handle] = struct{}{}
	}
	ready := func(h Handle) bool {
		if _, ok := available[h]; ok {
			return true
		}
		return t.tlb.IsValid(h)
	}

	plan := nodes
	for len(links) > 0 {
		var rest []restoreStep
		for _, s := range links {
			ok := true
			for _, target := range s.rec.Outgoing {
				if !ready(target) {
					ok = false
					break
				}
			}
			if ok {
				plan = append(plan, s)
				available[s.rec.Handle] = struct{}{}
			} else {
				rest = append(rest, s)
			}
		}
		if len(rest) == len(links) {
			return nil, errors.Wrapf(ErrInvalidHandle, "%d links point at atoms that are neither stored nor loaded, first is %d",
				len(rest), rest[0].rec.Handle)
		}
		links = rest
	}
	return plan, nil
}
