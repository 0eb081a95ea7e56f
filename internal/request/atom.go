package request

import (
	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
)

var ErrBadAtom = errors.New("malformed atom")

// AtomSpec is the REST form of an atom to create.
type AtomSpec struct {
	Type       string             `json:"type"`
	Name       string             `json:"name,omitempty"`
	Outgoing   []atomspace.Handle `json:"outgoing,omitempty"`
	TruthValue *truthvalue.Spec   `json:"truthvalue,omitempty"`
}

// Validate checks everything that does not depend on table contents.
func (s AtomSpec) Validate() (atomspace.Type, truthvalue.TruthValue, error) {
	typ, ok := atomspace.TypeByName(s.Type)
	if !ok || typ.Abstract() {
		return 0, nil, errors.Wrapf(ErrBadAtom, "unknown or abstract type %q", s.Type)
	}
	if typ.IsNode() && len(s.Outgoing) > 0 {
		return 0, nil, errors.Wrap(ErrBadAtom, "nodes have no outgoing set")
	}
	if typ.IsLink() && s.Name != "" {
		return 0, nil, errors.Wrap(ErrBadAtom, "links have no name")
	}
	var tv truthvalue.TruthValue
	if s.TruthValue != nil {
		var err error
		if tv, err = s.TruthValue.TruthValue(); err != nil {
			return 0, nil, errors.Wrap(ErrBadAtom, err.Error())
		}
	}
	return typ, tv, nil
}

type CreateResult struct {
	Handle atomspace.Handle
	Merged bool
	Err    error
}

// CreateAtom adds one atom on the loop and sends the outcome on Result,
// which must have room for one value.
type CreateAtom struct {
	Spec   AtomSpec
	Result chan<- CreateResult
}

func (r *CreateAtom) Requester() server.CallBack { return nil }

func (r *CreateAtom) Execute(srv *server.Server) error {
	res := r.create(srv.AtomSpace())
	r.Result <- res
	return res.Err
}

func (r *CreateAtom) create(table *atomspace.Table) CreateResult {
	typ, tv, err := r.Spec.Validate()
	if err != nil {
		return CreateResult{Err: err}
	}
	var res CreateResult
	if typ.IsNode() {
		res.Handle, res.Merged, res.Err = table.AddNode(typ, r.Spec.Name, tv)
	} else {
		res.Handle, res.Merged, res.Err = table.AddLink(typ, r.Spec.Outgoing, tv)
	}
	return res
}

// AtomView is the REST form of a stored atom.
type AtomView struct {
	Handle     atomspace.Handle   `json:"handle"`
	Type       string             `json:"type"`
	Name       string             `json:"name,omitempty"`
	Outgoing   []atomspace.Handle `json:"outgoing,omitempty"`
	Incoming   []atomspace.Handle `json:"incoming"`
	TruthValue truthvalue.Spec    `json:"truthvalue"`
}

type GetResult struct {
	Atom AtomView
	Err  error
}

// GetAtom reads one atom on the loop and sends it on Result, which must have
// room for one value.
type GetAtom struct {
	Handle atomspace.Handle
	Result chan<- GetResult
}

func (r *GetAtom) Requester() server.CallBack { return nil }

func (r *GetAtom) Execute(srv *server.Server) error {
	res := r.get(srv.AtomSpace())
	r.Result <- res
	return res.Err
}

func (r *GetAtom) get(table *atomspace.Table) GetResult {
	a, err := table.Get(r.Handle)
	if err != nil {
		return GetResult{Err: err}
	}
	incoming, err := table.Incoming(r.Handle)
	if err != nil {
		return GetResult{Err: err}
	}
	view := AtomView{
		Handle:     r.Handle,
		Type:       a.Type().String(),
		Incoming:   incoming,
		TruthValue: truthvalue.SpecOf(a.TruthValue()),
	}
	switch a := a.(type) {
	case *atomspace.Node:
		view.Name = a.Name()
	case *atomspace.Link:
		view.Outgoing = a.Outgoing()
	}
	if view.Incoming == nil {
		view.Incoming = []atomspace.Handle{}
	}
	return GetResult{Atom: view}
}
