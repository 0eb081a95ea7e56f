// Package inference composes elementary rules into trees of rule
// applications that evaluate lazily and remember their last result.
package inference

import (
	"strings"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
)

var (
	ErrArityMismatch = errors.New("arity mismatch")
	ErrSlotBound     = errors.New("argument slot already bound")
)

// Rule is an inference step over atom handles. A rule that returns
// atomspace.UndefinedHandle with a nil error found nothing to conclude.
type Rule interface {
	Name() string
	// Arity is the number of argument slots.
	Arity() int
	// FreeInputArity rules may be applied to fewer arguments than Arity.
	FreeInputArity() bool
	Compute(args ...atomspace.Handle) (atomspace.Handle, error)
}

// Arg is what an argument slot can be bound to: a Literal or a *RuleApp.
type Arg interface {
	arg()
}

// Literal binds a slot to a fixed handle.
type Literal atomspace.Handle

func (Literal) arg() {}
func (*RuleApp) arg() {}

// RuleApp applies a rule to a vector of slots. Unbound slots are filled from
// the arguments given to Compute, left to right and deepest first. A RuleApp
// is itself a Rule, so a composed tree can be used wherever a rule can.
type RuleApp struct {
	rule  Rule
	slots []Arg

	// stamp counts bindings made on this node; generation adds the stamps of
	// nested nodes, so a change anywhere below is visible here.
	stamp       uint64
	cachedStamp uint64
	cached      bool
	result      atomspace.Handle
}

func NewRuleApp(rule Rule) *RuleApp {
	return &RuleApp{rule: rule, slots: make([]Arg, rule.Arity())}
}

// Bind fills slot i. Binding a slot twice, an index out of range, or a tree
// that contains this node is a caller bug and reported as an assertion
// failure.
func (r *RuleApp) Bind(i int, a Arg) error {
	if i < 0 || i >= len(r.slots) {
		return errors.AssertionFailedf("slot %d out of range for %s with %d slots", i, r.rule.Name(), len(r.slots))
	}
	if r.slots[i] != nil {
		return errors.WithAssertionFailure(errors.Wrapf(ErrSlotBound, "slot %d of %s", i, r.rule.Name()))
	}
	switch v := a.(type) {
	case nil:
		return errors.AssertionFailedf("nil argument for slot %d of %s", i, r.rule.Name())
	case *RuleApp:
		if v == nil {
			return errors.AssertionFailedf("nil rule application for slot %d of %s", i, r.rule.Name())
		}
		if v.contains(r) {
			return errors.AssertionFailedf("binding slot %d of %s would create a cycle", i, r.rule.Name())
		}
	}
	r.slots[i] = a
	r.stamp++
	return nil
}

func (r *RuleApp) contains(target *RuleApp) bool {
	if r == target {
		return true
	}
	for _, s := range r.slots {
		if n, ok := s.(*RuleApp); ok && n.contains(target) {
			return true
		}
	}
	return false
}

func (r *RuleApp) generation() uint64 {
	g := r.stamp
	for _, s := range r.slots {
		if n, ok := s.(*RuleApp); ok {
			g += n.generation()
		}
	}
	return g
}

func (r *RuleApp) Name() string { return r.rule.Name() }

// Arity counts the unbound slots of the whole tree.
func (r *RuleApp) Arity() int {
	n := 0
	for _, s := range r.slots {
		switch v := s.(type) {
		case nil:
			n++
		case *RuleApp:
			n += v.Arity()
		}
	}
	return n
}

func (r *RuleApp) FreeInputArity() bool { return r.rule.FreeInputArity() }

// Compute evaluates the tree, feeding args to the unbound slots. Every
// argument must be consumed. A null result from any node, including a
// fixed-arity node left with an unbound slot, makes the whole tree null
// without error.
func (r *RuleApp) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	res, used, err := r.compute(args)
	if err != nil {
		return atomspace.UndefinedHandle, err
	}
	if used != len(args) {
		return atomspace.UndefinedHandle, errors.Wrapf(ErrArityMismatch,
			"%s used %d of %d arguments", r.rule.Name(), used, len(args))
	}
	return res, nil
}

// compute returns the result and how many of args it consumed.
func (r *RuleApp) compute(args []atomspace.Handle) (atomspace.Handle, int, error) {
	gen := r.generation()
	// Arguments cannot change the outcome of a tree with nothing left to bind.
	reusable := len(args) == 0 || r.Arity() == 0
	if reusable && r.cached && r.cachedStamp == gen {
		return r.result, 0, nil
	}

	bound := make([]atomspace.Handle, 0, len(r.slots))
	next := 0
slots:
	for _, s := range r.slots {
		var v atomspace.Handle
		switch s := s.(type) {
		case Literal:
			v = atomspace.Handle(s)
		case *RuleApp:
			res, used, err := s.compute(args[next:])
			next += used
			if err != nil {
				return atomspace.UndefinedHandle, next, err
			}
			v = res
		case nil:
			if next == len(args) {
				if r.rule.FreeInputArity() {
					break slots
				}
				// a starved fixed-arity node concludes nothing
				r.remember(atomspace.UndefinedHandle, gen, reusable)
				return atomspace.UndefinedHandle, next, nil
			}
			v = args[next]
			next++
		}
		if v == atomspace.UndefinedHandle {
			r.remember(atomspace.UndefinedHandle, gen, reusable)
			return atomspace.UndefinedHandle, len(args), nil
		}
		bound = append(bound, v)
	}

	res, err := r.rule.Compute(bound...)
	if err != nil {
		return atomspace.UndefinedHandle, next, errors.Wrapf(err, "%s", r.rule.Name())
	}
	r.remember(res, gen, reusable)
	return res, next, nil
}

// remember keeps res for reuse unless it was built from caller arguments.
func (r *RuleApp) remember(res atomspace.Handle, gen uint64, reusable bool) {
	r.result = res
	r.cached = reusable
	r.cachedStamp = gen
}

// String renders the tree, e.g. "Deduction(Inversion(_), 1042)".
func (r *RuleApp) String() string {
	var b strings.Builder
	b.WriteString(r.rule.Name())
	b.WriteByte('(')
	for i, s := range r.slots {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := s.(type) {
		case nil:
			b.WriteByte('_')
		case Literal:
			b.WriteString(atomspace.Handle(v).String())
		case *RuleApp:
			b.WriteString(v.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}
