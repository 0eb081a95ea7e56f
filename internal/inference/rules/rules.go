// Package rules holds the elementary inference rules that run against an
// atom table.
package rules

import (
	"math"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
)

const (
	// DeductionDiscount scales the evidence carried into a deduced link.
	DeductionDiscount = 0.9
	// InversionDiscount scales the evidence carried into an inverted link.
	InversionDiscount = 0.8

	DefaultAndArity = 8

	nearOne = 1 - 1e-9
)

// binaryLink resolves h as a two-target link of type typ. A handle that does
// not fit yields ok=false, which rules turn into a null result.
func binaryLink(table *atomspace.Table, h atomspace.Handle, typ atomspace.Type) (*atomspace.Link, bool) {
	a, err := table.Get(h)
	if err != nil {
		return nil, false
	}
	l, ok := a.(*atomspace.Link)
	if !ok || l.Type() != typ || l.Arity() != 2 {
		return nil, false
	}
	return l, true
}

func meanOf(table *atomspace.Table, h atomspace.Handle) float64 {
	a, err := table.Get(h)
	if err != nil {
		return 0
	}
	return a.TruthValue().Mean()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Deduction concludes A->C from A->B and B->C under the independence
// assumption.
type Deduction struct {
	table    *atomspace.Table
	linkType atomspace.Type
}

func NewDeduction(table *atomspace.Table, linkType atomspace.Type) *Deduction {
	return &Deduction{table: table, linkType: linkType}
}

func (d *Deduction) Name() string { return "Deduction" }
func (d *Deduction) Arity() int { return 2 }
func (d *Deduction) FreeInputArity() bool { return false }

func (d *Deduction) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	if len(args) != 2 {
		return atomspace.UndefinedHandle, errors.AssertionFailedf("deduction takes 2 arguments, got %d", len(args))
	}
	ab, ok := binaryLink(d.table, args[0], d.linkType)
	if !ok {
		return atomspace.UndefinedHandle, nil
	}
	bc, ok := binaryLink(d.table, args[1], d.linkType)
	if !ok {
		return atomspace.UndefinedHandle, nil
	}
	abOut, bcOut := ab.Outgoing(), bc.Outgoing()
	a, b, c := abOut[0], abOut[1], bcOut[1]
	if bcOut[0] != b || a == c {
		return atomspace.UndefinedHandle, nil
	}

	sAB, sBC := ab.TruthValue().Mean(), bc.TruthValue().Mean()
	sB, sC := meanOf(d.table, b), meanOf(d.table, c)
	strength := DeductionStrength(sAB, sBC, sB, sC)
	count := math.Min(ab.TruthValue().Count(), bc.TruthValue().Count()) * DeductionDiscount

	h, _, err := d.table.AddLink(d.linkType, []atomspace.Handle{a, c}, truthvalue.NewSimple(strength, count))
	if err != nil {
		return atomspace.UndefinedHandle, errors.Wrap(err, "add deduced link")
	}
	return h, nil
}

// DeductionStrength is sAC = sAB*sBC + (1-sAB)*(sC - sB*sBC)/(1-sB). When B
// is near certain the second term degenerates and sC is used instead.
func DeductionStrength(sAB, sBC, sB, sC float64) float64 {
	if sB >= nearOne {
		return clamp01(sC)
	}
	return clamp01(sAB*sBC + (1-sAB)*(sC-sB*sBC)/(1-sB))
}

// Inversion concludes B->A from A->B by Bayes' rule.
type Inversion struct {
	table    *atomspace.Table
	linkType atomspace.Type
}

func NewInversion(table *atomspace.Table, linkType atomspace.Type) *Inversion {
	return &Inversion{table: table, linkType: linkType}
}

func (r *Inversion) Name() string { return "Inversion" }
func (r *Inversion) Arity() int { return 1 }
func (r *Inversion) FreeInputArity() bool { return false }

func (r *Inversion) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	if len(args) != 1 {
		return atomspace.UndefinedHandle, errors.AssertionFailedf("inversion takes 1 argument, got %d", len(args))
	}
	ab, ok := binaryLink(r.table, args[0], r.linkType)
	if !ok {
		return atomspace.UndefinedHandle, nil
	}
	out := ab.Outgoing()
	a, b := out[0], out[1]
	sB := meanOf(r.table, b)
	if sB <= 0 {
		return atomspace.UndefinedHandle, nil
	}
	strength := clamp01(ab.TruthValue().Mean() * meanOf(r.table, a) / sB)
	count := ab.TruthValue().Count() * InversionDiscount

	h, _, err := r.table.AddLink(r.linkType, []atomspace.Handle{b, a}, truthvalue.NewSimple(strength, count))
	if err != nil {
		return atomspace.UndefinedHandle, errors.Wrap(err, "add inverted link")
	}
	return h, nil
}

// And conjoins any number of atoms, up to its arity, into an AndLink whose
// strength is the product of the member strengths.
type And struct {
	table *atomspace.Table
	arity int
}

func NewAnd(table *atomspace.Table, arity int) *And {
	if arity < 1 {
		arity = DefaultAndArity
	}
	return &And{table: table, arity: arity}
}

func (r *And) Name() string { return "And" }
func (r *And) Arity() int { return r.arity }
func (r *And) FreeInputArity() bool { return true }

func (r *And) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	if len(args) == 0 {
		return atomspace.UndefinedHandle, nil
	}
	strength, count := 1.0, math.Inf(1)
	for _, h := range args {
		a, err := r.table.Get(h)
		if err != nil {
			return atomspace.UndefinedHandle, nil
		}
		strength *= a.TruthValue().Mean()
		count = math.Min(count, a.TruthValue().Count())
	}

	h, _, err := r.table.AddLink(atomspace.TypeAndLink, args, truthvalue.NewSimple(strength, count))
	if err != nil {
		return atomspace.UndefinedHandle, errors.Wrap(err, "add conjunction")
	}
	return h, nil
}

// Revision pools the evidence of the second atom into the first. Both atoms
// must share a type. The first handle is returned.
type Revision struct {
	table *atomspace.Table
}

func NewRevision(table *atomspace.Table) *Revision {
	return &Revision{table: table}
}

func (r *Revision) Name() string { return "Revision" }
func (r *Revision) Arity() int { return 2 }
func (r *Revision) FreeInputArity() bool { return false }

func (r *Revision) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	if len(args) != 2 {
		return atomspace.UndefinedHandle, errors.AssertionFailedf("revision takes 2 arguments, got %d", len(args))
	}
	target, err := r.table.Get(args[0])
	if err != nil {
		return atomspace.UndefinedHandle, nil
	}
	evidence, err := r.table.Get(args[1])
	if err != nil || evidence.Type() != target.Type() || args[0] == args[1] {
		return atomspace.UndefinedHandle, nil
	}
	revised := truthvalue.Revise(target.TruthValue(), evidence.TruthValue())
	if err := r.table.SetTruthValue(args[0], revised); err != nil {
		return atomspace.UndefinedHandle, errors.Wrap(err, "set revised truth value")
	}
	return args[0], nil
}
