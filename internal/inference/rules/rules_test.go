package rules

import (
	"testing"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/inference"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ inference.Rule = (*Deduction)(nil)
	_ inference.Rule = (*Inversion)(nil)
	_ inference.Rule = (*And)(nil)
	_ inference.Rule = (*Revision)(nil)
)

type fixture struct {
	table   *atomspace.Table
	a, b, c atomspace.Handle
	ab, bc  atomspace.Handle
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	table := atomspace.NewTable(zap.NewNop())
	node := func(name string, s float64) atomspace.Handle {
		h, _, err := table.AddNode(atomspace.TypeConceptNode, name, truthvalue.NewSimple(s, 100))
		require.NoError(t, err)
		return h
	}
	link := func(from, to atomspace.Handle, s, n float64) atomspace.Handle {
		h, _, err := table.AddLink(atomspace.TypeInheritanceLink, []atomspace.Handle{from, to}, truthvalue.NewSimple(s, n))
		require.NoError(t, err)
		return h
	}
	f := fixture{table: table}
	f.a = node("cat", 0.1)
	f.b = node("mammal", 0.2)
	f.c = node("animal", 0.4)
	f.ab = link(f.a, f.b, 0.9, 50)
	f.bc = link(f.b, f.c, 0.8, 20)
	return f
}

func TestDeductionStrength(t *testing.T) {
	tests := []struct {
		name             string
		sAB, sBC, sB, sC float64
		want             float64
	}{
		{"independence formula", 0.9, 0.8, 0.2, 0.4, 0.9*0.8 + 0.1*(0.4-0.2*0.8)/0.8},
		{"certain middle term", 0.5, 0.5, 1, 0.3, 0.3},
		{"clamped above", 1, 1, 0.5, 1, 1},
		{"clamped below", 0, 1, 0.5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DeductionStrength(tt.sAB, tt.sBC, tt.sB, tt.sC), 1e-12)
		})
	}
}

func TestDeduction(t *testing.T) {
	f := newFixture(t)
	rule := NewDeduction(f.table, atomspace.TypeInheritanceLink)

	ac, err := rule.Compute(f.ab, f.bc)
	require.NoError(t, err)
	require.NotEqual(t, atomspace.UndefinedHandle, ac)

	out, err := f.table.Outgoing(ac)
	require.NoError(t, err)
	assert.Equal(t, []atomspace.Handle{f.a, f.c}, out)

	atom, err := f.table.Get(ac)
	require.NoError(t, err)
	assert.InDelta(t, DeductionStrength(0.9, 0.8, 0.2, 0.4), atom.TruthValue().Mean(), 1e-12)
	assert.InDelta(t, 20*DeductionDiscount, atom.TruthValue().Count(), 1e-12)

	res, err := rule.Compute(f.bc, f.ab)
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res, "links that do not chain conclude nothing")

	res, err = rule.Compute(f.a, f.bc)
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res)
}

func TestInversion(t *testing.T) {
	f := newFixture(t)
	rule := NewInversion(f.table, atomspace.TypeInheritanceLink)

	ba, err := rule.Compute(f.ab)
	require.NoError(t, err)
	out, err := f.table.Outgoing(ba)
	require.NoError(t, err)
	assert.Equal(t, []atomspace.Handle{f.b, f.a}, out)

	atom, _ := f.table.Get(ba)
	assert.InDelta(t, 0.9*0.1/0.2, atom.TruthValue().Mean(), 1e-12)
}

func TestAnd(t *testing.T) {
	f := newFixture(t)
	rule := NewAnd(f.table, 0)
	assert.Equal(t, DefaultAndArity, rule.Arity())

	h, err := rule.Compute(f.ab, f.bc)
	require.NoError(t, err)
	atom, err := f.table.Get(h)
	require.NoError(t, err)
	assert.Equal(t, atomspace.TypeAndLink, atom.Type())
	assert.InDelta(t, 0.72, atom.TruthValue().Mean(), 1e-12)
	assert.InDelta(t, 20, atom.TruthValue().Count(), 1e-12)

	h, err = rule.Compute()
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, h)
}

func TestRevision(t *testing.T) {
	f := newFixture(t)
	rule := NewRevision(f.table)

	h, err := rule.Compute(f.ab, f.bc)
	require.NoError(t, err)
	assert.Equal(t, f.ab, h)
	atom, _ := f.table.Get(f.ab)
	assert.InDelta(t, 70, atom.TruthValue().Count(), 1e-12)
	assert.InDelta(t, (0.9*50+0.8*20)/70, atom.TruthValue().Mean(), 1e-12)

	h, err = rule.Compute(f.ab, f.a)
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, h, "atoms of different types are not revised")
}

func TestComposedInference(t *testing.T) {
	f := newFixture(t)
	inversion := NewInversion(f.table, atomspace.TypeInheritanceLink)
	deduction := NewDeduction(f.table, atomspace.TypeInheritanceLink)

	// a->b followed by the inversion of b->c (c->b) does not chain.
	inv := inference.NewRuleApp(inversion)
	tree := inference.NewRuleApp(deduction)
	require.NoError(t, tree.Bind(1, inv))

	res, err := tree.Compute(f.ab, f.bc)
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res)

	chain := inference.NewRuleApp(deduction)
	require.NoError(t, chain.Bind(0, inference.Literal(f.ab)))
	require.NoError(t, chain.Bind(1, inference.Literal(f.bc)))
	first, err := chain.Compute()
	require.NoError(t, err)
	size := f.table.Size()

	second, err := chain.Compute()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, size, f.table.Size())
}
