package inference

import (
	"testing"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRule records every invocation and answers with base plus the call
// number, so a repeated answer proves a cache hit.
type stubRule struct {
	name  string
	arity int
	free  bool
	base  atomspace.Handle
	null  bool
	calls [][]atomspace.Handle
}

func (s *stubRule) Name() string         { return s.name }
func (s *stubRule) Arity() int           { return s.arity }
func (s *stubRule) FreeInputArity() bool { return s.free }

func (s *stubRule) Compute(args ...atomspace.Handle) (atomspace.Handle, error) {
	s.calls = append(s.calls, append([]atomspace.Handle(nil), args...))
	if s.null {
		return atomspace.UndefinedHandle, nil
	}
	return s.base + atomspace.Handle(len(s.calls)), nil
}

func bind(t *testing.T, app *RuleApp, i int, a Arg) {
	t.Helper()
	require.NoError(t, app.Bind(i, a))
}

func TestComputeIsMemoized(t *testing.T) {
	rule := &stubRule{name: "r", arity: 2, base: 5000}
	app := NewRuleApp(rule)
	bind(t, app, 0, Literal(2001))
	bind(t, app, 1, Literal(2002))

	first, err := app.Compute()
	require.NoError(t, err)
	second, err := app.Compute()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, rule.calls, 1, "the rule must not run again without a binding change")
}

func TestArgumentsFillDeepestSlotsFirst(t *testing.T) {
	inner := &stubRule{name: "inner", arity: 2, base: 7000}
	outer := &stubRule{name: "outer", arity: 3, base: 8000}

	innerApp := NewRuleApp(inner)
	outerApp := NewRuleApp(outer)
	bind(t, innerApp, 1, Literal(42))
	bind(t, outerApp, 1, innerApp)

	assert.Equal(t, 3, outerApp.Arity())
	assert.Equal(t, "outer(_, inner(_, 42), _)", outerApp.String())

	res, err := outerApp.Compute(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, atomspace.Handle(8001), res)

	require.Len(t, inner.calls, 1)
	assert.Equal(t, []atomspace.Handle{2, 42}, inner.calls[0])
	require.Len(t, outer.calls, 1)
	assert.Equal(t, []atomspace.Handle{1, 7001, 3}, outer.calls[0])
}

func TestArgumentsAreNotCached(t *testing.T) {
	rule := &stubRule{name: "r", arity: 1, base: 100}
	app := NewRuleApp(rule)

	a, err := app.Compute(10)
	require.NoError(t, err)
	b, err := app.Compute(10)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, rule.calls, 2)
}

func TestFreeArityPartialApplication(t *testing.T) {
	rule := &stubRule{name: "and", arity: 4, free: true, base: 900}
	app := NewRuleApp(rule)
	bind(t, app, 0, Literal(11))

	_, err := app.Compute(12)
	require.NoError(t, err)
	assert.Equal(t, []atomspace.Handle{11, 12}, rule.calls[0])

	_, err = app.Compute()
	require.NoError(t, err)
	assert.Equal(t, []atomspace.Handle{11}, rule.calls[1])
}

func TestFixedArityMissingArgumentIsNull(t *testing.T) {
	rule := &stubRule{name: "fixed", arity: 2}
	app := NewRuleApp(rule)
	bind(t, app, 0, Literal(1))

	res, err := app.Compute()
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res)
	assert.Empty(t, rule.calls)
}

func TestStarvedNestedNodePropagatesNull(t *testing.T) {
	inner := &stubRule{name: "inner", arity: 1, base: 10}
	outer := &stubRule{name: "outer", arity: 2, base: 100}
	innerApp := NewRuleApp(inner)
	outerApp := NewRuleApp(outer)
	bind(t, outerApp, 0, innerApp)
	bind(t, outerApp, 1, Literal(7))

	res, err := outerApp.Compute()
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res)
	assert.Empty(t, inner.calls)
	assert.Empty(t, outer.calls)

	res, err = outerApp.Compute(3)
	require.NoError(t, err)
	assert.NotEqual(t, atomspace.UndefinedHandle, res)
	assert.Len(t, outer.calls, 1)
}

func TestLeftoverArguments(t *testing.T) {
	rule := &stubRule{name: "unary", arity: 1, base: 10}
	app := NewRuleApp(rule)

	_, err := app.Compute(1, 2)
	assert.True(t, errors.Is(err, ErrArityMismatch))

	bind(t, app, 0, Literal(3))
	_, err = app.Compute(4)
	assert.True(t, errors.Is(err, ErrArityMismatch))
}

func TestNullShortCircuits(t *testing.T) {
	nothing := &stubRule{name: "nothing", arity: 1, null: true}
	outer := &stubRule{name: "outer", arity: 2, base: 10}

	nothingApp := NewRuleApp(nothing)
	outerApp := NewRuleApp(outer)
	bind(t, outerApp, 0, nothingApp)

	res, err := outerApp.Compute(1, 2)
	require.NoError(t, err, "null is a result, not an error")
	assert.Equal(t, atomspace.UndefinedHandle, res)
	assert.Len(t, nothing.calls, 1)
	assert.Empty(t, outer.calls, "later slots are not evaluated")

	literalNull := NewRuleApp(&stubRule{name: "lit", arity: 1, base: 1})
	bind(t, literalNull, 0, Literal(atomspace.UndefinedHandle))
	res, err = literalNull.Compute()
	require.NoError(t, err)
	assert.Equal(t, atomspace.UndefinedHandle, res)
}

func TestBindContractViolations(t *testing.T) {
	app := NewRuleApp(&stubRule{name: "r", arity: 1})
	bind(t, app, 0, Literal(1))

	err := app.Bind(0, Literal(2))
	assert.True(t, errors.Is(err, ErrSlotBound))
	assert.True(t, errors.HasAssertionFailure(err))

	err = app.Bind(1, Literal(2))
	assert.True(t, errors.HasAssertionFailure(err))

	err = app.Bind(-1, Literal(2))
	assert.True(t, errors.HasAssertionFailure(err))

	parent := NewRuleApp(&stubRule{name: "p", arity: 1})
	child := NewRuleApp(&stubRule{name: "c", arity: 1})
	bind(t, parent, 0, child)
	err = child.Bind(0, parent)
	assert.True(t, errors.HasAssertionFailure(err), "cycles are rejected")
}

func TestNestedBindingInvalidatesAncestors(t *testing.T) {
	inner := &stubRule{name: "inner", arity: 2, free: true, base: 300}
	outer := &stubRule{name: "outer", arity: 2, free: true, base: 400}

	innerApp := NewRuleApp(inner)
	outerApp := NewRuleApp(outer)
	bind(t, innerApp, 0, Literal(1))
	bind(t, outerApp, 0, innerApp)

	first, err := outerApp.Compute()
	require.NoError(t, err)
	_, err = outerApp.Compute()
	require.NoError(t, err)
	assert.Len(t, outer.calls, 1)
	assert.Len(t, inner.calls, 1)

	bind(t, innerApp, 1, Literal(2))
	second, err := outerApp.Compute()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, inner.calls, 2)
	assert.Equal(t, []atomspace.Handle{1, 2}, inner.calls[1])
	assert.Len(t, outer.calls, 2)
}

func TestBoundSubtreeIsReusedUnderArguments(t *testing.T) {
	inner := &stubRule{name: "inner", arity: 1, base: 300}
	outer := &stubRule{name: "outer", arity: 2, base: 400}

	innerApp := NewRuleApp(inner)
	outerApp := NewRuleApp(outer)
	bind(t, innerApp, 0, Literal(7))
	bind(t, outerApp, 0, innerApp)

	for _, arg := range []atomspace.Handle{20, 21, 22} {
		_, err := outerApp.Compute(arg)
		require.NoError(t, err)
	}
	assert.Len(t, inner.calls, 1, "a fully bound subtree ignores caller arguments")
	assert.Len(t, outer.calls, 3)
}

func TestRuleAppAsRule(t *testing.T) {
	inner := &stubRule{name: "inner", arity: 2, base: 600}
	macro := NewRuleApp(inner)
	bind(t, macro, 0, Literal(5))

	var _ Rule = macro
	assert.Equal(t, 1, macro.Arity())

	wrapper := NewRuleApp(macro)
	res, err := wrapper.Compute(9)
	require.NoError(t, err)
	assert.Equal(t, atomspace.Handle(601), res)
	assert.Equal(t, []atomspace.Handle{5, 9}, inner.calls[0])
}
