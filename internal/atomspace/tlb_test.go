package atomspace

import (
	"testing"

	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(name string) *Node {
	return &Node{typ: TypeConceptNode, name: name, tv: truthvalue.Default()}
}

func TestTLBBijectivity(t *testing.T) {
	tlb := NewTLB()
	atoms := []Atom{newNode("a"), newNode("b"), newNode("c")}

	var handles []Handle
	for _, a := range atoms {
		h := tlb.Allocate(a)
		assert.True(t, h.IsReal())
		handles = append(handles, h)

		got, err := tlb.Resolve(h)
		require.NoError(t, err)
		assert.Same(t, a, got)
		assert.Equal(t, h, a.Handle())
	}

	assert.Equal(t, RealHandleOffset, handles[0])
	assert.Equal(t, handles[0], tlb.Allocate(atoms[0]), "allocating a mapped atom keeps its handle")

	require.NoError(t, tlb.Release(handles[1]))
	_, err := tlb.Resolve(handles[1])
	assert.True(t, errors.Is(err, ErrInvalidHandle))

	err = tlb.Release(handles[1])
	assert.True(t, errors.Is(err, ErrInvalidHandle), "double release must fail")

	fresh := tlb.Allocate(newNode("d"))
	assert.Greater(t, fresh, handles[2], "released handles are never reused")
	assert.Equal(t, 3, tlb.Len())
}

func TestTLBReserve(t *testing.T) {
	tlb := NewTLB()
	a := newNode("a")

	require.NoError(t, tlb.Reserve(RealHandleOffset+50, a))
	assert.Equal(t, RealHandleOffset+50, a.Handle())
	assert.Equal(t, RealHandleOffset+51, tlb.Allocate(newNode("b")))

	err := tlb.Reserve(RealHandleOffset+50, newNode("c"))
	assert.True(t, errors.Is(err, ErrConcurrentAccess))

	err = tlb.Reserve(Handle(TypeConceptNode), newNode("marker"))
	assert.True(t, errors.Is(err, ErrInvalidHandle))

	require.NoError(t, tlb.Release(RealHandleOffset+50))
	err = tlb.Reserve(RealHandleOffset+50, newNode("again"))
	assert.True(t, errors.Is(err, ErrInvalidHandle))
}

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle(" 1042 ")
	require.NoError(t, err)
	assert.Equal(t, Handle(1042), h)

	_, err = ParseHandle("cat")
	assert.True(t, errors.Is(err, ErrInvalidHandle))
}

func TestTypeHierarchy(t *testing.T) {
	assert.True(t, IsA(TypeInheritanceLink, TypeLink))
	assert.True(t, IsA(TypeSetLink, TypeUnorderedLink))
	assert.False(t, IsA(TypeConceptNode, TypeLink))
	assert.True(t, TypeConceptNode.IsNode())
	assert.True(t, TypeNode.Abstract())
	assert.False(t, TypeListLink.Abstract())

	typ, ok := TypeByName("EvaluationLink")
	require.True(t, ok)
	assert.Equal(t, TypeEvaluationLink, typ)
	assert.Equal(t, "EvaluationLink", typ.String())

	_, ok = TypeByName("NoSuchLink")
	assert.False(t, ok)

	assert.ElementsMatch(t,
		[]Type{TypeUnorderedLink, TypeSetLink, TypeAndLink, TypeOrLink, TypeSimilarityLink},
		Subtypes(TypeUnorderedLink))
	assert.Greater(t, RealHandleOffset, Handle(NoType))
}
