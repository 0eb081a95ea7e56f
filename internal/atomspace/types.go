package atomspace

import "strconv"

// Type tags an atom. Types form a single-inheritance hierarchy rooted at
// TypeAtom.
type Type uint16

const (
	TypeAtom Type = iota + 1
	TypeNode
	TypeLink
	TypeConceptNode
	TypePredicateNode
	TypeVariableNode
	TypeNumberNode
	TypeOrderedLink
	TypeUnorderedLink
	TypeListLink
	TypeSetLink
	TypeAndLink
	TypeOrLink
	TypeNotLink
	TypeInheritanceLink
	TypeSimilarityLink
	TypeImplicationLink
	TypeEvaluationLink

	// NoType marks the end of the built-in types. New types go above this
	// line, which moves RealHandleOffset up with them.
	NoType
)

type typeInfo struct {
	name     string
	parent   Type
	abstract bool
}

var types = map[Type]typeInfo{
	TypeAtom:            {"Atom", 0, true},
	TypeNode:            {"Node", TypeAtom, true},
	TypeLink:            {"Link", TypeAtom, true},
	TypeConceptNode:     {"ConceptNode", TypeNode, false},
	TypePredicateNode:   {"PredicateNode", TypeNode, false},
	TypeVariableNode:    {"VariableNode", TypeNode, false},
	TypeNumberNode:      {"NumberNode", TypeNode, false},
	TypeOrderedLink:     {"OrderedLink", TypeLink, true},
	TypeUnorderedLink:   {"UnorderedLink", TypeLink, true},
	TypeListLink:        {"ListLink", TypeOrderedLink, false},
	TypeSetLink:         {"SetLink", TypeUnorderedLink, false},
	TypeAndLink:         {"AndLink", TypeUnorderedLink, false},
	TypeOrLink:          {"OrLink", TypeUnorderedLink, false},
	TypeNotLink:         {"NotLink", TypeOrderedLink, false},
	TypeInheritanceLink: {"InheritanceLink", TypeOrderedLink, false},
	TypeSimilarityLink:  {"SimilarityLink", TypeUnorderedLink, false},
	TypeImplicationLink: {"ImplicationLink", TypeOrderedLink, false},
	TypeEvaluationLink:  {"EvaluationLink", TypeOrderedLink, false},
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(types))
	for t, info := range types {
		m[info.name] = t
	}
	return m
}()

func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a registered type.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

func (t Type) IsNode() bool { return IsA(t, TypeNode) }
func (t Type) IsLink() bool { return IsA(t, TypeLink) }

// Abstract types classify others and cannot be instantiated.
func (t Type) Abstract() bool { return types[t].abstract }

// TypeByName resolves a type name such as "ConceptNode".
func TypeByName(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// IsA reports whether t equals parent or descends from it.
func IsA(t, parent Type) bool {
	for t != 0 {
		if t == parent {
			return true
		}
		t = types[t].parent
	}
	return false
}

// Subtypes returns t and every type descending from it, in type order.
func Subtypes(t Type) []Type {
	var out []Type
	for c := TypeAtom; c < NoType; c++ {
		if IsA(c, t) {
			out = append(out, c)
		}
	}
	return out
}
