// Package atomfile reads atoms from YAML documents:
//
//	atoms:
//	  - type: ConceptNode
//	    name: cat
//	    tv: {simple: {str: 0.1, count: 20}}
//	  - id: cat-is-mammal
//	    type: InheritanceLink
//	    outgoing: [cat, mammal]
//
// A node's id defaults to its name. Outgoing entries name earlier ids or
// handles of atoms already in the table.
package atomfile

import (
	"bytes"
	"io"
	"os"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid atom file")

type File struct {
	Atoms []Entry `yaml:"atoms"`
}

type Entry struct {
	ID       string           `yaml:"id,omitempty"`
	Type     string           `yaml:"type"`
	Name     string           `yaml:"name,omitempty"`
	Outgoing []string         `yaml:"outgoing,omitempty"`
	TV       *truthvalue.Spec `yaml:"tv,omitempty"`
}

// Parse decodes one document. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, errors.Wrapf(ErrInvalid, "decode: %v", err)
	}
	return &f, nil
}

func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read atom file %s", path)
	}
	return Parse(bytes.NewReader(data))
}

type step struct {
	id       string
	typ      atomspace.Type
	name     string
	outgoing []string
	tv       truthvalue.TruthValue
}

// Apply adds every entry to table and returns how many atoms were new.
// Entries are validated first, so a malformed file adds nothing.
func (f *File) Apply(table *atomspace.Table) (int, error) {
	steps, err := f.plan(table)
	if err != nil {
		return 0, err
	}

	ids := make(map[string]atomspace.Handle, len(steps))
	added := 0
	for _, s := range steps {
		var (
			h      atomspace.Handle
			merged bool
			err    error
		)
		if s.typ.IsNode() {
			h, merged, err = table.AddNode(s.typ, s.name, s.tv)
		} else {
			out := make([]atomspace.Handle, len(s.outgoing))
			for i, ref := range s.outgoing {
				out[i] = resolve(ids, ref)
			}
			h, merged, err = table.AddLink(s.typ, out, s.tv)
		}
		if err != nil {
			return added, errors.Wrapf(err, "add %s %q", s.typ, s.id)
		}
		if s.id != "" {
			ids[s.id] = h
		}
		if !merged {
			added++
		}
	}
	return added, nil
}

func (f *File) plan(table *atomspace.Table) ([]step, error) {
	known := make(map[string]bool, len(f.Atoms))
	steps := make([]step, 0, len(f.Atoms))
	for i, e := range f.Atoms {
		typ, ok := atomspace.TypeByName(e.Type)
		if !ok || typ.Abstract() {
			return nil, errors.Wrapf(ErrInvalid, "entry %d: unknown or abstract type %q", i, e.Type)
		}
		s := step{id: e.ID, typ: typ, name: e.Name, outgoing: e.Outgoing}
		switch {
		case typ.IsNode():
			if len(e.Outgoing) > 0 {
				return nil, errors.Wrapf(ErrInvalid, "entry %d: node %q has an outgoing set", i, e.Name)
			}
			if s.id == "" {
				s.id = e.Name
			}
		default:
			if e.Name != "" {
				return nil, errors.Wrapf(ErrInvalid, "entry %d: link has a name", i)
			}
			for _, ref := range e.Outgoing {
				if known[ref] {
					continue
				}
				h, err := atomspace.ParseHandle(ref)
				if err != nil || !table.IsValid(h) {
					return nil, errors.Wrapf(ErrInvalid, "entry %d: unknown target %q", i, ref)
				}
			}
		}
		if e.TV != nil {
			tv, err := e.TV.TruthValue()
			if err != nil {
				return nil, errors.Wrapf(err, "entry %d", i)
			}
			s.tv = tv
		}
		if s.id != "" {
			known[s.id] = true
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func resolve(ids map[string]atomspace.Handle, ref string) atomspace.Handle {
	if h, ok := ids[ref]; ok {
		return h
	}
	h, _ := atomspace.ParseHandle(ref)
	return h
}
