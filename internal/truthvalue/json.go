package truthvalue

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Spec is the wire form used by the REST surface and atom files. Exactly one
// member must be set.
type Spec struct {
	Simple     *SimpleSpec     `json:"simple,omitempty" yaml:"simple,omitempty"`
	Count      *CountSpec      `json:"count,omitempty" yaml:"count,omitempty"`
	Indefinite *IndefiniteSpec `json:"indefinite,omitempty" yaml:"indefinite,omitempty"`
}

type SimpleSpec struct {
	Str   float64 `json:"str" yaml:"str"`
	Count float64 `json:"count" yaml:"count"`
}

type CountSpec struct {
	Str   float64 `json:"str" yaml:"str"`
	Count float64 `json:"count" yaml:"count"`
	Conf  float64 `json:"conf" yaml:"conf"`
}

type IndefiniteSpec struct {
	L    float64 `json:"l" yaml:"l"`
	U    float64 `json:"u" yaml:"u"`
	Conf float64 `json:"conf" yaml:"conf"`
}

// TruthValue validates the spec and builds the value it describes.
func (s Spec) TruthValue() (TruthValue, error) {
	set := 0
	for _, present := range []bool{s.Simple != nil, s.Count != nil, s.Indefinite != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, errors.Wrapf(ErrMalformed, "expected exactly one truth value kind, got %d", set)
	}

	switch {
	case s.Simple != nil:
		if err := checkUnit("str", s.Simple.Str); err != nil {
			return nil, err
		}
		if s.Simple.Count < 0 {
			return nil, errors.Wrap(ErrMalformed, "count must not be negative")
		}
		return NewSimple(s.Simple.Str, s.Simple.Count), nil
	case s.Count != nil:
		if err := checkUnit("str", s.Count.Str); err != nil {
			return nil, err
		}
		if err := checkUnit("conf", s.Count.Conf); err != nil {
			return nil, err
		}
		if s.Count.Count < 0 {
			return nil, errors.Wrap(ErrMalformed, "count must not be negative")
		}
		return NewCount(s.Count.Str, s.Count.Conf, s.Count.Count), nil
	default:
		in := s.Indefinite
		if err := checkUnit("l", in.L); err != nil {
			return nil, err
		}
		if err := checkUnit("u", in.U); err != nil {
			return nil, err
		}
		if in.L > in.U {
			return nil, errors.Wrapf(ErrMalformed, "interval lower bound %g above upper bound %g", in.L, in.U)
		}
		conf := in.Conf
		if conf == 0 {
			conf = DefaultConfidenceLevel
		}
		if err := checkUnit("conf", conf); err != nil {
			return nil, err
		}
		return NewIndefinite(in.L, in.U, conf), nil
	}
}

// SpecOf is the inverse of Spec.TruthValue. Indefinite slack and asymmetry
// are not representable on the wire and are dropped.
func SpecOf(tv TruthValue) Spec {
	switch v := tv.(type) {
	case Simple:
		return Spec{Simple: &SimpleSpec{Str: v.Mean(), Count: v.Count()}}
	case CountTV:
		return Spec{Count: &CountSpec{Str: v.Mean(), Count: v.Count(), Conf: v.Confidence()}}
	case Indefinite:
		return Spec{Indefinite: &IndefiniteSpec{L: v.L(), U: v.U(), Conf: v.ConfidenceLevel()}}
	default:
		d := Default()
		return Spec{Simple: &SimpleSpec{Str: d.Mean(), Count: d.Count()}}
	}
}

// FromJSON decodes a JSON truth value object.
func FromJSON(data []byte) (TruthValue, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decode json: %v", err)
	}
	return s.TruthValue()
}

func checkUnit(field string, v float64) error {
	if v < 0 || v > 1 {
		return errors.Wrapf(ErrMalformed, "%s must be within [0,1], got %g", field, v)
	}
	return nil
}
