package truthvalue

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

const (
	// IndefiniteK is the prior strength of the interval-to-count conversion.
	IndefiniteK = 2.0
	// DefaultConfidenceLevel is the credibility level given to new intervals.
	DefaultConfidenceLevel = 0.9

	epsilon = 1e-6
)

// Indefinite is a credible interval [L, U] held at a confidence level, with
// optional symmetric slack diff around both bounds.
type Indefinite struct {
	mean            float64
	l, u            float64
	confidenceLevel float64
	diff            float64
	symmetric       bool
}

// NewIndefinite builds a symmetric interval with mean at its midpoint.
func NewIndefinite(l, u, confidenceLevel float64) Indefinite {
	return Indefinite{
		mean:            (l + u) / 2,
		l:               l,
		u:               u,
		confidenceLevel: confidenceLevel,
		symmetric:       true,
	}
}

func (v Indefinite) Kind() Kind { return KindIndefinite }
func (v Indefinite) Mean() float64 { return v.mean }
func (v Indefinite) L() float64 { return v.l }
func (v Indefinite) U() float64 { return v.u }
func (v Indefinite) ConfidenceLevel() float64 { return v.confidenceLevel }
func (v Indefinite) Diff() float64 { return v.diff }
func (v Indefinite) Symmetric() bool { return v.symmetric }
func (v Indefinite) UExtended() float64 { return v.u + v.diff }
func (v Indefinite) LExtended() float64 { return v.l - v.diff }

func (v Indefinite) WithDiff(diff float64) Indefinite {
	v.diff = diff
	return v
}

func (v Indefinite) WithMean(mean float64) Indefinite {
	v.mean = mean
	return v
}

func (v Indefinite) WithSymmetric(symmetric bool) Indefinite {
	v.symmetric = symmetric
	return v
}

// Count derives evidence from the interval width. The width is clamped to
// epsilon below, so count never exceeds IndefiniteK/epsilon, and to zero
// evidence above a width of 1.
func (v Indefinite) Count() float64 {
	w := v.u - v.l
	if w < epsilon {
		w = epsilon
	}
	if w >= 1 {
		return 0
	}
	return IndefiniteK * (1 - w) / w
}

func (v Indefinite) Confidence() float64 {
	n := v.Count()
	return n / (n + IndefiniteK)
}

// String renders [mean,L,U,confidenceLevel,diff,symmetric].
func (v Indefinite) String() string {
	sym := 0.0
	if v.symmetric {
		sym = 1
	}
	return formatTuple(v.mean, v.l, v.u, v.confidenceLevel, v.diff, sym)
}

func (v Indefinite) Equal(other TruthValue) bool {
	o, ok := other.(Indefinite)
	return ok && o == v
}

// ParseIndefinite reads the six-field form written by String.
func ParseIndefinite(s string) (Indefinite, error) {
	parts, err := parseTuple(s, 6)
	if err != nil {
		return Indefinite{}, err
	}
	f, err := parseFloats(parts[:5])
	if err != nil {
		return Indefinite{}, errors.Wrap(err, "indefinite")
	}
	sym, err := strconv.ParseBool(parts[5])
	if err != nil {
		return Indefinite{}, errors.Wrapf(ErrMalformed, "indefinite symmetric flag %q", parts[5])
	}
	return Indefinite{
		mean:            f[0],
		l:               f[1],
		u:               f[2],
		confidenceLevel: f[3],
		diff:            f[4],
		symmetric:       sym,
	}, nil
}
