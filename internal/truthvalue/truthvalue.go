// Package truthvalue implements the belief annotations attached to every atom.
//
// Values are immutable once built. Three representations exist: a simple
// (mean, count) pair, a count-based triple, and the indefinite interval form.
// Equality is only defined within one representation.
package truthvalue

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind identifies a truth value representation.
type Kind int

const (
	KindSimple Kind = iota + 1
	KindCount
	KindIndefinite
)

var ErrMalformed = errors.New("malformed truth value")

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindCount:
		return "count"
	case KindIndefinite:
		return "indefinite"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "simple":
		return KindSimple, nil
	case "count":
		return KindCount, nil
	case "indefinite":
		return KindIndefinite, nil
	}
	return 0, errors.Wrapf(ErrMalformed, "unknown kind %q", s)
}

// TruthValue is a degree-of-belief annotation.
type TruthValue interface {
	Kind() Kind
	Mean() float64
	Count() float64
	Confidence() float64
	String() string
	Equal(other TruthValue) bool
}

// Default is the truth value given to atoms created without one.
func Default() TruthValue {
	return NewSimple(0, 0)
}

// Merge keeps whichever value carries more confidence. Ties keep a.
func Merge(a, b TruthValue) TruthValue {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Confidence() > a.Confidence() {
		return b
	}
	return a
}

// Revise pools the evidence of two values into one simple value, weighting
// each mean by its count. Indefinite values have no pooled form and fall
// back to Merge.
func Revise(a, b TruthValue) TruthValue {
	if a == nil || b == nil || a.Kind() == KindIndefinite || b.Kind() == KindIndefinite {
		return Merge(a, b)
	}
	n := a.Count() + b.Count()
	if n <= 0 {
		return Merge(a, b)
	}
	return NewSimple((a.Mean()*a.Count()+b.Mean()*b.Count())/n, n)
}

// Encode renders tv with its kind prefix, e.g. "simple:[0.5,10]".
// A nil value encodes to the empty string.
func Encode(tv TruthValue) string {
	if tv == nil {
		return ""
	}
	return tv.Kind().String() + ":" + tv.String()
}

// Decode parses the output of Encode. The empty string decodes to Default.
func Decode(s string) (TruthValue, error) {
	if s == "" {
		return Default(), nil
	}
	prefix, body, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errors.Wrapf(ErrMalformed, "missing kind prefix in %q", s)
	}
	kind, err := ParseKind(prefix)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSimple:
		return ParseSimple(body)
	case KindCount:
		return ParseCount(body)
	default:
		return ParseIndefinite(body)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatTuple(fields ...float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatFloat(f))
	}
	b.WriteByte(']')
	return b.String()
}

// parseTuple reads "[a,b,...]" with exactly n fields.
func parseTuple(s string, n int) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, errors.Wrapf(ErrMalformed, "expected bracketed tuple, got %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != n {
		return nil, errors.Wrapf(ErrMalformed, "expected %d fields, got %d in %q", n, len(parts), s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseFloats(parts []string) ([]float64, error) {
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "field %d: %v", i, err)
		}
		out[i] = f
	}
	return out, nil
}
