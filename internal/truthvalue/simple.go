package truthvalue

import "github.com/cockroachdb/errors"

// SimpleK is the prior strength used to turn a simple count into confidence.
const SimpleK = 800.0

// Simple is a (mean, count) pair.
type Simple struct {
	mean  float64
	count float64
}

func NewSimple(mean, count float64) Simple {
	return Simple{mean: mean, count: count}
}

// NewSimpleFromConfidence inverts Confidence. A confidence of 1 or more is
// clamped just below 1 so the resulting count stays finite.
func NewSimpleFromConfidence(mean, confidence float64) Simple {
	if confidence <= 0 {
		return Simple{mean: mean}
	}
	if confidence >= 1 {
		confidence = 1 - epsilon
	}
	return Simple{mean: mean, count: SimpleK * confidence / (1 - confidence)}
}

func (s Simple) Kind() Kind { return KindSimple }
func (s Simple) Mean() float64 { return s.mean }
func (s Simple) Count() float64 { return s.count }
func (s Simple) String() string { return formatTuple(s.mean, s.count) }

func (s Simple) Confidence() float64 {
	if s.count <= 0 {
		return 0
	}
	return s.count / (s.count + SimpleK)
}

func (s Simple) Equal(other TruthValue) bool {
	o, ok := other.(Simple)
	return ok && o.mean == s.mean && o.count == s.count
}

// ParseSimple reads the "[mean,count]" form.
func ParseSimple(s string) (Simple, error) {
	parts, err := parseTuple(s, 2)
	if err != nil {
		return Simple{}, err
	}
	f, err := parseFloats(parts)
	if err != nil {
		return Simple{}, errors.Wrap(err, "simple")
	}
	return NewSimple(f[0], f[1]), nil
}

// CountTV carries an explicit confidence next to its evidence count.
type CountTV struct {
	mean       float64
	confidence float64
	count      float64
}

func NewCount(mean, confidence, count float64) CountTV {
	return CountTV{mean: mean, confidence: confidence, count: count}
}

func (c CountTV) Kind() Kind { return KindCount }
func (c CountTV) Mean() float64 { return c.mean }
func (c CountTV) Count() float64 { return c.count }
func (c CountTV) Confidence() float64 { return c.confidence }
func (c CountTV) String() string { return formatTuple(c.mean, c.confidence, c.count) }

func (c CountTV) Equal(other TruthValue) bool {
	o, ok := other.(CountTV)
	return ok && o.mean == c.mean && o.confidence == c.confidence && o.count == c.count
}

// ParseCount reads the "[mean,confidence,count]" form.
func ParseCount(s string) (CountTV, error) {
	parts, err := parseTuple(s, 3)
	if err != nil {
		return CountTV{}, err
	}
	f, err := parseFloats(parts)
	if err != nil {
		return CountTV{}, errors.Wrap(err, "count")
	}
	return NewCount(f[0], f[1], f[2]), nil
}
