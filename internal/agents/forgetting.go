package agents

import (
	"math"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"go.uber.org/zap"
)

const (
	DefaultEvidenceDecay       = 0.05
	DefaultForgettingThreshold = 0.01

	minCountChange = 1e-3
)

type ForgettingResult struct {
	Decayed   int `json:"decayed"`
	Forgotten int `json:"forgotten"`
}

// ForgettingAgent lets evidence fade. Every run scales the count of simple
// and count truth values by 1-decay, then removes links whose confidence
// fell below the threshold while no other link points at them. Nodes and
// indefinite truth values are never touched.
type ForgettingAgent struct {
	decay     float64
	threshold float64
	logger    *zap.Logger
	last      ForgettingResult
}

func NewForgettingAgent(threshold float64, logger *zap.Logger) *ForgettingAgent {
	return &ForgettingAgent{
		decay:     DefaultEvidenceDecay,
		threshold: threshold,
		logger:    logger,
	}
}

func (a *ForgettingAgent) SetDecay(d float64) {
	a.decay = math.Max(0, math.Min(1, d))
}

func (a *ForgettingAgent) Name() string { return "forgetting" }

func (a *ForgettingAgent) LastResult() ForgettingResult { return a.last }

func (a *ForgettingAgent) Report() any { return a.last }

func (a *ForgettingAgent) Run(srv *server.Server) {
	a.last = a.RunOn(srv.AtomSpace())
	if a.last.Decayed > 0 || a.last.Forgotten > 0 {
		a.logger.Info("forgetting run complete",
			zap.Int64("cycle", srv.CycleCount()),
			zap.Int("decayed", a.last.Decayed),
			zap.Int("forgotten", a.last.Forgotten))
	}
}

func (a *ForgettingAgent) RunOn(table *atomspace.Table) ForgettingResult {
	var res ForgettingResult
	factor := 1 - a.decay

	for _, h := range table.HandlesByType(atomspace.TypeAtom, true) {
		atom, err := table.Get(h)
		if err != nil {
			continue
		}
		decayed, ok := decayTruthValue(atom.TruthValue(), factor)
		if !ok {
			continue
		}
		if err := table.SetTruthValue(h, decayed); err != nil {
			a.logger.Warn("failed to decay truth value", zap.Uint64("handle", uint64(h)), zap.Error(err))
			continue
		}
		res.Decayed++
	}

	// Newest first: a link points at older atoms, so removing it can free
	// its targets within the same run.
	links := table.HandlesByType(atomspace.TypeLink, true)
	for i := len(links) - 1; i >= 0; i-- {
		h := links[i]
		atom, err := table.Get(h)
		if err != nil || !a.weak(atom.TruthValue()) {
			continue
		}
		if in, err := table.Incoming(h); err != nil || len(in) > 0 {
			continue
		}
		if err := table.Remove(h, false); err != nil {
			a.logger.Warn("failed to forget link", zap.Uint64("handle", uint64(h)), zap.Error(err))
			continue
		}
		res.Forgotten++
	}
	return res
}

// weak reports decayed evidence below the threshold. Links that never had
// evidence are structure, not belief, and are kept.
func (a *ForgettingAgent) weak(tv truthvalue.TruthValue) bool {
	switch tv.(type) {
	case truthvalue.Simple, truthvalue.CountTV:
		c := tv.Confidence()
		return c > 0 && c < a.threshold
	default:
		return false
	}
}

// decayTruthValue scales the evidence behind tv. ok is false when there is
// nothing left to decay or the representation carries no count.
func decayTruthValue(tv truthvalue.TruthValue, factor float64) (truthvalue.TruthValue, bool) {
	switch v := tv.(type) {
	case truthvalue.Simple:
		if v.Count() < minCountChange {
			return nil, false
		}
		return truthvalue.NewSimple(v.Mean(), v.Count()*factor), true
	case truthvalue.CountTV:
		if v.Count() < minCountChange {
			return nil, false
		}
		return truthvalue.NewCount(v.Mean(), v.Confidence()*factor, v.Count()*factor), true
	default:
		return nil, false
	}
}
