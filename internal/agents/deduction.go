// Package agents holds the mind agents and input handlers the server runs.
package agents

import (
	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/inference"
	"github.com/Harshitk-cp/cogserver/internal/inference/rules"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"go.uber.org/zap"
)

const DefaultMaxChainsPerRun = 256

type chain struct {
	ab, bc atomspace.Handle
}

// DeductionResult counts one run. Derived conclusions added a new link;
// Reinforced ones merged into an A->C link that already existed.
type DeductionResult struct {
	Chains     int `json:"chains"`
	Derived    int `json:"derived"`
	Reinforced int `json:"reinforced"`
	Pruned     int `json:"pruned"`
}

// DeductionAgent closes inheritance chains A->B, B->C into A->C. Each chain
// keeps its own inference tree, so a chain is only recomputed when its
// conclusion has been forgotten.
type DeductionAgent struct {
	linkType  atomspace.Type
	maxChains int
	logger    *zap.Logger

	rule  *rules.Deduction
	table *atomspace.Table
	trees map[chain]*inference.RuleApp
	last  DeductionResult
}

func NewDeductionAgent(logger *zap.Logger) *DeductionAgent {
	return &DeductionAgent{
		linkType:  atomspace.TypeInheritanceLink,
		maxChains: DefaultMaxChainsPerRun,
		logger:    logger,
		trees:     make(map[chain]*inference.RuleApp),
	}
}

// SetMaxChains bounds how many new trees one run may build.
func (a *DeductionAgent) SetMaxChains(n int) {
	a.maxChains = n
}

func (a *DeductionAgent) Name() string { return "deduction" }

// LastResult reports what the most recent run did.
func (a *DeductionAgent) LastResult() DeductionResult { return a.last }

func (a *DeductionAgent) Report() any { return a.last }

func (a *DeductionAgent) Run(srv *server.Server) {
	a.last = a.RunOn(srv.AtomSpace())
	if a.last.Derived > 0 || a.last.Reinforced > 0 || a.last.Pruned > 0 {
		a.logger.Info("deduction run complete",
			zap.Int64("cycle", srv.CycleCount()),
			zap.Int("chains", a.last.Chains),
			zap.Int("derived", a.last.Derived),
			zap.Int("reinforced", a.last.Reinforced),
			zap.Int("pruned", a.last.Pruned))
	}
}

// RunOn evaluates every chain in table, building at most maxChains new trees.
func (a *DeductionAgent) RunOn(table *atomspace.Table) DeductionResult {
	if a.table != table {
		a.table = table
		a.rule = rules.NewDeduction(table, a.linkType)
		a.trees = make(map[chain]*inference.RuleApp)
	}

	var res DeductionResult
	for c := range a.trees {
		if !table.IsValid(c.ab) || !table.IsValid(c.bc) {
			delete(a.trees, c)
			res.Pruned++
		}
	}

	built := 0
	for _, c := range a.chains(table) {
		res.Chains++
		tree, ok := a.trees[c]
		if !ok {
			if built >= a.maxChains {
				continue
			}
			built++
		}
		concluded, added, err := a.evaluate(table, c, tree)
		if err != nil {
			a.logger.Warn("deduction failed",
				zap.Uint64("ab", uint64(c.ab)),
				zap.Uint64("bc", uint64(c.bc)),
				zap.Error(err))
			continue
		}
		switch {
		case added:
			res.Derived++
		case concluded:
			res.Reinforced++
		}
	}
	return res
}

// evaluate computes c through its tree, replacing the tree when it is new or
// its cached conclusion is gone. It reports whether a conclusion was made and
// whether that conclusion added a link to the table.
func (a *DeductionAgent) evaluate(table *atomspace.Table, c chain, tree *inference.RuleApp) (concluded, added bool, err error) {
	if tree != nil {
		h, err := tree.Compute()
		if err != nil {
			return false, false, err
		}
		if h == atomspace.UndefinedHandle || table.IsValid(h) {
			return false, false, nil
		}
	}

	tree = inference.NewRuleApp(a.rule)
	if err := tree.Bind(0, inference.Literal(c.ab)); err != nil {
		return false, false, err
	}
	if err := tree.Bind(1, inference.Literal(c.bc)); err != nil {
		return false, false, err
	}
	a.trees[c] = tree

	before := table.Size()
	h, err := tree.Compute()
	if err != nil {
		return false, false, err
	}
	return h != atomspace.UndefinedHandle, table.Size() > before, nil
}

// chains lists every A->B, B->C pair with A != C, in handle order.
func (a *DeductionAgent) chains(table *atomspace.Table) []chain {
	var out []chain
	for _, ab := range table.HandlesByType(a.linkType, false) {
		abOut, err := table.Outgoing(ab)
		if err != nil || len(abOut) != 2 {
			continue
		}
		incoming, err := table.Incoming(abOut[1])
		if err != nil {
			continue
		}
		for _, bc := range incoming {
			if bc == ab {
				continue
			}
			l, err := table.Get(bc)
			if err != nil || l.Type() != a.linkType {
				continue
			}
			bcOut, _ := table.Outgoing(bc)
			if len(bcOut) == 2 && bcOut[0] == abOut[1] && bcOut[1] != abOut[0] {
				out = append(out, chain{ab: ab, bc: bc})
			}
		}
	}
	return out
}
