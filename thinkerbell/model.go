package thinkerbell

import "github.com/vesper-home/hub/taxonomy"

// Script is a compiled rule script: a vector of rules, each with bound
// conditions and statements and runtime state attached (spec.md §3).
type Script struct {
	Rules []*Rule
}

// Rule is {conditions, execute} plus the conjunction's own armed state,
// used to detect the false→true rising edge spec.md §4.4 fires on.
type Rule struct {
	Conditions []*Match
	Execute    []*Statement

	// armed is true once every condition is met; execute only runs on
	// the false→true transition, never while already armed (spec.md §8:
	// "between consecutive firings of r there exists at least one
	// condition of r that transitioned false and then true").
	armed bool
}

// Match is one condition: a feature selector, a range, and the
// per-feature edge-trigger state that selector's matches carry. Touched
// only by the owning Executor's single mailbox goroutine — never shared.
type Match struct {
	Selector taxonomy.FeatureSelector
	Range    taxonomy.Range

	// featuresInRange tracks, per matched feature, whether its last
	// delivered value was inside Range — spec.md §4.4: "is-met ←
	// any(matching feature currently in-range)", since one selector can
	// resolve to more than one feature.
	featuresInRange map[taxonomy.FeatureID]bool
}

func newMatch(sel taxonomy.FeatureSelector, rng taxonomy.Range) *Match {
	return &Match{Selector: sel, Range: rng, featuresInRange: make(map[taxonomy.FeatureID]bool)}
}

func (m *Match) isMet() bool {
	for _, inRange := range m.featuresInRange {
		if inRange {
			return true
		}
	}
	return false
}

// Statement is one side-effecting action a rule fires: resolve Selector
// at fire-time, batch by adapter, send Value (spec.md §4.4).
type Statement struct {
	Selector   taxonomy.FeatureSelector
	Value      taxonomy.Value
	KindFilter *taxonomy.Kind
}
