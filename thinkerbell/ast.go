// Package thinkerbell compiles declarative rule scripts against the
// taxonomy and executes them: installing watches on bound inputs,
// tracking per-condition truth, and firing statements on rising edges
// (spec.md §4.3/§4.4).
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package thinkerbell

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ScriptDoc is the unchecked JSON AST a rule script parses into before
// compilation binds its selectors, ranges, and values against live
// taxonomy state (spec.md §4.3: "Parse into an unchecked AST... left
// symbolic").
type ScriptDoc struct {
	Rules []RuleDoc `json:"rules"`
}

type RuleDoc struct {
	Conditions []MatchDoc     `json:"conditions"`
	Execute    []StatementDoc `json:"execute"`
}

type MatchDoc struct {
	Selector SelectorDoc `json:"selector"`
	Range    RangeDoc    `json:"range"`
}

// StatementDoc's KindFilter is spec.md §3's "optional kind-filter": when
// set, only matched features whose send signature's Kind equals it are
// targeted, letting one selector span heterogeneous features safely.
type StatementDoc struct {
	Selector   SelectorDoc         `json:"selector"`
	Value      jsoniter.RawMessage `json:"value"`
	KindFilter *string             `json:"kind,omitempty"`
}

// SelectorDoc mirrors the wire shape spec.md §6 gives for selectors:
// "object with optional id (string), tags (array of strings), services
// (array of service-selectors), implements (string)" — generalized here
// to the feature-selector case thinkerbell needs, with Parent standing
// in for the single nested service-selector a feature-selector carries.
type SelectorDoc struct {
	ID         *string      `json:"id,omitempty"`
	Adapter    *string      `json:"adapter,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	Implements *string      `json:"implements,omitempty"`
	Parent     *SelectorDoc `json:"parent,omitempty"`
}

// RangeDoc is the wire form of a taxonomy.Range: Kind selects which
// constructor to call, Value feeds the single-bound variants
// (eq/leq/geq), Min/Max feed the two-bound variants (between_eq,
// out_of_strict).
type RangeDoc struct {
	Kind  string              `json:"kind"`
	Value jsoniter.RawMessage `json:"value,omitempty"`
	Min   jsoniter.RawMessage `json:"min,omitempty"`
	Max   jsoniter.RawMessage `json:"max,omitempty"`
}
