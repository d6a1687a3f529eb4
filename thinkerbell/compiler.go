package thinkerbell

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/vesper-home/hub/cmn"
	"github.com/vesper-home/hub/taxonomy"
)

// Compile parses a JSON rule script and binds it against the taxonomy's
// currently-known adapter capabilities (spec.md §4.3):
//
//  1. every condition's selector must resolve to at least one feature,
//     and the watch signature of every feature it resolves to must
//     accept the declared range's value kind;
//  2. every statement's selector must resolve to at least one feature
//     (after the optional kind filter), and the send signature of every
//     such feature must accept the declared value's kind.
//
// Range/watch-signature and value/send-signature compatibility are a
// strict kind match (SPEC_FULL §9 resolves the spec's open question this
// way): a mismatch is a TypeError, not a silent skip.
func Compile(source []byte, fe taxonomy.Frontend) (*Script, error) {
	var doc ScriptDoc
	if err := jsonAPI.Unmarshal(source, &doc); err != nil {
		return nil, cmn.NewParseError("rule script: %v", err)
	}
	script := &Script{}
	for i, ruleDoc := range doc.Rules {
		rule, err := compileRule(ruleDoc, fe)
		if err != nil {
			return nil, cmn.NewGenericError("rule "+strconv.Itoa(i), err)
		}
		script.Rules = append(script.Rules, rule)
	}
	return script, nil
}

func compileRule(doc RuleDoc, fe taxonomy.Frontend) (*Rule, error) {
	if len(doc.Conditions) == 0 {
		return nil, cmn.NewAllocationLengthError("rule has no conditions")
	}
	rule := &Rule{}
	for _, mdoc := range doc.Conditions {
		m, err := compileMatch(mdoc, fe)
		if err != nil {
			return nil, err
		}
		rule.Conditions = append(rule.Conditions, m)
	}
	for _, sdoc := range doc.Execute {
		s, err := compileStatement(sdoc, fe)
		if err != nil {
			return nil, err
		}
		rule.Execute = append(rule.Execute, s)
	}
	return rule, nil
}

func compileMatch(doc MatchDoc, fe taxonomy.Frontend) (*Match, error) {
	sel := doc.Selector.compile()
	rng, err := doc.Range.compile()
	if err != nil {
		return nil, err
	}
	features := fe.GetFeatures(sel)
	if len(features) == 0 {
		return nil, cmn.NewNoSuchFeatureError("condition selector matched no feature")
	}
	for _, f := range features {
		if !f.Watch.Accepts(rng.Kind()) {
			return nil, cmn.NewTypeError("feature %s watch signature does not accept range kind %v", f.ID, rng.Kind())
		}
	}
	return newMatch(sel, rng), nil
}

func compileStatement(doc StatementDoc, fe taxonomy.Frontend) (*Statement, error) {
	sel := doc.Selector.compile()
	val, err := taxonomy.DefaultFormat.FromJSON(doc.Value)
	if err != nil {
		return nil, err
	}
	features := fe.GetFeatures(sel)
	if len(features) == 0 {
		return nil, cmn.NewNoSuchFeatureError("statement selector matched no feature")
	}
	var kindFilter *taxonomy.Kind
	if doc.KindFilter != nil {
		k := kindFromString(*doc.KindFilter)
		kindFilter = &k
	}
	matchedAny := false
	for _, f := range features {
		if kindFilter != nil && f.Send.Kind != *kindFilter {
			continue
		}
		matchedAny = true
		if !f.Send.Accepts(val.Kind()) {
			return nil, cmn.NewTypeError("feature %s send signature does not accept value kind %v", f.ID, val.Kind())
		}
	}
	if !matchedAny {
		return nil, cmn.NewNoSuchFeatureError("statement selector matched no feature under the given kind filter")
	}
	return &Statement{Selector: sel, Value: val, KindFilter: kindFilter}, nil
}

func (d SelectorDoc) compile() taxonomy.FeatureSelector {
	var sel taxonomy.FeatureSelector
	if d.ID != nil {
		sel.ID = taxonomy.ExactlyOf(taxonomy.NewFeatureID(*d.ID))
	}
	if d.Adapter != nil {
		sel.Adapter = taxonomy.ExactlyOf(taxonomy.NewAdapterID(*d.Adapter))
	}
	if d.Implements != nil {
		sel.Implements = taxonomy.ExactlyOf(taxonomy.NewImplementID(*d.Implements))
	}
	if len(d.Tags) > 0 {
		sel.Tags = make(map[taxonomy.TagID]struct{}, len(d.Tags))
		for _, t := range d.Tags {
			sel.Tags[taxonomy.NewTagID(t)] = struct{}{}
		}
	}
	if d.Parent != nil {
		parent := d.Parent.compileService()
		sel.Parent = &parent
	}
	return sel
}

func (d SelectorDoc) compileService() taxonomy.ServiceSelector {
	var sel taxonomy.ServiceSelector
	if d.ID != nil {
		sel.ID = taxonomy.ExactlyOf(taxonomy.NewServiceID(*d.ID))
	}
	if d.Adapter != nil {
		sel.Adapter = taxonomy.ExactlyOf(taxonomy.NewAdapterID(*d.Adapter))
	}
	if len(d.Tags) > 0 {
		sel.Tags = make(map[taxonomy.TagID]struct{}, len(d.Tags))
		for _, t := range d.Tags {
			sel.Tags[taxonomy.NewTagID(t)] = struct{}{}
		}
	}
	return sel
}

func (d RangeDoc) compile() (taxonomy.Range, error) {
	switch d.Kind {
	case "eq":
		v, err := decodeValue(d.Value)
		if err != nil {
			return taxonomy.Range{}, err
		}
		return taxonomy.Eq(v), nil
	case "leq":
		v, err := decodeValue(d.Value)
		if err != nil {
			return taxonomy.Range{}, err
		}
		return taxonomy.Leq(v), nil
	case "geq":
		v, err := decodeValue(d.Value)
		if err != nil {
			return taxonomy.Range{}, err
		}
		return taxonomy.Geq(v), nil
	case "between_eq":
		min, max, err := decodeBounds(d.Min, d.Max)
		if err != nil {
			return taxonomy.Range{}, err
		}
		return taxonomy.BetweenEq(min, max), nil
	case "out_of_strict":
		min, max, err := decodeBounds(d.Min, d.Max)
		if err != nil {
			return taxonomy.Range{}, err
		}
		return taxonomy.OutOfStrict(min, max), nil
	default:
		return taxonomy.Range{}, cmn.NewParseError("unknown range kind %q", d.Kind)
	}
}

func decodeValue(raw jsoniter.RawMessage) (taxonomy.Value, error) {
	if len(raw) == 0 {
		return taxonomy.Value{}, cmn.NewParseError("missing range value")
	}
	return taxonomy.DefaultFormat.FromJSON(raw)
}

func decodeBounds(minRaw, maxRaw jsoniter.RawMessage) (min, max taxonomy.Value, err error) {
	if min, err = decodeValue(minRaw); err != nil {
		return
	}
	max, err = decodeValue(maxRaw)
	return
}

func kindFromString(s string) taxonomy.Kind {
	for _, k := range []taxonomy.Kind{
		taxonomy.KindBool, taxonomy.KindNumber, taxonomy.KindString,
		taxonomy.KindDuration, taxonomy.KindTimeOfDay, taxonomy.KindColor,
		taxonomy.KindJSON, taxonomy.KindBinary,
	} {
		if k.String() == s {
			return k
		}
	}
	return taxonomy.KindInvalid
}
