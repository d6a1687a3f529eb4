package taxonomy

// Range is a value predicate used by watch subscriptions with an Exactly
// predicate, and by Thinkerbell's Match conditions. All variants answer
// "does v satisfy this range" with a plain bool — type mismatches are
// reported separately via Typed, never folded into the bool (spec.md §9:
// an untypeable value against a range is "silently dropped", which the
// watch engine implements by checking Typed before calling Contains).
type Range struct {
	kind rangeKind
	a, b Value
}

type rangeKind uint8

const (
	rangeEq rangeKind = iota
	rangeLeq
	rangeGeq
	rangeBetweenEq
	rangeOutOfStrict
)

// Kind reports the Value kind this range was built against, used by the
// rule compiler's strict range/watch-signature type-match check
// (SPEC_FULL §9 open-question resolution).
func (r Range) Kind() Kind { return r.a.kind }

func Eq(v Value) Range             { return Range{kind: rangeEq, a: v} }
func Leq(v Value) Range            { return Range{kind: rangeLeq, a: v} }
func Geq(v Value) Range            { return Range{kind: rangeGeq, a: v} }
func BetweenEq(min, max Value) Range { return Range{kind: rangeBetweenEq, a: min, b: max} }
func OutOfStrict(min, max Value) Range { return Range{kind: rangeOutOfStrict, a: min, b: max} }

// Typed reports whether v is of a kind this range can evaluate at all
// (i.e. comparable to the range's bound(s) via Value.Cmp).
func (r Range) Typed(v Value) bool {
	if r.kind == rangeEq {
		// Eq also covers kinds with only equality, not ordering (bool):
		// same-kind is enough to evaluate, regardless of what Cmp reports
		// for an unequal pair. A same-kind bool that fails Contains is
		// out-of-range, not untypeable.
		return v.kind == r.a.kind
	}
	_, ok := v.Cmp(r.a)
	return ok
}

// Contains evaluates the predicate. Callers must have already checked
// Typed; Contains on a mistyped value returns false.
func (r Range) Contains(v Value) bool {
	switch r.kind {
	case rangeEq:
		return v.Equal(r.a)
	case rangeLeq:
		cmp, ok := v.Cmp(r.a)
		return ok && cmp <= 0
	case rangeGeq:
		cmp, ok := v.Cmp(r.a)
		return ok && cmp >= 0
	case rangeBetweenEq:
		lo, ok1 := v.Cmp(r.a)
		hi, ok2 := v.Cmp(r.b)
		// max < min: accepts nothing (spec.md §8 boundary behavior)
		if minMax, ok := r.a.Cmp(r.b); ok && minMax > 0 {
			return false
		}
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case rangeOutOfStrict:
		lo, ok1 := v.Cmp(r.a)
		hi, ok2 := v.Cmp(r.b)
		return ok1 && ok2 && (lo < 0 || hi > 0)
	default:
		return false
	}
}
