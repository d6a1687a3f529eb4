package taxonomy

import (
	"time"

	"github.com/vesper-home/hub/cmn"
)

// Kind discriminates the concrete payload carried by a Value. Taxonomy
// values are a closed set deliberately — spec.md calls out that equality
// and ordering are partial functions, which only holds for a known,
// finite set of representations.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindNumber
	KindString
	KindDuration
	KindTimeOfDay
	KindColor
	KindJSON
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDuration:
		return "duration"
	case KindTimeOfDay:
		return "time_of_day"
	case KindColor:
		return "color"
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	default:
		return "invalid"
	}
}

// Color is an RGB triple in [0,255].
type Color struct{ R, G, B uint8 }

// TimeOfDay is the time elapsed since local midnight; spec.md's InvalidValue
// example ("time-of-day > 24h") is enforced by NewTimeOfDay.
type TimeOfDay time.Duration

const maxTimeOfDay = 24 * time.Hour

func NewTimeOfDay(d time.Duration) (TimeOfDay, error) {
	if d < 0 || d >= maxTimeOfDay {
		return 0, cmn.NewInvalidValueError("time of day %s out of [0,24h)", d)
	}
	return TimeOfDay(d), nil
}

// Value is a dynamically-typed, type-erased container: a tagged union
// implemented as a Kind discriminant plus one populated field, following
// the design note in spec.md §9 ("type-erased handle with downcasts").
type Value struct {
	kind     Kind
	boolV    bool
	numberV  float64
	stringV  string
	durV     time.Duration
	todV     TimeOfDay
	colorV   Color
	jsonV    []byte // raw JSON, kind == KindJSON
	binaryV  []byte // raw bytes, kind == KindBinary
}

func (v Value) Kind() Kind { return v.kind }

func BoolValue(b bool) Value             { return Value{kind: KindBool, boolV: b} }
func NumberValue(n float64) Value        { return Value{kind: KindNumber, numberV: n} }
func StringValue(s string) Value         { return Value{kind: KindString, stringV: s} }
func DurationValue(d time.Duration) Value { return Value{kind: KindDuration, durV: d} }
func TimeOfDayValue(t TimeOfDay) Value    { return Value{kind: KindTimeOfDay, todV: t} }
func ColorValue(c Color) Value            { return Value{kind: KindColor, colorV: c} }
func JSONValue(raw []byte) Value          { return Value{kind: KindJSON, jsonV: raw} }
func BinaryValue(b []byte) Value          { return Value{kind: KindBinary, binaryV: b} }

func (v Value) AsBool() (bool, bool)             { return v.boolV, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool)        { return v.numberV, v.kind == KindNumber }
func (v Value) AsString() (string, bool)         { return v.stringV, v.kind == KindString }
func (v Value) AsDuration() (time.Duration, bool) { return v.durV, v.kind == KindDuration }
func (v Value) AsTimeOfDay() (TimeOfDay, bool)    { return v.todV, v.kind == KindTimeOfDay }
func (v Value) AsColor() (Color, bool)           { return v.colorV, v.kind == KindColor }
func (v Value) AsJSON() ([]byte, bool)           { return v.jsonV, v.kind == KindJSON }
func (v Value) AsBinary() ([]byte, bool)         { return v.binaryV, v.kind == KindBinary }

// Cmp compares two same-kind values. ok is false when comparison is
// undefined (different kinds, or a kind with no total order such as
// KindJSON/KindBinary/KindColor) — spec.md requires undefined comparisons
// to report "no decision" rather than guess, so callers (Range) must
// treat !ok as "not in range".
func (v Value) Cmp(other Value) (cmp int, ok bool) {
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		return cmpFloat(v.numberV, other.numberV), true
	case KindDuration:
		return cmpFloat(float64(v.durV), float64(other.durV)), true
	case KindTimeOfDay:
		return cmpFloat(float64(v.todV), float64(other.todV)), true
	case KindString:
		switch {
		case v.stringV < other.stringV:
			return -1, true
		case v.stringV > other.stringV:
			return 1, true
		default:
			return 0, true
		}
	case KindBool:
		if v.boolV == other.boolV {
			return 0, true
		}
		return 0, false // bool has no order, only equality
	default:
		return 0, false
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindBool {
		return v.boolV == other.boolV
	}
	if v.kind == KindColor {
		return v.colorV == other.colorV
	}
	if v.kind == KindJSON || v.kind == KindBinary {
		return false // no defined equality for opaque payloads
	}
	cmp, ok := v.Cmp(other)
	return ok && cmp == 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
