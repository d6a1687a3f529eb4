package taxonomy

import (
	"bytes"
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v3"
	"github.com/tinylib/msgp/msgp"

	"github.com/vesper-home/hub/cmn"
)

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Format knows how to turn a Value into wire bytes and back, the way
// spec.md §2 describes: "a dynamically-typed value container with
// pluggable Formats that serialize to/parse from JSON (plus an
// out-of-band binary side channel)".
type Format interface {
	Name() string
	ToJSON(v Value) ([]byte, error)
	FromJSON(raw []byte) (Value, error)
	ToBinary(v Value) ([]byte, error)
	FromBinary(raw []byte) (Value, error)
}

// jsonEnvelope is the wire shape for the JSON Format: a discriminant plus
// one populated field, mirroring Value's internal tagged union.
type jsonEnvelope struct {
	Kind     string  `json:"kind"`
	Bool     bool    `json:"bool,omitempty"`
	Number   float64 `json:"number,omitempty"`
	String   string  `json:"string,omitempty"`
	DurationMS int64 `json:"duration_ms,omitempty"`
	TODMS    int64   `json:"time_of_day_ms,omitempty"`
	Color    *Color  `json:"color,omitempty"`
	JSON     jsoniter.RawMessage `json:"json,omitempty"`
	BinaryB64 string `json:"binary_b64,omitempty"`
}

type defaultFormat struct{}

// DefaultFormat is the taxonomy's stock Format: jsoniter for JSON egress
// and an msgp-framed, lz4-compressed-above-threshold binary side channel.
var DefaultFormat Format = defaultFormat{}

func (defaultFormat) Name() string { return "default" }

func (defaultFormat) ToJSON(v Value) ([]byte, error) {
	env := jsonEnvelope{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		env.Bool = v.boolV
	case KindNumber:
		env.Number = v.numberV
	case KindString:
		env.String = v.stringV
	case KindDuration:
		env.DurationMS = v.durV.Milliseconds()
	case KindTimeOfDay:
		env.TODMS = int64(v.todV) / 1e6
	case KindColor:
		c := v.colorV
		env.Color = &c
	case KindJSON:
		env.JSON = v.jsonV
	case KindBinary:
		env.BinaryB64 = encodeB64(v.binaryV)
	default:
		return nil, cmn.NewSerializeError("cannot encode value of kind %v", v.kind)
	}
	b, err := jsonAPI.Marshal(env)
	if err != nil {
		return nil, cmn.NewSerializeError("%v", err)
	}
	return b, nil
}

func (defaultFormat) FromJSON(raw []byte) (Value, error) {
	var env jsonEnvelope
	if err := jsonAPI.Unmarshal(raw, &env); err != nil {
		return Value{}, cmn.NewParseError("%v", err)
	}
	switch env.Kind {
	case KindBool.String():
		return BoolValue(env.Bool), nil
	case KindNumber.String():
		return NumberValue(env.Number), nil
	case KindString.String():
		return StringValue(env.String), nil
	case KindDuration.String():
		return DurationValue(msToDuration(env.DurationMS)), nil
	case KindTimeOfDay.String():
		tod, err := NewTimeOfDay(msToDuration(env.TODMS))
		if err != nil {
			return Value{}, err
		}
		return TimeOfDayValue(tod), nil
	case KindColor.String():
		if env.Color == nil {
			return Value{}, cmn.NewParseError("missing color payload")
		}
		return ColorValue(*env.Color), nil
	case KindJSON.String():
		return JSONValue(env.JSON), nil
	case KindBinary.String():
		b, err := decodeB64(env.BinaryB64)
		if err != nil {
			return Value{}, cmn.NewParseError("%v", err)
		}
		return BinaryValue(b), nil
	default:
		return Value{}, cmn.NewParseError("unknown value kind %q", env.Kind)
	}
}

// binaryCompressThreshold is the payload size at or above which ToBinary
// applies lz4 framing; small payloads are left raw to avoid paying
// lz4's frame overhead for a handful of bytes.
const binaryCompressThreshold = 256

// ToBinary encodes the value as a flat msgpack record
// (kind, then the single populated field) via tinylib/msgp's low-level
// Writer, optionally lz4-framed above binaryCompressThreshold. This is
// the "out-of-band binary side channel" spec.md §2 calls for.
func (defaultFormat) ToBinary(v Value) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteUint8(uint8(v.kind)); err != nil {
		return nil, cmn.NewSerializeError("%v", err)
	}
	var werr error
	switch v.kind {
	case KindBool:
		werr = w.WriteBool(v.boolV)
	case KindNumber:
		werr = w.WriteFloat64(v.numberV)
	case KindString:
		werr = w.WriteString(v.stringV)
	case KindDuration:
		werr = w.WriteInt64(int64(v.durV))
	case KindTimeOfDay:
		werr = w.WriteInt64(int64(v.todV))
	case KindColor:
		if werr = w.WriteUint8(v.colorV.R); werr == nil {
			if werr = w.WriteUint8(v.colorV.G); werr == nil {
				werr = w.WriteUint8(v.colorV.B)
			}
		}
	case KindJSON:
		werr = w.WriteBytes(v.jsonV)
	case KindBinary:
		werr = w.WriteBytes(v.binaryV)
	default:
		return nil, cmn.NewSerializeError("cannot encode value of kind %v", v.kind)
	}
	if werr != nil {
		return nil, cmn.NewSerializeError("%v", werr)
	}
	if err := w.Flush(); err != nil {
		return nil, cmn.NewSerializeError("%v", err)
	}
	raw := buf.Bytes()
	if len(raw) < binaryCompressThreshold {
		return append([]byte{0}, raw...), nil // 0 == uncompressed
	}
	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return nil, cmn.NewSerializeError("%v", err)
	}
	if err := zw.Close(); err != nil {
		return nil, cmn.NewSerializeError("%v", err)
	}
	return append([]byte{1}, compressed.Bytes()...), nil // 1 == lz4-framed
}

func (defaultFormat) FromBinary(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Value{}, cmn.NewParseError("empty binary value")
	}
	flag, body := raw[0], raw[1:]
	if flag == 1 {
		var decompressed bytes.Buffer
		zr := lz4.NewReader(bytes.NewReader(body))
		if _, err := decompressed.ReadFrom(zr); err != nil {
			return Value{}, cmn.NewParseError("%v", err)
		}
		body = decompressed.Bytes()
	}
	r := msgp.NewReader(bytes.NewReader(body))
	kindByte, err := r.ReadUint8()
	if err != nil {
		return Value{}, cmn.NewParseError("%v", err)
	}
	kind := Kind(kindByte)
	switch kind {
	case KindBool:
		b, err := r.ReadBool()
		return BoolValue(b), wrapParseErr(err)
	case KindNumber:
		n, err := r.ReadFloat64()
		return NumberValue(n), wrapParseErr(err)
	case KindString:
		s, err := r.ReadString()
		return StringValue(s), wrapParseErr(err)
	case KindDuration:
		d, err := r.ReadInt64()
		return DurationValue(msToDurationNS(d)), wrapParseErr(err)
	case KindTimeOfDay:
		d, err := r.ReadInt64()
		if err != nil {
			return Value{}, wrapParseErr(err)
		}
		tod, terr := NewTimeOfDay(msToDurationNS(d))
		if terr != nil {
			return Value{}, terr
		}
		return TimeOfDayValue(tod), nil
	case KindColor:
		var c Color
		if c.R, err = r.ReadUint8(); err != nil {
			return Value{}, wrapParseErr(err)
		}
		if c.G, err = r.ReadUint8(); err != nil {
			return Value{}, wrapParseErr(err)
		}
		if c.B, err = r.ReadUint8(); err != nil {
			return Value{}, wrapParseErr(err)
		}
		return ColorValue(c), nil
	case KindJSON:
		b, err := r.ReadBytes(nil)
		return JSONValue(b), wrapParseErr(err)
	case KindBinary:
		b, err := r.ReadBytes(nil)
		return BinaryValue(b), wrapParseErr(err)
	default:
		return Value{}, cmn.NewParseError("unknown binary value kind %d", kindByte)
	}
}

func wrapParseErr(err error) error {
	if err == nil {
		return nil
	}
	return cmn.NewParseError("%v", err)
}

func msToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func msToDurationNS(ns int64) time.Duration { return time.Duration(ns) }
