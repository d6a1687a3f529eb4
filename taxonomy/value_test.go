package taxonomy_test

import (
	"testing"
	"time"

	"github.com/vesper-home/hub/taxonomy"
)

func TestValueCmpUndefinedAcrossKinds(t *testing.T) {
	_, ok := taxonomy.NumberValue(1).Cmp(taxonomy.StringValue("1"))
	if ok {
		t.Errorf("Cmp across kinds should be undefined")
	}
}

func TestValueCmpNumber(t *testing.T) {
	cases := []struct {
		a, b float64
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{2, 2, 0},
	}
	for _, tc := range cases {
		cmp, ok := taxonomy.NumberValue(tc.a).Cmp(taxonomy.NumberValue(tc.b))
		if !ok || cmp != tc.want {
			t.Errorf("Cmp(%v, %v) = %v, %v; want %v, true", tc.a, tc.b, cmp, ok, tc.want)
		}
	}
}

func TestValueEqualOpaqueKindsAlwaysFalse(t *testing.T) {
	a := taxonomy.JSONValue([]byte(`{"x":1}`))
	b := taxonomy.JSONValue([]byte(`{"x":1}`))
	if a.Equal(b) {
		t.Errorf("JSON values should never compare equal, even with identical bytes")
	}
}

func TestValueBoolHasNoOrder(t *testing.T) {
	_, ok := taxonomy.BoolValue(true).Cmp(taxonomy.BoolValue(false))
	if ok {
		t.Errorf("bool Cmp should report undefined ordering")
	}
	if !taxonomy.BoolValue(true).Equal(taxonomy.BoolValue(true)) {
		t.Errorf("bool equality should still work")
	}
}

func TestNewTimeOfDayRejectsOutOfRange(t *testing.T) {
	if _, err := taxonomy.NewTimeOfDay(24 * time.Hour); err == nil {
		t.Errorf("expected error for time-of-day == 24h")
	}
	if _, err := taxonomy.NewTimeOfDay(-time.Second); err == nil {
		t.Errorf("expected error for negative time-of-day")
	}
	if _, err := taxonomy.NewTimeOfDay(12 * time.Hour); err != nil {
		t.Errorf("unexpected error for valid time-of-day: %v", err)
	}
}
