package taxonomy_test

import (
	"testing"

	"github.com/vesper-home/hub/taxonomy"
)

func TestIDEquality(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"lamp-1", "lamp-1", true},
		{"lamp-1", "lamp-2", false},
		{"", "", true},
	}
	for _, tc := range cases {
		a := taxonomy.NewFeatureID(tc.a)
		b := taxonomy.NewFeatureID(tc.b)
		if got := a.Equal(b); got != tc.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := a == b; got != tc.want {
			t.Errorf("==(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIDDigestStable(t *testing.T) {
	id := taxonomy.NewFeatureID("thermostat-temp")
	d1 := id.Digest()
	d2 := id.Digest()
	if d1 != d2 {
		t.Errorf("Digest() not stable across calls: %d != %d", d1, d2)
	}
}

func TestIDAsMapKey(t *testing.T) {
	m := map[taxonomy.FeatureID]int{}
	m[taxonomy.NewFeatureID("a")] = 1
	m[taxonomy.NewFeatureID("b")] = 2
	if m[taxonomy.NewFeatureID("a")] != 1 {
		t.Errorf("lookup by reconstructed id failed")
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := taxonomy.NewGeneratedFeatureID()
		if seen[id.String()] {
			t.Fatalf("duplicate generated id %q", id.String())
		}
		seen[id.String()] = true
	}
}
