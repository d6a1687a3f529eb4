package taxonomy_test

import (
	"testing"

	"github.com/vesper-home/hub/taxonomy"
)

func TestExactlyLattice(t *testing.T) {
	a := taxonomy.ExactlyOf(taxonomy.NewFeatureID("a"))
	b := taxonomy.ExactlyOf(taxonomy.NewFeatureID("b"))
	always := taxonomy.Always[taxonomy.FeatureID]()
	never := taxonomy.Never[taxonomy.FeatureID]()

	if !always.And(a).Matches(taxonomy.NewFeatureID("a")) {
		t.Errorf("Always.And(a) should match a")
	}
	if never.And(a).Matches(taxonomy.NewFeatureID("a")) {
		t.Errorf("Never.And(a) should match nothing")
	}
	if a.And(b).Matches(taxonomy.NewFeatureID("a")) {
		t.Errorf("Exactly(a).And(Exactly(b)) should match nothing when a != b")
	}
	if !a.And(a).Matches(taxonomy.NewFeatureID("a")) {
		t.Errorf("Exactly(a).And(Exactly(a)) should match a")
	}
}

func TestServiceSelectorDefaultMatchesEverything(t *testing.T) {
	svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), taxonomy.NewAdapterID("a1"))
	var zero taxonomy.ServiceSelector
	if !zero.Matches(svc) {
		t.Errorf("zero-value ServiceSelector should match every service")
	}
	combined := zero.And(taxonomy.ServiceSelector{})
	if !combined.Matches(svc) {
		t.Errorf("default.And(default) should still match everything")
	}
}

func TestFeatureSelectorRequiresAllTags(t *testing.T) {
	svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), taxonomy.NewAdapterID("a1"))
	f := taxonomy.NewFeature(taxonomy.NewFeatureID("f1"), svc.ID, svc.AdapterID)
	f.Tags[taxonomy.NewTagID("light")] = struct{}{}

	sel := taxonomy.FeatureSelector{
		ID:         taxonomy.Always[taxonomy.FeatureID](),
		Adapter:    taxonomy.Always[taxonomy.AdapterID](),
		Implements: taxonomy.Always[taxonomy.ImplementID](),
		Tags:       map[taxonomy.TagID]struct{}{taxonomy.NewTagID("light"): {}, taxonomy.NewTagID("dimmable"): {}},
	}
	if sel.Matches(f, svc) {
		t.Errorf("selector requiring {light,dimmable} should not match a feature tagged only {light}")
	}

	f.Tags[taxonomy.NewTagID("dimmable")] = struct{}{}
	if !sel.Matches(f, svc) {
		t.Errorf("selector requiring {light,dimmable} should match a feature tagged with both")
	}
}

func TestFeatureSelectorParentServiceConstraint(t *testing.T) {
	svc1 := taxonomy.NewService(taxonomy.NewServiceID("s1"), taxonomy.NewAdapterID("a1"))
	svc2 := taxonomy.NewService(taxonomy.NewServiceID("s2"), taxonomy.NewAdapterID("a1"))
	f := taxonomy.NewFeature(taxonomy.NewFeatureID("f1"), svc1.ID, svc1.AdapterID)

	sel := taxonomy.WithParentService(taxonomy.WithServiceID(svc1.ID))
	if !sel.Matches(f, svc1) {
		t.Errorf("selector scoped to s1 should match a feature of s1")
	}
	if sel.Matches(f, svc2) {
		t.Errorf("selector scoped to s1 should not match when evaluated against s2")
	}
}
