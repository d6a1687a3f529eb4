package thinkerbell_test

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vesper-home/hub/metrics"
	"github.com/vesper-home/hub/taxonomy"
)

// newRig builds a backend with one adapter owning two features: a
// numeric "clock.ticks" feature (watchable, Geq-compatible) and a
// boolean "display" feature (sendable) — the scenario spec.md §8's
// "Rule rising edge" test names explicitly.
func newRig() (*taxonomy.Backend, taxonomy.Frontend, *taxonomy.DummyAdapter, taxonomy.FeatureID, taxonomy.FeatureID) {
	reg := prometheus.NewRegistry()
	b := taxonomy.NewBackend(taxonomy.RoleAuthorizer, 64, metrics.NewTaxonomy(reg))
	adapter := taxonomy.NewDummyAdapter(taxonomy.NewAdapterID("a1"), "clock-bridge")
	_ = b.AddAdapter(adapter)

	svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
	_ = b.AddService(svc)

	clockID := taxonomy.NewFeatureID("clock.ticks")
	clock := taxonomy.NewFeature(clockID, svc.ID, adapter.ID())
	clock.Watch = taxonomy.Signature{Support: taxonomy.SupportRequired, Kind: taxonomy.KindNumber}
	clock.Fetch = taxonomy.Signature{Support: taxonomy.SupportRequired, Kind: taxonomy.KindNumber}
	_ = b.AddFeature(clock)

	displayID := taxonomy.NewFeatureID("display")
	display := taxonomy.NewFeature(displayID, svc.ID, adapter.ID())
	display.Send = taxonomy.Signature{Support: taxonomy.SupportRequired, Kind: taxonomy.KindBool}
	_ = b.AddFeature(display)

	fe := taxonomy.NewFrontend(b)
	return b, fe, adapter, clockID, displayID
}
