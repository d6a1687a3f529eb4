package taxonomy_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vesper-home/hub/metrics"
	"github.com/vesper-home/hub/taxonomy"

	"github.com/prometheus/client_golang/prometheus"
)

func newBackend() *taxonomy.Backend {
	reg := prometheus.NewRegistry()
	return taxonomy.NewBackend(taxonomy.RoleAuthorizer, 32, metrics.NewTaxonomy(reg))
}

var _ = Describe("Backend registration", func() {
	var b *taxonomy.Backend
	var adapter *taxonomy.DummyAdapter

	BeforeEach(func() {
		b = newBackend()
		adapter = taxonomy.NewDummyAdapter(taxonomy.NewAdapterID("a1"), "lamp-bridge")
		Expect(b.AddAdapter(adapter)).To(Succeed())
	})

	AfterEach(func() { b.Stop() })

	It("rejects a service created with a non-empty feature map", func() {
		svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
		svc.Features[taxonomy.NewFeatureID("f1")] = struct{}{}
		Expect(b.AddService(svc)).NotTo(Succeed())
	})

	It("rejects a feature whose adapter id conflicts with its parent service", func() {
		svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
		Expect(b.AddService(svc)).To(Succeed())
		other := taxonomy.NewAdapterID("a2")
		f := taxonomy.NewFeature(taxonomy.NewFeatureID("f1"), svc.ID, other)
		Expect(b.AddFeature(f)).NotTo(Succeed())
	})

	It("cascades adapter removal onto services and features", func() {
		svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
		Expect(b.AddService(svc)).To(Succeed())
		f := taxonomy.NewFeature(taxonomy.NewFeatureID("f1"), svc.ID, adapter.ID())
		Expect(b.AddFeature(f)).To(Succeed())

		Expect(b.RemoveAdapter(adapter.ID())).To(Succeed())

		Expect(b.GetServices(taxonomy.ServiceSelector{})).To(BeEmpty())
		Expect(b.GetFeatures(taxonomy.FeatureSelector{})).To(BeEmpty())
	})
})

var _ = Describe("place_method_call", func() {
	var b *taxonomy.Backend
	var adapter *taxonomy.DummyAdapter
	var feature taxonomy.FeatureID

	BeforeEach(func() {
		b = newBackend()
		adapter = taxonomy.NewDummyAdapter(taxonomy.NewAdapterID("a1"), "lamp-bridge")
		Expect(b.AddAdapter(adapter)).To(Succeed())
		svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
		Expect(b.AddService(svc)).To(Succeed())
		feature = taxonomy.NewFeatureID("f1")
		f := taxonomy.NewFeature(feature, svc.ID, adapter.ID())
		f.Fetch = taxonomy.Signature{Support: taxonomy.SupportOptional, Kind: taxonomy.KindNumber}
		f.Send = taxonomy.Signature{Support: taxonomy.SupportRequired, Kind: taxonomy.KindNumber}
		Expect(b.AddFeature(f)).To(Succeed())
	})

	AfterEach(func() { b.Stop() })

	It("sends and then fetches back the same value", func() {
		results, err := b.PlaceMethodCall(taxonomy.MethodSend, []taxonomy.MethodRequest{
			{Selector: taxonomy.WithFeatureID(feature), Payload: taxonomy.NumberValue(21)},
		}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[feature].Err).NotTo(HaveOccurred())

		fetched, err := b.PlaceMethodCall(taxonomy.MethodFetch, []taxonomy.MethodRequest{
			{Selector: taxonomy.WithFeatureID(feature)},
		}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		n, ok := fetched[feature].Value.AsNumber()
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(21.0))
	})

	It("denies Send for a viewer principal", func() {
		viewer := taxonomy.Principal{UserID: "bob", Roles: []string{string(taxonomy.RoleViewer)}}
		_, err := b.PlaceMethodCall(taxonomy.MethodSend, []taxonomy.MethodRequest{
			{Selector: taxonomy.WithFeatureID(feature), Payload: taxonomy.NumberValue(1)},
		}, viewer)
		Expect(err).To(HaveOccurred())
	})

	It("returns no entry for a selector that matches no feature", func() {
		ghost := taxonomy.NewFeatureID("nope")
		results, err := b.PlaceMethodCall(taxonomy.MethodFetch, []taxonomy.MethodRequest{
			{Selector: taxonomy.WithFeatureID(ghost)},
		}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})
})

var _ = Describe("register_watch", func() {
	var b *taxonomy.Backend
	var adapter *taxonomy.DummyAdapter
	var feature taxonomy.FeatureID

	BeforeEach(func() {
		b = newBackend()
		adapter = taxonomy.NewDummyAdapter(taxonomy.NewAdapterID("a1"), "thermostat-bridge")
		Expect(b.AddAdapter(adapter)).To(Succeed())
		svc := taxonomy.NewService(taxonomy.NewServiceID("s1"), adapter.ID())
		Expect(b.AddService(svc)).To(Succeed())
		feature = taxonomy.NewFeatureID("temp")
		f := taxonomy.NewFeature(feature, svc.ID, adapter.ID())
		f.Watch = taxonomy.Signature{Support: taxonomy.SupportOptional, Kind: taxonomy.KindNumber}
		Expect(b.AddFeature(f)).To(Succeed())
	})

	AfterEach(func() { b.Stop() })

	It("delivers Enter/Exit only on range boundary crossings", func() {
		target := taxonomy.WatchTarget{
			Selector:  taxonomy.WithFeatureID(feature),
			Predicate: taxonomy.PredExactly(taxonomy.Geq(taxonomy.NumberValue(20))),
		}
		handle, err := b.RegisterWatch([]taxonomy.WatchTarget{target}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		defer handle.Close()

		adapter.PushValue(feature, taxonomy.NumberValue(10)) // below range: no event
		adapter.PushValue(feature, taxonomy.NumberValue(25)) // Enter
		adapter.PushValue(feature, taxonomy.NumberValue(30)) // still in range: no event
		adapter.PushValue(feature, taxonomy.NumberValue(5))  // Exit

		// RegisterWatch itself emits FeatureAdded for the matched feature.
		var kinds []taxonomy.EventKind
		for i := 0; i < 3; i++ {
			select {
			case e := <-handle.Events():
				kinds = append(kinds, e.Kind)
			case <-time.After(time.Second):
				Fail("timed out waiting for watch event")
			}
		}
		Expect(kinds).To(Equal([]taxonomy.EventKind{taxonomy.EventFeatureAdded, taxonomy.EventEnter, taxonomy.EventExit}))
	})

	It("delivers every value under an Always predicate", func() {
		target := taxonomy.WatchTarget{
			Selector:  taxonomy.WithFeatureID(feature),
			Predicate: taxonomy.PredAlways(),
		}
		handle, err := b.RegisterWatch([]taxonomy.WatchTarget{target}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		defer handle.Close()

		adapter.PushValue(feature, taxonomy.NumberValue(1))
		adapter.PushValue(feature, taxonomy.NumberValue(2))

		// RegisterWatch itself emits FeatureAdded for the matched feature.
		select {
		case e := <-handle.Events():
			Expect(e.Kind).To(Equal(taxonomy.EventFeatureAdded))
		case <-time.After(time.Second):
			Fail("timed out waiting for FeatureAdded")
		}

		for i := 0; i < 2; i++ {
			select {
			case e := <-handle.Events():
				Expect(e.Kind).To(Equal(taxonomy.EventEnter))
			case <-time.After(time.Second):
				Fail("timed out waiting for watch event")
			}
		}
	})

	It("emits FeatureRemoved when the watched feature is removed", func() {
		target := taxonomy.WatchTarget{
			Selector:  taxonomy.WithFeatureID(feature),
			Predicate: taxonomy.PredAlways(),
		}
		handle, err := b.RegisterWatch([]taxonomy.WatchTarget{target}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		defer handle.Close()

		// RegisterWatch itself emits FeatureAdded for the matched feature.
		select {
		case e := <-handle.Events():
			Expect(e.Kind).To(Equal(taxonomy.EventFeatureAdded))
		case <-time.After(time.Second):
			Fail("timed out waiting for FeatureAdded")
		}

		Expect(b.RemoveFeature(feature)).To(Succeed())

		select {
		case e := <-handle.Events():
			Expect(e.Kind).To(Equal(taxonomy.EventFeatureRemoved))
		case <-time.After(time.Second):
			Fail("timed out waiting for FeatureRemoved")
		}
	})

	It("notifies newly matching watches when a feature is added later", func() {
		target := taxonomy.WatchTarget{
			Selector:  taxonomy.WithParentService(taxonomy.WithServiceID(taxonomy.NewServiceID("s1"))),
			Predicate: taxonomy.PredAlways(),
		}
		handle, err := b.RegisterWatch([]taxonomy.WatchTarget{target}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		defer handle.Close()

		// Drain the FeatureAdded event emitted for the pre-existing feature.
		Eventually(handle.Events()).Should(Receive())

		newFeature := taxonomy.NewFeatureID("humidity")
		f := taxonomy.NewFeature(newFeature, taxonomy.NewServiceID("s1"), adapter.ID())
		Expect(b.AddFeature(f)).To(Succeed())

		select {
		case e := <-handle.Events():
			Expect(e.Kind).To(Equal(taxonomy.EventFeatureAdded))
			Expect(e.Feature).To(Equal(newFeature))
		case <-time.After(time.Second):
			Fail("timed out waiting for FeatureAdded on reconciliation")
		}
	})
})
