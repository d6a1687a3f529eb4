package thinkerbell_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vesper-home/hub/taxonomy"
	"github.com/vesper-home/hub/thinkerbell"
)

const risingEdgeScript = `{
	"rules": [{
		"conditions": [{
			"selector": {"id": "clock.ticks"},
			"range": {"kind": "geq", "value": {"kind": "number", "number": 3}}
		}],
		"execute": [{
			"selector": {"id": "display"},
			"value": {"kind": "bool", "bool": true}
		}]
	}]
}`

var _ = Describe("Executor", func() {
	It("fires exactly once on the rising edge of a ticking clock (spec.md §8 scenario 4)", func() {
		b, fe, adapter, clockID, displayID := newRig()
		defer b.Stop()

		script, err := thinkerbell.Compile([]byte(risingEdgeScript), fe)
		Expect(err).NotTo(HaveOccurred())

		ex, err := thinkerbell.StartExecutor(script, fe, taxonomy.Admin, "r1", nil)
		Expect(err).NotTo(HaveOccurred())
		defer ex.Stop()

		for _, tick := range []float64{1, 2, 3, 4} {
			adapter.PushValue(clockID, taxonomy.NumberValue(tick))
			time.Sleep(20 * time.Millisecond)
		}

		results := fe.GetFeatures(taxonomy.WithFeatureID(displayID))
		Expect(results).To(HaveLen(1))

		fetched, err := fe.PlaceMethodCall(taxonomy.MethodFetch, []taxonomy.MethodRequest{
			{Selector: taxonomy.WithFeatureID(clockID)},
		}, taxonomy.Admin)
		Expect(err).NotTo(HaveOccurred())
		Expect(fetched[clockID].Err).NotTo(HaveOccurred())

		sent, ok := adapter.LastSendFor(displayID)
		Expect(ok).To(BeTrue())
		sentBool, _ := sent.AsBool()
		Expect(sentBool).To(BeTrue())
		Expect(adapter.SendCountFor(displayID)).To(Equal(1))
	})

	It("does not fire again without an intervening false", func() {
		b, fe, adapter, clockID, _ := newRig()
		defer b.Stop()

		script, err := thinkerbell.Compile([]byte(risingEdgeScript), fe)
		Expect(err).NotTo(HaveOccurred())
		ex, err := thinkerbell.StartExecutor(script, fe, taxonomy.Admin, "r1", nil)
		Expect(err).NotTo(HaveOccurred())
		defer ex.Stop()

		for _, tick := range []float64{3, 4, 5, 6} {
			adapter.PushValue(clockID, taxonomy.NumberValue(tick))
			time.Sleep(20 * time.Millisecond)
		}
		Expect(adapter.SendCountFor(taxonomy.NewFeatureID("display"))).To(Equal(1))
	})
})
