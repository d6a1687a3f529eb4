package thinkerbell_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vesper-home/hub/taxonomy"
	"github.com/vesper-home/hub/thinkerbell"
)

var _ = Describe("Manager", func() {
	It("puts, loads, disables, re-enables, and removes a script", func() {
		b, fe, adapter, clockID, displayID := newRig()
		defer b.Stop()

		mgr, err := thinkerbell.OpenManager(":memory:", fe, taxonomy.Admin, nil)
		Expect(err).NotTo(HaveOccurred())
		defer mgr.Close()

		Expect(mgr.Put("r1", risingEdgeScript, "alice")).To(Succeed())
		Expect(mgr.GetRunningCount()).To(Equal(1))

		Expect(mgr.Put("r1", risingEdgeScript, "alice")).To(HaveOccurred())

		Expect(mgr.SetEnabled("r1", false)).To(Succeed())
		Expect(mgr.GetRunningCount()).To(Equal(0))

		Expect(mgr.SetEnabled("r1", true)).To(Succeed())
		Expect(mgr.GetRunningCount()).To(Equal(1))

		for _, tick := range []float64{1, 2, 3} {
			adapter.PushValue(clockID, taxonomy.NumberValue(tick))
			time.Sleep(20 * time.Millisecond)
		}
		Expect(adapter.SendCountFor(displayID)).To(Equal(1))

		Expect(mgr.Remove("r1")).To(Succeed())
		Expect(mgr.GetRunningCount()).To(Equal(0))
	})

	It("loads only enabled rows at startup, reporting per-id failures separately", func() {
		b, fe, _, _, _ := newRig()
		defer b.Stop()

		dir, err := os.MkdirTemp("", "rules")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "rules.db")

		lampID := taxonomy.NewFeatureID("lamp")
		lamp := taxonomy.NewFeature(lampID, taxonomy.NewServiceID("s1"), taxonomy.NewAdapterID("a1"))
		lamp.Send = taxonomy.Signature{Support: taxonomy.SupportRequired, Kind: taxonomy.KindBool}
		Expect(b.AddFeature(lamp)).To(Succeed())

		mgr, err := thinkerbell.OpenManager(path, fe, taxonomy.Admin, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.Put("good", risingEdgeScript, "alice")).To(Succeed())
		Expect(mgr.Put("disabled", risingEdgeScript, "alice")).To(Succeed())
		Expect(mgr.SetEnabled("disabled", false)).To(Succeed())
		lampScript := strings.Replace(risingEdgeScript, `"display"`, `"lamp"`, 1)
		Expect(mgr.Put("broken", lampScript, "bob")).To(Succeed())
		Expect(mgr.Close()).To(Succeed())

		// "broken" no longer compiles once its target feature is gone.
		Expect(b.RemoveFeature(lampID)).To(Succeed())

		mgr2, err := thinkerbell.OpenManager(path, fe, taxonomy.Admin, nil)
		Expect(err).NotTo(HaveOccurred())
		defer mgr2.Close()

		results := mgr2.Load()
		Expect(results).To(HaveKey("good"))
		Expect(results["good"]).NotTo(HaveOccurred())
		Expect(results).NotTo(HaveKey("disabled"))
		Expect(results["broken"]).To(HaveOccurred())
		Expect(mgr2.GetRunningCount()).To(Equal(1))
	})

	It("remove_all stops every executor and always truncates the table", func() {
		b, fe, _, _, _ := newRig()
		defer b.Stop()

		mgr, err := thinkerbell.OpenManager(":memory:", fe, taxonomy.Admin, nil)
		Expect(err).NotTo(HaveOccurred())
		defer mgr.Close()

		Expect(mgr.Put("r1", risingEdgeScript, "alice")).To(Succeed())
		errs := mgr.RemoveAll()
		Expect(errs).To(BeEmpty())
		Expect(mgr.GetRunningCount()).To(Equal(0))
	})
})
