package thinkerbell_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vesper-home/hub/thinkerbell"
)

var _ = Describe("Compile", func() {
	It("compiles a rule whose condition and statement both resolve and type-check", func() {
		_, fe, _, _, _ := newRig()
		src := `{
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
		script, err := thinkerbell.Compile([]byte(src), fe)
		Expect(err).NotTo(HaveOccurred())
		Expect(script.Rules).To(HaveLen(1))
		Expect(script.Rules[0].Conditions).To(HaveLen(1))
		Expect(script.Rules[0].Execute).To(HaveLen(1))
	})

	It("rejects a condition selector that resolves to no feature", func() {
		_, fe, _, _, _ := newRig()
		src := `{
			"rules": [{
				"conditions": [{
					"selector": {"id": "no-such-feature"},
					"range": {"kind": "geq", "value": {"kind": "number", "number": 3}}
				}],
				"execute": []
			}]
		}`
		_, err := thinkerbell.Compile([]byte(src), fe)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a range whose kind does not match the feature's watch signature", func() {
		_, fe, _, _, _ := newRig()
		src := `{
			"rules": [{
				"conditions": [{
					"selector": {"id": "clock.ticks"},
					"range": {"kind": "geq", "value": {"kind": "string", "string": "nope"}}
				}],
				"execute": []
			}]
		}`
		_, err := thinkerbell.Compile([]byte(src), fe)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a statement value kind the target's send signature does not accept", func() {
		_, fe, _, _, _ := newRig()
		src := `{
			"rules": [{
				"conditions": [{
					"selector": {"id": "clock.ticks"},
					"range": {"kind": "geq", "value": {"kind": "number", "number": 3}}
				}],
				"execute": [{
					"selector": {"id": "display"},
					"value": {"kind": "number", "number": 1}
				}]
			}]
		}`
		_, err := thinkerbell.Compile([]byte(src), fe)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a rule with no conditions", func() {
		_, fe, _, _, _ := newRig()
		src := `{"rules": [{"conditions": [], "execute": []}]}`
		_, err := thinkerbell.Compile([]byte(src), fe)
		Expect(err).To(HaveOccurred())
	})
})
