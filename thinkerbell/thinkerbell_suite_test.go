package thinkerbell_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestThinkerbell(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Thinkerbell Suite")
}
