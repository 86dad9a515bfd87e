package resample_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestResample(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Resample Suite")
}
