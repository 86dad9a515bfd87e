package resample_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/glaretechnologies/substrata-sub005/internal/audio/resample"
)

var _ = Describe("Resampler", func() {
	It("passes samples through unchanged at a 1:1 rate", func() {
		r := resample.New(48000, 48000)
		src := []float64{1, 2, 3, 4, 5}
		dst := make([]float64, len(src))
		n := r.Process(src, dst)
		Expect(n).To(Equal(len(src)))
		for i, v := range dst[:n] {
			Expect(v).To(BeNumerically("~", src[i], 1e-9))
		}
	})

	It("reports zero samples needed for a non-positive request", func() {
		r := resample.New(44100, 48000)
		Expect(r.NumSrcSamplesNeeded(0)).To(Equal(0))
		Expect(r.NumSrcSamplesNeeded(-5)).To(Equal(0))
	})

	It("keeps interpolated values within the input's range for an upsample", func() {
		r := resample.New(24000, 48000)
		src := []float64{0, 1, 0, -1, 0}
		dst := make([]float64, 8)
		n := r.Process(src, dst)
		Expect(n).To(BeNumerically(">", 0))
		for _, v := range dst[:n] {
			Expect(v).To(BeNumerically(">=", -1.0001))
			Expect(v).To(BeNumerically("<=", 1.0001))
		}
	})
})
