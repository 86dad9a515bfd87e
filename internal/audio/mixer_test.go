package audio_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/glaretechnologies/substrata-sub005/internal/audio"
)

type constSource struct {
	rate float64
	x, y, z float32
}

func (s *constSource) NextSamples(dst []float64, n int) []float64 {
	for i := 0; i < n; i++ {
		dst = append(dst, 0.5)
	}
	return dst
}

func (s *constSource) SourceRate() float64        { return s.rate }
func (s *constSource) Position() (float32, float32, float32) { return s.x, s.y, s.z }

type recordingSpatial struct {
	mu      sync.Mutex
	pushes  int
}

func (r *recordingSpatial) PushSource(samples []float64, x, y, z float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes++
}

func (r *recordingSpatial) PullInterleavedStereo(n int) []float64 {
	return make([]float64, 2*n)
}

func (r *recordingSpatial) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes
}

var _ = Describe("Mixer", func() {
	It("drains zero-filled hardware frames before any source runs", func() {
		spatial := &recordingSpatial{}
		m := audio.NewMixer(spatial, 48000)
		frame := m.PopHardwareFrame(4)
		Expect(frame).To(HaveLen(4))
		for _, v := range frame {
			Expect(v).To(Equal(0.0))
		}
	})

	It("feeds every added source into the spatial mixer on each tick", func() {
		spatial := &recordingSpatial{}
		m := audio.NewMixer(spatial, 48000)
		m.AddSource(&constSource{rate: 48000})
		m.AddSource(&constSource{rate: 24000})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		m.Run(ctx)

		Expect(spatial.count()).To(BeNumerically(">", 0))
	})

	It("removes a source so it no longer receives ticks", func() {
		spatial := &recordingSpatial{}
		m := audio.NewMixer(spatial, 48000)
		src := &constSource{rate: 48000}
		m.AddSource(src)
		m.RemoveSource(src)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		m.Run(ctx)

		Expect(spatial.count()).To(Equal(0))
	})
})
