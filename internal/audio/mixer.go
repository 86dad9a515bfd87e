// Package audio specifies the client-side audio mixer/streamer of
// spec §4.9, included for its concurrency contract: a 1ms-tick
// producer filling a hardware-facing ring buffer, each source
// resampled to the mixer rate before a spatial-audio middleware turns
// them into one interleaved stereo stream. None of this runs inside
// substratad itself (§5: "in the server context they do not exist")
// -- it is specified here because the pattern -- a tick-driven
// producer with its own owned buffers, a consumer that never touches
// the world-state lock -- mirrors fs/mpather/jogger.go's tick-driven
// worker-with-stopCh shape and ios's separation of a sampling
// goroutine from the consumer of its results.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/glaretechnologies/substrata-sub005/internal/audio/resample"
)

const (
	tickInterval     = time.Millisecond
	framesPerBuffer  = 480 // 10ms @ 48kHz
	channels         = 2
	ringTargetFrames = 4 * framesPerBuffer // "4 x frames_per_buffer x 2 samples" per source channel pair
)

// SampleSource is one active audio source the mixer pulls from: a
// fixed immutable buffer with a floating-point read index (for
// pitch-shifted sources) or a circular byte/sample buffer for
// streaming sources. Implementations zero-pad on underflow rather
// than blocking.
type SampleSource interface {
	// NextSamples appends up to n mono samples (at the source's native
	// rate) to dst and returns the result slice. Underflow is filled
	// with zeros, never blocks.
	NextSamples(dst []float64, n int) []float64
	SourceRate() float64
	Position() (x, y, z float32)
}

// SpatialMixer is the opaque spatial-audio middleware the mixer hands
// resampled per-source buffers to; it is an external collaborator
// per spec §1/§6, specified only by this interface.
type SpatialMixer interface {
	// PushSource feeds one source's resampled mono samples, tagged with
	// its world position, into the middleware's internal accumulation.
	PushSource(samples []float64, x, y, z float32)
	// PullInterleavedStereo drains n interleaved stereo frames (2*n
	// float64 samples) representing everything pushed since the last
	// pull.
	PullInterleavedStereo(n int) []float64
}

// ring is a small single-producer single-consumer sample ring guarded
// by its own mutex, used for the hardware-facing buffer; audio.Mixer is
// the sole producer, the hardware callback the sole consumer, matching
// §5's "no component may hold two locks" rule by only ever needing one.
type ring struct {
	mu         sync.Mutex
	buf        []float64
	readIdx    int
	writeIdx   int
	count      int
	capacity   int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity), capacity: capacity}
}

func (r *ring) Push(samples []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		if r.count == r.capacity {
			return // full: drop, the producer tick will catch up next time
		}
		r.buf[r.writeIdx] = s
		r.writeIdx = (r.writeIdx + 1) % r.capacity
		r.count++
	}
}

// Pop reads n samples, zero-padding on underflow.
func (r *ring) Pop(n int) []float64 {
	out := make([]float64, n)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		if r.count == 0 {
			continue // leave out[i] == 0: silence on shortfall
		}
		out[i] = r.buf[r.readIdx]
		r.readIdx = (r.readIdx + 1) % r.capacity
		r.count--
	}
	return out
}

func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Mixer drives the 1ms-tick producer task of spec §4.9.
type Mixer struct {
	sources     []SampleSource
	resamplers  map[SampleSource]*resample.Resampler
	spatial     SpatialMixer
	mixerRate   float64
	hwRing      *ring
}

func NewMixer(spatial SpatialMixer, mixerRate float64) *Mixer {
	return &Mixer{
		resamplers: make(map[SampleSource]*resample.Resampler),
		spatial:    spatial,
		mixerRate:  mixerRate,
		hwRing:     newRing(ringTargetFrames * channels * 4),
	}
}

func (m *Mixer) AddSource(s SampleSource) {
	m.sources = append(m.sources, s)
	m.resamplers[s] = resample.New(s.SourceRate(), m.mixerRate)
}

func (m *Mixer) RemoveSource(s SampleSource) {
	delete(m.resamplers, s)
	for i, cur := range m.sources {
		if cur == s {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			break
		}
	}
}

// Run is the producer task: it polls ctx.Done() as its die flag,
// waking on a 1ms tick and topping the hardware ring buffer up to
// ringTargetFrames*channels samples. On cancellation it returns at
// once; samples already in the hardware ring are neither drained nor
// cleared and stay there for PopHardwareFrame.
func (m *Mixer) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.fillOnce()
		}
	}
}

func (m *Mixer) fillOnce() {
	target := ringTargetFrames * channels
	for m.hwRing.Len() < target {
		frame := make([]float64, channels)
		for _, src := range m.sources {
			rs := m.resamplers[src]
			need := rs.NumSrcSamplesNeeded(framesPerBuffer)
			raw := src.NextSamples(make([]float64, 0, need), need)
			resampled := make([]float64, framesPerBuffer)
			n := rs.Process(raw, resampled)
			x, y, z := src.Position()
			m.spatial.PushSource(resampled[:n], x, y, z)
		}
		stereo := m.spatial.PullInterleavedStereo(1)
		for i := 0; i < channels && i < len(stereo); i++ {
			frame[i] = clamp(stereo[i], -1, 1)
		}
		m.hwRing.Push(frame)
	}
}

// PopHardwareFrame is called by the audio callback (never the
// producer's goroutine, never under the world-state mutex) to drain
// n interleaved stereo samples.
func (m *Mixer) PopHardwareFrame(n int) []float64 {
	return m.hwRing.Pop(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
