// Package resample implements the streaming linear resampler of spec
// §4.10: a small, pure, allocation-light function with a running
// source-coordinate counter, grounded on the teacher's "one function,
// one closed-form formula" numeric-utility style (cmn/config.go's
// duration/size parsing helpers).
package resample

import "math"

// Resampler converts a stream of samples at srcRate into a stream at
// dstRate, one call at a time, carrying two previous source samples
// and a running destination-sample counter across calls so that
// streaming callers never need to re-derive phase from scratch.
type Resampler struct {
	srcRate, dstRate float64

	prev0, prev1 float64 // the two most recent source samples fed in

	// destIndex is the running index of the next destination sample
	// this Resampler will produce, chosen so that destIndex=0
	// corresponds to source x=0.
	destIndex int64
	// srcConsumed counts every source sample fed in so far; prev0 sits
	// at source coordinate srcConsumed-2.
	srcConsumed int64
}

// New returns a Resampler targeting dstRate from srcRate. Initial
// state is chosen so the first destination sample corresponds to
// source x=0, per spec §4.10.
func New(srcRate, dstRate float64) *Resampler {
	return &Resampler{srcRate: srcRate, dstRate: dstRate}
}

// srcCoord returns the source x-coordinate for destination sample
// index destIdx: (destIdx * srcRate) / dstRate.
func (r *Resampler) srcCoord(destIdx int64) float64 {
	return float64(destIdx) * r.srcRate / r.dstRate
}

// NumSrcSamplesNeeded returns how many new source samples must be
// supplied (beyond the two already-carried history samples) to
// produce destN more destination samples, per spec §4.10:
// ceil(max_dest_src_coords) - (prev_samples_0_src_coords + 1).
func (r *Resampler) NumSrcSamplesNeeded(destN int) int {
	if destN <= 0 {
		return 0
	}
	maxDestCoord := r.srcCoord(r.destIndex + int64(destN) - 1)
	prevCoord := float64(r.srcConsumed - 2) // prev[0]'s source coordinate
	needed := int(math.Ceil(maxDestCoord)) - (int(math.Floor(prevCoord)) + 1)
	if needed < 0 {
		needed = 0
	}
	return needed
}

// Process resamples src (newly-available source samples) into dst,
// returning the number of destination samples written. It forms the
// contiguous buffer [prev0, prev1, src...] internally and linearly
// interpolates between consecutive samples in that buffer for each
// destination sample, then updates the carried history for the next
// call.
func (r *Resampler) Process(src []float64, dst []float64) int {
	buf := make([]float64, 0, len(src)+2)
	buf = append(buf, r.prev0, r.prev1)
	buf = append(buf, src...)

	n := 0
	for n < len(dst) {
		// buf[0] holds source coordinate srcConsumed-2 (prev0).
		x := r.srcCoord(r.destIndex) + 2 - float64(r.srcConsumed)
		if x < 0 {
			x = 0
		}
		i0 := int(math.Floor(x))
		if i0 >= len(buf) {
			break
		}
		frac := x - float64(i0)
		next := buf[i0]
		if frac > 0 {
			if i0+1 >= len(buf) {
				break
			}
			next = buf[i0+1]
		}
		dst[n] = buf[i0]*(1-frac) + next*frac
		n++
		r.destIndex++
	}

	if len(buf) >= 2 {
		r.prev0 = buf[len(buf)-2]
		r.prev1 = buf[len(buf)-1]
	}
	r.srcConsumed += int64(len(src))
	return n
}
