// Package httprange reproduces the single-range HTTP Range parsing and
// Content-Range formatting spec §4.5 requires, grounded on
// ais/tgtobj.go's range-GET path (cmn.RangesQuery/cmn.HTTPRange/
// cmn.ParseMultiRange/ContentRange) -- reimplemented here since the
// teacher's own cmn package that defines them is not part of the
// retrieved file set.
package httprange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const (
	HdrRange         = "Range"
	HdrContentRange  = "Content-Range"
	HdrAcceptRanges  = "Accept-Ranges"
	HdrIfModSince    = "If-Modified-Since"
	HdrCacheControl  = "Cache-Control"
	ImmutableCacheControlValue = "max-age=1000000000, immutable"
)

// Range is a single, already-resolved byte range: 0 <= Start <= End <
// size.
type Range struct {
	Start, End int64
}

// Length returns the number of bytes the range covers.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange formats the header value for a 206 response.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Parse parses a "bytes=a-b" or "bytes=a-" header value against a file
// of the given size. Exactly one range is honoured; multi-ranges and
// invalid ranges return a werrors.Validation error, which the caller
// maps to 416 Range Not Satisfiable, per spec §4.5.
func Parse(header string, size int64) (Range, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Range{}, werrors.Validation("range header missing %q prefix", prefix)
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return Range{}, werrors.Validation("multi-range requests are not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Range{}, werrors.Validation("malformed range %q", header)
	}

	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Range{}, werrors.Validation("malformed range start %q", parts[0])
	}

	var b int64
	if parts[1] == "" {
		b = size - 1
	} else {
		b, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Range{}, werrors.Validation("malformed range end %q", parts[1])
		}
	}

	if a < 0 || a >= size || a > b || b >= size {
		return Range{}, werrors.Validation("range %q out of bounds for size %d", header, size)
	}
	return Range{Start: a, End: b}, nil
}
