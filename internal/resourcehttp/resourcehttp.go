// Package resourcehttp serves resource blobs over HTTP, per spec §4.5.
// Built on fasthttp (the teacher's own go.mod HTTP stack) for the hot
// zero-copy-file-range path, grounded on ais/tgtobj.go's GET-range
// handler shape.
package resourcehttp

import (
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/valyala/fasthttp"

	"github.com/glaretechnologies/substrata-sub005/internal/httprange"
	"github.com/glaretechnologies/substrata-sub005/internal/metrics"
	"github.com/glaretechnologies/substrata-sub005/internal/resource"
)

// Server serves GET /resource/{url-escaped}.
type Server struct {
	Registry *resource.Registry
}

func NewServer(reg *resource.Registry) *Server {
	return &Server{Registry: reg}
}

// Handler returns the fasthttp.RequestHandler to register on a path
// prefix, e.g. router.GET("/resource/{url}", srv.Handler()).
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.serve
}

func (s *Server) serve(ctx *fasthttp.RequestCtx) {
	rawURL := string(ctx.Path())
	const prefix = "/resource/"
	if len(rawURL) <= len(prefix) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	escaped := rawURL[len(prefix):]
	resURL, err := url.QueryUnescape(escaped)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	res, ok := s.Registry.Get(resURL)
	if !ok || res.State != resource.Present {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	// Content-addressed: the body cannot have changed, so any
	// conditional GET is answered 304 unconditionally (spec §4.5).
	if len(ctx.Request.Header.Peek(httprange.HdrIfModSince)) > 0 {
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		return
	}

	absPath, err := s.Registry.AbsPath(res)
	if err != nil {
		glog.Warningf("resourcehttp: %v", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	size := fi.Size()

	ctx.Response.Header.Set(httprange.HdrAcceptRanges, "bytes")
	ctx.Response.Header.Set(httprange.HdrCacheControl, httprange.ImmutableCacheControlValue)

	rangeHdr := string(ctx.Request.Header.Peek(httprange.HdrRange))
	if rangeHdr == "" {
		metrics.HTTPRangeRequestsTotal.WithLabelValues("false").Inc()
		ctx.SendFile(absPath)
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	}
	metrics.HTTPRangeRequestsTotal.WithLabelValues("true").Inc()

	rng, err := httprange.Parse(rangeHdr, size)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusRequestedRangeNotSatisfiable)
		return
	}

	f, err := os.Open(absPath)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	defer f.Close()

	if _, err := f.Seek(rng.Start, os.SEEK_SET); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.Response.Header.Set(httprange.HdrContentRange, rng.ContentRange(size))
	ctx.Response.Header.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	ctx.SetStatusCode(fasthttp.StatusPartialContent)
	ctx.SetBodyStream(&limitedReader{f: f, remaining: rng.Length()}, int(rng.Length()))
}

// limitedReader caps reads to the remaining bytes of a range response.
type limitedReader struct {
	f         *os.File
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.f.Read(p)
	l.remaining -= int64(n)
	return n, err
}
