package resourcehttp_test

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/resource"
	"github.com/glaretechnologies/substrata-sub005/internal/resourcehttp"
)

func newCtx(path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestServeReturnsNotFoundForUnknownURL(t *testing.T) {
	reg := resource.NewRegistry(t.TempDir())
	s := resourcehttp.NewServer(reg)

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/missing.obj"))
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("got status %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusNotFound)
	}
}

func TestServeReturnsNotFoundWhileNotPresent(t *testing.T) {
	reg := resource.NewRegistry(t.TempDir())
	reg.GetOrCreate("http://x/transferring.obj") // state Absent

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/transferring.obj"))
	s := resourcehttp.NewServer(reg)
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("got status %d, want %d for an Absent resource", ctx.Response.StatusCode(), fasthttp.StatusNotFound)
	}
}

func presentResource(t *testing.T, baseDir, resURL, relPath string, content []byte) *resource.Registry {
	t.Helper()
	reg := resource.NewRegistry(baseDir)
	res, err := reg.BeginTransfer(resURL, relPath, idgen.UserID(1))
	if err != nil {
		t.Fatalf("BeginTransfer: %v", err)
	}
	full := filepath.Join(baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reg.CompleteTransfer(res, int64(len(content)))
	return reg
}

func TestServeReturnsOKForPresentResource(t *testing.T) {
	dir := t.TempDir()
	reg := presentResource(t, dir, "http://x/a.obj", "a.obj", []byte("hello world"))
	s := resourcehttp.NewServer(reg)

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/a.obj"))
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("got status %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusOK)
	}
	if string(ctx.Response.Header.Peek("Accept-Ranges")) != "bytes" {
		t.Fatalf("expected Accept-Ranges: bytes header")
	}
}

func TestServeReturnsNotModifiedForConditionalGet(t *testing.T) {
	dir := t.TempDir()
	reg := presentResource(t, dir, "http://x/a.obj", "a.obj", []byte("hello world"))
	s := resourcehttp.NewServer(reg)

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/a.obj"))
	ctx.Request.Header.Set("If-Modified-Since", "Mon, 01 Jan 2024 00:00:00 GMT")
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotModified {
		t.Fatalf("got status %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusNotModified)
	}
}

func TestServeReturnsPartialContentForRangeRequest(t *testing.T) {
	dir := t.TempDir()
	reg := presentResource(t, dir, "http://x/a.obj", "a.obj", []byte("0123456789"))
	s := resourcehttp.NewServer(reg)

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/a.obj"))
	ctx.Request.Header.Set("Range", "bytes=2-4")
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusPartialContent {
		t.Fatalf("got status %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusPartialContent)
	}
	if got := string(ctx.Response.Header.Peek("Content-Range")); got != "bytes 2-4/10" {
		t.Fatalf("got Content-Range %q, want %q", got, "bytes 2-4/10")
	}
}

func TestServeReturnsRangeNotSatisfiableForBadRange(t *testing.T) {
	dir := t.TempDir()
	reg := presentResource(t, dir, "http://x/a.obj", "a.obj", []byte("0123456789"))
	s := resourcehttp.NewServer(reg)

	ctx := newCtx("/resource/" + url.QueryEscape("http://x/a.obj"))
	ctx.Request.Header.Set("Range", "bytes=1000-2000")
	s.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("got status %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusRequestedRangeNotSatisfiable)
	}
}
