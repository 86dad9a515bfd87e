package httprange_test

import (
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/httprange"
)

func TestParseBoundedRange(t *testing.T) {
	r, err := httprange.Parse("bytes=10-20", 100)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Start != 10 || r.End != 20 {
		t.Fatalf("got %+v, want Start=10 End=20", r)
	}
	if r.Length() != 11 {
		t.Fatalf("got length %d, want 11", r.Length())
	}
	if got, want := r.ContentRange(100), "bytes 10-20/100"; got != want {
		t.Fatalf("got ContentRange %q, want %q", got, want)
	}
}

func TestParseOpenEndedRange(t *testing.T) {
	r, err := httprange.Parse("bytes=90-", 100)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Start != 90 || r.End != 99 {
		t.Fatalf("got %+v, want Start=90 End=99", r)
	}
}

func TestParseRejectsMultiRange(t *testing.T) {
	if _, err := httprange.Parse("bytes=0-10,20-30", 100); err == nil {
		t.Fatalf("expected error for multi-range request")
	}
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	if _, err := httprange.Parse("0-10", 100); err == nil {
		t.Fatalf("expected error for header missing bytes= prefix")
	}
}

func TestParseRejectsOutOfBounds(t *testing.T) {
	cases := []string{"bytes=100-200", "bytes=-1-10", "bytes=50-10"}
	for _, h := range cases {
		if _, err := httprange.Parse(h, 100); err == nil {
			t.Fatalf("expected error for out-of-bounds range %q", h)
		}
	}
}
