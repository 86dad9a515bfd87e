package idgen_test

import (
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
)

func TestSequenceNextIsMonotonic(t *testing.T) {
	var s idgen.Sequence
	a := s.Next()
	b := s.Next()
	if b != a+1 {
		t.Fatalf("got %d then %d, want consecutive", a, b)
	}
}

func TestSequenceObserveOnlyMovesForward(t *testing.T) {
	var s idgen.Sequence
	s.Observe(100)
	if got := s.Next(); got != 101 {
		t.Fatalf("got %d, want 101 after Observe(100)", got)
	}
	s.Observe(5) // lower than current, must be a no-op
	if got := s.Next(); got != 102 {
		t.Fatalf("got %d, want 102: Observe with a lower value should not rewind", got)
	}
}

func TestIsValid(t *testing.T) {
	if idgen.InvalidUserID.IsValid() {
		t.Fatalf("InvalidUserID reported valid")
	}
	if !idgen.UserID(1).IsValid() {
		t.Fatalf("UserID(1) reported invalid")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs int64
		want string
	}{
		{0, "0 minutes"},
		{60, "1 minute"},
		{120, "2 minutes"},
		{3600, "1 hour"},
		{86400, "1 day"},
		{604800 + 14400 + 2220, "7 days, 4 hours and 37 minutes"},
		{-5, "0 minutes"},
	}
	for _, c := range cases {
		if got := idgen.FormatDuration(c.secs); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.secs, got, c.want)
		}
	}
}
