package werrors_test

import (
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

func TestConstructorsSetKind(t *testing.T) {
	cases := []struct {
		err  *werrors.Error
		kind werrors.Kind
	}{
		{werrors.Protocol("bad frame"), werrors.KindProtocol},
		{werrors.Auth("no permission"), werrors.KindAuth},
		{werrors.Validation("bad field"), werrors.KindValidation},
		{werrors.NotFound("missing"), werrors.KindNotFound},
		{werrors.IO("disk error"), werrors.KindIO},
		{werrors.Exhausted("out of memory"), werrors.KindExhausted},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("got kind %v, want %v", c.err.Kind, c.kind)
		}
		if !werrors.Is(c.err, c.kind) {
			t.Errorf("Is(%v, %v) = false", c.err, c.kind)
		}
	}
}

func TestIntegrityErrorIncludesEntityAndOffset(t *testing.T) {
	err := werrors.Integrity("user", 128, "version mismatch")
	if err.Entity != "user" || err.Offset != 128 {
		t.Fatalf("got entity=%q offset=%d, want user/128", err.Entity, err.Offset)
	}
	if got := err.Error(); got != "integrity error: version mismatch (entity=user offset=128)" {
		t.Fatalf("unexpected Error() text: %q", got)
	}
}

func TestIsReturnsFalseForWrongKind(t *testing.T) {
	err := werrors.Validation("x")
	if werrors.Is(err, werrors.KindAuth) {
		t.Fatalf("Is matched the wrong kind")
	}
}

func TestIsReturnsFalseForNonWerror(t *testing.T) {
	if werrors.Is(nil, werrors.KindValidation) {
		t.Fatalf("Is matched a nil error")
	}
}
