package cos_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/cos"
)

func TestCreateFileMakesParentDirs(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "nested", "sub", "file.dat")

	f, err := cos.CreateFile(fpath)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := f.WriteString("hello"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := cos.FlushClose(f); err != nil {
		t.Fatalf("FlushClose: %v", err)
	}

	got, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestRemoveFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "gone.dat")
	if err := cos.RemoveFile(fpath); err != nil {
		t.Fatalf("RemoveFile on missing file: %v", err)
	}
}

func TestGenTieReturnsThreeChars(t *testing.T) {
	tie := cos.GenTie()
	if len(tie) != 3 {
		t.Fatalf("got len %d, want 3", len(tie))
	}
}

func TestGenTieIsUniqueAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[cos.GenTie()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected GenTie to vary across calls, got %d distinct values", len(seen))
	}
}

func TestRandStringStrongLength(t *testing.T) {
	s := cos.RandStringStrong(12)
	if len(s) != 12 {
		t.Fatalf("got len %d, want 12", len(s))
	}
}

func TestB2S(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{500, "500B"},
		{1536, "1.5KiB"},
	}
	for _, c := range cases {
		if got := cos.B2S(c.bytes, 1); got != c.want {
			t.Errorf("B2S(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
