// Package cos provides small low-level helpers shared across substrata
// packages: file create/sync-close/remove helpers, process-fatal logging, and
// a handful of string/byte utilities. Modeled on the call-site shape of
// aistore's cmn/cos package (CreateFile/FlushClose/RemoveFile, Assert,
// ExitLogf, GenTie) even though that package's own source was not part
// of the retrieved reference set.
package cos

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// Assert panics if cond is false. Reserved for invariants that indicate a
// programming error, never for user-triggerable conditions.
func Assert(cond bool) {
	if !cond {
		panic("assertion failed")
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

// ExitLogf logs a fatal message and terminates the process. Used only
// during startup, before any runner has been started.
func ExitLogf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
	glog.Flush()
	os.Exit(1)
}

func Exitf(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	glog.Flush()
	os.Exit(1)
}

// CreateFile creates fpath for writing, including parent directories.
func CreateFile(fpath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

func FlushClose(f *os.File) error {
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func Close(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func RemoveFile(fpath string) error {
	err := os.Remove(fpath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// GenTie returns a short, process-local tiebreaker string, used to make
// temp-file names differ across concurrent writers, matching the
// tie-generation idiom of cmn.GenTie (teris-io/shortid's alphabet). Only
// the low 8 bits of a counter feed it, so values repeat every 256 calls.
const tieABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var tieCounter atomic.Int32

func GenTie() string {
	tie := tieCounter.Add(1)
	b0 := tieABC[tie&0x3f]
	b1 := tieABC[-tie&0x3f]
	b2 := tieABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}

// RandStringStrong returns n random alphanumeric characters, used for
// opaque ids that are not content-addressed (daemon ids, dry-run tags).
func RandStringStrong(n int) string {
	const abc = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = abc[rand.Intn(len(abc))]
	}
	return string(b)
}

// B2S formats a byte count as a human-readable string, e.g. "1.5KiB".
func B2S(b int64, digits int) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.*f%ciB", digits, float64(b)/float64(div), "KMGTPE"[exp])
}
