// Package store implements the persistent, append-style object store of
// spec §4.1: a single file holding a magic/version header followed by a
// sequence of self-describing records, plus an in-memory free list and
// per-kind dirty-set driven flush. Compact's rewrite-to-temp-then-rename
// is grounded on cmn/jsp.Save; the header is written in place, the free
// list is kept only in memory, and records carry no checksum. Unlike jsp (one meta file per
// save), this package is a single append-mostly log, because spec §4.1
// requires stable "database key = byte offset" addressing that a
// rewrite-whole-file-every-time scheme cannot provide.
package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RecordKind enumerates every persisted entity kind of spec §3.
type RecordKind uint32

const (
	KindUser RecordKind = iota + 1
	KindSession
	KindResource
	KindWorldMeta
	KindObject
	KindParcel
	KindAuction
	KindOrder
	KindNewsPost
	KindSubEvent
	KindPhoto
	KindScreenshot
	KindPasswordReset
	KindChatBot
	KindTombstone
)

func (k RecordKind) String() string {
	names := map[RecordKind]string{
		KindUser: "user", KindSession: "session", KindResource: "resource",
		KindWorldMeta: "world_meta", KindObject: "object", KindParcel: "parcel",
		KindAuction: "auction", KindOrder: "order",
		KindNewsPost: "news_post", KindSubEvent: "sub_event", KindPhoto: "photo",
		KindScreenshot: "screenshot", KindPasswordReset: "password_reset",
		KindChatBot: "chat_bot", KindTombstone: "tombstone",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Magic identifies a substrata store file; FormatVersion covers the
// outer record framing only (not individual entity payload versions,
// which are independent per spec §4.1's forward-compatibility goal).
const (
	Magic         uint32 = 0x53554230 // "SUB0"
	FormatVersion uint32 = 1

	headerSize = 8 // u32 magic + u32 format_version
	recHdrSize = 8 // u32 kind + u32 length
)

var byteOrder = binary.LittleEndian

// PayloadWriter accumulates an entity's versioned, length-prefixed
// payload: u32 entity_version, u32 payload_size (patched after encoding
// the fields), then the fields themselves. Every entity Encode method
// uses one of these so the "skip to record_start+8+length" forward-
// compatibility promise of spec §4.1 holds uniformly.
type PayloadWriter struct {
	buf []byte
}

func NewPayloadWriter(version uint32) *PayloadWriter {
	pw := &PayloadWriter{buf: make([]byte, 8, 64)}
	byteOrder.PutUint32(pw.buf[0:4], version)
	// payload_size patched in Finish()
	return pw
}

func (pw *PayloadWriter) u32(v uint32) { pw.buf = byteOrder.AppendUint32(pw.buf, v) }
func (pw *PayloadWriter) u64(v uint64) { pw.buf = byteOrder.AppendUint64(pw.buf, v) }

func (pw *PayloadWriter) U32(v uint32)   { pw.u32(v) }
func (pw *PayloadWriter) U64(v uint64)   { pw.u64(v) }
func (pw *PayloadWriter) I64(v int64)    { pw.u64(uint64(v)) }
func (pw *PayloadWriter) F64(v float64)  { pw.u64(math.Float64bits(v)) }
func (pw *PayloadWriter) Byte(v byte) { pw.buf = append(pw.buf, v) }
func (pw *PayloadWriter) Bool(v bool) {
	if v {
		pw.Byte(1)
	} else {
		pw.Byte(0)
	}
}
func (pw *PayloadWriter) Bytes(b []byte) {
	pw.u32(uint32(len(b)))
	pw.buf = append(pw.buf, b...)
}
func (pw *PayloadWriter) Str(s string) { pw.Bytes([]byte(s)) }
func (pw *PayloadWriter) StrSlice(ss []string) {
	pw.u32(uint32(len(ss)))
	for _, s := range ss {
		pw.Str(s)
	}
}
func (pw *PayloadWriter) U32Slice(vs []uint32) {
	pw.u32(uint32(len(vs)))
	for _, v := range vs {
		pw.u32(v)
	}
}
func (pw *PayloadWriter) U64Slice(vs []uint64) {
	pw.u32(uint32(len(vs)))
	for _, v := range vs {
		pw.u64(v)
	}
}

// Finish finalizes the payload, patching in the payload_size field
// (the size of everything after the two header u32s).
func (pw *PayloadWriter) Finish() []byte {
	size := uint32(len(pw.buf) - 8)
	byteOrder.PutUint32(pw.buf[4:8], size)
	return pw.buf
}

// PayloadReader parses a payload written by PayloadWriter.
type PayloadReader struct {
	buf     []byte
	off     int
	Version uint32
	err     error
}

func NewPayloadReader(payload []byte) (*PayloadReader, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("payload too short: %d bytes", len(payload))
	}
	version := byteOrder.Uint32(payload[0:4])
	size := byteOrder.Uint32(payload[4:8])
	if int(size) != len(payload)-8 {
		return nil, fmt.Errorf("payload_size mismatch: header says %d, got %d", size, len(payload)-8)
	}
	return &PayloadReader{buf: payload[8:], Version: version}, nil
}

func (pr *PayloadReader) Err() error { return pr.err }

func (pr *PayloadReader) need(n int) bool {
	if pr.err != nil {
		return false
	}
	if pr.off+n > len(pr.buf) {
		pr.err = fmt.Errorf("payload truncated: need %d bytes at offset %d, have %d", n, pr.off, len(pr.buf))
		return false
	}
	return true
}

func (pr *PayloadReader) U32() uint32 {
	if !pr.need(4) {
		return 0
	}
	v := byteOrder.Uint32(pr.buf[pr.off:])
	pr.off += 4
	return v
}
func (pr *PayloadReader) U64() uint64 {
	if !pr.need(8) {
		return 0
	}
	v := byteOrder.Uint64(pr.buf[pr.off:])
	pr.off += 8
	return v
}
func (pr *PayloadReader) I64() int64   { return int64(pr.U64()) }
func (pr *PayloadReader) F64() float64 { return math.Float64frombits(pr.U64()) }
func (pr *PayloadReader) Byte() byte {
	if !pr.need(1) {
		return 0
	}
	v := pr.buf[pr.off]
	pr.off++
	return v
}
func (pr *PayloadReader) Bool() bool { return pr.Byte() != 0 }
func (pr *PayloadReader) Bytes() []byte {
	n := pr.U32()
	if !pr.need(int(n)) {
		return nil
	}
	b := make([]byte, n)
	copy(b, pr.buf[pr.off:pr.off+int(n)])
	pr.off += int(n)
	return b
}
func (pr *PayloadReader) Str() string { return string(pr.Bytes()) }
func (pr *PayloadReader) StrSlice() []string {
	n := pr.U32()
	out := make([]string, n)
	for i := range out {
		out[i] = pr.Str()
	}
	return out
}
func (pr *PayloadReader) U32Slice() []uint32 {
	n := pr.U32()
	out := make([]uint32, n)
	for i := range out {
		out[i] = pr.U32()
	}
	return out
}
func (pr *PayloadReader) U64Slice() []uint64 {
	n := pr.U32()
	out := make([]uint64, n)
	for i := range out {
		out[i] = pr.U64()
	}
	return out
}

// Remaining returns the number of payload bytes not yet consumed;
// callers use it only in tests, since forward-compat readers must
// tolerate trailing fields written by a newer version.
func (pr *PayloadReader) Remaining() int { return len(pr.buf) - pr.off }
