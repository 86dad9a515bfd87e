package store

import (
	"io"
	"os"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/glaretechnologies/substrata-sub005/internal/cos"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

// DBKey is the byte offset of a record's payload start -- spec §4.1's
// "database key." InvalidDBKey marks an entity that has never been
// flushed.
type DBKey = int64

const InvalidDBKey DBKey = -1

// Record is one decoded entry read back by Load.
type Record struct {
	Kind    RecordKind
	Key     DBKey // offset of payload, i.e. record_start+recHdrSize
	Payload []byte
}

// Store is the single-file append-mostly object log of spec §4.1.
// All file writes go through mu; callers serialize entity encoding
// themselves (never while holding the world-state lock, per spec §5).
type Store struct {
	path string

	mu        sync.Mutex
	file      *os.File
	end       DBKey // offset to append the next record at
	freeList  []DBKey
	freeBytes int64 // sum of dead records' on-disk size (header + payload)
}

// Open opens (creating if absent) the store file and positions the
// append cursor at EOF. It does not load records; call Load for that.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	s := &Store{path: path, file: f}
	if info.Size() == 0 {
		if err := s.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := s.readHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.end = end
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *Store) writeHeader() error {
	buf := make([]byte, headerSize)
	byteOrder.PutUint32(buf[0:4], Magic)
	byteOrder.PutUint32(buf[4:8], FormatVersion)
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *Store) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(s.file, buf); err != nil {
		return werrors.Integrity("header", 0, "failed to read store header: %v", err)
	}
	magic := byteOrder.Uint32(buf[0:4])
	version := byteOrder.Uint32(buf[4:8])
	if magic != Magic {
		return werrors.Integrity("header", 0, "bad magic %#x, expected %#x", magic, Magic)
	}
	if version != FormatVersion {
		return werrors.Integrity("header", 0, "unsupported format version %d, expected %d", version, FormatVersion)
	}
	return nil
}

// Append writes a new record for an entity of the given kind to the end
// of the file and returns its database key (the payload's byte offset).
// Per spec §4.1, when an entity is already on disk its old key must be
// freed by the caller via Delete (flush_dirty does this as "add old
// offset to free list, update key to new offset").
func (s *Store) Append(kind RecordKind, payload []byte) (DBKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hdr := make([]byte, recHdrSize)
	byteOrder.PutUint32(hdr[0:4], uint32(kind))
	byteOrder.PutUint32(hdr[4:8], uint32(len(payload)))

	recStart := s.end
	if _, err := s.file.WriteAt(hdr, recStart); err != nil {
		return InvalidDBKey, errors.Wrap(err, "append record header")
	}
	payloadOff := recStart + recHdrSize
	if _, err := s.file.WriteAt(payload, payloadOff); err != nil {
		return InvalidDBKey, errors.Wrap(err, "append record payload")
	}
	s.end = payloadOff + DBKey(len(payload))
	return payloadOff, nil
}

// Delete appends a tombstone record referencing key and adds key to the
// free list, per spec §4.1's delete(key) operation.
func (s *Store) Delete(key DBKey) error {
	if key == InvalidDBKey {
		return nil
	}
	pw := NewPayloadWriter(1)
	pw.I64(int64(key))
	if _, err := s.Append(KindTombstone, pw.Finish()); err != nil {
		return err
	}
	s.mu.Lock()
	s.freeList = append(s.freeList, key)
	s.mu.Unlock()
	return nil
}

// FreeListLen reports the number of reclaimable (dead) byte ranges on
// the free list. The compaction trigger does not use it; it uses
// FreeBytes.
func (s *Store) FreeListLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.freeList)
}

// FreeBytes reports the on-disk size of the dead (tombstoned) records
// found at Load; records deleted since Load are not added. Used to
// decide whether a compaction pass is worth the rewrite cost against
// cfg.Store.CompactMinFree.
func (s *Store) FreeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeBytes
}

// Flush fsyncs pending writes. Called periodically by the flush task,
// never while the world-state lock is held (spec §5).
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Load reads every record from the beginning of the file (skipping the
// header) and returns them in file order. A record whose length extends
// past EOF is treated as absent and the read stops there (spec §4.1's
// "partial writes" failure model: "the loader truncates to the last
// complete record").
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	var records []Record
	off := DBKey(headerSize)
	tombstoned := make(map[DBKey]bool)
	for off < size {
		hdr := make([]byte, recHdrSize)
		if _, err := s.file.ReadAt(hdr, off); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		kind := RecordKind(byteOrder.Uint32(hdr[0:4]))
		length := byteOrder.Uint32(hdr[4:8])
		payloadOff := off + recHdrSize
		payloadEnd := payloadOff + DBKey(length)
		if payloadEnd > size {
			// Torn write at the tail: per spec §4.1, truncate here.
			glog.Warningf("store %s: truncating at offset %d (record extends past EOF)", s.path, off)
			break
		}
		payload := make([]byte, length)
		if _, err := s.file.ReadAt(payload, payloadOff); err != nil {
			return nil, err
		}
		if kind == KindTombstone {
			pr, err := NewPayloadReader(payload)
			if err != nil {
				return nil, werrors.Integrity(kind.String(), off, "bad tombstone payload: %v", err)
			}
			tombstoned[DBKey(pr.I64())] = true
		} else {
			records = append(records, Record{Kind: kind, Key: payloadOff, Payload: payload})
		}
		off = payloadEnd
	}
	s.end = off

	live := records[:0]
	for _, r := range records {
		if !tombstoned[r.Key] {
			live = append(live, r)
		} else {
			s.freeList = append(s.freeList, r.Key)
			s.freeBytes += int64(recHdrSize + len(r.Payload))
		}
	}
	return live, nil
}

// Compact rewrites the file in place, streaming only the records whose
// keys are in liveKeys and building a new (empty) free list, per spec
// §4.1: "compaction rewrites the file in place by streaming live
// records and building a new free list." It returns the mapping from
// old key to new key so callers can update every in-memory entity's
// DBKey field.
func (s *Store) Compact(live []Record) (remap map[DBKey]DBKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.path + ".compact." + cos.GenTie()
	tmp, err := cos.CreateFile(tmpPath)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, headerSize)
	byteOrder.PutUint32(hdr[0:4], Magic)
	byteOrder.PutUint32(hdr[4:8], FormatVersion)
	if _, err := tmp.Write(hdr); err != nil {
		cos.Close(tmp)
		return nil, err
	}

	remap = make(map[DBKey]DBKey, len(live))
	off := DBKey(headerSize)
	for _, r := range live {
		rhdr := make([]byte, recHdrSize)
		byteOrder.PutUint32(rhdr[0:4], uint32(r.Kind))
		byteOrder.PutUint32(rhdr[4:8], uint32(len(r.Payload)))
		if _, err := tmp.Write(rhdr); err != nil {
			cos.Close(tmp)
			return nil, err
		}
		if _, err := tmp.Write(r.Payload); err != nil {
			cos.Close(tmp)
			return nil, err
		}
		newKey := off + recHdrSize
		remap[r.Key] = newKey
		off = newKey + DBKey(len(r.Payload))
	}
	if err := cos.FlushClose(tmp); err != nil {
		return nil, err
	}

	if err := s.file.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	s.file = f
	s.end = off
	s.freeList = nil
	s.freeBytes = 0
	glog.Infof("store %s: compacted, %d live records, new size %s", s.path, len(live), cos.B2S(int64(off), 1))
	return remap, nil
}
