package store_test

import (
	"path/filepath"
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/store"
)

func openTemp(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "world.store"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendLoadRoundTrip(t *testing.T) {
	s := openTemp(t)

	pw := store.NewPayloadWriter(1)
	pw.Str("hello")
	pw.U64(42)
	payload := pw.Finish()

	key, err := s.Append(store.KindUser, payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if key == store.InvalidDBKey {
		t.Fatalf("Append returned InvalidDBKey")
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Kind != store.KindUser {
		t.Fatalf("got kind %v, want KindUser", records[0].Kind)
	}
	if records[0].Key != key {
		t.Fatalf("got key %d, want %d", records[0].Key, key)
	}

	pr, err := store.NewPayloadReader(records[0].Payload)
	if err != nil {
		t.Fatalf("NewPayloadReader: %v", err)
	}
	if got := pr.Str(); got != "hello" {
		t.Fatalf("got str %q, want %q", got, "hello")
	}
	if got := pr.U64(); got != 42 {
		t.Fatalf("got u64 %d, want 42", got)
	}
}

func TestDeleteAddsToFreeList(t *testing.T) {
	s := openTemp(t)

	pw := store.NewPayloadWriter(1)
	pw.Str("x")
	key, err := s.Append(store.KindUser, pw.Finish())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if s.FreeListLen() != 0 {
		t.Fatalf("expected empty free list before delete")
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.FreeListLen() != 1 {
		t.Fatalf("got free list len %d, want 1", s.FreeListLen())
	}
}

func TestLoadSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.store")

	s1, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pw := store.NewPayloadWriter(1)
	pw.Str("persisted")
	if _, err := s1.Append(store.KindNewsPost, pw.Finish()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s1.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	records, err := s2.Load()
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if len(records) != 1 || records[0].Kind != store.KindNewsPost {
		t.Fatalf("unexpected records after reopen: %+v", records)
	}
}

func TestPayloadReaderErrorsOnShortBuffer(t *testing.T) {
	_, err := store.NewPayloadReader([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected error decoding too-short payload")
	}
}
