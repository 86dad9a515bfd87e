package world_test

import (
	"path/filepath"
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

func TestCompactStoreReclaimsSupersededRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.store")

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	all, err := world.LoadAllWorldsState(s, filepath.Join(dir, "resources"))
	if err != nil {
		t.Fatalf("LoadAllWorldsState: %v", err)
	}

	u := &domain.User{ID: idgen.UserID(1), Name: "alice"}
	if err := all.InsertUser(u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	ws, err := all.CreateWorld("plaza", idgen.InvalidUserID, 0)
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	ws.InsertObject(&world.WorldObject{UID: 42, Pos: world.Vec3f{X: 1, Y: 2, Z: 3}})
	if err := all.FlushDirty(s); err != nil {
		t.Fatalf("FlushDirty (1): %v", err)
	}

	firstKey := u.DBKey
	if firstKey == store.InvalidDBKey {
		t.Fatalf("expected user to have a valid DBKey after the first flush")
	}

	// Mutate and re-flush: this leaves the first on-disk copy of u
	// orphaned in the file (nothing ever tombstones a superseded
	// record today), which is exactly the garbage CompactStore exists
	// to reclaim.
	u.Name = "alice2"
	all.MarkUserDirty(u.ID)
	if err := all.FlushDirty(s); err != nil {
		t.Fatalf("FlushDirty (2): %v", err)
	}
	secondKey := u.DBKey
	if secondKey == firstKey {
		t.Fatalf("expected the second flush to land at a new DBKey")
	}

	recordsBefore, err := s.Load()
	if err != nil {
		t.Fatalf("Load before compaction: %v", err)
	}
	if len(recordsBefore) < 3 {
		t.Fatalf("expected at least 3 live records before compaction (2 user revisions + 1 object), got %d", len(recordsBefore))
	}

	if err := all.CompactStore(s); err != nil {
		t.Fatalf("CompactStore: %v", err)
	}

	if u.DBKey == secondKey {
		t.Fatalf("expected compaction to remap the user's DBKey")
	}
	if obj := ws.GetObject(42); obj == nil {
		t.Fatalf("expected object 42 to survive compaction in memory")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	all2, err := world.LoadAllWorldsState(s2, filepath.Join(dir, "resources"))
	if err != nil {
		t.Fatalf("LoadAllWorldsState after compaction: %v", err)
	}
	got := all2.GetUserByID(u.ID)
	if got == nil || got.Name != "alice2" {
		t.Fatalf("got user %+v after reopen, want Name=alice2", got)
	}
	ws2, ok := all2.GetWorld("plaza")
	if !ok {
		t.Fatalf("expected world 'plaza' to survive compaction + reopen")
	}
	if obj := ws2.GetObject(42); obj == nil || obj.Pos.X != 1 {
		t.Fatalf("got object %+v after reopen, want UID 42 with Pos.X=1", obj)
	}

	recordsAfter, err := s2.Load()
	if err != nil {
		t.Fatalf("Load after compaction: %v", err)
	}
	if len(recordsAfter) >= len(recordsBefore) {
		t.Fatalf("expected compaction to shrink the live record count: before=%d after=%d", len(recordsBefore), len(recordsAfter))
	}
}
