package world_test

import (
	"path/filepath"
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

func TestCreateWorldRejectsDuplicateName(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	if _, err := all.CreateWorld("plaza", idgen.UserID(1), 0); err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	if _, err := all.CreateWorld("plaza", idgen.UserID(2), 0); err == nil {
		t.Fatalf("expected duplicate world name to be rejected")
	}
}

func TestCreateWorldRejectsOverlongName(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	longName := string(make([]byte, 1001))
	if _, err := all.CreateWorld(longName, idgen.UserID(1), 0); err == nil {
		t.Fatalf("expected overlong world name to be rejected")
	}
}

func TestGetWorldFindsNoRootBeforeLoadOrCreate(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	if _, ok := all.GetWorld(""); ok {
		t.Fatalf("no root world should exist until LoadAllWorldsState or CreateWorld runs")
	}
}

func TestObjectLifecycle(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	ws, err := all.CreateWorld("w", idgen.UserID(1), 0)
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	obj := &world.WorldObject{UID: 1}
	if !ws.InsertObject(obj) {
		t.Fatalf("expected first insert to succeed")
	}
	if ws.InsertObject(&world.WorldObject{UID: 1}) {
		t.Fatalf("expected duplicate UID insert to fail")
	}

	if got := ws.GetObject(1); got == nil {
		t.Fatalf("expected to find inserted object")
	}

	if !ws.UpdateObject(1, 100, func(o *world.WorldObject) { o.Pos.X = 5 }) {
		t.Fatalf("UpdateObject should succeed for a live object")
	}
	if got := ws.GetObject(1); got.Pos.X != 5 || got.LastModifiedTime != 100 {
		t.Fatalf("mutation/timestamp did not apply: %+v", got)
	}

	if !ws.MarkObjectDead(1, 200) {
		t.Fatalf("MarkObjectDead should succeed for an existing object")
	}
	if ws.GetObject(1) != nil {
		t.Fatalf("a dead object should no longer be visible via GetObject")
	}
	if ws.UpdateObject(1, 300, func(*world.WorldObject) {}) {
		t.Fatalf("UpdateObject on a dead object should fail")
	}

	drained := ws.DrainDeadObjects()
	if len(drained) != 1 || drained[0].UID != 1 {
		t.Fatalf("got drained %+v, want one entry for UID 1", drained)
	}
	if len(ws.DrainDeadObjects()) != 0 {
		t.Fatalf("second drain should find nothing left")
	}
}

func TestSnapshotObjectsExcludesDead(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	ws, _ := all.CreateWorld("w", idgen.UserID(1), 0)

	ws.InsertObject(&world.WorldObject{UID: 1})
	ws.InsertObject(&world.WorldObject{UID: 2})
	ws.MarkObjectDead(2, 0)

	snap := ws.SnapshotObjects()
	if len(snap) != 1 || snap[0].UID != 1 {
		t.Fatalf("got %+v, want only live object UID 1", snap)
	}
}

func TestAABBUnionAndContainsPoint(t *testing.T) {
	a := world.AABB{Min: world.Vec3f{X: 0, Y: 0, Z: 0}, Max: world.Vec3f{X: 1, Y: 1, Z: 1}}
	b := world.AABB{Min: world.Vec3f{X: 2, Y: 2, Z: 2}, Max: world.Vec3f{X: 3, Y: 3, Z: 3}}
	u := a.Union(b)
	if u.Min != (world.Vec3f{X: 0, Y: 0, Z: 0}) || u.Max != (world.Vec3f{X: 3, Y: 3, Z: 3}) {
		t.Fatalf("got union %+v, want bound of both boxes", u)
	}
	if !u.ContainsPoint(world.Vec3f{X: 2.5, Y: 2.5, Z: 2.5}) {
		t.Fatalf("expected point inside the union to be contained")
	}
	if u.ContainsPoint(world.Vec3f{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("expected point outside the union to be rejected")
	}
}

func TestUserAndSessionBookkeeping(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	u := &domain.User{ID: 1, Name: "bob"}
	if err := all.InsertUser(u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := all.InsertUser(&domain.User{ID: 1, Name: "other"}); err == nil {
		t.Fatalf("expected duplicate user id to be rejected")
	}
	if err := all.InsertUser(&domain.User{ID: 2, Name: "bob"}); err == nil {
		t.Fatalf("expected duplicate user name to be rejected")
	}
	if got := all.GetUserByID(1); got != u {
		t.Fatalf("GetUserByID mismatch")
	}
	if got := all.GetUserByName("bob"); got != u {
		t.Fatalf("GetUserByName mismatch")
	}

	sess := &domain.UserWebSession{ID: "sess1", UserID: 1}
	all.InsertSession(sess)
	if all.GetSession("sess1") != sess {
		t.Fatalf("GetSession mismatch")
	}
	if len(all.ListSessions()) != 1 {
		t.Fatalf("expected one session listed")
	}
	all.DeleteSession("sess1")
	if all.GetSession("sess1") != nil {
		t.Fatalf("expected session to be gone after delete")
	}
}

func TestPasswordResetBookkeeping(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	_, hash := domain.NewToken()
	pr := &domain.PasswordReset{UserID: 1, TokenHash: hash, HasToken: true}
	all.PutPasswordReset(pr)
	if all.GetPasswordReset(1) != pr {
		t.Fatalf("GetPasswordReset mismatch")
	}
	if len(all.ListPasswordResets()) != 1 {
		t.Fatalf("expected one outstanding reset")
	}
	all.DeletePasswordReset(1)
	if all.GetPasswordReset(1) != nil {
		t.Fatalf("expected reset to be gone after delete")
	}
}

func TestLoadAllWorldsStateSurvivesFlushAndReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.store")

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	all, err := world.LoadAllWorldsState(s, filepath.Join(dir, "resources"))
	if err != nil {
		t.Fatalf("LoadAllWorldsState: %v", err)
	}
	ws, err := all.CreateWorld("plaza", idgen.UserID(1), 10)
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	ws.InsertObject(&world.WorldObject{UID: 42, Pos: world.Vec3f{X: 1, Y: 2, Z: 3}})
	if err := all.FlushDirty(s); err != nil {
		t.Fatalf("FlushDirty: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
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
		t.Fatalf("LoadAllWorldsState after reopen: %v", err)
	}
	ws2, ok := all2.GetWorld("plaza")
	if !ok {
		t.Fatalf("expected world 'plaza' to survive reopen")
	}
	obj := ws2.GetObject(42)
	if obj == nil || obj.Pos.X != 1 {
		t.Fatalf("got object %+v, want UID 42 with Pos.X=1", obj)
	}
}
