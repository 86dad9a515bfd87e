package parcel_test

import (
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/parcel"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

func newTestWorld(t *testing.T, name string, owner idgen.UserID) *world.WorldState {
	t.Helper()
	all := world.NewAllWorldsState(t.TempDir())
	ws, err := all.CreateWorld(name, owner, 0)
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	return ws
}

func square(minX, minY, maxX, maxY float32) [4]world.Vec2f {
	return [4]world.Vec2f{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

func TestCanWriteAtPersonalWorldAlwaysAllowed(t *testing.T) {
	ws := newTestWorld(t, "", idgen.UserID(1))
	if !parcel.CanWriteAt(ws, idgen.UserID(1), world.Vec3f{}) {
		t.Fatalf("owner of a personal world should be able to write anywhere in it")
	}
}

func TestCanWriteAtRequiresParcelPermission(t *testing.T) {
	ws := newTestWorld(t, "shared", idgen.UserID(99))

	p := &world.Parcel{ID: 1, OwnerID: idgen.UserID(5), Verts: square(0, 0, 10, 10), ZBounds: world.ZBounds{Min: -1, Max: 1}}
	p.RecomputeAABB()
	ws.InsertParcel(p)

	if parcel.CanWriteAt(ws, idgen.UserID(42), world.Vec3f{X: 5, Y: 5, Z: 0}) {
		t.Fatalf("non-owner/non-writer should not be able to write into the parcel")
	}
	if !parcel.CanWriteAt(ws, idgen.UserID(5), world.Vec3f{X: 5, Y: 5, Z: 0}) {
		t.Fatalf("parcel owner should be able to write inside their own parcel")
	}
}

func TestCanWriteAtOutsideAnyParcelDenied(t *testing.T) {
	ws := newTestWorld(t, "shared", idgen.UserID(99))

	p := &world.Parcel{ID: 1, OwnerID: idgen.UserID(5), Verts: square(0, 0, 10, 10), ZBounds: world.ZBounds{Min: -1, Max: 1}}
	p.RecomputeAABB()
	ws.InsertParcel(p)

	if parcel.CanWriteAt(ws, idgen.UserID(5), world.Vec3f{X: 100, Y: 100, Z: 0}) {
		t.Fatalf("point far outside every parcel should not be writable even by a parcel owner")
	}
}

func TestCanWriteAtAllWriteableParcel(t *testing.T) {
	ws := newTestWorld(t, "shared", idgen.UserID(99))

	p := &world.Parcel{ID: 1, OwnerID: idgen.UserID(5), AllWriteable: true, Verts: square(0, 0, 10, 10), ZBounds: world.ZBounds{Min: -1, Max: 1}}
	p.RecomputeAABB()
	ws.InsertParcel(p)

	if !parcel.CanWriteAt(ws, idgen.UserID(42), world.Vec3f{X: 5, Y: 5, Z: 0}) {
		t.Fatalf("any valid user should be able to write in an all-writeable parcel")
	}
	if parcel.CanWriteAt(ws, idgen.InvalidUserID, world.Vec3f{X: 5, Y: 5, Z: 0}) {
		t.Fatalf("an invalid user id should never be granted write permission")
	}
}

func TestParcelAtReturnsContainingParcel(t *testing.T) {
	ws := newTestWorld(t, "shared", idgen.UserID(99))

	p1 := &world.Parcel{ID: 1, Verts: square(0, 0, 10, 10), ZBounds: world.ZBounds{Min: -1, Max: 1}}
	p1.RecomputeAABB()
	ws.InsertParcel(p1)

	p2 := &world.Parcel{ID: 2, Verts: square(100, 100, 110, 110), ZBounds: world.ZBounds{Min: -1, Max: 1}}
	p2.RecomputeAABB()
	ws.InsertParcel(p2)

	got := parcel.ParcelAt(ws, world.Vec3f{X: 5, Y: 5, Z: 0})
	if got == nil || got.ID != 1 {
		t.Fatalf("got %+v, want parcel 1", got)
	}

	if parcel.ParcelAt(ws, world.Vec3f{X: 500, Y: 500, Z: 0}) != nil {
		t.Fatalf("expected nil for a point outside every parcel")
	}
}
