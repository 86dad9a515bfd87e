// Package parcel answers spec §4.6's question: "may user u place or
// modify an object at point p in world w?" Grounded on
// authn.Token.CheckPermissions's two-level (cluster-wide vs per-bucket)
// ACL shape: a personal world owned by u is the cluster-wide fast path,
// parcel owner/admin/writer lists are the per-bucket level.
package parcel

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

// CanWriteAt implements spec §4.6's algorithm:
// (1) if w is a personal world owned by u, yes.
// (2) else iterate parcels of w; for each parcel whose cached AABB
//     contains p, evaluate userHasWritePerms(u); yes on first positive.
// (3) else no.
func CanWriteAt(ws *world.WorldState, u idgen.UserID, p world.Vec3f) bool {
	if ws.IsPersonalWorldOf(u) {
		return true
	}
	for _, parc := range ws.SnapshotParcels() {
		if !parc.ContainsPoint(p) {
			continue
		}
		if parc.UserHasWritePerms(u) {
			return true
		}
	}
	return false
}

// ParcelAt returns the first parcel of ws whose AABB contains p, or nil.
// Used to resolve which parcel an object is being placed into (for
// auctions, photos, events).
func ParcelAt(ws *world.WorldState, p world.Vec3f) *world.Parcel {
	for _, parc := range ws.SnapshotParcels() {
		if parc.ContainsPoint(p) {
			return parc
		}
	}
	return nil
}
