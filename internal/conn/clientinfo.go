package conn

import (
	"time"

	"github.com/golang/glog"

	"github.com/glaretechnologies/substrata-sub005/internal/broadcast"
	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

// doClientInfo implements spec §4.3's AwaitingClientInfo state: expects
// client identity (nullable session cookie, or username/password), then
// allocates a ClientAvatarID and a broadcast-queue subscription, and
// transitions to InWorld(world).
func (h *Handler) doClientInfo() bool {
	id, payload, err := readFrame(h.conn)
	if err != nil {
		return false
	}
	if id != MsgClientInfo {
		h.replyError(2, "expected client info")
		return false
	}

	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		h.replyError(2, "malformed client info")
		return false
	}
	hasSession := pr.Bool()
	sessionID := pr.Str()
	username := pr.Str()
	password := pr.Str()
	worldName := pr.Str()
	if pr.Err() != nil {
		h.replyError(2, "malformed client info")
		return false
	}

	var user *domain.User
	if hasSession {
		sess := h.all.GetSession(sessionID)
		now := idgen.Timestamp(time.Now().Unix())
		if sess == nil || sess.Expired(now, 90*24*3600) {
			h.replyError(3, "invalid or expired session")
			return false
		}
		user = h.all.GetUserByID(sess.UserID)
	} else if username != "" {
		user = h.all.GetUserByName(username)
		if user == nil || !user.CheckPassword(password) {
			h.replyError(3, "invalid username or password")
			return false
		}
	}
	// user == nil is permitted: an anonymous/guest avatar, consistent
	// with the world being joinable without an account.

	ws, ok := h.all.GetWorld(worldName)
	if !ok {
		h.replyError(4, "no such world")
		return false
	}

	avID := idgen.AvatarID(h.all.AvatarIDSeq.Next())
	av := &world.Avatar{ID: avID}
	if user != nil {
		av.UserID = user.ID
		av.Name = user.Name
	} else {
		av.Name = "Guest"
	}
	ws.PutAvatar(av)

	h.user = user
	h.ws = ws
	h.av = av
	h.sub = h.disp.Subscribe(ws.Name)
	h.state = InWorld
	if h.onAvatarJoin != nil {
		h.onAvatarJoin(ws.Name, av.ID)
	}

	ack := store.NewPayloadWriter(1)
	ack.U64(uint64(avID))
	if err := h.writeFrame(MsgClientInfoAck, ack.Finish()); err != nil {
		return false
	}

	h.sendWorldSnapshot()

	h.disp.Publish(ws.Name, broadcast.Event{Kind: broadcast.EventAvatarUpdate, UID: idgen.UID(av.ID), Payload: encodeAvatar(av)})
	glog.V(3).Infof("conn: avatar %d joined world %q", av.ID, ws.Name)
	return true
}

// sendWorldSnapshot writes every live object, parcel and avatar of
// h.ws directly to the socket, atomically with respect to the
// subscription already being active -- the subscription was
// established before this call, so any CUD events racing the snapshot
// are queued rather than lost (spec §4.3: "worker atomically snapshots
// that world's state to the client, then subscribes").
func (h *Handler) sendWorldSnapshot() {
	for _, o := range h.ws.SnapshotObjects() {
		_ = h.writeFrame(MsgWorldSnapshotObject, o.Encode())
	}
	for _, p := range h.ws.SnapshotParcels() {
		_ = h.writeFrame(MsgWorldSnapshotParcel, p.Encode())
	}
	for _, a := range h.ws.SnapshotAvatars() {
		_ = h.writeFrame(MsgWorldSnapshotAvatar, encodeAvatar(a))
	}
	_ = h.writeFrame(MsgWorldSnapshotDone, nil)
}

func encodeAvatar(a *world.Avatar) []byte {
	pw := store.NewPayloadWriter(1)
	pw.U64(uint64(a.ID))
	pw.U32(uint32(a.UserID))
	pw.Str(a.Name)
	pw.F64(float64(a.Pos.X))
	pw.F64(float64(a.Pos.Y))
	pw.F64(float64(a.Pos.Z))
	pw.F64(float64(a.Rot.X))
	pw.F64(float64(a.Rot.Y))
	pw.F64(float64(a.Rot.Z))
	return pw.Finish()
}

func decodeAvatarUpdate(payload []byte) (idgen.AvatarID, world.Vec3f, world.Vec3f, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return 0, world.Vec3f{}, world.Vec3f{}, err
	}
	id := idgen.AvatarID(pr.U64())
	pos := world.Vec3f{X: float32(pr.F64()), Y: float32(pr.F64()), Z: float32(pr.F64())}
	rot := world.Vec3f{X: float32(pr.F64()), Y: float32(pr.F64()), Z: float32(pr.F64())}
	return id, pos, rot, pr.Err()
}
