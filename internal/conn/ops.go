package conn

import (
	"io"
	"os"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/golang/glog"

	"github.com/glaretechnologies/substrata-sub005/internal/broadcast"
	"github.com/glaretechnologies/substrata-sub005/internal/cos"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/voxel"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

const maxChatMessageBytes = 4000

// handleCreateObject implements spec §4.3's CreateObject row: owner
// must be the logged-in user, and the placement point must be in a
// parcel the user has write perms for, or in a world they own.
func (h *Handler) handleCreateObject(payload []byte) {
	if h.user == nil {
		h.replyError(10, "must be logged in to create objects")
		return
	}
	o, err := world.DecodeObject(payload)
	if err != nil {
		h.replyError(10, "malformed create-object request")
		return
	}
	if !h.canWriteAt(o.Pos) {
		h.replyError(11, "no write permission at that position")
		return
	}

	now := idgen.Timestamp(time.Now().Unix())
	o.UID = idgen.UID(h.all.UIDSeq.Next())
	o.OwnerID = h.user.ID
	o.CreatorID = h.user.ID
	o.CreatedTime = now
	o.LastModifiedTime = now
	o.ContentHash = xxhash.Checksum64(o.VoxelBlob)
	if compressed, cerr := voxel.CompressBlob(o.VoxelBlob); cerr == nil {
		o.VoxelBlob = compressed
	}
	o.RecomputeAABB()

	if !h.ws.InsertObject(o) {
		h.replyError(12, "uid collision")
		return
	}
	h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventCreateObject, UID: o.UID, Payload: o.Encode()})
}

// handleUpdateObject implements spec §4.3's UpdateObject row: the
// object must exist and the user must have write perms at both the old
// and new positions.
func (h *Handler) handleUpdateObject(payload []byte) {
	if h.user == nil {
		h.replyError(10, "must be logged in to update objects")
		return
	}
	upd, err := world.DecodeObject(payload)
	if err != nil {
		h.replyError(10, "malformed update-object request")
		return
	}

	existing := h.ws.GetObject(upd.UID)
	if existing == nil {
		h.replyError(13, "no such object")
		return
	}
	if !h.canWriteAt(existing.Pos) || !h.canWriteAt(upd.Pos) {
		h.replyError(11, "no write permission at old or new position")
		return
	}

	now := idgen.Timestamp(time.Now().Unix())
	ok := h.ws.UpdateObject(upd.UID, now, func(o *world.WorldObject) {
		o.ModelURL = upd.ModelURL
		o.Mats = upd.Mats
		o.Pos = upd.Pos
		o.Rot = upd.Rot
		o.Scale = upd.Scale
		o.ScriptSrc = upd.ScriptSrc
		o.LODBias = upd.LODBias
		o.Flags = upd.Flags
		o.ContentHash = xxhash.Checksum64(upd.VoxelBlob)
		if compressed, cerr := voxel.CompressBlob(upd.VoxelBlob); cerr == nil {
			o.VoxelBlob = compressed
		} else {
			o.VoxelBlob = upd.VoxelBlob
		}
		o.RecomputeAABB()
	})
	if !ok {
		h.replyError(13, "no such object")
		return
	}

	encoded := h.ws.GetObject(upd.UID).Encode()
	h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventUpdateObject, UID: upd.UID, Payload: encoded})
}

// handleDestroyObject implements spec §4.3's DestroyObject row: marks
// the object Dead; the reaper later drains it from the index.
func (h *Handler) handleDestroyObject(payload []byte) {
	if h.user == nil {
		h.replyError(10, "must be logged in to destroy objects")
		return
	}
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		h.replyError(10, "malformed destroy-object request")
		return
	}
	uid := idgen.UID(pr.U64())
	if pr.Err() != nil {
		h.replyError(10, "malformed destroy-object request")
		return
	}

	existing := h.ws.GetObject(uid)
	if existing == nil {
		h.replyError(13, "no such object")
		return
	}
	if !h.canWriteAt(existing.Pos) {
		h.replyError(11, "no write permission at that position")
		return
	}

	now := idgen.Timestamp(time.Now().Unix())
	if !h.ws.MarkObjectDead(uid, now) {
		h.replyError(13, "no such object")
		return
	}

	pw := store.NewPayloadWriter(1)
	pw.U64(uint64(uid))
	h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventDestroyObject, UID: uid, Payload: pw.Finish()})
}

// handleAvatarUpdate implements spec §4.3's AvatarUpdate row: the
// sender must own the avatar it is moving.
func (h *Handler) handleAvatarUpdate(payload []byte) {
	id, pos, rot, err := decodeAvatarUpdate(payload)
	if err != nil || h.av == nil || id != h.av.ID {
		h.replyError(14, "avatar update for a different avatar")
		return
	}
	h.av.Pos = pos
	h.av.Rot = rot
	h.ws.PutAvatar(h.av)
	h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventAvatarUpdate, UID: idgen.UID(h.av.ID), Payload: encodeAvatar(h.av)})
}

// handleChatMessage implements spec §4.3's ChatMessage row: UTF-8,
// bounded size, sender must be authenticated (have an avatar at all --
// spec.md permits anonymous avatars, so "authenticated" here means
// "has joined a world", matching how AvatarUpdate is scoped).
func (h *Handler) handleChatMessage(payload []byte) {
	if h.av == nil {
		h.replyError(15, "not yet in a world")
		return
	}
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		h.replyError(15, "malformed chat message")
		return
	}
	text := pr.Str()
	if pr.Err() != nil || len(text) > maxChatMessageBytes {
		h.replyError(15, "malformed or oversize chat message")
		return
	}

	pw := store.NewPayloadWriter(1)
	pw.U64(uint64(h.av.ID))
	pw.Str(text)
	h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventChatMessage, Payload: pw.Finish()})
}

// handleResourceUploadBegin implements spec §4.3's ResourceUploadBegin
// row: owner rights, size within quota, then transitions to Streaming.
func (h *Handler) handleResourceUploadBegin(payload []byte) {
	if h.user == nil {
		h.replyError(16, "must be logged in to upload resources")
		return
	}
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		h.replyError(16, "malformed upload-begin request")
		return
	}
	url := pr.Str()
	size := pr.I64()
	if pr.Err() != nil {
		h.replyError(16, "malformed upload-begin request")
		return
	}
	if size > h.uploadQuota {
		h.replyError(17, "upload exceeds quota")
		return
	}

	res, rerr := h.all.Resources.BeginTransfer(url, url, h.user.ID)
	if rerr != nil {
		h.replyError(18, rerr.Error())
		return
	}

	tmpPath := h.all.Resources.TempPath(h.tmpSubdir, cos.GenTie())
	f, ferr := cos.CreateFile(tmpPath)
	if ferr != nil {
		h.all.Resources.CancelTransfer(res)
		h.replyError(19, "could not open temp file")
		return
	}

	h.streaming = true
	h.uploadURL = url
	h.uploadFile = res
	h.uploadBytes = size
	h.uploadTmpPth = tmpPath
	h.uploadHandle = f
}

// handleStreamingFrame processes frames while an upload is in
// progress: spec §4.3's Streaming sub-state accepts no other framed
// message until the stream finishes or is cancelled.
func (h *Handler) handleStreamingFrame(id MessageID, payload []byte) bool {
	switch id {
	case MsgResourceUploadChunk:
		if _, err := h.uploadHandle.Write(payload); err != nil {
			h.cancelUpload()
			return false
		}
		return true
	case MsgResourceUploadEnd:
		h.completeUpload()
		return true
	default:
		h.replyError(20, "only upload-chunk/upload-end accepted while streaming")
		return true
	}
}

func (h *Handler) completeUpload() {
	size, err := h.uploadHandle.Seek(0, io.SeekCurrent)
	closeErr := cos.FlushClose(h.uploadHandle)
	if err != nil || closeErr != nil {
		h.cancelUpload()
		return
	}
	finalPath, aerr := h.all.Resources.AbsPath(h.uploadFile)
	if aerr != nil {
		h.cancelUpload()
		return
	}
	if rerr := os.Rename(h.uploadTmpPth, finalPath); rerr != nil {
		glog.Warningf("conn: rename upload into place failed: %v", rerr)
		h.cancelUpload()
		return
	}
	h.all.Resources.CompleteTransfer(h.uploadFile, size)
	h.resetUploadState()
}

// cancelUpload implements spec §4.3's cancellation rule: discard the
// partial file, do not mark the resource Present.
func (h *Handler) cancelUpload() {
	if h.uploadHandle != nil {
		cos.Close(h.uploadHandle)
		_ = cos.RemoveFile(h.uploadTmpPth)
	}
	if h.uploadFile != nil {
		h.all.Resources.CancelTransfer(h.uploadFile)
	}
	h.resetUploadState()
}

func (h *Handler) resetUploadState() {
	h.streaming = false
	h.uploadURL = ""
	h.uploadFile = nil
	h.uploadBytes = 0
	h.uploadTmpPth = ""
	h.uploadHandle = nil
}

// handleVoicePacket implements spec §4.3's VoicePacket row: forward
// verbatim to the voice relay. The conn package only tags the sender's
// avatar id; internal/voice owns the actual UDP fan-out.
func (h *Handler) handleVoicePacket(payload []byte) {
	if h.av == nil || h.voiceForward == nil {
		return
	}
	h.voiceForward(h.ws.Name, h.av.ID, payload)
}
