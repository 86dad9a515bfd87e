// Package conn owns one client socket each and translates between its
// wire protocol and the world-state container, per spec §4.3. Framing
// reuses the store package's versioned/length-prefixed payload codec
// (§3) so one binary discipline spans both the wire protocol and the
// disk format.
package conn

import (
	"encoding/binary"
	"io"

	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const (
	// ProtocolMagic is the first 4 bytes of the payload of the client's
	// opening MsgHello frame; the handshake rejects a connection whose
	// Hello carries any other value.
	ProtocolMagic   uint32 = 0x53554231 // "SUB1"
	ProtocolVersion uint32 = 1

	frameHdrSize  = 8 // u32 msg id, u32 length
	maxFrameBytes = 64 << 20
)

// MessageID tags a framed message's payload shape (spec §4.3's table).
type MessageID uint32

const (
	MsgHello MessageID = iota + 1
	MsgVersionMismatch
	MsgClientInfo
	MsgClientInfoAck
	MsgError
	MsgWorldSnapshotObject
	MsgWorldSnapshotParcel
	MsgWorldSnapshotAvatar
	MsgWorldSnapshotDone
	MsgCreateObject
	MsgUpdateObject
	MsgDestroyObject
	MsgAvatarUpdate
	MsgAvatarDead
	MsgChatMessage
	MsgResourceUploadBegin
	MsgResourceUploadChunk
	MsgResourceUploadEnd
	MsgVoicePacket
)

// readFrame reads one {u32 id, u32 length, payload} frame. Framing
// errors (bad length, oversize) are fatal per spec §4.3's failure
// model; the caller closes the connection on any non-nil error.
func readFrame(r io.Reader) (MessageID, []byte, error) {
	var hdr [frameHdrSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	id := MessageID(binary.LittleEndian.Uint32(hdr[0:4]))
	length := binary.LittleEndian.Uint32(hdr[4:8])
	if length > maxFrameBytes {
		return 0, nil, werrors.Protocol("frame too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return id, payload, nil
}

func writeFrame(w io.Writer, id MessageID, payload []byte) error {
	var hdr [frameHdrSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(id))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}
