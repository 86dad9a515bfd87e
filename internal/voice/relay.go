// Package voice implements the UDP voice relay of spec §4.11: every
// packet is a 12-byte header (packet_type=1, client_avatar_uid, seq)
// followed by an Opus payload, forwarded verbatim to every other
// client in the sender's world via their known UDP endpoints. The
// relay adds no buffering and never touches the world-state mutex
// from the hot forwarding path -- it keeps its own short-lived
// endpoint table, updated as avatars join/leave a connection (see
// conn.Handler) and as packets arrive (self-registering the sender's
// source address).
package voice

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/golang/glog"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
)

const (
	packetTypeVoice = 1
	headerSize      = 12
	maxPacketSize   = 4096
)

// Relay owns the avatar-id -> (world, UDP endpoint) table and the
// reverse per-world membership index, all under one short-held mutex
// per spec §5's "no two of the above locks simultaneously" rule --
// this is the relay's only lock, distinct from the world-state mutex.
type Relay struct {
	conn *net.UDPConn

	mu        sync.RWMutex
	worldOf   map[idgen.AvatarID]string
	endpoint  map[idgen.AvatarID]*net.UDPAddr
	byWorld   map[string]map[idgen.AvatarID]struct{}
}

func NewRelay(conn *net.UDPConn) *Relay {
	return &Relay{
		conn:     conn,
		worldOf:  make(map[idgen.AvatarID]string),
		endpoint: make(map[idgen.AvatarID]*net.UDPAddr),
		byWorld:  make(map[string]map[idgen.AvatarID]struct{}),
	}
}

// RegisterAvatar announces that avatarID is now present in worldName,
// called by conn.Handler once a client has joined a world. The UDP
// endpoint itself is learned lazily, from the source address of the
// avatar's first voice packet.
func (r *Relay) RegisterAvatar(worldName string, avatarID idgen.AvatarID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worldOf[avatarID] = worldName
	if r.byWorld[worldName] == nil {
		r.byWorld[worldName] = make(map[idgen.AvatarID]struct{})
	}
	r.byWorld[worldName][avatarID] = struct{}{}
}

// UnregisterAvatar removes avatarID from the relay, called by
// conn.Handler on disconnect.
func (r *Relay) UnregisterAvatar(avatarID idgen.AvatarID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.worldOf[avatarID]; ok {
		delete(r.byWorld[w], avatarID)
		if len(r.byWorld[w]) == 0 {
			delete(r.byWorld, w)
		}
	}
	delete(r.worldOf, avatarID)
	delete(r.endpoint, avatarID)
}

// ListenAndServe runs the UDP receive loop until conn is closed. Each
// iteration reads one packet, parses the fixed 12-byte header,
// registers the sender's endpoint, and fans the packet out verbatim
// to every other avatar known to be in the same world.
func (r *Relay) ListenAndServe() error {
	buf := make([]byte, maxPacketSize)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			glog.Warningf("voice: read error: %v", err)
			continue
		}
		r.handlePacket(buf[:n], addr)
	}
}

func (r *Relay) handlePacket(pkt []byte, from *net.UDPAddr) {
	if len(pkt) < headerSize {
		return
	}
	packetType := binary.LittleEndian.Uint32(pkt[0:4])
	if packetType != packetTypeVoice {
		return
	}
	avatarID := idgen.AvatarID(binary.LittleEndian.Uint32(pkt[4:8]))
	// seq at pkt[8:12] is preserved untouched since the whole packet
	// is forwarded verbatim.

	r.mu.Lock()
	r.endpoint[avatarID] = from
	worldName, known := r.worldOf[avatarID]
	var peers []*net.UDPAddr
	if known {
		for other := range r.byWorld[worldName] {
			if other == avatarID {
				continue
			}
			if ep, ok := r.endpoint[other]; ok {
				peers = append(peers, ep)
			}
		}
	}
	r.mu.Unlock()

	if !known {
		return
	}
	for _, ep := range peers {
		if _, err := r.conn.WriteToUDP(pkt, ep); err != nil {
			glog.Warningf("voice: write to %v failed: %v", ep, err)
		}
	}
}

// Forward relays a VoicePacket payload received over a client's TCP
// connection (spec §4.3) to every other avatar's known UDP endpoint in
// the sender's world, the same fan-out handlePacket uses for
// UDP-sourced packets. It does not learn or touch the sender's own
// endpoint, since a TCP arrival carries no UDP source address to learn
// from.
func (r *Relay) Forward(worldName string, avatarID idgen.AvatarID, payload []byte) {
	r.mu.RLock()
	var peers []*net.UDPAddr
	for other := range r.byWorld[worldName] {
		if other == avatarID {
			continue
		}
		if ep, ok := r.endpoint[other]; ok {
			peers = append(peers, ep)
		}
	}
	r.mu.RUnlock()

	for _, ep := range peers {
		if _, err := r.conn.WriteToUDP(payload, ep); err != nil {
			glog.Warningf("voice: forward to %v failed: %v", ep, err)
		}
	}
}

// Close shuts down the relay's UDP socket, causing a blocked
// ListenAndServe to return.
func (r *Relay) Close() error {
	return r.conn.Close()
}

func isClosedErr(err error) bool {
	ne, ok := err.(*net.OpError)
	return ok && ne.Err.Error() == "use of closed network connection"
}
