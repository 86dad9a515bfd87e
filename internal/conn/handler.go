package conn

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/glaretechnologies/substrata-sub005/internal/broadcast"
	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/parcel"
	"github.com/glaretechnologies/substrata-sub005/internal/resource"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

// State is one of spec §4.3's protocol states. Streaming is tracked as
// a separate bool rather than a distinct State value, since it is a
// sub-state multiplexed onto InWorld.
type State int

const (
	AwaitingHello State = iota
	AwaitingClientInfo
	InWorld
	Closing
)

const closingFlushTimeout = 2 * time.Second

// Handler owns one client socket: one goroutine runs Run, a second
// forwards dispatcher broadcasts to the same socket once InWorld is
// reached. Grounded on ais/daemon.go's rungroup: a die/cancellation
// context polled at every suspension point, fanning a single shutdown
// out to every runner -- scaled down here to the two runners (read
// loop, forward loop) of one connection.
type Handler struct {
	conn net.Conn
	all  *world.AllWorldsState
	disp *broadcast.Dispatcher

	uploadQuota int64
	tmpSubdir   string

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	state State
	ws    *world.WorldState
	user  *domain.User
	av    *world.Avatar
	sub   *broadcast.Subscriber

	streaming    bool
	uploadURL    string
	uploadFile   *resource.Resource
	uploadBytes  int64
	uploadTmpPth string
	uploadHandle *os.File

	voiceForward  func(worldName string, avatarID idgen.AvatarID, payload []byte)
	onAvatarJoin  func(worldName string, avatarID idgen.AvatarID)
	onAvatarLeave func(avatarID idgen.AvatarID)
}

// SetVoiceForward installs the callback used to forward VoicePacket
// messages to the UDP voice relay (internal/voice), keeping conn free
// of a direct dependency on the relay's socket.
func (h *Handler) SetVoiceForward(fn func(worldName string, avatarID idgen.AvatarID, payload []byte)) {
	h.voiceForward = fn
}

// SetVoiceRelayHooks wires this connection's avatar lifecycle into the
// UDP voice relay's endpoint table (internal/voice.Relay), so the
// relay learns which avatars are in which world without importing
// conn or world directly.
func (h *Handler) SetVoiceRelayHooks(onJoin func(worldName string, avatarID idgen.AvatarID), onLeave func(avatarID idgen.AvatarID)) {
	h.onAvatarJoin = onJoin
	h.onAvatarLeave = onLeave
}

func NewHandler(c net.Conn, all *world.AllWorldsState, disp *broadcast.Dispatcher, uploadQuota int64, tmpSubdir string) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		conn:        c,
		all:         all,
		disp:        disp,
		uploadQuota: uploadQuota,
		tmpSubdir:   tmpSubdir,
		ctx:         ctx,
		cancel:      cancel,
		state:       AwaitingHello,
	}
}

// Run drives the connection until it closes or a framing error occurs.
// It never returns an error; all failures are logged and result in the
// socket being closed, per spec §4.3's "framing errors terminate"
// failure model.
func (h *Handler) Run() {
	defer h.cleanup()

	if !h.doHandshake() {
		return
	}

	if !h.doClientInfo() {
		return
	}

	var fwg sync.WaitGroup
	fwg.Add(1)
	go func() {
		defer fwg.Done()
		h.forwardLoop()
	}()

	h.readLoop()

	// Closing: give the forward loop a bounded window to flush whatever
	// is already queued (spec §4.3's "best-effort, bounded time" rule)
	// before tearing the connection down.
	h.state = Closing
	time.Sleep(closingFlushTimeout)
	h.cancel()
	fwg.Wait()
}

func (h *Handler) doHandshake() bool {
	id, payload, err := readFrame(h.conn)
	if err != nil {
		glog.Warningf("conn: handshake read failed: %v", err)
		return false
	}
	if id != MsgHello || len(payload) < 8 {
		return false
	}
	magic := le32(payload[0:4])
	version := le32(payload[4:8])
	if magic != ProtocolMagic || version != ProtocolVersion {
		_ = h.writeFrame(MsgVersionMismatch, nil)
		return false
	}
	h.state = AwaitingClientInfo
	return true
}

func (h *Handler) cleanup() {
	h.cancel()
	if h.streaming {
		h.cancelUpload()
	}
	if h.sub != nil && h.ws != nil {
		h.disp.Unsubscribe(h.ws.Name, h.sub)
	}
	if h.av != nil && h.ws != nil {
		h.ws.RemoveAvatar(h.av.ID)
		h.disp.Publish(h.ws.Name, broadcast.Event{Kind: broadcast.EventAvatarDead, UID: idgen.UID(h.av.ID)})
	}
	if h.av != nil && h.onAvatarLeave != nil {
		h.onAvatarLeave(h.av.ID)
	}
	_ = h.conn.Close()
}

func (h *Handler) writeFrame(id MessageID, payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return writeFrame(h.conn, id, payload)
}

// forwardLoop is the second runner: it drains this connection's
// broadcast subscription and writes each event to the socket, until
// the handler's context is cancelled. It never touches world-state
// locks directly -- h.sub.Receive only reads from the subscriber's own
// queue.
func (h *Handler) forwardLoop() {
	for {
		ev, ok := h.sub.Receive(h.ctx)
		if !ok {
			return
		}
		if h.sub.TakeLagged() {
			h.sendWorldSnapshot()
		}
		if err := h.writeEvent(ev); err != nil {
			return
		}
	}
}

func (h *Handler) writeEvent(ev broadcast.Event) error {
	var id MessageID
	switch ev.Kind {
	case broadcast.EventCreateObject:
		id = MsgCreateObject
	case broadcast.EventUpdateObject:
		id = MsgUpdateObject
	case broadcast.EventDestroyObject:
		id = MsgDestroyObject
	case broadcast.EventAvatarUpdate:
		id = MsgAvatarUpdate
	case broadcast.EventAvatarDead:
		id = MsgAvatarDead
	case broadcast.EventChatMessage:
		id = MsgChatMessage
	default:
		return nil
	}
	return h.writeFrame(id, ev.Payload)
}

// readLoop is the first runner: it processes inbound frames strictly
// in arrival order, per spec §4.3's ordering rule.
func (h *Handler) readLoop() {
	for {
		id, payload, err := readFrame(h.conn)
		if err != nil {
			return
		}
		if h.streaming {
			if !h.handleStreamingFrame(id, payload) {
				return
			}
			continue
		}
		if !h.dispatch(id, payload) {
			return
		}
	}
}

// dispatch implements the message table of spec §4.3: one function per
// id. Returns false on a framing-level failure that should terminate
// the connection; validation failures are replied as Error frames and
// return true.
func (h *Handler) dispatch(id MessageID, payload []byte) bool {
	switch id {
	case MsgCreateObject:
		h.handleCreateObject(payload)
	case MsgUpdateObject:
		h.handleUpdateObject(payload)
	case MsgDestroyObject:
		h.handleDestroyObject(payload)
	case MsgAvatarUpdate:
		h.handleAvatarUpdate(payload)
	case MsgChatMessage:
		h.handleChatMessage(payload)
	case MsgResourceUploadBegin:
		h.handleResourceUploadBegin(payload)
	case MsgVoicePacket:
		h.handleVoicePacket(payload)
	default:
		h.replyError(1, "unexpected message id in InWorld state")
	}
	return true
}

func (h *Handler) replyError(code uint32, msg string) {
	pw := store.NewPayloadWriter(1)
	pw.U32(code)
	pw.Str(msg)
	_ = h.writeFrame(MsgError, pw.Finish())
}

func (h *Handler) canWriteAt(p world.Vec3f) bool {
	if h.user == nil {
		return false
	}
	return parcel.CanWriteAt(h.ws, h.user.ID, p)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
