package world

import (
	"sync"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
)

const maxWorldNameLen = 1000

// WorldState is the single source of truth for one world's mutable
// state: objects, parcels, chat-bots and avatars, each exclusively
// owned (spec §3's ownership note). All mutation goes through the
// embedded mutex, held only for the map operation itself.
type WorldState struct {
	mu sync.RWMutex

	Name        string
	OwnerID     idgen.UserID
	CreatedTime idgen.Timestamp
	Description string

	objects  map[idgen.UID]*WorldObject
	parcels  map[idgen.ParcelID]*Parcel
	chatBots map[idgen.ChatBotID]*domain.ChatBot
	avatars  map[idgen.AvatarID]*Avatar

	dirtyObjects  map[idgen.UID]struct{}
	dirtyParcels  map[idgen.ParcelID]struct{}
	dirtyChatBots map[idgen.ChatBotID]struct{}

	metaDBKey store.DBKey
	metaDirty bool
}

func newWorldState(name string, owner idgen.UserID, now idgen.Timestamp) *WorldState {
	return &WorldState{
		Name:          name,
		OwnerID:       owner,
		CreatedTime:   now,
		objects:       make(map[idgen.UID]*WorldObject),
		parcels:       make(map[idgen.ParcelID]*Parcel),
		chatBots:      make(map[idgen.ChatBotID]*domain.ChatBot),
		avatars:       make(map[idgen.AvatarID]*Avatar),
		dirtyObjects:  make(map[idgen.UID]struct{}),
		dirtyParcels:  make(map[idgen.ParcelID]struct{}),
		dirtyChatBots: make(map[idgen.ChatBotID]struct{}),
		metaDBKey:     store.InvalidDBKey,
		metaDirty:     true,
	}
}

// IsPersonalWorldOf reports whether this world is a personal world
// owned by u -- the fast path of spec §4.6's permissions algorithm.
func (w *WorldState) IsPersonalWorldOf(u idgen.UserID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.OwnerID == u && u != idgen.InvalidUserID
}

// GetObject returns the object for uid, or nil if absent or Dead.
func (w *WorldState) GetObject(uid idgen.UID) *WorldObject {
	w.mu.RLock()
	defer w.mu.RUnlock()
	o := w.objects[uid]
	if o == nil || o.State == ObjectDead {
		return nil
	}
	return o
}

// InsertObject adds a brand-new object, stamping its state and world
// name, and marks it dirty. Fails if uid is already present (spec §4.2's "exactly one live
// entry per UID" invariant).
func (w *WorldState) InsertObject(o *WorldObject) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.objects[o.UID]; exists {
		return false
	}
	o.State = ObjectJustCreated
	o.WorldName = w.Name
	w.objects[o.UID] = o
	w.dirtyObjects[o.UID] = struct{}{}
	return true
}

// UpdateObject applies mutate to the object named by uid while holding
// the write lock, stamps last_modified_time, and marks it dirty. mutate
// must not block or perform I/O.
func (w *WorldState) UpdateObject(uid idgen.UID, now idgen.Timestamp, mutate func(*WorldObject)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[uid]
	if !ok || o.State == ObjectDead {
		return false
	}
	mutate(o)
	o.LastModifiedTime = now
	o.FromLocalDirty = true
	o.State = ObjectAlive
	w.dirtyObjects[uid] = struct{}{}
	return true
}

// MarkObjectDead flips state to Dead; only this call may do so.
func (w *WorldState) MarkObjectDead(uid idgen.UID, now idgen.Timestamp) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[uid]
	if !ok {
		return false
	}
	o.State = ObjectDead
	o.LastModifiedTime = now
	o.FromLocalDirty = true
	w.dirtyObjects[uid] = struct{}{}
	return true
}

// DrainDeadObjects removes every Dead object from the primary map and
// the dirty set, returning their store keys so the caller can tombstone
// them (spec §4.2's reaper pass).
func (w *WorldState) DrainDeadObjects() []struct {
	UID   idgen.UID
	DBKey int64
} {
	w.mu.Lock()
	defer w.mu.Unlock()
	var drained []struct {
		UID   idgen.UID
		DBKey int64
	}
	for uid, o := range w.objects {
		if o.State != ObjectDead {
			continue
		}
		drained = append(drained, struct {
			UID   idgen.UID
			DBKey int64
		}{UID: uid, DBKey: int64(o.DBKey)})
		delete(w.objects, uid)
		delete(w.dirtyObjects, uid)
	}
	return drained
}

// SnapshotObjects returns a copy of the live object pointers, for
// sending an initial world snapshot to a newly-connected client.
func (w *WorldState) SnapshotObjects() []*WorldObject {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*WorldObject, 0, len(w.objects))
	for _, o := range w.objects {
		if o.State != ObjectDead {
			out = append(out, o)
		}
	}
	return out
}

func (w *WorldState) GetParcel(id idgen.ParcelID) *Parcel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.parcels[id]
}

func (w *WorldState) SnapshotParcels() []*Parcel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Parcel, 0, len(w.parcels))
	for _, p := range w.parcels {
		out = append(out, p)
	}
	return out
}

func (w *WorldState) InsertParcel(p *Parcel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p.WorldName = w.Name
	w.parcels[p.ID] = p
	w.dirtyParcels[p.ID] = struct{}{}
}

func (w *WorldState) MarkParcelDirty(id idgen.ParcelID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirtyParcels[id] = struct{}{}
}

func (w *WorldState) GetAvatar(id idgen.AvatarID) *Avatar {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.avatars[id]
}

func (w *WorldState) PutAvatar(a *Avatar) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.avatars[a.ID] = a
}

func (w *WorldState) RemoveAvatar(id idgen.AvatarID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.avatars, id)
}

func (w *WorldState) SnapshotAvatars() []*Avatar {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Avatar, 0, len(w.avatars))
	for _, a := range w.avatars {
		out = append(out, a)
	}
	return out
}

func (w *WorldState) GetChatBot(id idgen.ChatBotID) *domain.ChatBot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chatBots[id]
}

func (w *WorldState) InsertChatBot(c *domain.ChatBot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c.WorldName = w.Name
	w.chatBots[c.ID] = c
	w.dirtyChatBots[c.ID] = struct{}{}
}

// TakeDirtyObjects returns and clears the set of dirty object UIDs.
func (w *WorldState) TakeDirtyObjects() []idgen.UID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]idgen.UID, 0, len(w.dirtyObjects))
	for uid := range w.dirtyObjects {
		out = append(out, uid)
	}
	w.dirtyObjects = make(map[idgen.UID]struct{})
	return out
}

func (w *WorldState) TakeDirtyParcels() []idgen.ParcelID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]idgen.ParcelID, 0, len(w.dirtyParcels))
	for id := range w.dirtyParcels {
		out = append(out, id)
	}
	w.dirtyParcels = make(map[idgen.ParcelID]struct{})
	return out
}
