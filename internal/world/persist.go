package world

import (
	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

// LoadAllWorldsState implements spec §4.1's load(): read every live
// record from s, dispatch by kind, and rebuild the in-memory indexes,
// recording each entity's database key so future re-saves land at the
// same identity. Called once at startup, before any connection is
// accepted, so no locking discipline is needed here.
func LoadAllWorldsState(s *store.Store, resourceBaseDir string) (*AllWorldsState, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}

	a := NewAllWorldsState(resourceBaseDir)

	for _, rec := range records {
		switch rec.Kind {
		case store.KindWorldMeta:
			m, err := decodeWorldMeta(rec.Payload)
			if err != nil {
				return nil, err
			}
			ws := newWorldState(m.Name, m.OwnerID, m.CreatedTime)
			ws.Description = m.Description
			ws.metaDBKey = rec.Key
			ws.metaDirty = false
			a.worlds.worlds[m.Name] = ws

		case store.KindObject:
			o, err := DecodeObject(rec.Payload)
			if err != nil {
				return nil, err
			}
			o.DBKey = rec.Key
			if ws, ok := a.worlds.worlds[o.WorldName]; ok {
				ws.objects[o.UID] = o
				a.UIDSeq.Observe(uint64(o.UID))
			}

		case store.KindParcel:
			p, err := DecodeParcel(rec.Payload)
			if err != nil {
				return nil, err
			}
			p.DBKey = rec.Key
			if ws, ok := a.worlds.worlds[p.WorldName]; ok {
				ws.parcels[p.ID] = p
				a.ParcelIDSeq.Observe(uint64(p.ID))
			}

		case store.KindChatBot:
			c, err := domain.DecodeChatBot(rec.Payload)
			if err != nil {
				return nil, err
			}
			c.DBKey = rec.Key
			if ws, ok := a.worlds.worlds[c.WorldName]; ok {
				ws.chatBots[c.ID] = c
				a.ChatBotIDSeq.Observe(uint64(c.ID))
			}

		case store.KindUser:
			u, err := domain.DecodeUser(rec.Payload)
			if err != nil {
				return nil, err
			}
			u.DBKey = rec.Key
			a.usersByID[u.ID] = u
			a.usersByName[u.Name] = u
			a.UserIDSeq.Observe(uint64(u.ID))

		case store.KindSession:
			sess, err := domain.DecodeSession(rec.Payload)
			if err != nil {
				return nil, err
			}
			sess.DBKey = rec.Key
			a.sessions[sess.ID] = sess

		case store.KindPasswordReset:
			pr, err := domain.DecodePasswordReset(rec.Payload)
			if err != nil {
				return nil, err
			}
			pr.DBKey = rec.Key
			a.passwordResets[pr.UserID] = pr

		case store.KindAuction:
			auc, err := domain.DecodeAuction(rec.Payload)
			if err != nil {
				return nil, err
			}
			auc.DBKey = rec.Key
			a.auctions[auc.ID] = auc
			a.AuctionIDSeq.Observe(uint64(auc.ID))

		case store.KindOrder:
			o, err := domain.DecodeOrder(rec.Payload)
			if err != nil {
				return nil, err
			}
			o.DBKey = rec.Key
			a.orders[o.ID] = o
			a.OrderIDSeq.Observe(uint64(o.ID))

		case store.KindNewsPost:
			n, err := domain.DecodeNewsPost(rec.Payload)
			if err != nil {
				return nil, err
			}
			n.DBKey = rec.Key
			a.newsPosts[n.ID] = n
			a.NewsPostIDSeq.Observe(uint64(n.ID))

		case store.KindSubEvent:
			e, err := domain.DecodeSubEvent(rec.Payload)
			if err != nil {
				return nil, err
			}
			e.DBKey = rec.Key
			a.subEvents[e.ID] = e
			a.SubEventIDSeq.Observe(uint64(e.ID))

		case store.KindPhoto:
			p, err := domain.DecodePhoto(rec.Payload)
			if err != nil {
				return nil, err
			}
			p.DBKey = rec.Key
			a.photos[p.ID] = p
			a.PhotoIDSeq.Observe(uint64(p.ID))

		case store.KindScreenshot:
			sc, err := domain.DecodeScreenshot(rec.Payload)
			if err != nil {
				return nil, err
			}
			sc.DBKey = rec.Key
			a.screenshots[sc.ID] = sc
			a.ScreenshotSeq.Observe(uint64(sc.ID))

		case store.KindResource:
			// Nothing appends resource records, and the resource
			// registry is not persisted: it starts empty and fills
			// lazily as uploads and references arrive, so this kind is
			// skipped.

		default:
			return nil, werrors.Integrity("store", int64(rec.Key), "unknown record kind %d", rec.Kind)
		}
	}

	if _, ok := a.worlds.worlds[""]; !ok {
		root := newWorldState("", idgen.InvalidUserID, 0)
		root.metaDirty = true
		a.worlds.worlds[""] = root
	}

	return a, nil
}

// FlushDirty implements spec §4.1's flush_dirty(): walk per-kind dirty
// sets and append new records, updating each entity's key. Parents are
// flushed before children that reference them (world metadata before
// objects/parcels/chat-bots; users before sessions) so a crash never
// leaves a dangling key.
func (a *AllWorldsState) FlushDirty(s *store.Store) error {
	a.mu.Lock()
	for id := range a.dirtyUsers {
		u := a.usersByID[id]
		if u == nil {
			continue
		}
		key, err := s.Append(store.KindUser, u.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		u.DBKey = key
		u.Dirty = false
	}
	a.dirtyUsers = make(map[idgen.UserID]struct{})

	for id := range a.dirtySessions {
		sess := a.sessions[id]
		if sess == nil {
			continue
		}
		key, err := s.Append(store.KindSession, sess.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		sess.DBKey = key
		sess.Dirty = false
	}
	a.dirtySessions = make(map[string]struct{})

	for id := range a.dirtyPasswordResets {
		pr := a.passwordResets[id]
		if pr == nil {
			continue
		}
		key, err := s.Append(store.KindPasswordReset, pr.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		pr.DBKey = key
		pr.Dirty = false
	}
	a.dirtyPasswordResets = make(map[idgen.UserID]struct{})

	for id := range a.dirtyNewsPosts {
		n := a.newsPosts[id]
		if n == nil {
			continue
		}
		key, err := s.Append(store.KindNewsPost, n.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		n.DBKey = key
		n.Dirty = false
	}
	a.dirtyNewsPosts = make(map[idgen.NewsPostID]struct{})

	for id := range a.dirtySubEvents {
		e := a.subEvents[id]
		if e == nil {
			continue
		}
		key, err := s.Append(store.KindSubEvent, e.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		e.DBKey = key
		e.Dirty = false
	}
	a.dirtySubEvents = make(map[idgen.SubEventID]struct{})

	for id := range a.dirtyPhotos {
		p := a.photos[id]
		if p == nil {
			continue
		}
		key, err := s.Append(store.KindPhoto, p.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		p.DBKey = key
		p.Dirty = false
	}
	a.dirtyPhotos = make(map[idgen.PhotoID]struct{})

	for id := range a.dirtyScreenshots {
		sc := a.screenshots[id]
		if sc == nil {
			continue
		}
		key, err := s.Append(store.KindScreenshot, sc.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		sc.DBKey = key
		sc.Dirty = false
	}
	a.dirtyScreenshots = make(map[idgen.ScreenshotID]struct{})

	// Orders referenced by Auction.OrderID, so flush before auctions.
	for id := range a.dirtyOrders {
		o := a.orders[id]
		if o == nil {
			continue
		}
		key, err := s.Append(store.KindOrder, o.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		o.DBKey = key
		o.Dirty = false
	}
	a.dirtyOrders = make(map[idgen.OrderID]struct{})

	for id := range a.dirtyAuctions {
		auc := a.auctions[id]
		if auc == nil {
			continue
		}
		key, err := s.Append(store.KindAuction, auc.Encode())
		if err != nil {
			a.mu.Unlock()
			return err
		}
		auc.DBKey = key
		auc.Dirty = false
	}
	a.dirtyAuctions = make(map[idgen.AuctionID]struct{})
	a.mu.Unlock()

	for _, ws := range a.worlds.get() {
		if err := ws.flushDirty(s); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorldState) flushDirty(s *store.Store) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.metaDirty {
		m := &worldMeta{Name: w.Name, OwnerID: w.OwnerID, CreatedTime: w.CreatedTime, Description: w.Description}
		key, err := s.Append(store.KindWorldMeta, m.encode())
		if err != nil {
			return err
		}
		w.metaDBKey = key
		w.metaDirty = false
	}

	for uid := range w.dirtyObjects {
		o := w.objects[uid]
		if o == nil {
			continue
		}
		key, err := s.Append(store.KindObject, o.Encode())
		if err != nil {
			return err
		}
		o.DBKey = key
		o.FromLocalDirty = false
		o.FromRemoteDirty = false
	}
	w.dirtyObjects = make(map[idgen.UID]struct{})

	for id := range w.dirtyParcels {
		p := w.parcels[id]
		if p == nil {
			continue
		}
		key, err := s.Append(store.KindParcel, p.Encode())
		if err != nil {
			return err
		}
		p.DBKey = key
		p.Dirty = false
	}
	w.dirtyParcels = make(map[idgen.ParcelID]struct{})

	for id := range w.dirtyChatBots {
		c := w.chatBots[id]
		if c == nil {
			continue
		}
		key, err := s.Append(store.KindChatBot, c.Encode())
		if err != nil {
			return err
		}
		c.DBKey = key
		c.Dirty = false
	}
	w.dirtyChatBots = make(map[idgen.ChatBotID]struct{})

	return nil
}
