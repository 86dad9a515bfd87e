package world

import (
	"github.com/glaretechnologies/substrata-sub005/internal/store"
)

// liveRecord pairs one store.Record destined for the rewritten file
// with the callback that fixes up its owning entity's DBKey once the
// rewrite is done.
type liveRecord struct {
	rec      store.Record
	applyKey func(store.DBKey)
}

// recordFor builds a liveRecord for an entity that has actually been
// flushed at least once (key == store.InvalidDBKey means it only
// exists in memory and has nothing in the store file to rewrite).
func recordFor(kind store.RecordKind, key store.DBKey, payload []byte, setKey func(store.DBKey)) (liveRecord, bool) {
	if key == store.InvalidDBKey {
		return liveRecord{}, false
	}
	return liveRecord{rec: store.Record{Kind: kind, Key: key, Payload: payload}, applyKey: setKey}, true
}

// CompactStore implements spec §4.1's periodic compaction: collect
// every currently-addressable record across every persisted entity
// kind (the cross-cutting ones this struct owns directly, plus each
// world's objects/parcels/chat-bots/meta), hand them to the store for
// an in-place rewrite, and fix up every entity's DBKey from the
// returned remap. Resources are excluded -- KindResource is never
// appended to the store file in the first place, since the resource
// registry is not persisted and starts empty at every startup.
//
// CompactStore must be called from the same single-goroutine
// flush/compaction task that calls FlushDirty, and never concurrently
// with it: a record appended after this method collects its live set
// but before Compact finishes rewriting the file would be silently
// dropped.
func (a *AllWorldsState) CompactStore(s *store.Store) error {
	live := a.collectOwnLiveRecords()
	for _, ws := range a.worlds.get() {
		live = append(live, ws.collectLiveRecords()...)
	}

	recs := make([]store.Record, len(live))
	for i, lr := range live {
		recs[i] = lr.rec
	}

	remap, err := s.Compact(recs)
	if err != nil {
		return err
	}
	for _, lr := range live {
		if newKey, ok := remap[lr.rec.Key]; ok {
			lr.applyKey(newKey)
		}
	}
	return nil
}

func (a *AllWorldsState) collectOwnLiveRecords() []liveRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []liveRecord
	for _, u := range a.usersByID {
		if lr, ok := recordFor(u.Kind(), u.DBKeyGet(), u.Encode(), u.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, sess := range a.sessions {
		if lr, ok := recordFor(sess.Kind(), sess.DBKeyGet(), sess.Encode(), sess.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, pr := range a.passwordResets {
		if lr, ok := recordFor(pr.Kind(), pr.DBKeyGet(), pr.Encode(), pr.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, n := range a.newsPosts {
		if lr, ok := recordFor(n.Kind(), n.DBKeyGet(), n.Encode(), n.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, e := range a.subEvents {
		if lr, ok := recordFor(e.Kind(), e.DBKeyGet(), e.Encode(), e.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, p := range a.photos {
		if lr, ok := recordFor(p.Kind(), p.DBKeyGet(), p.Encode(), p.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, sc := range a.screenshots {
		if lr, ok := recordFor(sc.Kind(), sc.DBKeyGet(), sc.Encode(), sc.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	// Orders before auctions mirrors FlushDirty's ordering, though
	// compaction's remap application is order-independent: both are
	// fixed up only after the whole rewrite completes.
	for _, o := range a.orders {
		if lr, ok := recordFor(o.Kind(), o.DBKeyGet(), o.Encode(), o.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, auc := range a.auctions {
		if lr, ok := recordFor(auc.Kind(), auc.DBKeyGet(), auc.Encode(), auc.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	return out
}

func (w *WorldState) collectLiveRecords() []liveRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []liveRecord
	if w.metaDBKey != store.InvalidDBKey {
		m := &worldMeta{Name: w.Name, OwnerID: w.OwnerID, CreatedTime: w.CreatedTime, Description: w.Description}
		if lr, ok := recordFor(store.KindWorldMeta, w.metaDBKey, m.encode(), func(k store.DBKey) { w.metaDBKey = k }); ok {
			out = append(out, lr)
		}
	}
	for _, o := range w.objects {
		if lr, ok := recordFor(o.Kind(), o.DBKeyGet(), o.Encode(), o.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, p := range w.parcels {
		if lr, ok := recordFor(p.Kind(), p.DBKeyGet(), p.Encode(), p.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	for _, c := range w.chatBots {
		if lr, ok := recordFor(c.Kind(), c.DBKeyGet(), c.Encode(), c.DBKeySet); ok {
			out = append(out, lr)
		}
	}
	return out
}
