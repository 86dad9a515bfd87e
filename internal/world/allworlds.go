package world

import (
	"sync"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/resource"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

// AllWorldsState exclusively owns every WorldState, all users and
// sessions, the resource registry, and the cross-cutting domain
// entities (orders, auctions, news, events, photos, screenshots,
// password resets) -- spec §3's top-level ownership note.
type AllWorldsState struct {
	worlds *worldsOwner

	mu sync.RWMutex

	usersByID   map[idgen.UserID]*domain.User
	usersByName map[string]*domain.User
	dirtyUsers  map[idgen.UserID]struct{}

	sessions      map[string]*domain.UserWebSession
	dirtySessions map[string]struct{}

	passwordResets      map[idgen.UserID]*domain.PasswordReset
	dirtyPasswordResets map[idgen.UserID]struct{}

	auctions      map[idgen.AuctionID]*domain.Auction
	dirtyAuctions map[idgen.AuctionID]struct{}

	orders      map[idgen.OrderID]*domain.Order
	dirtyOrders map[idgen.OrderID]struct{}

	newsPosts      map[idgen.NewsPostID]*domain.NewsPost
	dirtyNewsPosts map[idgen.NewsPostID]struct{}

	subEvents      map[idgen.SubEventID]*domain.SubEvent
	dirtySubEvents map[idgen.SubEventID]struct{}

	photos      map[idgen.PhotoID]*domain.Photo
	dirtyPhotos map[idgen.PhotoID]struct{}

	screenshots      map[idgen.ScreenshotID]*domain.Screenshot
	dirtyScreenshots map[idgen.ScreenshotID]struct{}

	Resources *resource.Registry

	UIDSeq        *idgen.Sequence
	ParcelIDSeq   *idgen.Sequence
	UserIDSeq     *idgen.Sequence
	AuctionIDSeq  *idgen.Sequence
	OrderIDSeq    *idgen.Sequence
	NewsPostIDSeq *idgen.Sequence
	SubEventIDSeq *idgen.Sequence
	PhotoIDSeq    *idgen.Sequence
	ScreenshotSeq *idgen.Sequence
	ChatBotIDSeq  *idgen.Sequence
	AvatarIDSeq   *idgen.Sequence
}

func NewAllWorldsState(resourceBaseDir string) *AllWorldsState {
	return &AllWorldsState{
		worlds:              newWorldsOwner(),
		usersByID:           make(map[idgen.UserID]*domain.User),
		usersByName:         make(map[string]*domain.User),
		dirtyUsers:          make(map[idgen.UserID]struct{}),
		sessions:            make(map[string]*domain.UserWebSession),
		dirtySessions:       make(map[string]struct{}),
		passwordResets:      make(map[idgen.UserID]*domain.PasswordReset),
		dirtyPasswordResets: make(map[idgen.UserID]struct{}),
		auctions:            make(map[idgen.AuctionID]*domain.Auction),
		dirtyAuctions:       make(map[idgen.AuctionID]struct{}),
		orders:              make(map[idgen.OrderID]*domain.Order),
		dirtyOrders:         make(map[idgen.OrderID]struct{}),
		newsPosts:           make(map[idgen.NewsPostID]*domain.NewsPost),
		dirtyNewsPosts:      make(map[idgen.NewsPostID]struct{}),
		subEvents:           make(map[idgen.SubEventID]*domain.SubEvent),
		dirtySubEvents:      make(map[idgen.SubEventID]struct{}),
		photos:              make(map[idgen.PhotoID]*domain.Photo),
		dirtyPhotos:         make(map[idgen.PhotoID]struct{}),
		screenshots:         make(map[idgen.ScreenshotID]*domain.Screenshot),
		dirtyScreenshots:    make(map[idgen.ScreenshotID]struct{}),
		Resources:           resource.NewRegistry(resourceBaseDir),
		UIDSeq:              &idgen.Sequence{},
		ParcelIDSeq:         &idgen.Sequence{},
		UserIDSeq:           &idgen.Sequence{},
		AuctionIDSeq:        &idgen.Sequence{},
		OrderIDSeq:          &idgen.Sequence{},
		NewsPostIDSeq:       &idgen.Sequence{},
		SubEventIDSeq:       &idgen.Sequence{},
		PhotoIDSeq:          &idgen.Sequence{},
		ScreenshotSeq:       &idgen.Sequence{},
		ChatBotIDSeq:        &idgen.Sequence{},
		AvatarIDSeq:         &idgen.Sequence{},
	}
}

// GetWorld returns the named world, or the root world ("") if name is
// empty. Never creates implicitly (spec §4.2).
func (a *AllWorldsState) GetWorld(name string) (*WorldState, bool) {
	return a.worlds.lookup(name)
}

func (a *AllWorldsState) ListWorlds() []*WorldState {
	snap := a.worlds.get()
	out := make([]*WorldState, 0, len(snap))
	for _, w := range snap {
		out = append(out, w)
	}
	return out
}

// CreateWorld fails if the name is already registered or exceeds 1000
// characters (spec §4.2).
func (a *AllWorldsState) CreateWorld(name string, owner idgen.UserID, now idgen.Timestamp) (*WorldState, error) {
	if len(name) > maxWorldNameLen {
		return nil, werrors.Validation("world name too long: %d", len(name))
	}
	var created *WorldState
	var conflict bool
	a.worlds.modify(func(m map[string]*WorldState) {
		if _, exists := m[name]; exists {
			conflict = true
			return
		}
		created = newWorldState(name, owner, now)
		m[name] = created
	})
	if conflict {
		return nil, werrors.Validation("world already exists: %q", name)
	}
	return created, nil
}

// --- Users ---

func (a *AllWorldsState) GetUserByID(id idgen.UserID) *domain.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.usersByID[id]
}

func (a *AllWorldsState) GetUserByName(name string) *domain.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.usersByName[name]
}

// InsertUser registers a freshly-created user, failing if either its
// name or id is already taken (spec §3's "name and id are both unique
// keys" invariant).
func (a *AllWorldsState) InsertUser(u *domain.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.usersByID[u.ID]; exists {
		return werrors.Validation("user id already exists: %d", u.ID)
	}
	if _, exists := a.usersByName[u.Name]; exists {
		return werrors.Validation("user name already taken: %q", u.Name)
	}
	a.usersByID[u.ID] = u
	a.usersByName[u.Name] = u
	a.dirtyUsers[u.ID] = struct{}{}
	return nil
}

func (a *AllWorldsState) MarkUserDirty(id idgen.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirtyUsers[id] = struct{}{}
}

// --- Sessions ---

func (a *AllWorldsState) GetSession(id string) *domain.UserWebSession {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessions[id]
}

func (a *AllWorldsState) InsertSession(s *domain.UserWebSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[s.ID] = s
	a.dirtySessions[s.ID] = struct{}{}
}

func (a *AllWorldsState) DeleteSession(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, id)
}

// ListSessions returns a snapshot of every live session, for the
// periodic reaper's expiry pass.
func (a *AllWorldsState) ListSessions() []*domain.UserWebSession {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.UserWebSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	return out
}

// --- Password resets ---

func (a *AllWorldsState) GetPasswordReset(userID idgen.UserID) *domain.PasswordReset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.passwordResets[userID]
}

func (a *AllWorldsState) PutPasswordReset(p *domain.PasswordReset) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.passwordResets[p.UserID] = p
	a.dirtyPasswordResets[p.UserID] = struct{}{}
}

// DeletePasswordReset removes a consumed or expired reset token.
func (a *AllWorldsState) DeletePasswordReset(userID idgen.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.passwordResets, userID)
}

// ListPasswordResets returns a snapshot of every outstanding reset
// token, for the periodic reaper's expiry pass.
func (a *AllWorldsState) ListPasswordResets() []*domain.PasswordReset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.PasswordReset, 0, len(a.passwordResets))
	for _, p := range a.passwordResets {
		out = append(out, p)
	}
	return out
}

// --- Auctions ---

func (a *AllWorldsState) GetAuction(id idgen.AuctionID) *domain.Auction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.auctions[id]
}

func (a *AllWorldsState) InsertAuction(auc *domain.Auction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auctions[auc.ID] = auc
	a.dirtyAuctions[auc.ID] = struct{}{}
}

func (a *AllWorldsState) MarkAuctionDirty(id idgen.AuctionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirtyAuctions[id] = struct{}{}
}

func (a *AllWorldsState) ListAuctions() []*domain.Auction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.Auction, 0, len(a.auctions))
	for _, auc := range a.auctions {
		out = append(out, auc)
	}
	return out
}

// --- Orders ---

func (a *AllWorldsState) GetOrder(id idgen.OrderID) *domain.Order {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.orders[id]
}

func (a *AllWorldsState) InsertOrder(o *domain.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders[o.ID] = o
	a.dirtyOrders[o.ID] = struct{}{}
}

// --- News posts ---

func (a *AllWorldsState) GetNewsPost(id idgen.NewsPostID) *domain.NewsPost {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.newsPosts[id]
}

func (a *AllWorldsState) InsertNewsPost(n *domain.NewsPost) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.newsPosts[n.ID] = n
	a.dirtyNewsPosts[n.ID] = struct{}{}
}

func (a *AllWorldsState) MarkNewsPostDirty(id idgen.NewsPostID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirtyNewsPosts[id] = struct{}{}
}

func (a *AllWorldsState) ListNewsPosts() []*domain.NewsPost {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.NewsPost, 0, len(a.newsPosts))
	for _, n := range a.newsPosts {
		out = append(out, n)
	}
	return out
}

// --- Sub-events ---

func (a *AllWorldsState) GetSubEvent(id idgen.SubEventID) *domain.SubEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.subEvents[id]
}

func (a *AllWorldsState) InsertSubEvent(e *domain.SubEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subEvents[e.ID] = e
	a.dirtySubEvents[e.ID] = struct{}{}
}

func (a *AllWorldsState) MarkSubEventDirty(id idgen.SubEventID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirtySubEvents[id] = struct{}{}
}

// --- Photos ---

func (a *AllWorldsState) GetPhoto(id idgen.PhotoID) *domain.Photo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.photos[id]
}

func (a *AllWorldsState) InsertPhoto(p *domain.Photo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.photos[p.ID] = p
	a.dirtyPhotos[p.ID] = struct{}{}
}

// --- Screenshots ---

func (a *AllWorldsState) GetScreenshot(id idgen.ScreenshotID) *domain.Screenshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.screenshots[id]
}

func (a *AllWorldsState) InsertScreenshot(s *domain.Screenshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.screenshots[s.ID] = s
	a.dirtyScreenshots[s.ID] = struct{}{}
}

// TakeDirtyUsers returns and clears the dirty-user id set, for the
// flush task.
func (a *AllWorldsState) TakeDirtyUsers() []idgen.UserID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]idgen.UserID, 0, len(a.dirtyUsers))
	for id := range a.dirtyUsers {
		out = append(out, id)
	}
	a.dirtyUsers = make(map[idgen.UserID]struct{})
	return out
}
