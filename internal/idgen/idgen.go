// Package idgen provides the server's identifier and time primitives:
// stable numeric ids for every entity kind, and a UTC timestamp type with
// human-formatting helpers. Grounded on cmn/shortid.go's tie/sequence
// generation idiom, adapted from string UUIDs to plain integer sequence
// numbers because the store's database key and the "stable numeric id"
// invariant of spec §3 call for integers, not strings.
package idgen

import (
	"fmt"
	"strings"

	"go.uber.org/atomic"
)

// UserID and ParcelID are 32-bit per spec §3; every other entity id is
// 64-bit. Each is a distinct type so the compiler catches cross-kind
// mix-ups (passing an AuctionID where a UID is expected, etc).
type (
	UserID       uint32
	ParcelID     uint32
	UID          uint64 // WorldObject
	AvatarID     uint64 // ClientAvatarID
	ChatBotID    uint64
	OrderID      uint64
	AuctionID    uint64
	NewsPostID   uint64
	SubEventID   uint64
	PhotoID      uint64
	ScreenshotID uint64
)

const (
	InvalidUserID       UserID       = ^UserID(0)
	InvalidParcelID     ParcelID     = ^ParcelID(0)
	InvalidUID          UID          = ^UID(0)
	InvalidAvatarID     AvatarID     = ^AvatarID(0)
	InvalidChatBotID    ChatBotID    = ^ChatBotID(0)
	InvalidOrderID      OrderID      = ^OrderID(0)
	InvalidAuctionID    AuctionID    = ^AuctionID(0)
	InvalidNewsPostID   NewsPostID   = ^NewsPostID(0)
	InvalidSubEventID   SubEventID   = ^SubEventID(0)
	InvalidPhotoID      PhotoID      = ^PhotoID(0)
	InvalidScreenshotID ScreenshotID = ^ScreenshotID(0)
)

func (id UserID) IsValid() bool       { return id != InvalidUserID }
func (id ParcelID) IsValid() bool     { return id != InvalidParcelID }
func (id UID) IsValid() bool          { return id != InvalidUID }
func (id AvatarID) IsValid() bool     { return id != InvalidAvatarID }
func (id ChatBotID) IsValid() bool    { return id != InvalidChatBotID }
func (id OrderID) IsValid() bool      { return id != InvalidOrderID }
func (id AuctionID) IsValid() bool    { return id != InvalidAuctionID }
func (id NewsPostID) IsValid() bool   { return id != InvalidNewsPostID }
func (id SubEventID) IsValid() bool   { return id != InvalidSubEventID }
func (id PhotoID) IsValid() bool      { return id != InvalidPhotoID }
func (id ScreenshotID) IsValid() bool { return id != InvalidScreenshotID }

// Sequence is a monotonically increasing id allocator for one entity kind,
// backed by an atomic counter the way cmn/shortid.go's rtie counter backs
// GenTie(); AllWorldsState owns one Sequence per numeric id kind and
// initializes it from the highest id seen while loading the store.
type Sequence struct {
	n atomic.Uint64
}

func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// Observe bumps the sequence forward so a freshly-loaded store never
// reissues an id that already exists on disk.
func (s *Sequence) Observe(id uint64) {
	for {
		cur := s.n.Load()
		if id <= cur {
			return
		}
		if s.n.CAS(cur, id) {
			return
		}
	}
}

// Timestamp is seconds since 1970 UTC, matching spec §3's 64-bit
// timestamp exactly.
type Timestamp int64

func (t Timestamp) Unix() int64 { return int64(t) }

// FormatDuration renders a duration in seconds the way the admin UI and
// auction/event pages do, e.g. "7 days, 4 hours and 37 minutes" for
// 604800+14400+2220, per spec §8 scenario 5.
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	days := totalSeconds / 86400
	totalSeconds -= days * 86400
	hours := totalSeconds / 3600
	totalSeconds -= hours * 3600
	minutes := totalSeconds / 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		return "0 minutes"
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
