package domain

import (
	"math"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const (
	auctionVersion = 1
	maxScreenshots = 1000 // spec §3: "up to 1000 screenshot ids"
)

type AuctionState int

const (
	AuctionForSale AuctionState = iota
	AuctionSold
)

// AuctionLock is a bidder's temporary hold on an in-progress auction,
// grounded on original_source/server/AuctionLock.h.
type AuctionLock struct {
	CreatedTime    idgen.Timestamp
	LockDuration   int64 // seconds
	LockingUserID  idgen.UserID
}

// Auction is spec §3's Auction entity, grounded on
// original_source/server/ParcelAuction.h for the exact field set the
// distilled spec.md summarizes as "for-sale state, start/end price,
// ...".
type Auction struct {
	ID        idgen.AuctionID
	ParcelID  idgen.ParcelID
	State     AuctionState
	StartTime idgen.Timestamp
	EndTime   idgen.Timestamp

	StartPrice float64
	EndPrice   float64
	SoldPrice  float64 // set if Sold
	SoldTime   idgen.Timestamp
	OrderID    idgen.OrderID // set if Sold

	LastLockedTime idgen.Timestamp
	LockDuration   int64

	ScreenshotIDs []idgen.ScreenshotID
	Locks         []AuctionLock

	DBKey store.DBKey
	Dirty bool
}

func (a *Auction) Kind() store.RecordKind { return store.KindAuction }
func (a *Auction) DBKeyGet() store.DBKey  { return a.DBKey }
func (a *Auction) DBKeySet(k store.DBKey) { a.DBKey = k }

// CurrentlyForSale implements spec §3/§8: "currentlyForSale(now) ≡
// state=ForSale ∧ now ≤ auction_end_time."
func (a *Auction) CurrentlyForSale(now idgen.Timestamp) bool {
	return a.State == AuctionForSale && now <= a.EndTime
}

// ComputeAuctionPrice implements the linear price-decay formula of
// spec §3/§8 scenario 4: lerp(start,end,(t-start)/(end-start)) rounded
// to 2 decimal places, clamped to the auction window's endpoints.
func (a *Auction) ComputeAuctionPrice(t idgen.Timestamp) float64 {
	if t <= a.StartTime {
		return round2(a.StartPrice)
	}
	if t >= a.EndTime {
		return round2(a.EndPrice)
	}
	frac := float64(t-a.StartTime) / float64(a.EndTime-a.StartTime)
	price := a.StartPrice + frac*(a.EndPrice-a.StartPrice)
	return round2(price)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsLocked reports whether a bid lock is currently in effect.
func (a *Auction) IsLocked(now idgen.Timestamp) bool {
	if a.LastLockedTime == 0 {
		return false
	}
	return int64(now)-int64(a.LastLockedTime) < a.LockDuration
}

// LockForBid attempts to place a bidding lock, returning false if the
// auction is already locked by someone else (AuctionLock.h's
// "lockForPayPalBid"/"lockForCoinbaseBid" collapsed into one path since
// spec.md treats payment-provider choice as out of scope).
func (a *Auction) LockForBid(userID idgen.UserID, now idgen.Timestamp, lockDuration int64) bool {
	if a.IsLocked(now) {
		return false
	}
	a.LastLockedTime = now
	a.LockDuration = lockDuration
	a.Locks = append(a.Locks, AuctionLock{CreatedTime: now, LockDuration: lockDuration, LockingUserID: userID})
	a.Dirty = true
	return true
}

func (a *Auction) Encode() []byte {
	pw := store.NewPayloadWriter(auctionVersion)
	pw.U64(uint64(a.ID))
	pw.U32(uint32(a.ParcelID))
	pw.U32(uint32(a.State))
	pw.I64(int64(a.StartTime))
	pw.I64(int64(a.EndTime))
	pw.F64(a.StartPrice)
	pw.F64(a.EndPrice)
	pw.F64(a.SoldPrice)
	pw.I64(int64(a.SoldTime))
	pw.U64(uint64(a.OrderID))
	pw.I64(int64(a.LastLockedTime))
	pw.I64(a.LockDuration)
	ids := make([]uint64, len(a.ScreenshotIDs))
	for i, id := range a.ScreenshotIDs {
		ids[i] = uint64(id)
	}
	pw.U64Slice(ids)
	pw.U32(uint32(len(a.Locks)))
	for _, l := range a.Locks {
		pw.I64(int64(l.CreatedTime))
		pw.I64(l.LockDuration)
		pw.U32(uint32(l.LockingUserID))
	}
	return pw.Finish()
}

func DecodeAuction(payload []byte) (*Auction, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	a := &Auction{}
	a.ID = idgen.AuctionID(pr.U64())
	a.ParcelID = idgen.ParcelID(pr.U32())
	a.State = AuctionState(pr.U32())
	a.StartTime = idgen.Timestamp(pr.I64())
	a.EndTime = idgen.Timestamp(pr.I64())
	a.StartPrice = pr.F64()
	a.EndPrice = pr.F64()
	a.SoldPrice = pr.F64()
	a.SoldTime = idgen.Timestamp(pr.I64())
	a.OrderID = idgen.OrderID(pr.U64())
	a.LastLockedTime = idgen.Timestamp(pr.I64())
	a.LockDuration = pr.I64()
	for _, id := range pr.U64Slice() {
		a.ScreenshotIDs = append(a.ScreenshotIDs, idgen.ScreenshotID(id))
	}
	n := pr.U32()
	for i := uint32(0); i < n; i++ {
		a.Locks = append(a.Locks, AuctionLock{
			CreatedTime:   idgen.Timestamp(pr.I64()),
			LockDuration:  pr.I64(),
			LockingUserID: idgen.UserID(pr.U32()),
		})
	}
	if pr.Err() != nil {
		return nil, werrors.Integrity("auction", 0, "%v", pr.Err())
	}
	if len(a.ScreenshotIDs) > maxScreenshots {
		return nil, werrors.Integrity("auction", 0, "too many screenshot ids: %d", len(a.ScreenshotIDs))
	}
	return a, nil
}
