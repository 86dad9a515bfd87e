package world

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const parcelVersion = 1

// NFTStatus tracks a parcel's minting state.
type NFTStatus int

const (
	NotNFT NFTStatus = iota
	MintingNFT
	MintedNFT
)

func (s NFTStatus) String() string {
	switch s {
	case NotNFT:
		return "not_nft"
	case MintingNFT:
		return "minting"
	case MintedNFT:
		return "minted"
	default:
		return "unknown"
	}
}

// Vec2f is a 2D world-space point, used for parcel vertices.
type Vec2f struct{ X, Y float32 }

// ZBounds is a parcel's vertical extent.
type ZBounds struct{ Min, Max float32 }

// Parcel is a rectangular (or quadrilateral) region of world space with
// its own ownership and write-permission lists, per spec §3.
type Parcel struct {
	ID          idgen.ParcelID
	WorldName   string
	OwnerID     idgen.UserID
	CreatedTime idgen.Timestamp
	Description string

	AdminIDs       []idgen.UserID
	WriterIDs      []idgen.UserID
	ChildParcelIDs []idgen.ParcelID
	AllWriteable   bool

	Verts   [4]Vec2f
	ZBounds ZBounds

	AABBMin Vec3f // cached 3D bound, union(verts, zbounds)
	AABBMax Vec3f

	NFTStatus  NFTStatus
	MintingTx  string

	AuctionIDs []idgen.AuctionID

	// Denormalised usernames, kept only for wire transmission -- never
	// authoritative, recomputed from AllWorldsState's user table
	// whenever the owner/admin/writer lists change.
	OwnerUsername   string
	AdminUsernames  []string
	WriterUsernames []string

	DBKey store.DBKey
	Dirty bool
}

func (p *Parcel) Kind() store.RecordKind { return store.KindParcel }
func (p *Parcel) DBKeyGet() store.DBKey  { return p.DBKey }
func (p *Parcel) DBKeySet(k store.DBKey) { p.DBKey = k }

// RecomputeAABB implements spec §3's `aabb = union(verts, zbounds)`
// invariant, called whenever verts or zbounds change.
func (p *Parcel) RecomputeAABB() {
	minX, maxX := p.Verts[0].X, p.Verts[0].X
	minY, maxY := p.Verts[0].Y, p.Verts[0].Y
	for _, v := range p.Verts[1:] {
		minX, maxX = minf(minX, v.X), maxf(maxX, v.X)
		minY, maxY = minf(minY, v.Y), maxf(maxY, v.Y)
	}
	p.AABBMin = Vec3f{X: minX, Y: minY, Z: p.ZBounds.Min}
	p.AABBMax = Vec3f{X: maxX, Y: maxY, Z: p.ZBounds.Max}
}

func (p *Parcel) ContainsPoint(pt Vec3f) bool {
	return pt.X >= p.AABBMin.X && pt.X <= p.AABBMax.X &&
		pt.Y >= p.AABBMin.Y && pt.Y <= p.AABBMax.Y &&
		pt.Z >= p.AABBMin.Z && pt.Z <= p.AABBMax.Z
}

// UserHasWritePerms implements spec §3's parcel invariant:
// u = owner ∨ u ∈ admins ∨ u ∈ writers ∨ (all_writeable ∧ u ≠ invalid).
func (p *Parcel) UserHasWritePerms(u idgen.UserID) bool {
	if u == idgen.InvalidUserID {
		return false
	}
	if u == p.OwnerID {
		return true
	}
	for _, a := range p.AdminIDs {
		if a == u {
			return true
		}
	}
	for _, w := range p.WriterIDs {
		if w == u {
			return true
		}
	}
	return p.AllWriteable
}

func (p *Parcel) Encode() []byte {
	pw := store.NewPayloadWriter(parcelVersion)
	pw.U32(uint32(p.ID))
	pw.Str(p.WorldName)
	pw.U32(uint32(p.OwnerID))
	pw.I64(int64(p.CreatedTime))
	pw.Str(p.Description)

	ids := make([]uint32, len(p.AdminIDs))
	for i, v := range p.AdminIDs {
		ids[i] = uint32(v)
	}
	pw.U32Slice(ids)

	ids = make([]uint32, len(p.WriterIDs))
	for i, v := range p.WriterIDs {
		ids[i] = uint32(v)
	}
	pw.U32Slice(ids)

	ids = make([]uint32, len(p.ChildParcelIDs))
	for i, v := range p.ChildParcelIDs {
		ids[i] = uint32(v)
	}
	pw.U32Slice(ids)

	pw.Bool(p.AllWriteable)
	for _, v := range p.Verts {
		pw.F64(float64(v.X))
		pw.F64(float64(v.Y))
	}
	pw.F64(float64(p.ZBounds.Min))
	pw.F64(float64(p.ZBounds.Max))
	writeVec3f(pw, p.AABBMin)
	writeVec3f(pw, p.AABBMax)
	pw.U32(uint32(p.NFTStatus))
	pw.Str(p.MintingTx)

	auctionIDs := make([]uint64, len(p.AuctionIDs))
	for i, v := range p.AuctionIDs {
		auctionIDs[i] = uint64(v)
	}
	pw.U64Slice(auctionIDs)
	return pw.Finish()
}

func DecodeParcel(payload []byte) (*Parcel, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	p := &Parcel{}
	p.ID = idgen.ParcelID(pr.U32())
	p.WorldName = pr.Str()
	p.OwnerID = idgen.UserID(pr.U32())
	p.CreatedTime = idgen.Timestamp(pr.I64())
	p.Description = pr.Str()

	for _, v := range pr.U32Slice() {
		p.AdminIDs = append(p.AdminIDs, idgen.UserID(v))
	}
	for _, v := range pr.U32Slice() {
		p.WriterIDs = append(p.WriterIDs, idgen.UserID(v))
	}
	for _, v := range pr.U32Slice() {
		p.ChildParcelIDs = append(p.ChildParcelIDs, idgen.ParcelID(v))
	}

	p.AllWriteable = pr.Bool()
	for i := range p.Verts {
		p.Verts[i] = Vec2f{X: float32(pr.F64()), Y: float32(pr.F64())}
	}
	p.ZBounds = ZBounds{Min: float32(pr.F64()), Max: float32(pr.F64())}
	p.AABBMin = readVec3f(pr)
	p.AABBMax = readVec3f(pr)
	p.NFTStatus = NFTStatus(pr.U32())
	p.MintingTx = pr.Str()
	for _, v := range pr.U64Slice() {
		p.AuctionIDs = append(p.AuctionIDs, idgen.AuctionID(v))
	}
	if pr.Err() != nil {
		return nil, werrors.Integrity("parcel", 0, "%v", pr.Err())
	}
	return p, nil
}
