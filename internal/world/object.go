package world

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const objectVersion = 1

// ObjectState is WorldObject's lifecycle tag.
type ObjectState int

const (
	ObjectJustCreated ObjectState = iota
	ObjectAlive
	ObjectDead // terminal: pending removal from index and store
)

func (s ObjectState) String() string {
	switch s {
	case ObjectJustCreated:
		return "just_created"
	case ObjectAlive:
		return "alive"
	case ObjectDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ObjectFlags is a bitfield of rendering/physics toggles on a
// WorldObject.
type ObjectFlags uint32

const (
	ObjectFlagCollidable ObjectFlags = 1 << iota
	ObjectFlagDynamic
	ObjectFlagVisibleInMinimap
)

// Vec3f is a single-precision 3-vector, used for object transforms.
type Vec3f struct{ X, Y, Z float32 }

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min, Max Vec3f
}

func (b AABB) Union(o AABB) AABB {
	min := Vec3f{minf(b.Min.X, o.Min.X), minf(b.Min.Y, o.Min.Y), minf(b.Min.Z, o.Min.Z)}
	max := Vec3f{maxf(b.Max.X, o.Max.X), maxf(b.Max.Y, o.Max.Y), maxf(b.Max.Z, o.Max.Z)}
	return AABB{Min: min, Max: max}
}

func (b AABB) ContainsPoint(p Vec3f) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Material is one of a WorldObject's material slots: resource-URL
// references for the maps a renderer needs.
type Material struct {
	AlbedoURL    string
	EmissionURL  string
	NormalURL    string
	RoughnessURL string
}

// WorldObject is the hot entity of a world: a placed mesh or voxel
// group with transform, materials, and dirty-tracking state.
type WorldObject struct {
	UID       idgen.UID
	WorldName string

	ModelURL string // Resource URL, or empty for a pure-voxel object
	Mats     []Material

	Pos   Vec3f
	Rot   Vec3f // Euler angles, radians
	Scale Vec3f
	AABB  AABB

	VoxelBlob  []byte // optional, compressed
	ScriptSrc  string // optional

	OwnerID          idgen.UserID
	CreatorID        idgen.UserID
	CreatedTime      idgen.Timestamp
	LastModifiedTime idgen.Timestamp

	LODBias     float32
	Flags       ObjectFlags
	ContentHash uint64 // xxhash over VoxelBlob

	State ObjectState

	FromRemoteDirty bool
	FromLocalDirty  bool

	DBKey store.DBKey
	Dirty bool
}

func (o *WorldObject) Kind() store.RecordKind { return store.KindObject }
func (o *WorldObject) DBKeyGet() store.DBKey  { return o.DBKey }
func (o *WorldObject) DBKeySet(k store.DBKey) { o.DBKey = k }

// RecomputeAABB implements spec §3's "aabb is recomputed after any
// transform or voxel change" invariant. The bound is pos +/- half the
// scale, with rotation ignored, for every object: the voxel blob's
// extents are not consulted, so voxel objects get the same bound.
func (o *WorldObject) RecomputeAABB() {
	half := Vec3f{o.Scale.X / 2, o.Scale.Y / 2, o.Scale.Z / 2}
	o.AABB = AABB{
		Min: Vec3f{o.Pos.X - half.X, o.Pos.Y - half.Y, o.Pos.Z - half.Z},
		Max: Vec3f{o.Pos.X + half.X, o.Pos.Y + half.Y, o.Pos.Z + half.Z},
	}
}

func (o *WorldObject) Encode() []byte {
	pw := store.NewPayloadWriter(objectVersion)
	pw.U64(uint64(o.UID))
	pw.Str(o.WorldName)
	pw.Str(o.ModelURL)
	pw.U32(uint32(len(o.Mats)))
	for _, m := range o.Mats {
		pw.Str(m.AlbedoURL)
		pw.Str(m.EmissionURL)
		pw.Str(m.NormalURL)
		pw.Str(m.RoughnessURL)
	}
	writeVec3f(pw, o.Pos)
	writeVec3f(pw, o.Rot)
	writeVec3f(pw, o.Scale)
	writeVec3f(pw, o.AABB.Min)
	writeVec3f(pw, o.AABB.Max)
	pw.Bytes(o.VoxelBlob)
	pw.Str(o.ScriptSrc)
	pw.U32(uint32(o.OwnerID))
	pw.U32(uint32(o.CreatorID))
	pw.I64(int64(o.CreatedTime))
	pw.I64(int64(o.LastModifiedTime))
	pw.F64(float64(o.LODBias))
	pw.U32(uint32(o.Flags))
	pw.U64(o.ContentHash)
	pw.U32(uint32(o.State))
	return pw.Finish()
}

func DecodeObject(payload []byte) (*WorldObject, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	o := &WorldObject{}
	o.UID = idgen.UID(pr.U64())
	o.WorldName = pr.Str()
	o.ModelURL = pr.Str()
	n := pr.U32()
	o.Mats = make([]Material, n)
	for i := range o.Mats {
		o.Mats[i] = Material{
			AlbedoURL:    pr.Str(),
			EmissionURL:  pr.Str(),
			NormalURL:    pr.Str(),
			RoughnessURL: pr.Str(),
		}
	}
	o.Pos = readVec3f(pr)
	o.Rot = readVec3f(pr)
	o.Scale = readVec3f(pr)
	o.AABB.Min = readVec3f(pr)
	o.AABB.Max = readVec3f(pr)
	o.VoxelBlob = pr.Bytes()
	o.ScriptSrc = pr.Str()
	o.OwnerID = idgen.UserID(pr.U32())
	o.CreatorID = idgen.UserID(pr.U32())
	o.CreatedTime = idgen.Timestamp(pr.I64())
	o.LastModifiedTime = idgen.Timestamp(pr.I64())
	o.LODBias = float32(pr.F64())
	o.Flags = ObjectFlags(pr.U32())
	o.ContentHash = pr.U64()
	o.State = ObjectState(pr.U32())
	if pr.Err() != nil {
		return nil, werrors.Integrity("object", 0, "%v", pr.Err())
	}
	return o, nil
}

func writeVec3f(pw *store.PayloadWriter, v Vec3f) {
	pw.F64(float64(v.X))
	pw.F64(float64(v.Y))
	pw.F64(float64(v.Z))
}

func readVec3f(pr *store.PayloadReader) Vec3f {
	return Vec3f{X: float32(pr.F64()), Y: float32(pr.F64()), Z: float32(pr.F64())}
}
