package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const photoVersion = 1

const (
	MaxCaptionSize     = 10000
	MaxPhotoWorldNameSz = 1000
)

// PhotoFlags is a bitfield tagging moderation / visibility state on a
// photo, grounded on Photo.h's plain uint32 "flags" member.
type PhotoFlags uint32

const (
	PhotoFlagHidden PhotoFlags = 1 << iota
)

// Photo mirrors original_source/server/Photo.h: a snapshot taken by a
// user at a particular camera pose inside a parcel.
type Photo struct {
	ID          idgen.PhotoID
	CreatorID   idgen.UserID
	ParcelID    idgen.ParcelID
	CreatedTime idgen.Timestamp

	CamPos    Vec3d
	CamAngles Vec3d

	Caption   string
	Flags     PhotoFlags
	WorldName string

	LocalFilename          string
	LocalThumbnailFilename string
	LocalMidsizeFilename   string

	State PublishState // only StatePublished / StateDeleted are valid here

	DBKey store.DBKey
	Dirty bool
}

func (p *Photo) Kind() store.RecordKind { return store.KindPhoto }
func (p *Photo) DBKeyGet() store.DBKey  { return p.DBKey }
func (p *Photo) DBKeySet(k store.DBKey) { p.DBKey = k }

func (p *Photo) Validate() error {
	if len(p.Caption) > MaxCaptionSize {
		return werrors.Validation("photo caption too long: %d", len(p.Caption))
	}
	if len(p.WorldName) > MaxPhotoWorldNameSz {
		return werrors.Validation("photo world name too long: %d", len(p.WorldName))
	}
	return nil
}

func (p *Photo) Encode() []byte {
	pw := store.NewPayloadWriter(photoVersion)
	pw.U64(uint64(p.ID))
	pw.U32(uint32(p.CreatorID))
	pw.U32(uint32(p.ParcelID))
	pw.I64(int64(p.CreatedTime))
	writeVec3d(pw, p.CamPos)
	writeVec3d(pw, p.CamAngles)
	pw.Str(p.Caption)
	pw.U32(uint32(p.Flags))
	pw.Str(p.WorldName)
	pw.Str(p.LocalFilename)
	pw.Str(p.LocalThumbnailFilename)
	pw.Str(p.LocalMidsizeFilename)
	pw.U32(uint32(p.State))
	return pw.Finish()
}

func DecodePhoto(payload []byte) (*Photo, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	p := &Photo{}
	p.ID = idgen.PhotoID(pr.U64())
	p.CreatorID = idgen.UserID(pr.U32())
	p.ParcelID = idgen.ParcelID(pr.U32())
	p.CreatedTime = idgen.Timestamp(pr.I64())
	p.CamPos = readVec3d(pr)
	p.CamAngles = readVec3d(pr)
	p.Caption = pr.Str()
	p.Flags = PhotoFlags(pr.U32())
	p.WorldName = pr.Str()
	p.LocalFilename = pr.Str()
	p.LocalThumbnailFilename = pr.Str()
	p.LocalMidsizeFilename = pr.Str()
	p.State = PublishState(pr.U32())
	if pr.Err() != nil {
		return nil, werrors.Integrity("photo", 0, "%v", pr.Err())
	}
	return p, nil
}
