package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const subEventVersion = 1

const (
	MaxWorldNameSize  = 1000
	MaxEventTitleSize = 1000
	MaxEventDescSize  = 10000
)

// SubEvent mirrors original_source/server/SubEvent.h -- a scheduled
// social event on a parcel, with an attendee set.
type SubEvent struct {
	ID               idgen.SubEventID
	WorldName        string
	ParcelID         idgen.ParcelID
	CreatorID        idgen.UserID
	CreatedTime      idgen.Timestamp
	LastModifiedTime idgen.Timestamp
	StartTime        idgen.Timestamp
	EndTime          idgen.Timestamp
	Title            string
	Description      string
	AttendeeIDs      map[idgen.UserID]struct{}
	State            PublishState

	DBKey store.DBKey
	Dirty bool
}

func (e *SubEvent) Kind() store.RecordKind { return store.KindSubEvent }
func (e *SubEvent) DBKeyGet() store.DBKey  { return e.DBKey }
func (e *SubEvent) DBKeySet(k store.DBKey) { e.DBKey = k }

func (e *SubEvent) Validate() error {
	if len(e.WorldName) > MaxWorldNameSize {
		return werrors.Validation("event world name too long: %d", len(e.WorldName))
	}
	if len(e.Title) > MaxEventTitleSize {
		return werrors.Validation("event title too long: %d", len(e.Title))
	}
	if len(e.Description) > MaxEventDescSize {
		return werrors.Validation("event description too long: %d", len(e.Description))
	}
	return nil
}

func (e *SubEvent) AddAttendee(id idgen.UserID) {
	if e.AttendeeIDs == nil {
		e.AttendeeIDs = make(map[idgen.UserID]struct{})
	}
	e.AttendeeIDs[id] = struct{}{}
	e.Dirty = true
}

func (e *SubEvent) RemoveAttendee(id idgen.UserID) {
	delete(e.AttendeeIDs, id)
	e.Dirty = true
}

func (e *SubEvent) Encode() []byte {
	pw := store.NewPayloadWriter(subEventVersion)
	pw.U64(uint64(e.ID))
	pw.Str(e.WorldName)
	pw.U32(uint32(e.ParcelID))
	pw.U32(uint32(e.CreatorID))
	pw.I64(int64(e.CreatedTime))
	pw.I64(int64(e.LastModifiedTime))
	pw.I64(int64(e.StartTime))
	pw.I64(int64(e.EndTime))
	pw.Str(e.Title)
	pw.Str(e.Description)
	ids := make([]uint32, 0, len(e.AttendeeIDs))
	for id := range e.AttendeeIDs {
		ids = append(ids, uint32(id))
	}
	pw.U32Slice(ids)
	pw.U32(uint32(e.State))
	return pw.Finish()
}

func DecodeSubEvent(payload []byte) (*SubEvent, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	e := &SubEvent{}
	e.ID = idgen.SubEventID(pr.U64())
	e.WorldName = pr.Str()
	e.ParcelID = idgen.ParcelID(pr.U32())
	e.CreatorID = idgen.UserID(pr.U32())
	e.CreatedTime = idgen.Timestamp(pr.I64())
	e.LastModifiedTime = idgen.Timestamp(pr.I64())
	e.StartTime = idgen.Timestamp(pr.I64())
	e.EndTime = idgen.Timestamp(pr.I64())
	e.Title = pr.Str()
	e.Description = pr.Str()
	e.AttendeeIDs = make(map[idgen.UserID]struct{})
	for _, id := range pr.U32Slice() {
		e.AttendeeIDs[idgen.UserID(id)] = struct{}{}
	}
	e.State = PublishState(pr.U32())
	if pr.Err() != nil {
		return nil, werrors.Integrity("sub_event", 0, "%v", pr.Err())
	}
	return e, nil
}
