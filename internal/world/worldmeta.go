package world

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const worldMetaVersion = 1

type worldMeta struct {
	Name        string
	OwnerID     idgen.UserID
	CreatedTime idgen.Timestamp
	Description string

	dbKey store.DBKey
}

func (m *worldMeta) Kind() store.RecordKind { return store.KindWorldMeta }
func (m *worldMeta) DBKeyGet() store.DBKey  { return m.dbKey }
func (m *worldMeta) DBKeySet(k store.DBKey) { m.dbKey = k }

func (m *worldMeta) encode() []byte {
	pw := store.NewPayloadWriter(worldMetaVersion)
	pw.Str(m.Name)
	pw.U32(uint32(m.OwnerID))
	pw.I64(int64(m.CreatedTime))
	pw.Str(m.Description)
	return pw.Finish()
}

func decodeWorldMeta(payload []byte) (*worldMeta, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	m := &worldMeta{}
	m.Name = pr.Str()
	m.OwnerID = idgen.UserID(pr.U32())
	m.CreatedTime = idgen.Timestamp(pr.I64())
	m.Description = pr.Str()
	if pr.Err() != nil {
		return nil, werrors.Integrity("world_meta", 0, "%v", pr.Err())
	}
	return m, nil
}
