package domain

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const sessionVersion = 1

// UserWebSession is spec §3's opaque-random-128-bit-id session, the
// value behind the "site-b" cookie of spec §4.7/§6.
type UserWebSession struct {
	ID          string // 32 hex chars = 128 bits
	UserID      idgen.UserID
	CreatedTime idgen.Timestamp

	DBKey store.DBKey
	Dirty bool
}

func (s *UserWebSession) Kind() store.RecordKind { return store.KindSession }
func (s *UserWebSession) DBKeyGet() store.DBKey  { return s.DBKey }
func (s *UserWebSession) DBKeySet(k store.DBKey) { s.DBKey = k }

// NewSessionID generates a fresh 128-bit random session id, hex encoded,
// per spec §4.7.
func NewSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return hex.EncodeToString(b[:])
}

// Expired reports whether the session has exceeded the configured max
// age (spec §3: "Max age 90 days").
func (s *UserWebSession) Expired(now idgen.Timestamp, maxAgeSeconds int64) bool {
	return int64(now)-int64(s.CreatedTime) > maxAgeSeconds
}

func (s *UserWebSession) Encode() []byte {
	pw := store.NewPayloadWriter(sessionVersion)
	pw.Str(s.ID)
	pw.U32(uint32(s.UserID))
	pw.I64(int64(s.CreatedTime))
	return pw.Finish()
}

func DecodeSession(payload []byte) (*UserWebSession, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	s := &UserWebSession{}
	s.ID = pr.Str()
	s.UserID = idgen.UserID(pr.U32())
	s.CreatedTime = idgen.Timestamp(pr.I64())
	if pr.Err() != nil {
		return nil, werrors.Integrity("session", 0, "%v", pr.Err())
	}
	return s, nil
}
