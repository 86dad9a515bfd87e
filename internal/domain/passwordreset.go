package domain

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const passwordResetVersion = 1

// PasswordReset mirrors original_source/server/PasswordReset.{h,cpp}:
// a single-use, expiring token whose raw value is emailed and never
// stored -- only its SHA-256 hash is, per spec §4.7.
type PasswordReset struct {
	UserID      idgen.UserID
	TokenHash   [32]byte
	HasToken    bool
	IssuedTime  idgen.Timestamp

	DBKey store.DBKey
	Dirty bool
}

func (p *PasswordReset) Kind() store.RecordKind { return store.KindPasswordReset }
func (p *PasswordReset) DBKeyGet() store.DBKey  { return p.DBKey }
func (p *PasswordReset) DBKeySet(k store.DBKey) { p.DBKey = k }

// NewToken returns the raw 32-byte token (to email) and its SHA-256 hash
// (to store), per spec §4.7: "Password reset issues a 32-byte token,
// stores only its SHA-256".
func NewToken() (raw [32]byte, hash [32]byte) {
	if _, err := rand.Read(raw[:]); err != nil {
		panic(err)
	}
	hash = sha256.Sum256(raw[:])
	return raw, hash
}

// Consume clears the stored hash (single-use) and reports whether raw
// matched and the token had not yet expired.
func (p *PasswordReset) Consume(raw [32]byte, now idgen.Timestamp, ttlSeconds int64) bool {
	if !p.HasToken {
		return false
	}
	hash := sha256.Sum256(raw[:])
	ok := hash == p.TokenHash && int64(now)-int64(p.IssuedTime) <= ttlSeconds
	p.HasToken = false
	p.Dirty = true
	return ok
}

func (p *PasswordReset) Encode() []byte {
	pw := store.NewPayloadWriter(passwordResetVersion)
	pw.U32(uint32(p.UserID))
	pw.Bool(p.HasToken)
	pw.Bytes(p.TokenHash[:])
	pw.I64(int64(p.IssuedTime))
	return pw.Finish()
}

func DecodePasswordReset(payload []byte) (*PasswordReset, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	p := &PasswordReset{}
	p.UserID = idgen.UserID(pr.U32())
	p.HasToken = pr.Bool()
	copy(p.TokenHash[:], pr.Bytes())
	p.IssuedTime = idgen.Timestamp(pr.I64())
	if pr.Err() != nil {
		return nil, werrors.Integrity("password_reset", 0, "%v", pr.Err())
	}
	return p, nil
}
