// Package domain holds the server's global (AllWorldsState-owned)
// entities: users, web sessions, password resets, and the cross-cutting
// auction/order/news/event domain of spec §3/§4.7/§4.12, each following
// the uniform "versioned, length-prefixed record" pattern of spec §4.1.
// Grounded on original_source/server/{UserWebSession,PasswordReset,
// Order,NewsPost,SubEvent,Photo,Screenshot,ParcelAuction,AuctionLock}
// for the exact field sets the distilled spec.md only summarizes.
package domain

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const userVersion = 1

// User is spec §3's User entity: owner of content, unique by both id
// and name.
type User struct {
	ID               idgen.UserID
	Name             string // unique, 1-100 chars
	Email            string
	CreatedTime      idgen.Timestamp
	PasswordHash     [32]byte
	PasswordSalt     [16]byte
	AvatarSettings   []byte // opaque blob
	ResetTokenHash   [32]byte
	ResetTokenHasAny bool
	ResetIssuedTime  idgen.Timestamp

	DBKey store.DBKey
	Dirty bool
}

func (u *User) Kind() store.RecordKind { return store.KindUser }
func (u *User) DBKeyGet() store.DBKey  { return u.DBKey }
func (u *User) DBKeySet(k store.DBKey) { u.DBKey = k }

func (u *User) Validate() error {
	if len(u.Name) < 1 || len(u.Name) > 100 {
		return werrors.Validation("user name must be 1-100 chars, got %d", len(u.Name))
	}
	return nil
}

// HashPassword computes SHA-256(salt || password) per spec §4.7.
func HashPassword(salt [16]byte, password string) [32]byte {
	h := sha256.New()
	h.Write(salt[:])
	h.Write([]byte(password))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CheckPassword performs the constant-time comparison spec §4.7 requires.
func (u *User) CheckPassword(password string) bool {
	got := HashPassword(u.PasswordSalt, password)
	return subtest(got, u.PasswordHash)
}

func subtest(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func (u *User) Encode() []byte {
	pw := store.NewPayloadWriter(userVersion)
	pw.U32(uint32(u.ID))
	pw.Str(u.Name)
	pw.Str(u.Email)
	pw.I64(int64(u.CreatedTime))
	pw.Bytes(u.PasswordHash[:])
	pw.Bytes(u.PasswordSalt[:])
	pw.Bytes(u.AvatarSettings)
	pw.Bool(u.ResetTokenHasAny)
	pw.Bytes(u.ResetTokenHash[:])
	pw.I64(int64(u.ResetIssuedTime))
	return pw.Finish()
}

func DecodeUser(payload []byte) (*User, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	u := &User{}
	u.ID = idgen.UserID(pr.U32())
	u.Name = pr.Str()
	u.Email = pr.Str()
	u.CreatedTime = idgen.Timestamp(pr.I64())
	copy(u.PasswordHash[:], pr.Bytes())
	copy(u.PasswordSalt[:], pr.Bytes())
	u.AvatarSettings = pr.Bytes()
	u.ResetTokenHasAny = pr.Bool()
	copy(u.ResetTokenHash[:], pr.Bytes())
	u.ResetIssuedTime = idgen.Timestamp(pr.I64())
	if pr.Err() != nil {
		return nil, werrors.Integrity("user", 0, "%v", pr.Err())
	}
	return u, nil
}
