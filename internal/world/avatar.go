package world

import "github.com/glaretechnologies/substrata-sub005/internal/idgen"

// Avatar is an authenticated client's in-world representation. Created
// on connect, destroyed on disconnect -- runtime-only, never persisted
// (spec glossary).
type Avatar struct {
	ID     idgen.AvatarID
	UserID idgen.UserID
	Name   string

	Pos   Vec3f
	Rot   Vec3f

	IsChatBot bool // true for server-owned avatars driven by a ChatBot
}
