package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const chatBotVersion = 1

// ChatBot is a server-owned avatar with a scripted behaviour and an LLM
// prompt (spec glossary). Per the design note on cyclic references, it
// holds only the identifier of its avatar, never an owning pointer --
// the world's avatar map is consulted at use time.
type ChatBot struct {
	ID        idgen.ChatBotID
	AvatarID  idgen.AvatarID
	WorldName string

	Script string // scripted-behaviour source
	Prompt string // LLM system prompt

	CreatedTime idgen.Timestamp

	DBKey store.DBKey
	Dirty bool
}

func (c *ChatBot) Kind() store.RecordKind { return store.KindChatBot }
func (c *ChatBot) DBKeyGet() store.DBKey  { return c.DBKey }
func (c *ChatBot) DBKeySet(k store.DBKey) { c.DBKey = k }

func (c *ChatBot) Validate() error {
	if len(c.WorldName) > MaxWorldNameSize {
		return werrors.Validation("chat bot world name too long: %d", len(c.WorldName))
	}
	return nil
}

func (c *ChatBot) Encode() []byte {
	pw := store.NewPayloadWriter(chatBotVersion)
	pw.U64(uint64(c.ID))
	pw.U64(uint64(c.AvatarID))
	pw.Str(c.WorldName)
	pw.Str(c.Script)
	pw.Str(c.Prompt)
	pw.I64(int64(c.CreatedTime))
	return pw.Finish()
}

func DecodeChatBot(payload []byte) (*ChatBot, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	c := &ChatBot{}
	c.ID = idgen.ChatBotID(pr.U64())
	c.AvatarID = idgen.AvatarID(pr.U64())
	c.WorldName = pr.Str()
	c.Script = pr.Str()
	c.Prompt = pr.Str()
	c.CreatedTime = idgen.Timestamp(pr.I64())
	if pr.Err() != nil {
		return nil, werrors.Integrity("chat_bot", 0, "%v", pr.Err())
	}
	return c, nil
}
