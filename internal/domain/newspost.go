package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const newsPostVersion = 1

type PublishState int

const (
	StateDraft PublishState = iota
	StatePublished
	StateDeleted
)

func (s PublishState) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StatePublished:
		return "published"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// NewsPost mirrors original_source/server/NewsPost.h.
type NewsPost struct {
	ID               idgen.NewsPostID
	CreatorID        idgen.UserID
	CreatedTime      idgen.Timestamp
	LastModifiedTime idgen.Timestamp
	Title            string
	Content          string
	ThumbnailURL     string
	State            PublishState

	DBKey store.DBKey
	Dirty bool
}

func (n *NewsPost) Kind() store.RecordKind { return store.KindNewsPost }
func (n *NewsPost) DBKeyGet() store.DBKey  { return n.DBKey }
func (n *NewsPost) DBKeySet(k store.DBKey) { n.DBKey = k }

func (n *NewsPost) Encode() []byte {
	pw := store.NewPayloadWriter(newsPostVersion)
	pw.U64(uint64(n.ID))
	pw.U32(uint32(n.CreatorID))
	pw.I64(int64(n.CreatedTime))
	pw.I64(int64(n.LastModifiedTime))
	pw.Str(n.Title)
	pw.Str(n.Content)
	pw.Str(n.ThumbnailURL)
	pw.U32(uint32(n.State))
	return pw.Finish()
}

func DecodeNewsPost(payload []byte) (*NewsPost, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	n := &NewsPost{}
	n.ID = idgen.NewsPostID(pr.U64())
	n.CreatorID = idgen.UserID(pr.U32())
	n.CreatedTime = idgen.Timestamp(pr.I64())
	n.LastModifiedTime = idgen.Timestamp(pr.I64())
	n.Title = pr.Str()
	n.Content = pr.Str()
	n.ThumbnailURL = pr.Str()
	n.State = PublishState(pr.U32())
	if pr.Err() != nil {
		return nil, werrors.Integrity("news_post", 0, "%v", pr.Err())
	}
	return n, nil
}
