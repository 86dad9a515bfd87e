package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const screenshotVersion = 1

// ScreenshotState tracks whether the renderer has produced the image
// file yet, per original_source/server/Screenshot.h's notdone/done pair.
type ScreenshotState int

const (
	ScreenshotNotDone ScreenshotState = iota
	ScreenshotDone
)

func (s ScreenshotState) String() string {
	if s == ScreenshotDone {
		return "done"
	}
	return "notdone"
}

// Screenshot mirrors original_source/server/Screenshot.h. Two uses:
// an auction listing thumbnail (HighlightParcelID set) or a map tile
// (IsMapTile set, addressed by TileX/TileY/TileZ).
type Screenshot struct {
	ID idgen.ScreenshotID

	CamPos    Vec3d
	CamAngles Vec3d
	WidthPx   int

	HighlightParcelID idgen.ParcelID // InvalidParcelID if not an auction thumbnail

	IsMapTile bool
	TileX     int
	TileY     int
	TileZ     int

	CreatedTime idgen.Timestamp

	LocalPath string
	URL       string

	State ScreenshotState

	DBKey store.DBKey
	Dirty bool
}

func (s *Screenshot) Kind() store.RecordKind { return store.KindScreenshot }
func (s *Screenshot) DBKeyGet() store.DBKey  { return s.DBKey }
func (s *Screenshot) DBKeySet(k store.DBKey) { s.DBKey = k }

func (s *Screenshot) Encode() []byte {
	pw := store.NewPayloadWriter(screenshotVersion)
	pw.U64(uint64(s.ID))
	writeVec3d(pw, s.CamPos)
	writeVec3d(pw, s.CamAngles)
	pw.U32(uint32(s.WidthPx))
	pw.U32(uint32(s.HighlightParcelID))
	pw.Bool(s.IsMapTile)
	pw.I64(int64(s.TileX))
	pw.I64(int64(s.TileY))
	pw.I64(int64(s.TileZ))
	pw.I64(int64(s.CreatedTime))
	pw.Str(s.LocalPath)
	pw.Str(s.URL)
	pw.U32(uint32(s.State))
	return pw.Finish()
}

func DecodeScreenshot(payload []byte) (*Screenshot, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	s := &Screenshot{}
	s.ID = idgen.ScreenshotID(pr.U64())
	s.CamPos = readVec3d(pr)
	s.CamAngles = readVec3d(pr)
	s.WidthPx = int(pr.U32())
	s.HighlightParcelID = idgen.ParcelID(pr.U32())
	s.IsMapTile = pr.Bool()
	s.TileX = int(pr.I64())
	s.TileY = int(pr.I64())
	s.TileZ = int(pr.I64())
	s.CreatedTime = idgen.Timestamp(pr.I64())
	s.LocalPath = pr.Str()
	s.URL = pr.Str()
	s.State = ScreenshotState(pr.U32())
	if pr.Err() != nil {
		return nil, werrors.Integrity("screenshot", 0, "%v", pr.Err())
	}
	return s, nil
}
