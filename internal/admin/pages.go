package admin

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"path"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

// pathID extracts the trailing path segment after prefix and parses it
// as a uint64 id, the same "/{entity}/{id}" shape every read/edit
// handler in this file uses.
func pathID(r *http.Request, prefix string) (uint64, error) {
	tail := r.URL.Path[len(prefix):]
	return strconv.ParseUint(tail, 10, 64)
}

var parcelPageTmpl = template.Must(template.New("parcel").Parse(`<!doctype html>
<html><head><title>Parcel {{.ID}}</title></head><body>
<h1>Parcel {{.ID}}</h1>
<p>World: {{.WorldName}}</p>
<p>Owner: {{.OwnerUsername}}</p>
<p>{{.Description}}</p>
</body></html>`))

func (s *Server) handleParcelRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/parcel/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad parcel id")
		return
	}
	p := s.findParcel(idgen.ParcelID(id))
	if p == nil {
		writeErrf(w, http.StatusNotFound, "no such parcel")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = parcelPageTmpl.Execute(w, p)
}

func (s *Server) handleParcelEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	id, err := pathID(r, "/parcel_edit/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad parcel id")
		return
	}
	_, user := s.sessionFromRequest(r)
	if user == nil {
		writeErrf(w, http.StatusUnauthorized, "not logged in")
		return
	}
	p := s.findParcel(idgen.ParcelID(id))
	if p == nil {
		writeErrf(w, http.StatusNotFound, "no such parcel")
		return
	}
	if !p.UserHasWritePerms(user.ID) {
		writeErrf(w, http.StatusForbidden, "no write permission on this parcel")
		return
	}
	p.Description = r.FormValue("description")
	p.Dirty = true
	if ws, ok := s.All.GetWorld(p.WorldName); ok {
		ws.MarkParcelDirty(p.ID)
	}
	s.flashf(sessionCookieValue(r), "parcel %d updated", p.ID)
	http.Redirect(w, r, "/parcel/"+strconv.FormatUint(id, 10), http.StatusFound)
}

// findParcel scans every world looking for the parcel id, since
// parcels are addressed globally in the admin surface but stored
// per-world in AllWorldsState.
func (s *Server) findParcel(id idgen.ParcelID) *world.Parcel {
	for _, ws := range s.All.ListWorlds() {
		if p := ws.GetParcel(id); p != nil {
			return p
		}
	}
	return nil
}

var worldPageTmpl = template.Must(template.New("world").Parse(`<!doctype html>
<html><head><title>{{.Name}}</title></head><body>
<h1>World: {{.Name}}</h1>
<p>{{.Description}}</p>
</body></html>`))

func (s *Server) handleWorldRead(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/world/"):]
	ws, ok := s.All.GetWorld(name)
	if !ok {
		writeErrf(w, http.StatusNotFound, "no such world")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = worldPageTmpl.Execute(w, ws)
}

var newsPostTmpl = template.Must(template.New("news").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{.Content}}
</body></html>`))

func (s *Server) handleNewsPostRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/news_post/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad news post id")
		return
	}
	n := s.All.GetNewsPost(idgen.NewsPostID(id))
	if n == nil {
		writeErrf(w, http.StatusNotFound, "no such news post")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = newsPostTmpl.Execute(w, n)
}

func (s *Server) handleNewsPostEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	id, err := pathID(r, "/news_post_edit/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad news post id")
		return
	}
	_, user := s.sessionFromRequest(r)
	if user == nil {
		writeErrf(w, http.StatusUnauthorized, "not logged in")
		return
	}
	n := s.All.GetNewsPost(idgen.NewsPostID(id))
	if n == nil {
		writeErrf(w, http.StatusNotFound, "no such news post")
		return
	}
	if n.CreatorID != user.ID {
		writeErrf(w, http.StatusForbidden, "not the creator of this post")
		return
	}
	n.Title = r.FormValue("title")
	n.Content = r.FormValue("content")
	n.Dirty = true
	s.All.MarkNewsPostDirty(n.ID)
	http.Redirect(w, r, "/news_post/"+strconv.FormatUint(id, 10), http.StatusFound)
}

var eventTmpl = template.Must(template.New("event").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
<p>{{.Description}}</p>
<p>Attendees: {{len .AttendeeIDs}}</p>
</body></html>`))

func (s *Server) handleEventRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/event/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad event id")
		return
	}
	e := s.All.GetSubEvent(idgen.SubEventID(id))
	if e == nil {
		writeErrf(w, http.StatusNotFound, "no such event")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = eventTmpl.Execute(w, e)
}

var photoTmpl = template.Must(template.New("photo").Parse(`<!doctype html>
<html><head><title>Photo {{.ID}}</title></head><body>
<h1>Photo {{.ID}}</h1>
<p>{{.Caption}}</p>
</body></html>`))

func (s *Server) handlePhotoRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/photo/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad photo id")
		return
	}
	p := s.All.GetPhoto(idgen.PhotoID(id))
	if p == nil {
		writeErrf(w, http.StatusNotFound, "no such photo")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = photoTmpl.Execute(w, p)
}

// handlePhotoMidsizeImage and handlePhotoThumbImage serve the derived
// image variants spec §6 lists alongside the photo metadata page
// (/photo/{id}), the same ServeFile-against-a-base-dir pattern
// handleScreenshotRead uses.
func (s *Server) handlePhotoMidsizeImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/photo_midsize_image/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad photo id")
		return
	}
	p := s.All.GetPhoto(idgen.PhotoID(id))
	if p == nil || p.LocalMidsizeFilename == "" {
		writeErrf(w, http.StatusNotFound, "no such photo")
		return
	}
	http.ServeFile(w, r, path.Join(s.PhotoDir, p.LocalMidsizeFilename))
}

func (s *Server) handlePhotoThumbImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/photo_thumb_image/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad photo id")
		return
	}
	p := s.All.GetPhoto(idgen.PhotoID(id))
	if p == nil || p.LocalThumbnailFilename == "" {
		writeErrf(w, http.StatusNotFound, "no such photo")
		return
	}
	http.ServeFile(w, r, path.Join(s.PhotoDir, p.LocalThumbnailFilename))
}

func (s *Server) handleScreenshotRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/screenshot/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad screenshot id")
		return
	}
	sc := s.All.GetScreenshot(idgen.ScreenshotID(id))
	if sc == nil || sc.State != domain.ScreenshotDone {
		writeErrf(w, http.StatusNotFound, "no such screenshot")
		return
	}
	http.ServeFile(w, r, path.Join(s.ScreenshotDir, sc.LocalPath))
}

// nftAttribute is one entry of the ERC-721 "attributes" array spec §6
// requires exactly: District, Area (m^2), Height (m), Distance from
// origin (m).
type nftAttribute struct {
	DisplayType string      `json:"display_type,omitempty"`
	TraitType   string      `json:"trait_type"`
	Value       interface{} `json:"value"`
}

// parcelNFTMetadata is the ERC-721 "OpenSea style" metadata document
// spec §6 requires at /p/{parcel_id} once a parcel has been minted.
type parcelNFTMetadata struct {
	Name        string         `json:"name"`
	ExternalURL string         `json:"external_url"`
	Image       string         `json:"image"`
	Description string         `json:"description"`
	Attributes  []nftAttribute `json:"attributes"`
}

func (s *Server) handleParcelNFTMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/p/")
	if err != nil {
		writeErrf(w, http.StatusNotFound, "bad parcel id")
		return
	}
	p := s.findParcel(idgen.ParcelID(id))
	if p == nil {
		writeErrf(w, http.StatusNotFound, "no such parcel")
		return
	}

	widthM := float64(p.AABBMax.X - p.AABBMin.X)
	depthM := float64(p.AABBMax.Y - p.AABBMin.Y)
	heightM := float64(p.AABBMax.Z - p.AABBMin.Z)
	areaM2 := widthM * depthM
	distFromOrigin := vec2Len(float64(p.AABBMin.X), float64(p.AABBMin.Y))

	meta := parcelNFTMetadata{
		Name:        fmt.Sprintf("Substrata Parcel #%d", p.ID),
		ExternalURL: fmt.Sprintf("https://substrata.info/parcel/%d", p.ID),
		Image:       fmt.Sprintf("https://substrata.info/parcel_image/%d", p.ID),
		Description: fmt.Sprintf("A %.1f x %.1f m parcel, %.1f m from the origin. %s",
			widthM, depthM, distFromOrigin, p.Description),
		Attributes: []nftAttribute{
			{TraitType: "District", Value: p.WorldName},
			{DisplayType: "number", TraitType: "Area (m^2)", Value: areaM2},
			{DisplayType: "number", TraitType: "Height (m)", Value: heightM},
			{DisplayType: "number", TraitType: "Distance from origin (m)", Value: distFromOrigin},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = jsoniter.NewEncoder(w).Encode(meta)
}

func vec2Len(x, y float64) float64 {
	return math.Sqrt(x*x + y*y)
}

// handleACMEChallenge serves the ACME HTTP-01 challenge response
// files Let's Encrypt requires, guarding the filename against path
// traversal with acmeFilenameRe since it is taken directly from the
// URL.
func (s *Server) handleACMEChallenge(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/.well-known/acme-challenge/"):]
	if !acmeFilenameRe.MatchString(name) {
		writeErrf(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, path.Join(s.ChallengeDir, name))
}

func sessionCookieValue(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
