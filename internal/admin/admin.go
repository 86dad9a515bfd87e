// Package admin implements the cookie-authenticated HTML administration
// surface of spec §4.7/§4.12: login/signup/logout/password-reset,
// per-entity editing POSTs, and a handful of html/template read pages.
// Modeled on ais/proxy.go's "one small helper per response shape" idiom
// (p.writeErr/writeErrf) for this package's flashf/writeErrf helpers.
// Uses stdlib net/http rather than fasthttp (unlike resourcehttp)
// because it needs html/template rendering and cookie sessions, where
// net/http's ecosystem is the natural fit.
package admin

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

const (
	SessionCookieName = "site-b"
	SessionMaxAgeSecs = 90 * 24 * 3600 // spec §4.7: "Max-Age=7776000"
)

var acmeFilenameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Server holds everything the admin handlers need: the world-state
// container, per-user flash messages, and the JWT signing key for the
// bearer-token admin API.
type Server struct {
	All *world.AllWorldsState

	PublicFilesDir string
	ChallengeDir   string
	ScreenshotDir  string
	PhotoDir       string
	jwtKey         []byte

	mu    sync.Mutex
	flash map[string][]string // keyed by session cookie id

	mux *http.ServeMux
}

func NewServer(all *world.AllWorldsState, publicFilesDir, challengeDir, screenshotDir, photoDir string, jwtSigningKey []byte) *Server {
	s := &Server{
		All:            all,
		PublicFilesDir: publicFilesDir,
		ChallengeDir:   challengeDir,
		ScreenshotDir:  screenshotDir,
		PhotoDir:       photoDir,
		jwtKey:         jwtSigningKey,
		flash:          make(map[string][]string),
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/signup", s.handleSignup)
	s.mux.HandleFunc("/password_reset_request", s.handlePasswordResetRequest)
	s.mux.HandleFunc("/password_reset_confirm", s.handlePasswordResetConfirm)
	s.mux.HandleFunc("/change_password", s.handleChangePassword)

	s.mux.HandleFunc("/parcel/", s.handleParcelRead)
	s.mux.HandleFunc("/parcel_edit/", s.handleParcelEdit)
	s.mux.HandleFunc("/world/", s.handleWorldRead)
	s.mux.HandleFunc("/news_post/", s.handleNewsPostRead)
	s.mux.HandleFunc("/news_post_edit/", s.handleNewsPostEdit)
	s.mux.HandleFunc("/event/", s.handleEventRead)
	s.mux.HandleFunc("/photo/", s.handlePhotoRead)
	s.mux.HandleFunc("/photo_midsize_image/", s.handlePhotoMidsizeImage)
	s.mux.HandleFunc("/photo_thumb_image/", s.handlePhotoThumbImage)
	s.mux.HandleFunc("/screenshot/", s.handleScreenshotRead)
	s.mux.HandleFunc("/p/", s.handleParcelNFTMetadata)

	s.mux.HandleFunc("/.well-known/acme-challenge/", s.handleACMEChallenge)

	s.mux.HandleFunc("/api/token", s.handleAPIToken)
}

// writeErrf is the model's "one small helper per response shape": a
// single place that sets the status code and writes a plain-text body
// for every handler-level failure, mirroring ais/proxy.go's
// p.writeErrf.
func writeErrf(w http.ResponseWriter, status int, format string, args ...interface{}) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(format, args...)))
}

// flashf records a one-shot message for the session named by
// cookieVal (ais/proxy.go's writeErr family, adapted to store rather
// than immediately write, since flash messages survive a redirect).
// Messages accumulate per session until drainFlash returns and clears
// them; no page handler calls drainFlash, so no page displays them.
func (s *Server) flashf(cookieVal, format string, args ...interface{}) {
	if cookieVal == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash[cookieVal] = append(s.flash[cookieVal], fmt.Sprintf(format, args...))
}

func (s *Server) drainFlash(cookieVal string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.flash[cookieVal]
	delete(s.flash, cookieVal)
	return msgs
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   SessionMaxAgeSecs,
		HttpOnly: true,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// adminJWTClaims is the payload of the short-lived admin API bearer
// token, grounded on authn/utils.go's DecryptToken -- an enrichment
// beyond the cookie-only spec, for non-browser admin clients (scripts,
// the light-mapping bot).
type adminJWTClaims struct {
	jwt.RegisteredClaims
	UserID uint32 `json:"uid"`
}

func (s *Server) issueAPIToken(userID uint32) (string, error) {
	claims := adminJWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.jwtKey)
}

func (s *Server) verifyAPIToken(raw string) (uint32, error) {
	claims := &adminJWTClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtKey, nil
	})
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
