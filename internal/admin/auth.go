package admin

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
)

func (s *Server) sessionFromRequest(r *http.Request) (*domain.UserWebSession, *domain.User) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}
	sess := s.All.GetSession(c.Value)
	if sess == nil {
		return nil, nil
	}
	now := idgen.Timestamp(time.Now().Unix())
	if sess.Expired(now, SessionMaxAgeSecs) {
		return nil, nil
	}
	return sess, s.All.GetUserByID(sess.UserID)
}

// handleLogin implements spec §4.7's login endpoint: consumes
// (username, password), validates via constant-time comparison,
// creates a UserWebSession, and sets it as the site-b cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user := s.All.GetUserByName(username)
	if user == nil || !user.CheckPassword(password) {
		writeErrf(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sess := &domain.UserWebSession{
		ID:          domain.NewSessionID(),
		UserID:      user.ID,
		CreatedTime: idgen.Timestamp(time.Now().Unix()),
	}
	s.All.InsertSession(sess)
	s.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.All.DeleteSession(c.Value)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleSignup creates a new User with a freshly-salted password hash.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	name := r.FormValue("username")
	email := r.FormValue("email")
	password := r.FormValue("password")

	if s.All.GetUserByName(name) != nil {
		writeErrf(w, http.StatusConflict, "username already taken")
		return
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		writeErrf(w, http.StatusInternalServerError, "could not generate salt")
		return
	}

	user := &domain.User{
		ID:           idgen.UserID(s.All.UserIDSeq.Next()),
		Name:         name,
		Email:        email,
		CreatedTime:  idgen.Timestamp(time.Now().Unix()),
		PasswordSalt: salt,
		PasswordHash: domain.HashPassword(salt, password),
	}
	if err := user.Validate(); err != nil {
		writeErrf(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.All.InsertUser(user); err != nil {
		writeErrf(w, http.StatusConflict, "%v", err)
		return
	}

	sess := &domain.UserWebSession{ID: domain.NewSessionID(), UserID: user.ID, CreatedTime: user.CreatedTime}
	s.All.InsertSession(sess)
	s.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

const passwordResetTTLSeconds = 3600

// handlePasswordResetRequest issues a 32-byte token, stores only its
// SHA-256, and (per spec §4.7) would email the raw token in a link;
// sending email is left to the SMTP-configured caller (not modeled
// here, since email delivery is out of the core's scope).
func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	user := s.All.GetUserByName(r.FormValue("username"))
	if user == nil {
		// Don't reveal whether the username exists.
		w.WriteHeader(http.StatusOK)
		return
	}
	_, hash := domain.NewToken()
	s.All.PutPasswordReset(&domain.PasswordReset{
		UserID:     user.ID,
		TokenHash:  hash,
		HasToken:   true,
		IssuedTime: idgen.Timestamp(time.Now().Unix()),
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	username := r.FormValue("username")
	rawHex := r.FormValue("token")
	newPassword := r.FormValue("password")

	user := s.All.GetUserByName(username)
	if user == nil {
		writeErrf(w, http.StatusBadRequest, "invalid request")
		return
	}
	pr := s.All.GetPasswordReset(user.ID)
	if pr == nil {
		writeErrf(w, http.StatusBadRequest, "no reset in progress")
		return
	}
	var raw [32]byte
	if len(rawHex) != hex.EncodedLen(len(raw)) {
		writeErrf(w, http.StatusBadRequest, "malformed token")
		return
	}
	if _, err := hex.Decode(raw[:], []byte(rawHex)); err != nil {
		writeErrf(w, http.StatusBadRequest, "malformed token")
		return
	}
	now := idgen.Timestamp(time.Now().Unix())
	if !pr.Consume(raw, now, passwordResetTTLSeconds) {
		writeErrf(w, http.StatusBadRequest, "invalid or expired token")
		return
	}

	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		writeErrf(w, http.StatusInternalServerError, "could not generate salt")
		return
	}
	user.PasswordSalt = salt
	user.PasswordHash = domain.HashPassword(salt, newPassword)
	user.Dirty = true
	s.All.MarkUserDirty(user.ID)

	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	_, user := s.sessionFromRequest(r)
	if user == nil {
		writeErrf(w, http.StatusUnauthorized, "not logged in")
		return
	}
	oldPassword := r.FormValue("old_password")
	newPassword := r.FormValue("new_password")
	if !user.CheckPassword(oldPassword) {
		writeErrf(w, http.StatusUnauthorized, "wrong current password")
		return
	}
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		writeErrf(w, http.StatusInternalServerError, "could not generate salt")
		return
	}
	user.PasswordSalt = salt
	user.PasswordHash = domain.HashPassword(salt, newPassword)
	user.Dirty = true
	s.All.MarkUserDirty(user.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleAPIToken issues a short-lived JWT admin bearer token for
// non-browser clients, after validating the same username/password
// pair the cookie login path uses.
func (s *Server) handleAPIToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrf(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	user := s.All.GetUserByName(r.FormValue("username"))
	if user == nil || !user.CheckPassword(r.FormValue("password")) {
		writeErrf(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	tok, err := s.issueAPIToken(uint32(user.ID))
	if err != nil {
		writeErrf(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"` + tok + `"}`))
}
