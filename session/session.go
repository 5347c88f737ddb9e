package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
)

const cookieName = "session"

// Manager ties the session cookie to records in the session store.
type Manager struct {
	store  domain.SessionStore
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(store domain.SessionStore, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure, now: time.Now}
}

// Create starts a session for user and sets the cookie.
func (m *Manager) Create(w http.ResponseWriter, r *http.Request, user model.User) error {
	m.Destroy(w, r)

	expires := m.now().Add(m.ttl)
	sess := model.Session{
		SessionId: uuid.New().String(),
		UserId:    user.Id,
		Username:  user.Username,
		ExpiresAt: expires.Unix(),
	}
	if err := m.store.PutSession(r.Context(), sess); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    sess.SessionId,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	return nil
}

// Viewer resolves who is making the request. Anything short of a live
// session is the anonymous viewer.
func (m *Manager) Viewer(r *http.Request) model.Viewer {
	sess, ok := m.current(r.Context(), r)
	if !ok {
		return model.AnonymousViewer()
	}
	return sess.AsViewer()
}

func (m *Manager) current(ctx context.Context, r *http.Request) (model.Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return model.Session{}, false
	}
	sess, err := m.store.GetSession(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("session: load %s: %v", c.Value, err)
		}
		return model.Session{}, false
	}
	if !sess.IsValid(m.now()) {
		return model.Session{}, false
	}
	return sess, true
}

// Destroy forgets the session, if any, and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(cookieName)
	if c == nil || c.Value == "" {
		return
	}
	if err := m.store.DeleteSession(r.Context(), c.Value); err != nil {
		log.Printf("session: delete %s: %v", c.Value, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
