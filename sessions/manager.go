// Package sessions issues, looks up and refreshes login sessions and their
// CSRF tokens. A session is identified by a random 256-bit id; the client
// holds a signed cookie embedding the id and the session expiry, so expired
// cookies are rejected before any store lookup. CSRF tokens expire on their
// own shorter clock and rotate without re-authentication.
package sessions

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/inschat/auth-service/store"
	"github.com/inschat/auth-service/token"
)

const (
	// CookieName is the session cookie consumers must set and send back.
	CookieName = "inschat_session"

	// CSRFHeader carries the CSRF token on state-changing requests.
	// Matching is case-insensitive.
	CSRFHeader = "X-CSRF-Token"

	sidLength  = 32
	csrfLength = 24
)

var (
	// ErrNotFound reports that no live session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrCSRFMismatch and ErrCSRFExpired reject a state-changing request
	// whose CSRF header is absent, wrong or past its expiry.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
	ErrCSRFExpired  = errors.New("csrf token expired")
)

var errNoChange = errors.New("no change")

// Credentials is what a successful session creation hands back to the
// caller to attach to the response.
type Credentials struct {
	Cookie    string
	CSRFToken string
	ExpiresAt int64
}

// Manager creates and validates sessions backed by the persisted store.
type Manager struct {
	store      *store.Store
	signer     *token.HMACSigner
	sessionTTL time.Duration
	csrfTTL    time.Duration
	nowTime    func() time.Time
}

// ManagerOption modifies a Manager.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates a session manager.
func NewManager(st *store.Store, signer *token.HMACSigner, sessionTTL, csrfTTL time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		store:      st,
		signer:     signer,
		sessionTTL: sessionTTL,
		csrfTTL:    csrfTTL,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create stores a fresh session for username and returns the signed cookie
// value, the CSRF token and the session expiry.
func (m *Manager) Create(username string) (Credentials, error) {
	sid, err := randomToken(sidLength)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "[Manager.Create] sid")
	}
	csrf, err := randomToken(csrfLength)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "[Manager.Create] csrf")
	}
	now := m.nowTime().Unix()
	rec := &store.SessionRecord{
		SID:        sid,
		User:       username,
		CSRFToken:  csrf,
		CSRFExpiry: now + int64(m.csrfTTL.Seconds()),
		Expiry:     now + int64(m.sessionTTL.Seconds()),
	}
	err = m.store.Update(func(st *store.State) error {
		st.Sessions[sid] = rec
		return nil
	})
	if err != nil {
		return Credentials{}, errors.Wrap(err, "[Manager.Create] store.Update")
	}
	cookie := m.signer.Sign(fmt.Sprintf("%s|%d", sid, rec.Expiry))
	return Credentials{Cookie: cookie, CSRFToken: csrf, ExpiresAt: rec.Expiry}, nil
}

// Lookup extracts the session cookie from a raw Cookie header, verifies its
// signature and embedded expiry, and fetches the session record. The second
// return is false for a missing cookie, a bad signature, an expired session
// or an unknown id alike.
func (m *Manager) Lookup(cookieHeader string) (store.SessionRecord, bool) {
	raw := cookieValue(cookieHeader, CookieName)
	if raw == "" {
		return store.SessionRecord{}, false
	}
	value, ok := m.signer.Verify(raw)
	if !ok {
		return store.SessionRecord{}, false
	}
	sid, expStr, ok := strings.Cut(value, "|")
	if !ok {
		return store.SessionRecord{}, false
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return store.SessionRecord{}, false
	}
	// Fast-path expiry: a valid signature with an expired embedded expiry
	// is rejected without touching the store.
	if m.nowTime().Unix() > exp {
		return store.SessionRecord{}, false
	}
	var rec store.SessionRecord
	found := false
	m.store.Read(func(st *store.State) {
		if r, ok := st.Sessions[sid]; ok {
			rec = *r
			found = true
		}
	})
	return rec, found
}

// RefreshCSRF replaces the session's CSRF token and expiry and persists the
// change, returning the new token.
func (m *Manager) RefreshCSRF(sid string) (string, error) {
	csrf, err := randomToken(csrfLength)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.RefreshCSRF] csrf")
	}
	err = m.store.Update(func(st *store.State) error {
		rec, ok := st.Sessions[sid]
		if !ok {
			return ErrNotFound
		}
		rec.CSRFToken = csrf
		rec.CSRFExpiry = m.nowTime().Unix() + int64(m.csrfTTL.Seconds())
		return nil
	})
	if err != nil {
		return "", err
	}
	return csrf, nil
}

// CheckCSRF verifies that the request headers carry the session's current,
// unexpired CSRF token, reporting ErrCSRFMismatch or ErrCSRFExpired
// otherwise. The token comparison runs in constant time.
func (m *Manager) CheckCSRF(headers http.Header, sess store.SessionRecord) error {
	got := headers.Get(CSRFHeader)
	if got == "" || !hmac.Equal([]byte(got), []byte(sess.CSRFToken)) {
		return ErrCSRFMismatch
	}
	if m.nowTime().Unix() >= sess.CSRFExpiry {
		return ErrCSRFExpired
	}
	return nil
}

// RequireCSRF reports whether the request headers carry the session's
// current, unexpired CSRF token.
func (m *Manager) RequireCSRF(headers http.Header, sess store.SessionRecord) bool {
	return m.CheckCSRF(headers, sess) == nil
}

// Delete removes a session record, used for server-side logout. Deleting an
// unknown id is not an error.
func (m *Manager) Delete(sid string) error {
	err := m.store.Update(func(st *store.State) error {
		if _, ok := st.Sessions[sid]; !ok {
			return errNoChange
		}
		delete(st.Sessions, sid)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// SweepExpired removes session records whose expiry has passed and returns
// how many were dropped. Lookup already rejects expired sessions, so this
// only bounds the size of the session file.
func (m *Manager) SweepExpired() (int, error) {
	removed := 0
	now := m.nowTime().Unix()
	err := m.store.Update(func(st *store.State) error {
		for sid, rec := range st.Sessions {
			if now > rec.Expiry {
				delete(st.Sessions, sid)
				removed++
			}
		}
		if removed == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return removed, err
}

// cookieValue pulls the named cookie out of a raw Cookie header line.
func cookieValue(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
