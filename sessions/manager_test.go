package sessions_test

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inschat/auth-service/sessions"
	"github.com/inschat/auth-service/store"
	"github.com/inschat/auth-service/token"
)

const (
	testSessionTTL = 7 * 24 * time.Hour
	testCSRFTTL    = 12 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*sessions.Manager, *fakeClock) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	clock := newFakeClock()
	m := sessions.NewManager(st, token.NewHMACSigner("test-secret"), testSessionTTL, testCSRFTTL,
		sessions.WithNowTime(clock.Now))
	return m, clock
}

func cookieHeader(creds sessions.Credentials) string {
	return sessions.CookieName + "=" + creds.Cookie
}

func TestManager_CreateAndLookup(t *testing.T) {
	m, clock := newTestManager(t)

	creds, err := m.Create("alice")
	require.NoError(t, err)
	require.NotEmpty(t, creds.Cookie)
	require.NotEmpty(t, creds.CSRFToken)
	require.Equal(t, clock.Now().Unix()+int64(testSessionTTL.Seconds()), creds.ExpiresAt)

	t.Run("lookup by cookie header", func(t *testing.T) {
		rec, ok := m.Lookup(cookieHeader(creds))
		require.True(t, ok)
		require.Equal(t, "alice", rec.User)
		require.Equal(t, creds.CSRFToken, rec.CSRFToken)
	})

	t.Run("cookie extracted among others", func(t *testing.T) {
		header := "theme=dark; " + cookieHeader(creds) + "; lang=en"
		rec, ok := m.Lookup(header)
		require.True(t, ok)
		require.Equal(t, "alice", rec.User)
	})

	t.Run("missing header", func(t *testing.T) {
		_, ok := m.Lookup("")
		require.False(t, ok)
	})

	t.Run("other cookies only", func(t *testing.T) {
		_, ok := m.Lookup("theme=dark; lang=en")
		require.False(t, ok)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		b := []byte(creds.Cookie)
		b[0] ^= 0x01
		_, ok := m.Lookup(sessions.CookieName + "=" + string(b))
		require.False(t, ok)
	})

	t.Run("expired session rejected without store lookup", func(t *testing.T) {
		clock.Advance(testSessionTTL + time.Second)
		_, ok := m.Lookup(cookieHeader(creds))
		require.False(t, ok)
	})
}

func TestManager_LookupUnknownSID(t *testing.T) {
	m, _ := newTestManager(t)
	// A correctly signed token for a sid the store never saw.
	signer := token.NewHMACSigner("test-secret")
	forged := signer.Sign("unknown-sid|9999999999")
	_, ok := m.Lookup(sessions.CookieName + "=" + forged)
	require.False(t, ok)
}

func TestManager_RequireCSRF(t *testing.T) {
	m, clock := newTestManager(t)
	creds, err := m.Create("alice")
	require.NoError(t, err)
	rec, ok := m.Lookup(cookieHeader(creds))
	require.True(t, ok)

	headersWith := func(value string) http.Header {
		h := http.Header{}
		h.Set(sessions.CSRFHeader, value)
		return h
	}

	t.Run("current token accepted", func(t *testing.T) {
		require.True(t, m.RequireCSRF(headersWith(creds.CSRFToken), rec))
	})

	t.Run("header name is case-insensitive", func(t *testing.T) {
		h := http.Header{}
		h.Set(strings.ToLower(sessions.CSRFHeader), creds.CSRFToken)
		require.True(t, m.RequireCSRF(h, rec))
	})

	t.Run("missing header", func(t *testing.T) {
		require.False(t, m.RequireCSRF(http.Header{}, rec))
	})

	t.Run("wrong token", func(t *testing.T) {
		require.False(t, m.RequireCSRF(headersWith("not-the-token"), rec))
	})

	t.Run("expired csrf with live session", func(t *testing.T) {
		clock.Advance(testCSRFTTL + time.Second)
		require.False(t, m.RequireCSRF(headersWith(creds.CSRFToken), rec))
		// Session itself still resolves: csrf and session lifetimes are
		// tracked independently.
		_, ok := m.Lookup(cookieHeader(creds))
		require.True(t, ok)
	})
}

func TestManager_RefreshCSRF(t *testing.T) {
	m, _ := newTestManager(t)
	creds, err := m.Create("alice")
	require.NoError(t, err)
	rec, ok := m.Lookup(cookieHeader(creds))
	require.True(t, ok)

	newToken, err := m.RefreshCSRF(rec.SID)
	require.NoError(t, err)
	require.NotEqual(t, creds.CSRFToken, newToken)

	fresh, ok := m.Lookup(cookieHeader(creds))
	require.True(t, ok)

	oldHeaders := http.Header{}
	oldHeaders.Set(sessions.CSRFHeader, creds.CSRFToken)
	require.False(t, m.RequireCSRF(oldHeaders, fresh))

	newHeaders := http.Header{}
	newHeaders.Set(sessions.CSRFHeader, newToken)
	require.True(t, m.RequireCSRF(newHeaders, fresh))

	t.Run("unknown session", func(t *testing.T) {
		_, err := m.RefreshCSRF("no-such-sid")
		require.ErrorIs(t, err, sessions.ErrNotFound)
	})
}

func TestManager_Delete(t *testing.T) {
	m, _ := newTestManager(t)
	creds, err := m.Create("alice")
	require.NoError(t, err)
	rec, ok := m.Lookup(cookieHeader(creds))
	require.True(t, ok)

	require.NoError(t, m.Delete(rec.SID))
	_, ok = m.Lookup(cookieHeader(creds))
	require.False(t, ok)

	// Deleting an unknown id is not an error.
	require.NoError(t, m.Delete(rec.SID))
}

func TestManager_SweepExpired(t *testing.T) {
	m, clock := newTestManager(t)
	_, err := m.Create("alice")
	require.NoError(t, err)

	removed, err := m.SweepExpired()
	require.NoError(t, err)
	require.Zero(t, removed)

	clock.Advance(testSessionTTL + time.Second)
	fresh, err := m.Create("bob")
	require.NoError(t, err)

	removed, err = m.SweepExpired()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, ok := m.Lookup(cookieHeader(fresh))
	require.True(t, ok)
}
