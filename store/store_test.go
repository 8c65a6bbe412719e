package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/inschat/auth-service/password"
	"github.com/inschat/auth-service/store"
)

func TestStore_OpenEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	s.Read(func(st *store.State) {
		require.Empty(t, st.Users)
		require.Empty(t, st.Sessions)
	})
}

func TestStore_UpdatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	err = s.Update(func(st *store.State) error {
		st.Users["alice"] = &store.UserRecord{
			PasswordHash: password.Hash{Algorithm: password.AlgorithmScrypt, Salt: []byte("0123456789abcdef"), Key: make([]byte, 64)},
			FailureTimes: []int64{100, 200},
			LockedUntil:  300,
		}
		st.Sessions["sid-1"] = &store.SessionRecord{
			SID:        "sid-1",
			User:       "alice",
			CSRFToken:  "csrf-1",
			CSRFExpiry: 400,
			Expiry:     500,
		}
		return nil
	})
	require.NoError(t, err)

	// Both files exist on disk after the flush.
	_, err = os.Stat(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)

	reopened, err := store.Open(dir)
	require.NoError(t, err)
	reopened.Read(func(st *store.State) {
		user, ok := st.Users["alice"]
		require.True(t, ok)
		require.Equal(t, []int64{100, 200}, user.FailureTimes)
		require.EqualValues(t, 300, user.LockedUntil)

		sess, ok := st.Sessions["sid-1"]
		require.True(t, ok)
		require.Equal(t, "alice", sess.User)
		require.Equal(t, "csrf-1", sess.CSRFToken)
		require.EqualValues(t, 500, sess.Expiry)
	})
}

func TestStore_UpdateErrorSkipsFlush(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	sentinel := errors.New("nope")
	err = s.Update(func(st *store.State) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = os.Stat(filepath.Join(dir, "users.json"))
	require.True(t, os.IsNotExist(err))
}

func TestStore_UnwritableMedium(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	// Removing the directory makes every subsequent flush fail.
	require.NoError(t, os.RemoveAll(dir))

	err = s.Update(func(st *store.State) error {
		st.Users["bob"] = &store.UserRecord{}
		return nil
	})
	require.ErrorIs(t, err, store.ErrUnavailable)

	// The in-memory mutation is kept: once the medium is back, the next
	// whole-snapshot flush reconciles disk with memory.
	require.NoError(t, os.MkdirAll(dir, 0o700))
	err = s.Update(func(st *store.State) error {
		st.Users["carol"] = &store.UserRecord{}
		return nil
	})
	require.NoError(t, err)

	reopened, err := store.Open(dir)
	require.NoError(t, err)
	reopened.Read(func(st *store.State) {
		require.Contains(t, st.Users, "bob")
		require.Contains(t, st.Users, "carol")
	})
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o600))
	_, err := store.Open(dir)
	require.Error(t, err)
}
