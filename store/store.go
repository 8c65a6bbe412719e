// Package store owns the durable user and session maps. Both maps live in
// memory and are flushed to a pair of JSON files on every mutation; the two
// maps are one logical resource guarded by a single lock held across the
// in-memory mutation and the flush, so concurrent writers cannot lose
// updates between mutating and persisting.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

const (
	usersFile    = "users.json"
	sessionsFile = "sessions.json"
)

// ErrUnavailable reports that a mutation could not be flushed to durable
// storage. The in-memory change is kept; the next successful flush writes
// the whole snapshot and reconciles disk with memory.
var ErrUnavailable = errors.New("storage unavailable")

// State is the full in-memory contents of the store. Callers receive it
// only inside Update/Read closures, under the store lock.
type State struct {
	Users    map[string]*UserRecord
	Sessions map[string]*SessionRecord
}

// Store is a file-backed map pair with a single-writer durability model.
type Store struct {
	mu    sync.Mutex
	dir   string
	state State
}

// Open loads the user and session maps from dir, creating it if needed.
// A missing file yields an empty map, not an error.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, pkgerrors.Wrap(err, "[store.Open] MkdirAll")
	}
	s := &Store{dir: dir}
	if err := loadFile(filepath.Join(dir, usersFile), &s.state.Users); err != nil {
		return nil, pkgerrors.Wrap(err, "[store.Open] users")
	}
	if err := loadFile(filepath.Join(dir, sessionsFile), &s.state.Sessions); err != nil {
		return nil, pkgerrors.Wrap(err, "[store.Open] sessions")
	}
	if s.state.Users == nil {
		s.state.Users = make(map[string]*UserRecord)
	}
	if s.state.Sessions == nil {
		s.state.Sessions = make(map[string]*SessionRecord)
	}
	return s, nil
}

// Update runs fn under the store lock and flushes both maps afterwards. If
// fn returns an error nothing is flushed. A failed flush is re-attempted
// once; if it fails again Update returns ErrUnavailable and the caller must
// treat the operation as failed.
func (s *Store) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.state); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		if err = s.save(); err != nil {
			return pkgerrors.Wrap(ErrUnavailable, err.Error())
		}
	}
	return nil
}

// Read runs fn under the store lock without flushing. fn may prune
// in-memory state lazily but must not make changes that need durability.
func (s *Store) Read(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// save rewrites both files atomically. Caller holds the lock.
func (s *Store) save() error {
	if err := writeFile(filepath.Join(s.dir, usersFile), s.state.Users); err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, sessionsFile), s.state.Sessions)
}

func loadFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// writeFile writes via a temp file and rename so a crash mid-write never
// leaves a truncated map on disk.
func writeFile(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
