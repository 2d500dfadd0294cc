// Package auth implements the invitation-only access control for voxnote:
// a file-backed authorization store of Telegram user IDs and an issuer of
// single-use invitation tokens.
//
// The store is the only persisted domain state in the bot. It is a plain JSON
// document ({"users": [<id>, ...]}) rewritten wholesale on every mutation,
// adequate for a small team list but deliberately not a transactional ledger.
// Persistence errors are logged and swallowed: losing the list must never
// crash the assistant, at the accepted cost that a corrupted file silently
// resets access control to admin-only.
package auth

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// usersDocument is the on-disk JSON shape of the authorization store.
type usersDocument struct {
	Users []int64 `json:"users"`
}

// Store answers "is this identity allowed to use the assistant?" and mutates
// membership with durable backing. All methods are safe for concurrent use;
// every mutation is serialized behind a single mutex so the read-modify-persist
// cycle cannot interleave.
type Store struct {
	mu    sync.Mutex
	path  string
	users map[int64]struct{}
}

// NewStore loads the membership set from path and bootstraps adminID into it.
//
// A missing or unparsable file is not an error: the store starts empty and is
// recreated on the first mutation. The admin identity is added (and persisted)
// if not already a member, so the administrator can never be locked out.
func NewStore(path string, adminID int64) *Store {
	s := &Store{
		path:  path,
		users: make(map[int64]struct{}),
	}
	s.load()

	if adminID != 0 {
		if s.Add(adminID) {
			slog.Info("bootstrapped admin into authorization store", "user_id", adminID)
		}
	}
	return s
}

// IsAuthorized reports whether id is a member. Pure in-memory lookup.
func (s *Store) IsAuthorized(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// Add inserts id into the membership set and persists the full set before
// returning. Returns false without touching disk when id is already a member.
func (s *Store) Add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return false
	}
	s.users[id] = struct{}{}
	s.persistLocked()
	slog.Info("authorized user added", "user_id", id, "total", len(s.users))
	return true
}

// Remove deletes id from the membership set and persists. Returns false when
// id was not a member.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	s.persistLocked()
	slog.Info("authorized user removed", "user_id", id, "total", len(s.users))
	return true
}

// Count returns the number of authorized identities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Users returns all authorized identities in ascending order.
func (s *Store) Users() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// load reads the backing file into the in-memory set. Read failures default
// to an empty set.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read authorization store, starting empty", "path", s.path, "err", err)
		}
		return
	}

	var doc usersDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Error("failed to parse authorization store, starting empty", "path", s.path, "err", err)
		return
	}
	for _, id := range doc.Users {
		s.users[id] = struct{}{}
	}
	slog.Info("authorization store loaded", "path", s.path, "users", len(s.users))
}

// persistLocked overwrites the backing file with the current set. The caller
// must hold s.mu. Write failures are logged; the in-memory set stays ahead of
// durable state until the next successful persist.
func (s *Store) persistLocked() {
	doc := usersDocument{Users: s.sortedLocked()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		slog.Error("failed to marshal authorization store", "err", err)
		return
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create authorization store directory", "dir", dir, "err", err)
			return
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Error("failed to write authorization store", "path", s.path, "err", err)
	}
}
