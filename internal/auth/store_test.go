package auth_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"voxnote/internal/auth"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "authorized_users.json")
}

func TestStore_AddRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	s := auth.NewStore(storePath(t), 0)

	if s.IsAuthorized(999) {
		t.Fatal("unknown identity should not be authorized")
	}
	if !s.Add(999) {
		t.Fatal("Add of new identity should return true")
	}
	if !s.IsAuthorized(999) {
		t.Fatal("identity should be authorized after Add")
	}
	if !s.Remove(999) {
		t.Fatal("Remove of member should return true")
	}
	if s.IsAuthorized(999) {
		t.Fatal("identity should not be authorized after Remove")
	}
	if s.Remove(999) {
		t.Fatal("Remove of non-member should return false")
	}
}

func TestStore_AddIsIdempotent(t *testing.T) {
	t.Parallel()

	s := auth.NewStore(storePath(t), 0)

	if !s.Add(7) {
		t.Fatal("first Add should return true")
	}
	if s.Add(7) {
		t.Fatal("second Add of same identity should return false")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count: want 1, got %d", got)
	}
}

func TestStore_AdminBootstrap(t *testing.T) {
	t.Parallel()

	path := storePath(t)
	s := auth.NewStore(path, 1)

	if !s.IsAuthorized(1) {
		t.Fatal("admin should be a member immediately after construction")
	}

	// The bootstrap must be durable.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading backing file: %v", err)
	}
	var doc struct {
		Users []int64 `json:"users"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing backing file: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0] != 1 {
		t.Errorf("backing file users: want [1], got %v", doc.Users)
	}
}

func TestStore_PersistenceSurvivesReconstruction(t *testing.T) {
	t.Parallel()

	path := storePath(t)

	s1 := auth.NewStore(path, 1)
	s1.Add(555)

	s2 := auth.NewStore(path, 1)
	if !s2.IsAuthorized(555) {
		t.Fatal("membership should survive store reconstruction")
	}
	if got := s2.Count(); got != 2 {
		t.Errorf("Count after reload: want 2, got %d", got)
	}
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := storePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := auth.NewStore(path, 1)
	if got := s.Count(); got != 1 {
		t.Errorf("corrupt file should reset to admin-only, Count: want 1, got %d", got)
	}
}

func TestStore_UsersSorted(t *testing.T) {
	t.Parallel()

	s := auth.NewStore(storePath(t), 0)
	for _, id := range []int64{30, 10, 20} {
		s.Add(id)
	}

	got := s.Users()
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("Users: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Users: want %v, got %v", want, got)
		}
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	t.Parallel()

	path := storePath(t)
	s := auth.NewStore(path, 0)

	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Add(id)
		}(i)
	}
	wg.Wait()

	if got := s.Count(); got != 50 {
		t.Errorf("Count after concurrent adds: want 50, got %d", got)
	}

	// A reload must observe every add (no lost updates on disk).
	s2 := auth.NewStore(path, 0)
	if got := s2.Count(); got != 50 {
		t.Errorf("Count after reload: want 50, got %d", got)
	}
}
