package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreCreateGetDelete(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Create(&Profile{Name: "Asha", Major: "CSE", Year: 3})
	if sess.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if sess.CreatedAt.IsZero() || sess.LastActivityAt.IsZero() {
		t.Fatalf("timestamps not initialized: %+v", sess)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Profile.Name != "Asha" || got.Profile.Major != "CSE" || got.Profile.Year != 3 {
		t.Fatalf("unexpected profile: %+v", got.Profile)
	}

	if !s.Delete(sess.ID) {
		t.Fatalf("Delete() = false, want true")
	}
	if s.Delete(sess.ID) {
		t.Fatalf("second Delete() = true, want false")
	}
	if _, err := s.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStoreLazyExpiryOnGet(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	sess := s.Create(nil)

	if _, err := s.Get(sess.ID); err != nil {
		t.Fatalf("Get() before TTL error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := s.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() past TTL error = %v, want ErrNotFound", err)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after lazy expiry", s.Count())
	}
}

func TestStoreGetDoesNotRefreshActivity(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Create(nil)

	first, _ := s.Get(sess.ID)
	time.Sleep(10 * time.Millisecond)
	second, _ := s.Get(sess.ID)
	if !second.LastActivityAt.Equal(first.LastActivityAt) {
		t.Fatalf("Get() refreshed activity: %v -> %v", first.LastActivityAt, second.LastActivityAt)
	}
}

func TestStoreAppendRefreshesActivityMonotonically(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Create(nil)

	prev := sess.LastActivityAt
	for i := 0; i < 5; i++ {
		if err := s.AppendMessage(sess.ID, RoleUser, fmt.Sprintf("msg %d", i), nil); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		got, err := s.Get(sess.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.LastActivityAt.Before(prev) {
			t.Fatalf("LastActivityAt went backwards: %v -> %v", prev, got.LastActivityAt)
		}
		prev = got.LastActivityAt
	}
}

func TestStoreAppendToMissingSession(t *testing.T) {
	s := NewStore(time.Minute)
	if err := s.AppendMessage("nope", RoleUser, "hi", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendMessage() error = %v, want ErrNotFound", err)
	}
}

func TestStoreHistoryOrderAndLimit(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Create(nil)
	for i := 0; i < 4; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := s.AppendMessage(sess.ID, role, fmt.Sprintf("msg %d", i), nil); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	full, err := s.History(sess.ID, -1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(full) != 4 {
		t.Fatalf("len(full) = %d, want 4", len(full))
	}
	for i, msg := range full {
		if msg.Content != fmt.Sprintf("msg %d", i) {
			t.Fatalf("history out of order at %d: %q", i, msg.Content)
		}
	}

	last2, err := s.History(sess.ID, 2)
	if err != nil {
		t.Fatalf("History(2) error = %v", err)
	}
	if len(last2) != 2 || last2[0].Content != "msg 2" || last2[1].Content != "msg 3" {
		t.Fatalf("History(2) = %+v, want last two messages", last2)
	}

	empty, err := s.History(sess.ID, 0)
	if err != nil {
		t.Fatalf("History(0) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("History(0) = %d messages, want 0", len(empty))
	}
}

func TestStoreUpdateProfileMergesOnlyProvided(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Create(&Profile{Name: "Ravi", Major: "ECE"})

	if err := s.UpdateProfile(sess.ID, Profile{Year: 4, TargetRoles: []string{"embedded engineer"}}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Profile.Name != "Ravi" || got.Profile.Major != "ECE" {
		t.Fatalf("merge clobbered existing fields: %+v", got.Profile)
	}
	if got.Profile.Year != 4 || len(got.Profile.TargetRoles) != 1 {
		t.Fatalf("merge dropped provided fields: %+v", got.Profile)
	}
}

func TestStoreSweepExpired(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	stale := s.Create(nil)
	time.Sleep(60 * time.Millisecond)
	fresh := s.Create(nil)

	expired := 0
	s.SetExpireHook(func(*Session) { expired++ })

	if n := s.SweepExpired(); n != 1 {
		t.Fatalf("SweepExpired() = %d, want 1", n)
	}
	if expired != 1 {
		t.Fatalf("expire hook calls = %d, want 1", expired)
	}
	if _, err := s.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale session survived sweep")
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session swept: %v", err)
	}
}

func TestStoreSweepDoesNotRaceWithAppends(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	sess := s.Create(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.AppendMessage(sess.ID, RoleUser, "ping", nil)
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()

	// Sessions that keep appending stay within TTL and must never be swept.
	for i := 0; i < 10; i++ {
		if n := s.SweepExpired(); n != 0 {
			close(stop)
			wg.Wait()
			t.Fatalf("SweepExpired() removed an active session")
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	if _, err := s.Get(sess.ID); err != nil {
		t.Fatalf("active session missing after sweeps: %v", err)
	}
}

func TestStoreJanitorSweeps(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	sess := s.Create(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := s.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("janitor did not sweep expired session")
	}
}
