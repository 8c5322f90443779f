package session

import (
	"sync"
	"testing"

	"github.com/Priya8975/session-gateway/internal/domain"
)

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("s1"); ok {
		t.Fatal("empty store should not find s1")
	}

	store.Put(domain.Session{ID: "s1", TenantID: "t1", Status: domain.StatusInitializing}, nil)

	rec, ok := store.Get("s1")
	if !ok {
		t.Fatal("s1 should be found after Put")
	}
	if got := rec.Snapshot().TenantID; got != "t1" {
		t.Errorf("tenant = %q, want t1", got)
	}

	if _, ok := store.Delete("s1"); !ok {
		t.Fatal("Delete should return the removed record")
	}
	if _, ok := store.Get("s1"); ok {
		t.Error("s1 should be gone after Delete")
	}
	if _, ok := store.Delete("s1"); ok {
		t.Error("double delete should report not found")
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore()
	rec := store.Put(domain.Session{ID: "s1", Status: domain.StatusScanQR, QRCode: "qr"}, nil)

	snap := rec.Snapshot()
	snap.QRCode = "mutated"
	snap.Status = domain.StatusFailed

	if got := rec.Snapshot(); got.QRCode != "qr" || got.Status != domain.StatusScanQR {
		t.Errorf("mutating a snapshot must not affect the record, got %+v", got)
	}
}

func TestStore_UpdateVisibleToReaders(t *testing.T) {
	store := NewStore()
	rec := store.Put(domain.Session{ID: "s1", Status: domain.StatusInitializing}, nil)

	updated := rec.Update(func(s *domain.Session) {
		s.Status = domain.StatusScanQR
		s.QRCode = "qr"
	})
	if updated.Status != domain.StatusScanQR {
		t.Errorf("Update should return the new state, got %s", updated.Status)
	}
	if got := rec.Snapshot(); got.QRCode != "qr" {
		t.Errorf("snapshot = %+v, want qr code set", got)
	}
}

func TestStore_ListAndLen(t *testing.T) {
	store := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		store.Put(domain.Session{ID: id, Status: domain.StatusInitializing}, nil)
	}

	if store.Len() != 3 {
		t.Errorf("Len = %d, want 3", store.Len())
	}
	if got := len(store.List()); got != 3 {
		t.Errorf("List returned %d sessions, want 3", got)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	rec := store.Put(domain.Session{ID: "s1", Status: domain.StatusInitializing}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.Update(func(s *domain.Session) { s.Status = domain.StatusScanQR })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.Snapshot()
				store.List()
			}
		}()
	}
	wg.Wait()
}
