package session

import (
	"errors"
	"sync"

	"github.com/Priya8975/session-gateway/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Record holds one session's live state plus its exclusively owned driver.
// All mutation goes through Update, which holds the record's own mutex, so
// two sessions never contend on a shared lock.
type Record struct {
	mu      sync.Mutex
	session domain.Session
	driver  Driver
}

// Snapshot returns a copy of the session data safe for concurrent readers.
func (r *Record) Snapshot() domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Update applies fn to the session data while holding the record lock.
// Status and QR writes from the state machine use this so the QR invariant
// holds atomically with every status change.
func (r *Record) Update(fn func(s *domain.Session)) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.session)
	return r.session
}

// Driver returns the driver owned by this record.
func (r *Record) Driver() Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.driver
}

// SetDriver swaps the driver, used when a restart builds a fresh instance.
func (r *Record) SetDriver(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.driver = d
}

// Store is the concurrency-safe keyed map from session id to record. It is
// a pure data holder: the outer lock only guards the map itself, never a
// record's contents, so concurrent readers of different sessions (and the
// poll loops in the QR coordinator) never serialize on each other.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Put inserts or replaces the record for s.ID and returns it.
func (st *Store) Put(s domain.Session, d Driver) *Record {
	rec := &Record{session: s, driver: d}
	st.mu.Lock()
	st.records[s.ID] = rec
	st.mu.Unlock()
	return rec
}

// Get returns the live record for id.
func (st *Store) Get(id string) (*Record, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.records[id]
	return rec, ok
}

// Delete removes the record for id and returns it, if present.
func (st *Store) Delete(id string) (*Record, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	rec, ok := st.records[id]
	if ok {
		delete(st.records, id)
	}
	return rec, ok
}

// List returns snapshots of every session. Read-only enumeration.
func (st *Store) List() []domain.Session {
	st.mu.RLock()
	recs := make([]*Record, 0, len(st.records))
	for _, rec := range st.records {
		recs = append(recs, rec)
	}
	st.mu.RUnlock()

	out := make([]domain.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Len returns the number of managed sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.records)
}
