package notify

import (
	"context"
	"errors"
	"slices"
	gosync "sync"
	"time"

	"github.com/nhle/lostfound/internal/model"
)

// DefaultCriticalScores are the match scores whose notifications cannot be
// removed without an explicit confirmation.
var DefaultCriticalScores = []int{81, 91}

// Snapshot is the store content after a mutation. Version increases by one
// with every mutation and orders snapshots delivered to listeners.
type Snapshot struct {
	Version uint64
	Records []model.Notification
}

// Listener is notified after each mutation, outside the store lock.
type Listener func(Snapshot)

// Confirmer answers a request to remove a protected notification.
type Confirmer interface {
	ConfirmRemoval(ctx context.Context, n model.Notification) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, n model.Notification) (bool, error)

func (f ConfirmerFunc) ConfirmRemoval(ctx context.Context, n model.Notification) (bool, error) {
	return f(ctx, n)
}

// RemoveOption modifies a Remove call.
type RemoveOption func(*removeOptions)

type removeOptions struct {
	confirmed bool
}

// Confirmed marks a removal as explicitly confirmed by the user.
func Confirmed() RemoveOption {
	return func(o *removeOptions) { o.confirmed = true }
}

// Store is the in-memory set of notifications, keyed by id and kept in
// insertion order. It is safe for concurrent use.
type Store struct {
	mu       gosync.Mutex
	order    []string
	records  map[string]model.Notification
	issued   map[string]struct{}
	critical []int
	version  uint64

	listeners    map[int]Listener
	nextListener int
}

// NewStore creates an empty store. An empty criticalScores uses
// DefaultCriticalScores.
func NewStore(criticalScores []int) *Store {
	if len(criticalScores) == 0 {
		criticalScores = DefaultCriticalScores
	}
	return &Store{
		records:   make(map[string]model.Notification),
		issued:    make(map[string]struct{}),
		critical:  slices.Clone(criticalScores),
		listeners: make(map[int]Listener),
	}
}

// CriticalScores returns the scores that make a match protected.
func (s *Store) CriticalScores() []int {
	return slices.Clone(s.critical)
}

// Add inserts a new notification. It fails with a *DuplicateIDError if the
// id was ever issued by this store, even when the record was later removed.
func (s *Store) Add(n model.Notification) error {
	if n.ID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	if _, ok := s.issued[n.ID]; ok {
		s.mu.Unlock()
		return &DuplicateIDError{ID: n.ID}
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC()

	s.issued[n.ID] = struct{}{}
	s.records[n.ID] = n
	s.order = append(s.order, n.ID)
	snap, fns := s.commitLocked()
	s.mu.Unlock()

	dispatch(snap, fns)
	return nil
}

// MarkAsRead sets read=true on one record. It reports whether anything
// changed; an unknown or already read id is a no-op.
func (s *Store) MarkAsRead(id string) bool {
	s.mu.Lock()
	n, ok := s.records[id]
	if !ok || n.Read {
		s.mu.Unlock()
		return false
	}
	n.Read = true
	s.records[id] = n
	snap, fns := s.commitLocked()
	s.mu.Unlock()

	dispatch(snap, fns)
	return true
}

// MarkAllAsRead sets read=true on every record and returns the ids that
// changed.
func (s *Store) MarkAllAsRead() []string {
	s.mu.Lock()
	var changed []string
	for _, id := range s.order {
		n := s.records[id]
		if n.Read {
			continue
		}
		n.Read = true
		s.records[id] = n
		changed = append(changed, id)
	}
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}
	snap, fns := s.commitLocked()
	s.mu.Unlock()

	dispatch(snap, fns)
	return changed
}

// Remove deletes a record and reports whether it did. Protected records are
// only removed when Confirmed() is passed; unknown ids are a no-op.
func (s *Store) Remove(id string, opts ...RemoveOption) bool {
	var o removeOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	n, ok := s.records[id]
	if !ok || (s.protected(n) && !o.confirmed) {
		s.mu.Unlock()
		return false
	}

	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	snap, fns := s.commitLocked()
	s.mu.Unlock()

	dispatch(snap, fns)
	return true
}

// RemoveWithConfirmation removes id, asking c first when the record is
// protected. A declined or cancelled confirmation removes nothing and is not
// an error.
func (s *Store) RemoveWithConfirmation(ctx context.Context, id string, c Confirmer) (bool, error) {
	n, ok := s.Get(id)
	if !ok {
		return false, nil
	}
	if !s.IsProtected(id) {
		return s.Remove(id), nil
	}

	confirmed, err := c.ConfirmRemoval(ctx, n)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	if !confirmed {
		return false, nil
	}
	return s.Remove(id, Confirmed()), nil
}

// IsProtected reports whether id is a match whose score is critical.
func (s *Store) IsProtected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	return ok && s.protected(n)
}

func (s *Store) protected(n model.Notification) bool {
	if n.Type != model.TypeMatch {
		return false
	}
	return slices.Contains(s.critical, n.Score())
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	return n, ok
}

// Has reports whether a record with id is currently present.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Issued reports whether id was ever added to or loaded into the store.
func (s *Store) Issued(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.issued[id]
	return ok
}

// List returns a copy of all records in insertion order.
func (s *Store) List() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// UnreadCount returns the number of records with read=false.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.records {
		if !n.Read {
			count++
		}
	}
	return count
}

// MatchCount returns the number of match records.
func (s *Store) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countMatches(s.listLocked())
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Replace swaps the whole content for records, keeping the first of any
// repeated id. Ids issued before the call stay issued.
func (s *Store) Replace(records []model.Notification) {
	s.mu.Lock()
	s.order = s.order[:0]
	s.records = make(map[string]model.Notification, len(records))
	for _, n := range records {
		if n.ID == "" {
			continue
		}
		if _, dup := s.records[n.ID]; dup {
			continue
		}
		n.CreatedAt = n.CreatedAt.UTC()
		s.records[n.ID] = n
		s.order = append(s.order, n.ID)
		s.issued[n.ID] = struct{}{}
	}
	snap, fns := s.commitLocked()
	s.mu.Unlock()

	dispatch(snap, fns)
}

// OnChange registers fn for every subsequent mutation. The returned function
// unregisters it.
func (s *Store) OnChange(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) listLocked() []model.Notification {
	out := make([]model.Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// commitLocked bumps the version and captures what listeners need.
func (s *Store) commitLocked() (Snapshot, []Listener) {
	s.version++
	snap := Snapshot{Version: s.version, Records: s.listLocked()}

	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return snap, fns
}

func dispatch(snap Snapshot, fns []Listener) {
	for _, fn := range fns {
		fn(snap)
	}
}

func countMatches(records []model.Notification) int {
	count := 0
	for _, n := range records {
		if n.Type == model.TypeMatch {
			count++
		}
	}
	return count
}
