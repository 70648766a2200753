package notify

import (
	"context"
	gosync "sync"

	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/store"
)

// Service owns the live notification store and its durable mirror. It is
// created once by the entry point and handed to whatever needs it.
type Service struct {
	store  *Store
	mirror *Mirror
	log    zerolog.Logger

	persistMu   gosync.Mutex
	lastVersion uint64
	unsubscribe func()
}

// NewService creates a service with an empty store.
func NewService(slots store.SlotStore, criticalScores []int, logger zerolog.Logger) *Service {
	return &Service{
		store:  NewStore(criticalScores),
		mirror: NewMirror(slots, criticalScores, logger),
		log:    logger.With().Str("component", "notify").Logger(),
	}
}

// Store returns the live store.
func (s *Service) Store() *Store {
	return s.store
}

// Init restores the durable copy into the store and starts mirroring every
// change to the primary slot.
func (s *Service) Init(ctx context.Context) Restored {
	restored := s.mirror.Restore(ctx)
	s.store.Replace(restored.Records)

	s.persistMu.Lock()
	s.lastVersion = s.store.Version()
	s.persistMu.Unlock()
	s.unsubscribe = s.store.OnChange(s.persist)

	if reconciled, ok := s.mirror.Reconcile(ctx, s.store.List()); ok {
		restored = reconciled
	}
	if restored.Reload {
		s.Reload(ctx)
	}

	s.log.Info().
		Stringer("source", restored.Source).
		Int("records", s.store.Len()).
		Bool("reloaded", restored.Reload).
		Msg("notifications restored")
	return restored
}

// Reload re-reads the primary slot into the live store.
func (s *Service) Reload(ctx context.Context) {
	records, err := s.mirror.Load(ctx, store.SlotNotifications)
	if err != nil {
		return
	}
	s.store.Replace(records)
}

// CheckIntegrity applies the critical-match heuristic to the live store and
// reloads from the adopted backup when it fires.
func (s *Service) CheckIntegrity(ctx context.Context) bool {
	if _, ok := s.mirror.Reconcile(ctx, s.store.List()); !ok {
		return false
	}
	s.Reload(ctx)
	return true
}

// BackupNow writes the live store to the backup slot. Failures are latched
// in Err.
func (s *Service) BackupNow(ctx context.Context) {
	_ = s.mirror.Backup(ctx, s.store.List())
}

// Err returns the latest persistence failure, or nil.
func (s *Service) Err() error {
	return s.mirror.Err()
}

// Dispose stops mirroring after a final write of the primary slot.
func (s *Service) Dispose(ctx context.Context) {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	_ = s.mirror.Persist(ctx, s.store.List())
}

// persist writes a snapshot unless a newer one was already written.
func (s *Service) persist(snap Snapshot) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if snap.Version <= s.lastVersion {
		return
	}
	if err := s.mirror.Persist(context.Background(), snap.Records); err == nil {
		s.lastVersion = snap.Version
	}
}

// Add is a convenience for Store().Add that logs duplicates at debug level.
func (s *Service) Add(n model.Notification) error {
	err := s.store.Add(n)
	if err != nil {
		s.log.Debug().Err(err).Str("id", n.ID).Msg("notification not added")
	}
	return err
}

// Issued reports whether id was ever present in the store.
func (s *Service) Issued(id string) bool {
	return s.store.Issued(id)
}
