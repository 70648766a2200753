package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	gosync "sync"

	"github.com/rs/zerolog"

	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/store"
)

// Source tells where restored records came from.
type Source int

const (
	SourceNone Source = iota
	SourcePrimary
	SourceBackup
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return store.SlotNotifications
	case SourceBackup:
		return store.SlotNotificationsBackup
	default:
		return "none"
	}
}

// Restored is the outcome of reading the durable slots.
type Restored struct {
	Records []model.Notification
	Source  Source

	// Reload asks the owner to re-read the primary slot into the live
	// store so every consumer observes the adopted state.
	Reload bool
}

// Mirror keeps a serialized copy of the store in two durable slots: the
// primary written on every change and a backup written opportunistically.
// The two writes are independent, so recovery between them is best-effort.
type Mirror struct {
	slots    store.SlotStore
	critical []int
	log      zerolog.Logger

	mu  gosync.Mutex
	err error
}

// NewMirror creates a mirror over slots.
func NewMirror(slots store.SlotStore, criticalScores []int, logger zerolog.Logger) *Mirror {
	if len(criticalScores) == 0 {
		criticalScores = DefaultCriticalScores
	}
	return &Mirror{
		slots:    slots,
		critical: slices.Clone(criticalScores),
		log:      logger.With().Str("component", "mirror").Logger(),
	}
}

// Persist writes records to the primary slot.
func (m *Mirror) Persist(ctx context.Context, records []model.Notification) error {
	return m.write(ctx, store.SlotNotifications, records)
}

// Backup writes records to the backup slot.
func (m *Mirror) Backup(ctx context.Context, records []model.Notification) error {
	return m.write(ctx, store.SlotNotificationsBackup, records)
}

// Load reads one slot. A slot that was never written yields no records and
// no error.
func (m *Mirror) Load(ctx context.Context, slot string) ([]model.Notification, error) {
	records, err := m.read(ctx, slot)
	if errors.Is(err, store.ErrSlotNotFound) {
		return nil, nil
	}
	if err != nil {
		m.fail(err)
		return nil, err
	}
	return records, nil
}

// Restore reads the primary slot and falls back to the backup slot when the
// primary is absent or unreadable. Adopting the backup writes it back to
// the primary slot and asks for a reload.
func (m *Mirror) Restore(ctx context.Context) Restored {
	records, err := m.read(ctx, store.SlotNotifications)
	if err == nil {
		return Restored{Records: records, Source: SourcePrimary}
	}
	if !errors.Is(err, store.ErrSlotNotFound) {
		m.fail(err)
	}

	backup, berr := m.read(ctx, store.SlotNotificationsBackup)
	if berr != nil {
		if !errors.Is(berr, store.ErrSlotNotFound) {
			m.fail(berr)
		}
		return Restored{Source: SourceNone}
	}

	m.log.Info().Int("records", len(backup)).Msg("restoring notifications from backup slot")
	if werr := m.Persist(ctx, backup); werr != nil {
		return Restored{Records: backup, Source: SourceBackup}
	}
	return Restored{Records: backup, Source: SourceBackup, Reload: true}
}

// Reconcile checks live records for a partial set of critical matches:
// some but not all of the critical scores present among match records. In
// that state, if the backup slot holds strictly more match records than
// live, the backup is adopted into the primary slot and returned with
// Reload set. The second return value reports whether that happened.
func (m *Mirror) Reconcile(ctx context.Context, live []model.Notification) (Restored, bool) {
	if !m.partialCritical(live) {
		return Restored{}, false
	}

	backup, err := m.read(ctx, store.SlotNotificationsBackup)
	if err != nil {
		if !errors.Is(err, store.ErrSlotNotFound) {
			m.fail(err)
		}
		return Restored{}, false
	}

	liveMatches, backupMatches := countMatches(live), countMatches(backup)
	if backupMatches <= liveMatches {
		return Restored{}, false
	}

	m.log.Warn().
		Int("live_matches", liveMatches).
		Int("backup_matches", backupMatches).
		Msg("critical match missing, adopting backup slot")

	if err := m.Persist(ctx, backup); err != nil {
		return Restored{}, false
	}
	return Restored{Records: backup, Source: SourceBackup, Reload: true}, true
}

// Err returns the latched persistence failure, or nil. A later successful
// write of the same slot clears it.
func (m *Mirror) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Mirror) partialCritical(records []model.Notification) bool {
	present := make(map[int]struct{}, len(m.critical))
	for _, n := range records {
		if n.Type != model.TypeMatch {
			continue
		}
		if score := n.Score(); slices.Contains(m.critical, score) {
			present[score] = struct{}{}
		}
	}
	return len(present) > 0 && len(present) < distinct(m.critical)
}

func (m *Mirror) read(ctx context.Context, slot string) ([]model.Notification, error) {
	raw, err := m.slots.GetSlot(ctx, slot)
	if errors.Is(err, store.ErrSlotNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &PersistenceError{Slot: slot, Op: "read", Err: err}
	}

	var records []model.Notification
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &PersistenceError{Slot: slot, Op: "decode", Err: err}
	}
	return records, nil
}

func (m *Mirror) write(ctx context.Context, slot string, records []model.Notification) error {
	if records == nil {
		records = []model.Notification{}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		perr := &PersistenceError{Slot: slot, Op: "encode", Err: err}
		m.fail(perr)
		return perr
	}

	if err := m.slots.PutSlot(ctx, slot, raw); err != nil {
		perr := &PersistenceError{Slot: slot, Op: "write", Err: fmt.Errorf("%d records: %w", len(records), err)}
		m.fail(perr)
		return perr
	}
	m.recovered(slot)
	return nil
}

func (m *Mirror) fail(err error) {
	m.log.Error().Err(err).Msg("notification persistence failed")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// recovered clears a latched failure of slot.
func (m *Mirror) recovered(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var perr *PersistenceError
	if errors.As(m.err, &perr) && perr.Slot == slot {
		m.log.Info().Str("slot", slot).Str("op", perr.Op).Msg("notification persistence recovered")
		m.err = nil
	}
}

func distinct(scores []int) int {
	seen := make(map[int]struct{}, len(scores))
	for _, s := range scores {
		seen[s] = struct{}{}
	}
	return len(seen)
}
