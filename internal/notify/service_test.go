package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
	"github.com/nhle/lostfound/internal/store"
	"github.com/nhle/lostfound/tests/testutil"
)

// failingSlots rejects writes while failPut is set.
type failingSlots struct {
	store.SlotStore
	failPut bool
}

func (f *failingSlots) PutSlot(ctx context.Context, key string, value []byte) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.SlotStore.PutSlot(ctx, key, value)
}

func putRecords(t *testing.T, slots store.SlotStore, slot string, records ...model.Notification) {
	t.Helper()
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, slots.PutSlot(context.Background(), slot, raw))
}

func ids(records []model.Notification) []string {
	out := make([]string, 0, len(records))
	for _, n := range records {
		out = append(out, n.ID)
	}
	return out
}

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	slots := testutil.NewTestStore(t)

	svc := notify.NewService(slots, nil, zerolog.Nop())
	restored := svc.Init(ctx)
	assert.Equal(t, notify.SourceNone, restored.Source)

	lat, lng := 32.0853, 34.7818
	records := []model.Notification{
		matchNotification("1", 91),
		{
			ID:      "2",
			Type:    model.TypeMatchContact,
			Title:   "Contact details for match",
			Message: "call me",
			Data: model.ContactPayload{
				MatchPayload: model.MatchPayload{
					ItemID:        "a",
					MatchID:       "b",
					ItemLocation:  model.Location{Lat: &lat, Lng: &lng}.PayloadString(),
					MatchLocation: "Central station",
					Score:         87,
				},
				ContactMethod:  model.ContactPhone,
				ContactDetails: "555-0100",
				FromUserID:     "u1",
			},
			Read: true,
		},
		genericNotification("3"),
		model.NewNotification("system", "Maintenance", "tonight", nil),
	}
	for _, n := range records {
		require.NoError(t, svc.Store().Add(n))
	}
	want := svc.Store().List()
	svc.Dispose(ctx)

	again := notify.NewService(slots, nil, zerolog.Nop())
	restored = again.Init(ctx)
	assert.Equal(t, notify.SourcePrimary, restored.Source)
	assert.False(t, restored.Reload)
	assert.Equal(t, want, again.Store().List())
	assert.NoError(t, again.Err())
}

func TestService_EveryMutationReachesPrimarySlot(t *testing.T) {
	ctx := context.Background()
	slots := testutil.NewTestStore(t)
	svc := notify.NewService(slots, nil, zerolog.Nop())
	svc.Init(ctx)

	require.NoError(t, svc.Store().Add(matchNotification("1", 50)))
	require.NoError(t, svc.Store().Add(matchNotification("2", 60)))
	svc.Store().MarkAsRead("2")
	svc.Store().Remove("1")

	records, err := notify.NewMirror(slots, nil, zerolog.Nop()).Load(ctx, store.SlotNotifications)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, ids(records))
	assert.True(t, records[0].Read)
}

func TestService_RestoreFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	slots := testutil.NewTestStore(t)

	require.NoError(t, slots.PutSlot(ctx, store.SlotNotifications, []byte("{not json")))
	putRecords(t, slots, store.SlotNotificationsBackup, matchNotification("1", 91), matchNotification("2", 81))

	svc := notify.NewService(slots, nil, zerolog.Nop())
	restored := svc.Init(ctx)

	assert.Equal(t, notify.SourceBackup, restored.Source)
	assert.True(t, restored.Reload)
	assert.Equal(t, []string{"1", "2"}, ids(svc.Store().List()))

	// Writing the adopted backup repairs the primary slot.
	assert.NoError(t, svc.Err())

	primary, err := notify.NewMirror(slots, nil, zerolog.Nop()).Load(ctx, store.SlotNotifications)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(primary))
}

func TestService_AbsentSlotsAreNotErrors(t *testing.T) {
	svc := notify.NewService(testutil.NewTestStore(t), nil, zerolog.Nop())
	restored := svc.Init(context.Background())

	assert.Equal(t, notify.SourceNone, restored.Source)
	assert.Zero(t, svc.Store().Len())
	assert.NoError(t, svc.Err())
}

func TestService_CheckIntegrity(t *testing.T) {
	tests := []struct {
		name     string
		live     []model.Notification
		backup   []model.Notification
		wantIDs  []string
		reloaded bool
	}{
		{
			name:     "one critical missing and backup has more matches",
			live:     []model.Notification{matchNotification("1", 91)},
			backup:   []model.Notification{matchNotification("1", 91), matchNotification("2", 81)},
			wantIDs:  []string{"1", "2"},
			reloaded: true,
		},
		{
			name:    "both critical present",
			live:    []model.Notification{matchNotification("1", 91), matchNotification("2", 81)},
			backup:  []model.Notification{matchNotification("1", 91), matchNotification("2", 81), matchNotification("3", 10)},
			wantIDs: []string{"1", "2"},
		},
		{
			name:    "no critical present",
			live:    []model.Notification{matchNotification("1", 40)},
			backup:  []model.Notification{matchNotification("1", 40), matchNotification("2", 81)},
			wantIDs: []string{"1"},
		},
		{
			name:    "backup not strictly larger",
			live:    []model.Notification{matchNotification("1", 81), genericNotification("g")},
			backup:  []model.Notification{matchNotification("9", 91)},
			wantIDs: []string{"1", "g"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			slots := testutil.NewTestStore(t)
			putRecords(t, slots, store.SlotNotifications, tt.live...)
			putRecords(t, slots, store.SlotNotificationsBackup, tt.backup...)

			svc := notify.NewService(slots, nil, zerolog.Nop())
			restored := svc.Init(ctx)

			assert.Equal(t, tt.reloaded, restored.Reload)
			assert.Equal(t, tt.wantIDs, ids(svc.Store().List()))
			assert.False(t, svc.CheckIntegrity(ctx))
		})
	}
}

func TestService_CheckIntegrityOnLiveStore(t *testing.T) {
	ctx := context.Background()
	slots := testutil.NewTestStore(t)
	svc := notify.NewService(slots, nil, zerolog.Nop())
	svc.Init(ctx)

	require.NoError(t, svc.Store().Add(matchNotification("1", 91)))
	require.NoError(t, svc.Store().Add(matchNotification("2", 81)))
	svc.BackupNow(ctx)

	require.True(t, svc.Store().Remove("2", notify.Confirmed()))
	assert.True(t, svc.CheckIntegrity(ctx))
	assert.Equal(t, []string{"1", "2"}, ids(svc.Store().List()))
}

func TestService_PersistenceFailureIsLatched(t *testing.T) {
	ctx := context.Background()
	slots := &failingSlots{SlotStore: testutil.NewTestStore(t)}
	svc := notify.NewService(slots, nil, zerolog.Nop())
	svc.Init(ctx)

	slots.failPut = true
	require.NoError(t, svc.Store().Add(genericNotification("1")))
	assert.True(t, svc.Store().Has("1"))

	var perr *notify.PersistenceError
	require.ErrorAs(t, svc.Err(), &perr)
	assert.Equal(t, "write", perr.Op)

	svc.BackupNow(ctx)
	require.ErrorAs(t, svc.Err(), &perr)
	assert.Equal(t, store.SlotNotificationsBackup, perr.Slot)

	slots.failPut = false
	svc.Store().MarkAsRead("1")
	records, err := notify.NewMirror(slots, nil, zerolog.Nop()).Load(ctx, store.SlotNotifications)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(records))

	// The primary write does not clear the backup slot failure.
	require.ErrorAs(t, svc.Err(), &perr)
	assert.Equal(t, store.SlotNotificationsBackup, perr.Slot)

	svc.BackupNow(ctx)
	assert.NoError(t, svc.Err())
}

func TestService_UnreadablePrimaryWithoutBackup(t *testing.T) {
	ctx := context.Background()
	slots := testutil.NewTestStore(t)
	require.NoError(t, slots.PutSlot(ctx, store.SlotNotifications, []byte("{not json")))

	svc := notify.NewService(slots, nil, zerolog.Nop())
	restored := svc.Init(ctx)
	assert.Equal(t, notify.SourceNone, restored.Source)

	var perr *notify.PersistenceError
	require.ErrorAs(t, svc.Err(), &perr)
	assert.Equal(t, "decode", perr.Op)
	assert.True(t, perr.Reading())

	require.NoError(t, svc.Store().Add(genericNotification("1")))
	assert.NoError(t, svc.Err())
}
