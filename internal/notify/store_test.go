package notify_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
)

func matchNotification(id string, score int) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.TypeMatch,
		Title:     "Possible match",
		Message:   fmt.Sprintf("score %d", score),
		Data:      model.MatchPayload{ItemID: "item-" + id, MatchID: "match-" + id, Score: score},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func genericNotification(id string) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.TypeGeneric,
		Title:     "Hello",
		Data:      model.GenericPayload{"k": "v"},
		CreatedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestStore_AddKeepsInsertionOrder(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(genericNotification("b")))
	require.NoError(t, s.Add(matchNotification("a", 50)))
	require.NoError(t, s.Add(genericNotification("c")))

	var ids []string
	for _, n := range s.List() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, 3, s.UnreadCount())
	assert.Equal(t, 1, s.MatchCount())
}

func TestStore_DuplicateIDLeavesStoreUnchanged(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(matchNotification("1", 40)))
	before := s.List()

	dup := genericNotification("1")
	err := s.Add(dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, notify.ErrDuplicateID)

	var dupErr *notify.DuplicateIDError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "1", dupErr.ID)
	assert.Equal(t, before, s.List())
}

func TestStore_RemovedIDIsNeverReused(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(genericNotification("x")))
	require.True(t, s.Remove("x"))
	assert.False(t, s.Has("x"))
	assert.True(t, s.Issued("x"))

	assert.ErrorIs(t, s.Add(genericNotification("x")), notify.ErrDuplicateID)
	assert.ErrorIs(t, s.Add(model.Notification{}), notify.ErrEmptyID)
}

func TestStore_MarkAsReadIsIdempotent(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(genericNotification("1")))

	assert.True(t, s.MarkAsRead("1"))
	first := s.List()
	assert.False(t, s.MarkAsRead("1"))
	assert.Equal(t, first, s.List())
	assert.False(t, s.MarkAsRead("missing"))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStore_MarkAllAsRead(t *testing.T) {
	s := notify.NewStore(nil)
	assert.Empty(t, s.MarkAllAsRead())

	require.NoError(t, s.Add(matchNotification("1", 91)))
	require.NoError(t, s.Add(matchNotification("2", 81)))

	assert.ElementsMatch(t, []string{"1", "2"}, s.MarkAllAsRead())
	for _, n := range s.List() {
		assert.True(t, n.Read, n.ID)
	}
	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.MarkAllAsRead())
}

func TestStore_ProtectedRemoval(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(matchNotification("1", 91)))
	require.NoError(t, s.Add(matchNotification("2", 90)))

	assert.True(t, s.IsProtected("1"))
	assert.False(t, s.IsProtected("2"))

	assert.False(t, s.Remove("1"))
	assert.True(t, s.Has("1"))

	assert.True(t, s.Remove("1", notify.Confirmed()))
	assert.False(t, s.Has("1"))

	assert.True(t, s.Remove("2"))
	assert.False(t, s.Remove("2"))
}

func TestStore_ProtectionUsesConfiguredScores(t *testing.T) {
	s := notify.NewStore([]int{75})
	require.NoError(t, s.Add(matchNotification("1", 75)))
	require.NoError(t, s.Add(matchNotification("2", 91)))

	assert.True(t, s.IsProtected("1"))
	assert.False(t, s.IsProtected("2"))
}

func TestStore_ContactNotificationIsNeverProtected(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(model.Notification{
		ID:   "c",
		Type: model.TypeMatchContact,
		Data: model.ContactPayload{MatchPayload: model.MatchPayload{Score: 91}},
	}))
	assert.False(t, s.IsProtected("c"))
	assert.True(t, s.Remove("c"))
}

func TestStore_RemoveWithConfirmation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		answer    bool
		answerErr error
		wantGone  bool
		wantErr   bool
		wantAsked bool
	}{
		{name: "accepted", answer: true, wantGone: true, wantAsked: true},
		{name: "declined", answer: false, wantAsked: true},
		{name: "cancelled", answerErr: context.Canceled, wantAsked: true},
		{name: "failed", answerErr: errors.New("dialog broke"), wantErr: true, wantAsked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := notify.NewStore(nil)
			require.NoError(t, s.Add(matchNotification("1", 81)))

			asked := false
			removed, err := s.RemoveWithConfirmation(ctx, "1", notify.ConfirmerFunc(
				func(_ context.Context, n model.Notification) (bool, error) {
					asked = true
					assert.Equal(t, "1", n.ID)
					return tt.answer, tt.answerErr
				}))

			assert.Equal(t, tt.wantAsked, asked)
			assert.Equal(t, tt.wantGone, removed)
			assert.Equal(t, tt.wantGone, !s.Has("1"))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_RemoveWithConfirmationSkipsUnprotected(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(matchNotification("1", 50)))

	removed, err := s.RemoveWithConfirmation(context.Background(), "1", notify.ConfirmerFunc(
		func(context.Context, model.Notification) (bool, error) {
			t.Fatal("confirmation requested for unprotected record")
			return false, nil
		}))
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestStore_ListenersRunAfterMutation(t *testing.T) {
	s := notify.NewStore(nil)

	var got []notify.Snapshot
	unsubscribe := s.OnChange(func(snap notify.Snapshot) {
		// Reading back from inside a listener must not deadlock.
		assert.Equal(t, len(snap.Records), s.Len())
		got = append(got, snap)
	})

	require.NoError(t, s.Add(genericNotification("1")))
	s.MarkAsRead("1")
	s.MarkAsRead("1")
	unsubscribe()
	s.Remove("1")

	require.Len(t, got, 2)
	assert.Less(t, got[0].Version, got[1].Version)
	assert.True(t, got[1].Records[0].Read)
}

func TestStore_ReplaceKeepsIssuedIDs(t *testing.T) {
	s := notify.NewStore(nil)
	require.NoError(t, s.Add(genericNotification("old")))

	s.Replace([]model.Notification{matchNotification("a", 10), matchNotification("a", 20), genericNotification("b")})

	assert.Equal(t, 2, s.Len())
	n, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, n.Score())
	assert.False(t, s.Has("old"))
	assert.ErrorIs(t, s.Add(genericNotification("old")), notify.ErrDuplicateID)
	assert.ErrorIs(t, s.Add(genericNotification("b")), notify.ErrDuplicateID)
}

// Unread count must equal the unread records in List after any sequence of
// operations.
func TestStore_UnreadCountMatchesRecords(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := notify.NewStore(nil)

	for i := range 2000 {
		id := fmt.Sprintf("n%d", rng.IntN(40))
		switch rng.IntN(5) {
		case 0, 1:
			_ = s.Add(matchNotification(id, []int{50, 81, 91}[rng.IntN(3)]))
		case 2:
			s.MarkAsRead(id)
		case 3:
			s.Remove(id, func() []notify.RemoveOption {
				if rng.IntN(2) == 0 {
					return []notify.RemoveOption{notify.Confirmed()}
				}
				return nil
			}()...)
		case 4:
			if rng.IntN(20) == 0 {
				s.MarkAllAsRead()
			}
		}

		unread := 0
		for _, n := range s.List() {
			if !n.Read {
				unread++
			}
		}
		require.Equal(t, unread, s.UnreadCount(), "step %d", i)
	}
}
