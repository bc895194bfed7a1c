package trust_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/guardian/internal/database/types/enum"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNotFound = errors.New("not found")

// memoryStore serializes transitions with a single mutex.
type memoryStore struct {
	mu      sync.Mutex
	records map[int64]trust.Record
	log     []trust.AuditEntry
}

func newMemoryStore(records ...trust.Record) *memoryStore {
	s := &memoryStore{records: make(map[int64]trust.Record)}
	for _, r := range records {
		s.records[r.UserID] = r
	}
	return s
}

func (s *memoryStore) ApplyTransition(
	_ context.Context, userID int64, fn trust.TransitionFunc,
) (trust.Record, trust.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[userID]
	if !ok {
		return trust.Record{}, trust.AuditEntry{}, errNotFound
	}

	next, entry, err := fn(current)
	if err != nil {
		return trust.Record{}, trust.AuditEntry{}, err
	}

	s.records[userID] = next
	s.log = append(s.log, entry)
	return next, entry, nil
}

// recordingNotifier collects ban notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	banned []int64
	err    error
}

func (n *recordingNotifier) NotifyBan(_ context.Context, record trust.Record, _ trust.AuditEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.banned = append(n.banned, record.UserID)
	return n.err
}

func TestTransition(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name         string
		current      trust.Record
		threshold    int
		want         trust.Record
		wantActivity enum.ActivityType
	}{
		{
			name:         "first flag increments",
			current:      trust.Record{UserID: 1, FlagCount: 0},
			threshold:    2,
			want:         trust.Record{UserID: 1, FlagCount: 1},
			wantActivity: enum.ActivityTypeFlagged,
		},
		{
			name:         "reaching threshold bans without increment",
			current:      trust.Record{UserID: 1, FlagCount: 1},
			threshold:    2,
			want:         trust.Record{UserID: 1, FlagCount: 1, Banned: true},
			wantActivity: enum.ActivityTypeBanned,
		},
		{
			name:         "already at threshold bans without increment",
			current:      trust.Record{UserID: 1, FlagCount: 2},
			threshold:    2,
			want:         trust.Record{UserID: 1, FlagCount: 2, Banned: true},
			wantActivity: enum.ActivityTypeBanned,
		},
		{
			name:         "higher threshold keeps counting",
			current:      trust.Record{UserID: 1, FlagCount: 1},
			threshold:    4,
			want:         trust.Record{UserID: 1, FlagCount: 2},
			wantActivity: enum.ActivityTypeFlagged,
		},
		{
			name:         "invalid threshold uses default",
			current:      trust.Record{UserID: 1, FlagCount: 1},
			threshold:    0,
			want:         trust.Record{UserID: 1, FlagCount: 1, Banned: true},
			wantActivity: enum.ActivityTypeBanned,
		},
		{
			name:         "banned user stays banned without increment",
			current:      trust.Record{UserID: 1, FlagCount: 2, Banned: true},
			threshold:    2,
			want:         trust.Record{UserID: 1, FlagCount: 2, Banned: true},
			wantActivity: enum.ActivityTypeBanned,
		},
		{
			name:         "banned user below a raised threshold stays banned",
			current:      trust.Record{UserID: 1, FlagCount: 1, Banned: true},
			threshold:    5,
			want:         trust.Record{UserID: 1, FlagCount: 1, Banned: true},
			wantActivity: enum.ActivityTypeBanned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next, entry := trust.Transition(tt.current, tt.threshold, now)

			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.wantActivity, entry.Activity)
			assert.Equal(t, tt.current.UserID, entry.UserID)
			assert.Equal(t, now, entry.Timestamp)
		})
	}
}

func TestManager_Flag(t *testing.T) {
	t.Parallel()

	t.Run("flag then ban", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore(trust.Record{UserID: 7})
		notifier := &recordingNotifier{}
		manager := trust.NewManager(store, notifier, 2, zap.NewNop())

		first, err := manager.Flag(t.Context(), 7)
		require.NoError(t, err)
		assert.False(t, first.Banned())
		assert.Equal(t, trust.Record{UserID: 7, FlagCount: 1}, first.Record)

		second, err := manager.Flag(t.Context(), 7)
		require.NoError(t, err)
		assert.True(t, second.Banned())
		assert.Equal(t, trust.Record{UserID: 7, FlagCount: 1, Banned: true}, second.Record)

		third, err := manager.Flag(t.Context(), 7)
		require.NoError(t, err)
		assert.True(t, third.Banned())
		assert.False(t, third.NewlyBanned())
		assert.Equal(t, trust.Record{UserID: 7, FlagCount: 1, Banned: true}, third.Record)

		require.Len(t, store.log, 3)
		assert.Equal(t, enum.ActivityTypeFlagged, store.log[0].Activity)
		assert.Equal(t, enum.ActivityTypeBanned, store.log[1].Activity)
		assert.Equal(t, enum.ActivityTypeBanned, store.log[2].Activity)
		assert.False(t, store.log[0].Timestamp.IsZero())
		assert.Equal(t, []int64{7}, notifier.banned)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		manager := trust.NewManager(newMemoryStore(), nil, 2, zap.NewNop())

		_, err := manager.Flag(t.Context(), 99)
		require.ErrorIs(t, err, errNotFound)
	})

	t.Run("invalid user id", func(t *testing.T) {
		t.Parallel()

		manager := trust.NewManager(newMemoryStore(), nil, 2, zap.NewNop())

		_, err := manager.Flag(t.Context(), 0)
		require.ErrorIs(t, err, trust.ErrInvalidUserID)
	})

	t.Run("notification failure does not fail the flag", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore(trust.Record{UserID: 3, FlagCount: 1})
		notifier := &recordingNotifier{err: errors.New("webhook down")}
		manager := trust.NewManager(store, notifier, 2, zap.NewNop())

		result, err := manager.Flag(t.Context(), 3)
		require.NoError(t, err)
		assert.True(t, result.Banned())
		assert.Equal(t, []int64{3}, notifier.banned)
	})

	t.Run("concurrent flags are serialized", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore(trust.Record{UserID: 5})
		manager := trust.NewManager(store, nil, 10, zap.NewNop())

		var wg sync.WaitGroup
		for range 9 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := manager.Flag(context.Background(), 5)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, trust.Record{UserID: 5, FlagCount: 9}, store.records[5])
		assert.Len(t, store.log, 9)
	})
}
