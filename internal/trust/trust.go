// Package trust tracks repeat offenders through a flag and ban escalation.
//
// The state transition is read-modify-write. Callers must run it through a
// Store that serializes updates for the same user, since the package has no
// authority over the store's concurrency control.
package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/guardian/internal/database/types/enum"
	"go.uber.org/zap"
)

// DefaultBanThreshold is the number of flag events at which a user is banned.
const DefaultBanThreshold = 2

// ErrInvalidUserID is returned for non-positive user IDs.
var ErrInvalidUserID = errors.New("invalid user id")

// Record is the persisted trust state of a user.
type Record struct {
	UserID    int64
	FlagCount int
	Banned    bool
}

// AuditEntry describes one escalation event.
type AuditEntry struct {
	UserID    int64
	Activity  enum.ActivityType
	Timestamp time.Time
}

// Transition applies one flag event to the current record.
//
// Once the event brings the user to the threshold they are banned and the
// flag count is left untouched; every earlier event increments the count.
// Banned users stay banned and each further event is logged as a ban.
func Transition(current Record, threshold int, now time.Time) (Record, AuditEntry) {
	if threshold < 1 {
		threshold = DefaultBanThreshold
	}

	next := current
	entry := AuditEntry{UserID: current.UserID, Timestamp: now}

	if current.Banned || current.FlagCount+1 >= threshold {
		next.Banned = true
		entry.Activity = enum.ActivityTypeBanned
	} else {
		next.FlagCount++
		entry.Activity = enum.ActivityTypeFlagged
	}

	return next, entry
}

// TransitionFunc computes the next record and its audit entry from the current record.
type TransitionFunc func(current Record) (Record, AuditEntry, error)

// Store persists trust records.
type Store interface {
	// ApplyTransition loads the user's record, calls fn and persists the
	// returned record together with the audit entry. The read and the write
	// must be atomic per user. When fn returns an error nothing is written.
	ApplyTransition(ctx context.Context, userID int64, fn TransitionFunc) (Record, AuditEntry, error)
}

// BanNotifier is told about users that were just banned.
type BanNotifier interface {
	NotifyBan(ctx context.Context, record Record, entry AuditEntry) error
}

// FlagResult is the outcome of flagging a user.
type FlagResult struct {
	Record Record
	Entry  AuditEntry
	// WasBanned is set when the user was banned before this event.
	WasBanned bool
}

// Banned reports whether this flag event was logged as a ban.
func (r *FlagResult) Banned() bool {
	return r.Entry.Activity == enum.ActivityTypeBanned
}

// NewlyBanned reports whether this flag event moved the user into the banned state.
func (r *FlagResult) NewlyBanned() bool {
	return r.Banned() && !r.WasBanned
}

// Manager applies flag events to users.
type Manager struct {
	store     Store
	notifier  BanNotifier
	threshold int
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager creates a Manager. A nil notifier disables ban notifications.
func NewManager(store Store, notifier BanNotifier, threshold int, logger *zap.Logger) *Manager {
	if threshold < 1 {
		threshold = DefaultBanThreshold
	}

	return &Manager{
		store:     store,
		notifier:  notifier,
		threshold: threshold,
		now:       time.Now,
		logger:    logger.Named("trust"),
	}
}

// Threshold returns the configured ban threshold.
func (m *Manager) Threshold() int {
	return m.threshold
}

// Flag records a violation for the user, banning them once the threshold is reached.
func (m *Manager) Flag(ctx context.Context, userID int64) (*FlagResult, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUserID, userID)
	}

	var wasBanned bool
	record, entry, err := m.store.ApplyTransition(ctx, userID, func(current Record) (Record, AuditEntry, error) {
		wasBanned = current.Banned
		next, entry := Transition(current, m.threshold, m.now().UTC())
		return next, entry, nil
	})
	if err != nil {
		return nil, err
	}

	result := &FlagResult{Record: record, Entry: entry, WasBanned: wasBanned}

	m.logger.Info("User flagged",
		zap.Int64("userID", userID),
		zap.Int("flagCount", record.FlagCount),
		zap.Bool("banned", record.Banned))

	if result.NewlyBanned() && m.notifier != nil {
		if err := m.notifier.NotifyBan(ctx, record, entry); err != nil {
			m.logger.Error("Failed to send ban notification",
				zap.Error(err),
				zap.Int64("userID", userID))
		}
	}

	return result, nil
}
