package types

import (
	"time"

	"github.com/robalyx/guardian/internal/database/types/enum"
)

// AuditLog is an append-only record of a trust escalation event.
type AuditLog struct {
	Sequence          int64             `bun:",pk,autoincrement" json:"id"`
	UserID            int64             `bun:",notnull"          json:"userId"`
	ActivityType      enum.ActivityType `bun:",notnull"          json:"-"`
	ActivityTimestamp time.Time         `bun:",notnull"          json:"timestamp"`
}

// ActivityFilter is used to provide a filter criteria for retrieving audit logs.
type ActivityFilter struct {
	UserID       int64
	ActivityType enum.ActivityType
	StartDate    time.Time
	EndDate      time.Time
}

// LogCursor represents a pagination cursor for audit logs.
type LogCursor struct {
	Timestamp time.Time
	Sequence  int64
}
