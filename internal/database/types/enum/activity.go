package enum

// ActivityType represents the kinds of trust escalation events recorded in the audit log.
//
//go:generate go tool enumer -type=ActivityType -trimprefix=ActivityType
type ActivityType int

const (
	// ActivityTypeAll matches any activity type in database queries.
	ActivityTypeAll ActivityType = iota

	// ActivityTypeFlagged tracks when a user's flag count is incremented.
	ActivityTypeFlagged
	// ActivityTypeBanned tracks when a user reaches the ban threshold.
	ActivityTypeBanned
)
