package model

import "time"

// SyncMetadata records when a collection was last refreshed from the
// remote and how many records it held. Used only for staleness display,
// never for merge decisions.
type SyncMetadata struct {
	Collection  string
	OwnerID     string
	LastSyncAt  time.Time
	RecordCount int
}

// Age returns the time elapsed since the last successful sync.
func (m SyncMetadata) Age(now time.Time) time.Duration {
	if m.LastSyncAt.IsZero() {
		return 0
	}
	return now.Sub(m.LastSyncAt)
}
