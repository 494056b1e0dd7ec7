package model

// SyncStatus tags a synchronized record's last known relationship to the
// remote store. Display only; merge logic is always remote-wins.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Connectivity classifies the device's current transport.
type Connectivity string

const (
	ConnectivityNone     Connectivity = "none"
	ConnectivityCellular Connectivity = "cellular"
	ConnectivityWiFi     Connectivity = "wifi"
)

// Online reports whether any transport is available.
func (c Connectivity) Online() bool {
	return c == ConnectivityCellular || c == ConnectivityWiFi
}

// PrescriptionStatus represents the state of a prescription.
type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "active"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
	PrescriptionStatusExpired   PrescriptionStatus = "expired"
)

// ReminderSchedule distinguishes repeating reminders from one-shot ones.
type ReminderSchedule string

const (
	ScheduleDaily ReminderSchedule = "daily"
	ScheduleOnce  ReminderSchedule = "once"
)
