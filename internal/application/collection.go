package application

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Cache key namespaces, one per synced collection.
const (
	CollectionPrescriptions = "prescriptions"
	CollectionReminders     = "reminders"
)

// SortPrescriptions orders a prescription snapshot for display: active
// prescriptions first, newest prescribed first within each group.
func SortPrescriptions(ps []model.Prescription) {
	slices.SortStableFunc(ps, func(a, b model.Prescription) int {
		if a.IsActive() != b.IsActive() {
			if a.IsActive() {
				return -1
			}
			return 1
		}
		if c := b.PrescribedAt.Compare(a.PrescribedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Medication, b.Medication)
	})
}

// SortReminders orders a reminder snapshot by time of day ascending,
// medication name as tiebreak.
func SortReminders(rs []model.Reminder) {
	slices.SortStableFunc(rs, func(a, b model.Reminder) int {
		if c := a.MinuteOfDay() - b.MinuteOfDay(); c != 0 {
			return c
		}
		return strings.Compare(a.Medication, b.Medication)
	})
}

// NewPrescriptionCollection binds the generic coordinator to the
// prescriptions domain.
func NewPrescriptionCollection(
	client driven.MedicationClient,
	meta driven.SyncMetaStore,
	probe driven.ConnectivityProbe,
	ttl, fetchTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator[model.Prescription] {
	return NewCoordinator(
		Options{Collection: CollectionPrescriptions, TTL: ttl, FetchTimeout: fetchTimeout},
		meta,
		probe,
		client.FetchPrescriptions,
		SortPrescriptions,
		logger,
	)
}

// NewReminderCollection binds the generic coordinator to the reminders
// domain.
func NewReminderCollection(
	client driven.MedicationClient,
	meta driven.SyncMetaStore,
	probe driven.ConnectivityProbe,
	ttl, fetchTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator[model.Reminder] {
	return NewCoordinator(
		Options{Collection: CollectionReminders, TTL: ttl, FetchTimeout: fetchTimeout},
		meta,
		probe,
		client.FetchReminders,
		SortReminders,
		logger,
	)
}
