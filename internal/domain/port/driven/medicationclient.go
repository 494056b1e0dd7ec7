package driven

import (
	"context"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// ReminderPatch is a partial update for a reminder. Nil fields are left
// unchanged by the remote.
type ReminderPatch struct {
	IsActive *bool `json:"is_active,omitempty"`
}

// PrescriptionSubmission is a new prescription assembled from a resumed
// draft.
type PrescriptionSubmission struct {
	Medication   string   `json:"medication"`
	Dosage       string   `json:"dosage"`
	Instructions string   `json:"instructions,omitempty"`
	ImagePaths   []string `json:"image_paths,omitempty"`
}

// MedicationClient defines the driven port for the remote medication
// store. The engine treats every call as an opaque async operation; the
// wire protocol belongs to the adapter.
type MedicationClient interface {
	FetchPrescriptions(ctx context.Context, ownerID string) ([]model.Prescription, error)
	FetchReminders(ctx context.Context, ownerID string) ([]model.Reminder, error)
	UpdateReminder(ctx context.Context, reminderID string, patch ReminderPatch) error
	DeleteReminder(ctx context.Context, reminderID string) error
	SubmitPrescription(ctx context.Context, ownerID string, sub PrescriptionSubmission) error
}
