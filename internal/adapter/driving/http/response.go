package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// PrescriptionResponse is the JSON representation of a prescription.
type PrescriptionResponse struct {
	ID                  string `json:"id"`
	Medication          string `json:"medication"`
	Dosage              string `json:"dosage"`
	Instructions        string `json:"instructions"`
	Status              string `json:"status"`
	RefillsLeft         int    `json:"refills_left"`
	PrescribedAt        string `json:"prescribed_at"`
	ExpiresAt           string `json:"expires_at"`
	DaysSincePrescribed int    `json:"days_since_prescribed"`
	SyncStatus          string `json:"sync_status"`
}

// ReminderResponse is the JSON representation of a reminder.
type ReminderResponse struct {
	ID           string `json:"id"`
	Medication   string `json:"medication"`
	TimeOfDay    string `json:"time_of_day"`
	IsActive     bool   `json:"is_active"`
	Schedule     string `json:"schedule"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	SyncStatus   string `json:"sync_status"`
	UpdatedAt    string `json:"updated_at"`
}

// PrescriptionListResponse wraps a prescription snapshot with its load
// outcome and sync metadata.
type PrescriptionListResponse struct {
	Outcome       string                 `json:"outcome"`
	LastSyncAt    string                 `json:"last_sync_at,omitempty"`
	RecordCount   int                    `json:"record_count"`
	Prescriptions []PrescriptionResponse `json:"prescriptions"`
}

// ReminderListResponse wraps a reminder snapshot with its load outcome
// and sync metadata.
type ReminderListResponse struct {
	Outcome     string             `json:"outcome"`
	LastSyncAt  string             `json:"last_sync_at,omitempty"`
	RecordCount int                `json:"record_count"`
	Reminders   []ReminderResponse `json:"reminders"`
}

// DraftResponse is the JSON representation of a staged draft.
type DraftResponse struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Data         map[string]any `json:"data"`
	ImagePaths   []string       `json:"image_paths"`
	LastModified string         `json:"last_modified"`
}

// DraftListResponse lists stored draft IDs, most recently modified first.
type DraftListResponse struct {
	IDs []string `json:"ids"`
}

// ResumeDraftResponse pairs a stored draft with its validated, typed
// payload.
type ResumeDraftResponse struct {
	Draft   DraftResponse `json:"draft"`
	Payload any           `json:"payload"`
}

// CreateDraftRequest is the JSON body for the create draft endpoint.
type CreateDraftRequest struct {
	Kind       string         `json:"kind"`
	Data       map[string]any `json:"data"`
	ImagePaths []string       `json:"image_paths"`
}

// SaveDraftRequest is the JSON body for the save draft endpoint.
type SaveDraftRequest struct {
	Data       map[string]any `json:"data"`
	ImagePaths []string       `json:"image_paths"`
}

// ToggleReminderRequest is the JSON body for the reminder toggle endpoint.
type ToggleReminderRequest struct {
	IsActive bool `json:"is_active"`
}

// CollectionStatus is one collection's sync state within the status
// endpoint's response.
type CollectionStatus struct {
	LastSyncAt   string `json:"last_sync_at,omitempty"`
	RecordCount  int    `json:"record_count"`
	FreshForSecs int    `json:"fresh_for_seconds"`
}

// StatusResponse reports connectivity and per-collection sync state.
type StatusResponse struct {
	Connectivity  string           `json:"connectivity"`
	Prescriptions CollectionStatus `json:"prescriptions"`
	Reminders     CollectionStatus `json:"reminders"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toPrescriptionResponse converts a domain Prescription to its JSON
// response representation.
func toPrescriptionResponse(p model.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:                  p.ID,
		Medication:          p.Medication,
		Dosage:              p.Dosage,
		Instructions:        p.Instructions,
		Status:              string(p.Status),
		RefillsLeft:         p.RefillsLeft,
		PrescribedAt:        p.PrescribedAt.UTC().Format(time.RFC3339),
		ExpiresAt:           p.ExpiresAt.UTC().Format(time.RFC3339),
		DaysSincePrescribed: p.DaysSincePrescribed(),
		SyncStatus:          string(p.SyncStatus),
	}
}

// toReminderResponse converts a domain Reminder to its JSON response
// representation.
func toReminderResponse(r model.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:         r.ID,
		Medication: r.Medication,
		TimeOfDay:  r.TimeOfDay,
		IsActive:   r.IsActive,
		Schedule:   string(r.Schedule),
		SyncStatus: string(r.SyncStatus),
		UpdatedAt:  r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !r.ScheduledFor.IsZero() {
		resp.ScheduledFor = r.ScheduledFor.UTC().Format(time.RFC3339)
	}
	return resp
}

// toDraftResponse converts a domain Draft to its JSON response
// representation.
func toDraftResponse(d model.Draft) DraftResponse {
	kind, _ := d.Kind()

	data := d.Data
	if data == nil {
		data = map[string]any{}
	}
	paths := d.ImagePaths
	if paths == nil {
		paths = []string{}
	}

	return DraftResponse{
		ID:           d.ID,
		Kind:         string(kind),
		Data:         data,
		ImagePaths:   paths,
		LastModified: d.LastModified.UTC().Format(time.RFC3339),
	}
}

// toCollectionStatus converts sync metadata and remaining freshness into
// the status endpoint's shape.
func toCollectionStatus(meta *model.SyncMetadata, remaining time.Duration) CollectionStatus {
	status := CollectionStatus{
		FreshForSecs: int(max(remaining, 0) / time.Second),
	}
	if meta != nil {
		status.LastSyncAt = meta.LastSyncAt.UTC().Format(time.RFC3339)
		status.RecordCount = meta.RecordCount
	}
	return status
}

// formatSyncMeta renders last sync metadata for the list responses.
func formatSyncMeta(meta *model.SyncMetadata) (string, int) {
	if meta == nil {
		return "", 0
	}
	return meta.LastSyncAt.UTC().Format(time.RFC3339), meta.RecordCount
}
