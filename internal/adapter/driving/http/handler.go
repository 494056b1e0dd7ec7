// Package httphandler is the HTTP driving adapter serving the REST API
// over the medication collections and draft store.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lvalenta/pilltrack/internal/application"
	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	prescriptions *application.Coordinator[model.Prescription]
	reminders     *application.Coordinator[model.Reminder]
	reminderGuard *application.MutationGuard[model.Reminder]
	drafts        *application.DraftService
	client        driven.MedicationClient
	probe         driven.ConnectivityProbe
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	prescriptions *application.Coordinator[model.Prescription],
	reminders *application.Coordinator[model.Reminder],
	reminderGuard *application.MutationGuard[model.Reminder],
	drafts *application.DraftService,
	client driven.MedicationClient,
	probe driven.ConnectivityProbe,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		prescriptions: prescriptions,
		reminders:     reminders,
		reminderGuard: reminderGuard,
		drafts:        drafts,
		client:        client,
		probe:         probe,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/users/{owner}/prescriptions", h.ListPrescriptions)
	mux.HandleFunc("GET /api/v1/users/{owner}/prescriptions/stream", h.StreamPrescriptions)
	mux.HandleFunc("GET /api/v1/users/{owner}/reminders", h.ListReminders)
	mux.HandleFunc("GET /api/v1/users/{owner}/reminders/stream", h.StreamReminders)
	mux.HandleFunc("POST /api/v1/users/{owner}/reminders/{id}/toggle", h.ToggleReminder)
	mux.HandleFunc("DELETE /api/v1/users/{owner}/reminders/{id}", h.DeleteReminder)

	mux.HandleFunc("GET /api/v1/drafts", h.ListDrafts)
	mux.HandleFunc("POST /api/v1/drafts", h.CreateDraft)
	mux.HandleFunc("GET /api/v1/drafts/{id}", h.GetDraft)
	mux.HandleFunc("PUT /api/v1/drafts/{id}", h.SaveDraft)
	mux.HandleFunc("DELETE /api/v1/drafts/{id}", h.RemoveDraft)
	mux.HandleFunc("GET /api/v1/drafts/{id}/resume", h.ResumeDraft)
	mux.HandleFunc("POST /api/v1/users/{owner}/drafts/{id}/submit", h.SubmitDraft)

	mux.HandleFunc("GET /api/v1/users/{owner}/status", h.Status)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListPrescriptions returns the owner's prescription snapshot, running
// the cache-first load. ?refresh=true forces a remote fetch.
func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	force := r.URL.Query().Get("refresh") == "true"

	outcome, err := h.prescriptions.Load(r.Context(), owner, force)
	if err != nil && outcome == application.OutcomeFailedNoCache {
		h.writeLoadError(w, owner, err)
		return
	}

	records := h.prescriptions.Current(owner)
	resp := PrescriptionListResponse{
		Outcome:       string(outcome),
		Prescriptions: make([]PrescriptionResponse, 0, len(records)),
	}
	for _, p := range records {
		resp.Prescriptions = append(resp.Prescriptions, toPrescriptionResponse(p))
	}

	if meta, err := h.prescriptions.Metadata(r.Context(), owner); err == nil {
		resp.LastSyncAt, resp.RecordCount = formatSyncMeta(meta)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListReminders returns the owner's reminder snapshot, running the
// cache-first load. ?refresh=true forces a remote fetch.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	force := r.URL.Query().Get("refresh") == "true"

	outcome, err := h.reminders.Load(r.Context(), owner, force)
	if err != nil && outcome == application.OutcomeFailedNoCache {
		h.writeLoadError(w, owner, err)
		return
	}

	records := h.reminders.Current(owner)
	resp := ReminderListResponse{
		Outcome:   string(outcome),
		Reminders: make([]ReminderResponse, 0, len(records)),
	}
	for _, rem := range records {
		resp.Reminders = append(resp.Reminders, toReminderResponse(rem))
	}

	if meta, err := h.reminders.Metadata(r.Context(), owner); err == nil {
		resp.LastSyncAt, resp.RecordCount = formatSyncMeta(meta)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ToggleReminder activates or deactivates a reminder.
//
// Deactivation and reactivating a repeating reminder apply locally first.
// Reactivating a one-shot reminder waits for the server, which is the
// only party that can rule on whether the scheduled time has elapsed.
func (h *Handler) ToggleReminder(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	var req ToggleReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, ok := findReminder(h.reminders.Current(owner), id)
	if !ok {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	safety := application.SafetyOptimistic
	if req.IsActive && target.Schedule == model.ScheduleOnce {
		safety = application.SafetyServerValidated
	}

	isActive := req.IsActive
	mutation := application.Mutation[model.Reminder]{
		Name:   "toggle_reminder",
		Safety: safety,
		Match:  func(rem model.Reminder) bool { return rem.ID == id },
		Transform: func(rem model.Reminder) (model.Reminder, bool) {
			rem.IsActive = isActive
			rem.SyncStatus = model.SyncStatusPending
			return rem, true
		},
		Remote: func(ctx context.Context) error {
			return h.client.UpdateReminder(ctx, id, driven.ReminderPatch{IsActive: &isActive})
		},
	}

	if err := h.reminderGuard.Apply(r.Context(), owner, mutation); err != nil {
		if errors.Is(err, model.ErrReminderElapsed) {
			writeError(w, http.StatusConflict, "reminder schedule already elapsed")
			return
		}
		h.logger.Error("reminder toggle failed", "owner", owner, "reminder", id, "error", err)
		writeError(w, http.StatusBadGateway, "remote update failed")
		return
	}

	if updated, ok := findReminder(h.reminders.Current(owner), id); ok {
		writeJSON(w, http.StatusOK, toReminderResponse(updated))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteReminder removes a reminder, applying locally first.
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	if _, ok := findReminder(h.reminders.Current(owner), id); !ok {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	mutation := application.Mutation[model.Reminder]{
		Name:   "delete_reminder",
		Safety: application.SafetyOptimistic,
		Match:  func(rem model.Reminder) bool { return rem.ID == id },
		Transform: func(rem model.Reminder) (model.Reminder, bool) {
			return rem, false
		},
		Remote: func(ctx context.Context) error {
			return h.client.DeleteReminder(ctx, id)
		},
	}

	if err := h.reminderGuard.Apply(r.Context(), owner, mutation); err != nil {
		h.logger.Error("reminder delete failed", "owner", owner, "reminder", id, "error", err)
		writeError(w, http.StatusBadGateway, "remote delete failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListDrafts returns all stored draft IDs, most recently modified first.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.drafts.ListIDs(r.Context())
	if err != nil {
		h.logger.Error("failed to list drafts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DraftListResponse{IDs: ids})
}

// CreateDraft stages a new draft. Persistence failure is non-fatal: the
// draft is returned either way so the client's form keeps working.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := model.DraftKind(req.Kind)
	if kind != model.DraftKindOCR && kind != model.DraftKindNFC {
		writeError(w, http.StatusBadRequest, "unknown draft kind")
		return
	}

	draft, err := h.drafts.Create(r.Context(), kind, req.Data, req.ImagePaths)
	if err != nil {
		h.logger.Warn("draft created without persistence", "draft", draft.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, toDraftResponse(draft))
}

// GetDraft returns a single stored draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	draft, err := h.drafts.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get draft", "draft", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if draft == nil {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}

	writeJSON(w, http.StatusOK, toDraftResponse(*draft))
}

// SaveDraft upserts a draft's data and image paths.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SaveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := model.Draft{
		ID:         id,
		Data:       req.Data,
		ImagePaths: req.ImagePaths,
	}
	if err := h.drafts.Save(r.Context(), draft); err != nil {
		h.logger.Error("failed to save draft", "draft", id, "error", err)
		writeError(w, http.StatusInternalServerError, "draft save failed")
		return
	}

	writeJSON(w, http.StatusOK, toDraftResponse(draft))
}

// RemoveDraft permanently deletes a draft and its attached files.
func (h *Handler) RemoveDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.drafts.Remove(r.Context(), id); err != nil {
		h.logger.Error("failed to remove draft", "draft", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResumeDraft loads a draft and validates its payload against its kind's
// schema, returning the typed payload alongside the raw draft.
func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	draft, payload, err := h.drafts.Resume(r.Context(), id)
	if err != nil {
		h.writeDraftError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, ResumeDraftResponse{
		Draft:   toDraftResponse(*draft),
		Payload: payload,
	})
}

// SubmitDraft sends a resumed draft to the remote as a new prescription
// and deletes it on success.
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	id := r.PathValue("id")

	if err := h.drafts.Submit(r.Context(), owner, id); err != nil {
		h.writeDraftError(w, id, err)
		return
	}

	// The submission lands in the prescription collection; drop the
	// cached snapshot so the next load shows it.
	h.prescriptions.Invalidate(owner)

	w.WriteHeader(http.StatusNoContent)
}

// Status reports connectivity and per-collection sync state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")

	resp := StatusResponse{
		Connectivity: string(h.probe.Check(r.Context())),
	}

	if meta, err := h.prescriptions.Metadata(r.Context(), owner); err == nil {
		resp.Prescriptions = toCollectionStatus(meta, h.prescriptions.RemainingTTL(owner))
	}
	if meta, err := h.reminders.Metadata(r.Context(), owner); err == nil {
		resp.Reminders = toCollectionStatus(meta, h.reminders.RemainingTTL(owner))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeLoadError maps a failed no-cache load onto an HTTP status.
func (h *Handler) writeLoadError(w http.ResponseWriter, owner string, err error) {
	if errors.Is(err, model.ErrOffline) {
		writeError(w, http.StatusServiceUnavailable, "offline with no cached data")
		return
	}
	h.logger.Error("load failed with no cached data", "owner", owner, "error", err)
	writeError(w, http.StatusBadGateway, "remote fetch failed")
}

// writeDraftError maps draft lifecycle errors onto HTTP statuses.
func (h *Handler) writeDraftError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, model.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, model.ErrUnknownDraftKind), errors.Is(err, model.ErrInvalidDraftPayload):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("draft operation failed", "draft", id, "error", err)
		writeError(w, http.StatusBadGateway, "draft operation failed")
	}
}

// findReminder locates a reminder by ID in a snapshot.
func findReminder(records []model.Reminder, id string) (model.Reminder, bool) {
	for _, rem := range records {
		if rem.ID == id {
			return rem, true
		}
	}
	return model.Reminder{}, false
}
