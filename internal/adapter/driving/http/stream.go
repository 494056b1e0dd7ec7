package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lvalenta/pilltrack/internal/application"
	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// StreamPrescriptions pushes the owner's prescription snapshots to the
// client as server-sent events. The request context is the
// subscription's liveness token: closing the connection unsubscribes.
func (h *Handler) StreamPrescriptions(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	sub := h.prescriptions.Subscribe(r.Context(), owner)

	streamSnapshots(w, r, sub, func(records []model.Prescription) any {
		out := make([]PrescriptionResponse, 0, len(records))
		for _, p := range records {
			out = append(out, toPrescriptionResponse(p))
		}
		return out
	})
}

// StreamReminders pushes the owner's reminder snapshots to the client
// as server-sent events.
func (h *Handler) StreamReminders(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	sub := h.reminders.Subscribe(r.Context(), owner)

	streamSnapshots(w, r, sub, func(records []model.Reminder) any {
		out := make([]ReminderResponse, 0, len(records))
		for _, rem := range records {
			out = append(out, toReminderResponse(rem))
		}
		return out
	})
}

// streamSnapshots writes each published snapshot as one SSE data event
// until the client disconnects. The subscription replays the last
// published snapshot on attach, so a client always gets an initial
// event without triggering a fetch.
func streamSnapshots[T any](w http.ResponseWriter, r *http.Request, sub *application.Subscription[T], render func([]T) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case records := <-sub.Updates():
			data, err := json.Marshal(render(records))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
