package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// StatusError is a non-2xx response from the medication service, with
// the error envelope's code and message when the body carried one.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	wrapped    error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// Unwrap exposes the domain sentinel this status maps onto, if any, so
// callers can branch with errors.Is.
func (e *StatusError) Unwrap() error {
	return e.wrapped
}

// newStatusError builds a StatusError from a non-2xx response, decoding
// the error envelope and mapping known codes onto domain sentinels.
func newStatusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var envelope apiError
		if json.Unmarshal(body, &envelope) == nil {
			se.Code = envelope.Code
			se.Message = envelope.Message
		}
	}

	if resp.StatusCode == http.StatusConflict && se.Code == "schedule_elapsed" {
		se.wrapped = model.ErrReminderElapsed
	}

	return se
}
