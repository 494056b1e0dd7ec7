// Package remote implements the MedicationClient port against the
// medication service's JSON REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MedicationClient = (*Client)(nil)

// Client implements the driven.MedicationClient port over the
// medication service's REST API with the following transport stack:
//  1. httpcache (ETag-based conditional request caching on GETs)
//  2. exponential backoff retry on transient failures (GETs only;
//     mutations are never retried to avoid duplicate side effects)
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	retry   func() backoff.BackOff
}

// NewClient creates a medication API client with the default transport
// stack and a bounded retry policy for reads.
func NewClient(baseURL, token string) *Client {
	transport := httpcache.NewMemoryCacheTransport()

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retry:   defaultRetryPolicy,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server without the retry delays of the default policy.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retry: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		},
	}
}

func defaultRetryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(policy, 3)
}

// apiError is the service's standard error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// prescriptionDTO mirrors the wire shape of a prescription record.
type prescriptionDTO struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Medication   string    `json:"medication"`
	Dosage       string    `json:"dosage"`
	Instructions string    `json:"instructions"`
	Status       string    `json:"status"`
	RefillsLeft  int       `json:"refills_left"`
	PrescribedAt time.Time `json:"prescribed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// reminderDTO mirrors the wire shape of a reminder record.
type reminderDTO struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Medication   string     `json:"medication"`
	TimeOfDay    string     `json:"time_of_day"`
	IsActive     bool       `json:"is_active"`
	Schedule     string     `json:"schedule"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FetchPrescriptions retrieves all prescriptions for the given owner.
func (c *Client) FetchPrescriptions(ctx context.Context, ownerID string) ([]model.Prescription, error) {
	path := fmt.Sprintf("/v1/users/%s/prescriptions", url.PathEscape(ownerID))

	var dtos []prescriptionDTO
	if err := c.getJSON(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetching prescriptions for %s: %w", ownerID, err)
	}

	prescriptions := make([]model.Prescription, 0, len(dtos))
	for _, dto := range dtos {
		prescriptions = append(prescriptions, mapPrescription(dto))
	}

	return prescriptions, nil
}

// FetchReminders retrieves all reminders for the given owner.
func (c *Client) FetchReminders(ctx context.Context, ownerID string) ([]model.Reminder, error) {
	path := fmt.Sprintf("/v1/users/%s/reminders", url.PathEscape(ownerID))

	var dtos []reminderDTO
	if err := c.getJSON(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetching reminders for %s: %w", ownerID, err)
	}

	reminders := make([]model.Reminder, 0, len(dtos))
	for _, dto := range dtos {
		reminders = append(reminders, mapReminder(dto))
	}

	return reminders, nil
}

// UpdateReminder applies a partial update to a single reminder. A 409
// with code "schedule_elapsed" maps to model.ErrReminderElapsed.
func (c *Client) UpdateReminder(ctx context.Context, reminderID string, patch driven.ReminderPatch) error {
	path := fmt.Sprintf("/v1/reminders/%s", url.PathEscape(reminderID))

	if err := c.doMutation(ctx, http.MethodPatch, path, patch); err != nil {
		return fmt.Errorf("updating reminder %s: %w", reminderID, err)
	}

	return nil
}

// DeleteReminder permanently deletes a reminder. A 404 is treated as
// success: the record is gone either way.
func (c *Client) DeleteReminder(ctx context.Context, reminderID string) error {
	path := fmt.Sprintf("/v1/reminders/%s", url.PathEscape(reminderID))

	err := c.doMutation(ctx, http.MethodDelete, path, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("deleting reminder %s: %w", reminderID, err)
	}

	return nil
}

// SubmitPrescription creates a new prescription for the given owner.
func (c *Client) SubmitPrescription(ctx context.Context, ownerID string, sub driven.PrescriptionSubmission) error {
	path := fmt.Sprintf("/v1/users/%s/prescriptions", url.PathEscape(ownerID))

	if err := c.doMutation(ctx, http.MethodPost, path, sub); err != nil {
		return fmt.Errorf("submitting prescription for %s: %w", ownerID, err)
	}

	return nil
}

// getJSON performs a GET with retry on transient failures and decodes
// the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport errors (connection refused, DNS) are retryable
			// unless the context itself is done.
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return newStatusError(resp)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(newStatusError(resp))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}

		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(c.retry(), ctx))
}

// doMutation performs a non-GET request without retry and discards any
// success body.
func (c *Client) doMutation(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// mapPrescription converts a wire prescription to the domain model.
func mapPrescription(dto prescriptionDTO) model.Prescription {
	return model.Prescription{
		ID:           dto.ID,
		OwnerID:      dto.OwnerID,
		Medication:   dto.Medication,
		Dosage:       dto.Dosage,
		Instructions: dto.Instructions,
		Status:       model.PrescriptionStatus(dto.Status),
		RefillsLeft:  dto.RefillsLeft,
		PrescribedAt: dto.PrescribedAt,
		ExpiresAt:    dto.ExpiresAt,
		SyncStatus:   model.SyncStatusSynced,
	}
}

// mapReminder converts a wire reminder to the domain model.
func mapReminder(dto reminderDTO) model.Reminder {
	var scheduledFor time.Time
	if dto.ScheduledFor != nil {
		scheduledFor = *dto.ScheduledFor
	}

	return model.Reminder{
		ID:           dto.ID,
		OwnerID:      dto.OwnerID,
		Medication:   dto.Medication,
		TimeOfDay:    dto.TimeOfDay,
		IsActive:     dto.IsActive,
		Schedule:     model.ReminderSchedule(dto.Schedule),
		ScheduledFor: scheduledFor,
		SyncStatus:   model.SyncStatusSynced,
		UpdatedAt:    dto.UpdatedAt,
	}
}
